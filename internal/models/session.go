package models

import "time"

// Session is an authorization grant binding a token to a device and a user.
type Session struct {
	ID            string     `json:"id" db:"id"`
	Token         string     `json:"-" db:"token"`
	UserID        string     `json:"userId" db:"user_id"`
	MACAddress    string     `json:"macAddress" db:"mac_address"`
	IPAddress     string     `json:"ipAddress" db:"ip_address"`
	GatewayID     string     `json:"gatewayId" db:"gateway_id"`
	IsActive      bool       `json:"isActive" db:"is_active"`
	IncomingBytes int64      `json:"incomingBytes" db:"incoming_bytes"`
	OutgoingBytes int64      `json:"outgoingBytes" db:"outgoing_bytes"`
	SessionStart  time.Time  `json:"sessionStart" db:"session_start"`
	LastActivity  time.Time  `json:"lastActivity" db:"last_activity"`
	SessionEnd    *time.Time `json:"sessionEnd,omitempty" db:"session_end"`
}

// IdleSince reports whether the session has seen no activity since cutoff.
func (s *Session) IdleSince(cutoff time.Time) bool {
	return s.LastActivity.Before(cutoff)
}

// Duration is the wall time covered by the session, up to now if it is still open.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.SessionEnd != nil {
		return s.SessionEnd.Sub(s.SessionStart)
	}
	return now.Sub(s.SessionStart)
}

// TotalBytes is incoming plus outgoing.
func (s *Session) TotalBytes() int64 {
	return s.IncomingBytes + s.OutgoingBytes
}

// SessionStatistics aggregates over every session ever created.
type SessionStatistics struct {
	TotalSessions      int64         `json:"totalSessions"`
	ActiveSessions     int64         `json:"activeSessions"`
	TotalIncomingBytes int64         `json:"totalIncomingBytes"`
	TotalOutgoingBytes int64         `json:"totalOutgoingBytes"`
	AverageDuration    time.Duration `json:"averageDuration"`
}
