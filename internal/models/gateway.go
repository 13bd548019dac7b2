package models

import "time"

// Gateway is a WiFi access point known through its heartbeats.
type Gateway struct {
	GatewayID string    `json:"gatewayId" db:"gateway_id"`
	LastPing  time.Time `json:"lastPing" db:"last_ping"`
	IsOnline  bool      `json:"isOnline" db:"is_online"`
	SysUptime int64     `json:"sysUptime" db:"sys_uptime"`
	FirstSeen time.Time `json:"firstSeen" db:"first_seen"`
}

// OnlineAt derives liveness from the last heartbeat; the stored flag only records
// what was true when the heartbeat was written.
func (g *Gateway) OnlineAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(g.LastPing) < timeout
}
