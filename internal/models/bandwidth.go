package models

import "time"

// BandwidthBucket is the hourly aggregate for one (user, gateway) pair.
type BandwidthBucket struct {
	UserID        string    `json:"userId" db:"user_id"`
	GatewayID     string    `json:"gatewayId" db:"gateway_id"`
	HourStart     time.Time `json:"hourStart" db:"hour_start"`
	IncomingBytes int64     `json:"incomingBytes" db:"incoming_bytes"`
	OutgoingBytes int64     `json:"outgoingBytes" db:"outgoing_bytes"`
}

// HourOf truncates t to the start of its UTC hour, the bucket boundary.
func HourOf(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// DayOf truncates t to midnight UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyBandwidth is a per-day sum of hourly buckets.
type DailyBandwidth struct {
	Day           time.Time `json:"day"`
	IncomingBytes int64     `json:"incomingBytes"`
	OutgoingBytes int64     `json:"outgoingBytes"`
	TotalBytes    int64     `json:"totalBytes"`
}

// UserBandwidth is one row of the top-users report.
type UserBandwidth struct {
	UserID        string `json:"userId"`
	Username      string `json:"username,omitempty"`
	IncomingBytes int64  `json:"incomingBytes"`
	OutgoingBytes int64  `json:"outgoingBytes"`
	TotalBytes    int64  `json:"totalBytes"`
}
