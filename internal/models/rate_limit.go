package models

import "time"

// RateLimit is one counted request. Rows are append-only; the window is a SUM over window_start.
type RateLimit struct {
	ID           uint      `gorm:"primaryKey"`
	IPAddress    string    `gorm:"column:ip_address;not null"`
	Endpoint     string    `gorm:"not null"`
	RequestCount int       `gorm:"column:request_count;default:1"`
	WindowStart  time.Time `gorm:"column:window_start;not null"`
}

func (RateLimit) TableName() string {
	return "rate_limits"
}
