package models

import "time"

type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

type EmailLog struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	UserEmail    string      `json:"user_email" gorm:"not null"`
	ProductName  string      `json:"product_name"`
	Status       EmailStatus `json:"status" gorm:"type:text;not null"`
	ErrorMessage string      `json:"error_message,omitempty"`
	SentAt       time.Time   `json:"sent_at"`
}

func (EmailLog) TableName() string {
	return "email_logs"
}
