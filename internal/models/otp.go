package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationRecord is one issued email code for a (email, product) pair.
// Rows are never deleted; a record is spent once Verified flips or Attempts reaches MaxAttempts.
type VerificationRecord struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string     `json:"email" gorm:"not null"`
	OTPCode      string     `json:"-" gorm:"column:otp_code;size:6;not null"`
	ProductID    uuid.UUID  `json:"product_id" gorm:"type:uuid;not null"`
	CaptchaToken string     `json:"-" gorm:"column:captcha_token"`
	IPAddress    string     `json:"ip_address" gorm:"column:ip_address"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null"`
	Verified     bool       `json:"verified" gorm:"default:false"`
	VerifiedAt   *time.Time `json:"verified_at"`
	Attempts     int        `json:"attempts" gorm:"default:0"`
	MaxAttempts  int        `json:"max_attempts" gorm:"default:5"`
}

func (VerificationRecord) TableName() string {
	return "otp_verifications"
}

func (v *VerificationRecord) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// IsLive reports whether the code can still be redeemed at now.
func (v *VerificationRecord) IsLive(now time.Time) bool {
	return !v.Verified && now.Before(v.ExpiresAt)
}

// AttemptsExhausted is true once no further comparisons are allowed.
func (v *VerificationRecord) AttemptsExhausted() bool {
	return v.Attempts >= v.MaxAttempts
}

func (v *VerificationRecord) RemainingAttempts() int {
	if left := v.MaxAttempts - v.Attempts; left > 0 {
		return left
	}
	return 0
}
