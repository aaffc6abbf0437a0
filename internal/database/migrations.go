package database

import (
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// gen_random_uuid() needs pgcrypto on Postgres < 13
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return err
	}

	err := db.AutoMigrate(
		&models.Product{},
		&models.VerificationRecord{},
		&models.RateLimit{},
		&models.Order{},
		&models.EmailLog{},
		&models.Admin{},
	)
	if err != nil {
		return err
	}

	// Lookup path for the newest live code per (email, product)
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_otp_lookup ON otp_verifications (email, product_id, verified, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limits_window ON rate_limits (ip_address, endpoint, window_start)`,
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	if db.Migrator().HasTable(&models.Order{}) {
		db.Exec(`ALTER TABLE orders DROP CONSTRAINT IF EXISTS orders_status_check`)
		db.Exec(`ALTER TABLE orders ADD CONSTRAINT orders_status_check CHECK (status IN ('pending', 'completed', 'failed'))`)
	}

	return nil
}
