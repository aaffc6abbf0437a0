package repositories

import (
	"context"

	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"gorm.io/gorm"
)

type EmailLogRepository struct {
	db *gorm.DB
}

func NewEmailLogRepository(db *gorm.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

func (r *EmailLogRepository) Create(ctx context.Context, entry *models.EmailLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *EmailLogRepository) ListByStatus(ctx context.Context, status models.EmailStatus, limit int) ([]models.EmailLog, error) {
	var logs []models.EmailLog
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("sent_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
