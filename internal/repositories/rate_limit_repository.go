package repositories

import (
	"context"
	"time"

	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"gorm.io/gorm"
)

type RateLimitRepository struct {
	db *gorm.DB
}

func NewRateLimitRepository(db *gorm.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// SumSince totals request_count for the key over rows started at or after since.
func (r *RateLimitRepository) SumSince(ctx context.Context, ip, endpoint string, since time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.RateLimit{}).
		Select("COALESCE(SUM(request_count), 0)").
		Where("ip_address = ? AND endpoint = ? AND window_start >= ?", ip, endpoint, since).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *RateLimitRepository) Insert(ctx context.Context, row *models.RateLimit) error {
	return r.db.WithContext(ctx).Create(row).Error
}
