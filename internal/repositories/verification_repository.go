package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Create(ctx context.Context, rec *models.VerificationRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindLatestLive returns the newest unverified, unexpired record for the pair.
func (r *VerificationRepository) FindLatestLive(ctx context.Context, email string, productID uuid.UUID, now time.Time) (*models.VerificationRecord, error) {
	var rec models.VerificationRecord
	err := r.db.WithContext(ctx).
		Where("email = ? AND product_id = ? AND verified = ? AND expires_at > ?", email, productID, false, now).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// IncrementAttempts bumps the counter only while the record is unverified and below its cap.
// ok is false when the guard rejected the update.
func (r *VerificationRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (attempts int, ok bool, err error) {
	var rec models.VerificationRecord
	res := r.db.WithContext(ctx).
		Model(&rec).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "attempts"}}}).
		Where("id = ? AND verified = ? AND attempts < max_attempts", id, false).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return rec.Attempts, true, nil
}

// MarkVerified flips verified exactly once. It reports false when another caller won,
// the attempts ran out, or the record expired.
func (r *VerificationRepository) MarkVerified(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VerificationRecord{}).
		Where("id = ? AND verified = ? AND attempts < max_attempts AND expires_at > ?", id, false, now).
		Updates(map[string]interface{}{
			"verified":    true,
			"verified_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
