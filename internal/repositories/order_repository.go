package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Preload("Product").First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *OrderRepository) FindByRazorpayOrderID(ctx context.Context, gatewayID string) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("razorpay_order_id = ?", gatewayID).
		First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// Complete moves a pending order to completed. It reports false if the order was not pending.
func (r *OrderRepository) Complete(ctx context.Context, id uuid.UUID, paymentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":              models.OrderStatusCompleted,
			"razorpay_payment_id": paymentID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Preload("Product").Order("purchase_date DESC").Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) Stats(ctx context.Context) (models.OrderStats, error) {
	var stats models.OrderStats
	db := r.db.WithContext(ctx).Model(&models.Order{})

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", models.OrderStatusCompleted).Count(&stats.Completed).Error; err != nil {
		return stats, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", models.OrderStatusPending).Count(&stats.Pending).Error; err != nil {
		return stats, err
	}
	err := db.Session(&gorm.Session{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", models.OrderStatusCompleted).
		Scan(&stats.Revenue).Error
	return stats, err
}
