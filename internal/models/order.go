package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

type Order struct {
	ID                uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID         uuid.UUID   `json:"product_id" gorm:"type:uuid;not null"`
	Product           *Product    `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	UserEmail         string      `json:"user_email" gorm:"not null"`
	Amount            float64     `json:"amount" gorm:"default:0"`
	Status            OrderStatus `json:"status" gorm:"type:text;default:'pending'"`
	RazorpayOrderID   string      `json:"razorpay_order_id,omitempty" gorm:"column:razorpay_order_id;index"`
	RazorpayPaymentID string      `json:"razorpay_payment_id,omitempty" gorm:"column:razorpay_payment_id"`
	PurchaseDate      time.Time   `json:"purchase_date"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderStats summarises the order table for the admin dashboard.
type OrderStats struct {
	Total     int64   `json:"total"`
	Completed int64   `json:"completed"`
	Pending   int64   `json:"pending"`
	Revenue   float64 `json:"revenue"`
}
