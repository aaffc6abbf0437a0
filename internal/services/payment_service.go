package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
	"github.com/vivekcuts/vivekcuts-backend/pkg/utils"
	"go.uber.org/zap"
)

// PaymentService sells paid products through the gateway's checkout.
type PaymentService struct {
	gateway  PaymentGateway // nil when credentials are missing
	products ProductStore
	orders   OrderStore
	delivery *Delivery
	currency string
	log      *zap.Logger
	now      Clock
}

func NewPaymentService(gateway PaymentGateway, products ProductStore, orders OrderStore, delivery *Delivery, currency string, log *zap.Logger) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		gateway:  gateway,
		products: products,
		orders:   orders,
		delivery: delivery,
		currency: currency,
		log:      log.Named("payments"),
		now:      systemClock,
	}
}

func (s *PaymentService) WithClock(now Clock) *PaymentService {
	s.now = now
	return s
}

type CreateOrderInput struct {
	ProductID string
	Email     string
}

type CreateOrderResult struct {
	RazorpayOrderID string    `json:"razorpay_order_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	OrderID         uuid.UUID `json:"order_id"`
	KeyID           string    `json:"key_id"`
}

func (s *PaymentService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.ProductID == "" {
		return nil, ErrMissingFields
	}
	if !utils.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	id, err := uuid.Parse(in.ProductID)
	if err != nil {
		return nil, ErrProductNotFound
	}
	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product.IsFree {
		return nil, ErrProductIsFree
	}

	if s.gateway == nil {
		return nil, ErrPaymentNotConfigured
	}

	now := s.now()
	amount := product.AmountInPaise()
	gwOrder, err := s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  fmt.Sprintf("order_%d", now.UnixMilli()),
		Notes: map[string]string{
			"product_id":   product.ID.String(),
			"product_name": product.Name,
			"email":        email,
		},
	})
	if err != nil {
		paymentsTotal.WithLabelValues("gateway_failed").Inc()
		s.log.Error("failed to create gateway order", zap.String("product_id", product.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailed, err)
	}

	order := &models.Order{
		ID:              uuid.New(),
		ProductID:       product.ID,
		UserEmail:       email,
		Amount:          product.Price,
		Status:          models.OrderStatusPending,
		RazorpayOrderID: gwOrder.ID,
		PurchaseDate:    now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.log.Error("failed to save pending order", zap.String("razorpay_order_id", gwOrder.ID), zap.Error(err))
	}

	paymentsTotal.WithLabelValues("order_created").Inc()
	return &CreateOrderResult{
		RazorpayOrderID: gwOrder.ID,
		Amount:          amount,
		Currency:        s.currency,
		OrderID:         order.ID,
		KeyID:           s.gateway.KeyID(),
	}, nil
}

type VerifyPaymentInput struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
}

type VerifyPaymentResult struct {
	DownloadLink string
}

// VerifyPayment completes a pending order and mails the purchase. A repeated
// call for an already completed order re-delivers the link.
func (s *PaymentService) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (*VerifyPaymentResult, error) {
	orderID := strings.TrimSpace(in.RazorpayOrderID)
	paymentID := strings.TrimSpace(in.RazorpayPaymentID)
	signature := strings.TrimSpace(in.RazorpaySignature)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, ErrMissingPayment
	}

	if s.gateway == nil {
		return nil, ErrPaymentNotConfigured
	}
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		paymentsTotal.WithLabelValues("invalid_signature").Inc()
		s.log.Warn("payment signature mismatch", zap.String("razorpay_order_id", orderID))
		return nil, ErrInvalidSignature
	}

	order, err := s.orders.FindByRazorpayOrderID(ctx, orderID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	completed, err := s.orders.Complete(ctx, order.ID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("complete order: %w", err)
	}
	if !completed && order.Status != models.OrderStatusCompleted {
		return nil, ErrOrderNotPayable
	}
	order.Status = models.OrderStatusCompleted
	order.RazorpayPaymentID = paymentID

	product := order.Product
	if product == nil {
		product, err = s.products.FindByID(ctx, order.ProductID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load product: %w", err)
		}
	}

	link, err := s.delivery.SignLink(ctx, product)
	if err != nil {
		s.log.Error("failed to sign download link", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}

	// The payment is settled; a failed email still returns the link.
	_ = s.delivery.MailLink(ctx, EmailKindPurchase, order.UserEmail, product, link)

	if completed {
		s.delivery.PublishCompleted(order, product.Name)
		paymentsTotal.WithLabelValues("verified").Inc()
	} else {
		paymentsTotal.WithLabelValues("redelivered").Inc()
	}
	s.log.Info("payment verified", zap.String("order_id", order.ID.String()), zap.String("razorpay_order_id", orderID))
	return &VerifyPaymentResult{DownloadLink: link}, nil
}
