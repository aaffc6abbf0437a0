package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
	"go.uber.org/zap"
)

// OrderService backs the admin order views.
type OrderService struct {
	orders    OrderStore
	products  ProductStore
	emailLogs EmailLogStore
	delivery  *Delivery
	log       *zap.Logger
}

func NewOrderService(orders OrderStore, products ProductStore, emailLogs EmailLogStore, delivery *Delivery, log *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		products:  products,
		emailLogs: emailLogs,
		delivery:  delivery,
		log:       log.Named("orders"),
	}
}

type OrderOverview struct {
	Orders []models.Order    `json:"orders"`
	Stats  models.OrderStats `json:"stats"`
}

func (s *OrderService) Overview(ctx context.Context) (*OrderOverview, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderOverview{Orders: orders, Stats: stats}, nil
}

func (s *OrderService) FailedEmails(ctx context.Context, limit int) ([]models.EmailLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := s.emailLogs.ListByStatus(ctx, models.EmailStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed emails: %w", err)
	}
	if logs == nil {
		logs = []models.EmailLog{}
	}
	return logs, nil
}

// ResendLink signs a fresh link for a completed order and mails it again.
func (s *OrderService) ResendLink(ctx context.Context, rawID string) (string, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", ErrOrderNotFound
	}
	order, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load order: %w", err)
	}
	if order.Status != models.OrderStatusCompleted {
		return "", ErrOrderNotPayable
	}

	product := order.Product
	if product == nil {
		product, err = s.products.FindByID(ctx, order.ProductID)
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrProductNotFound
		}
		if err != nil {
			return "", fmt.Errorf("load product: %w", err)
		}
	}

	link, err := s.delivery.SignLink(ctx, product)
	if err != nil {
		return "", err
	}
	kind := EmailKindResend
	if order.Amount > 0 {
		kind = EmailKindPurchase
	}
	if err := s.delivery.MailLink(ctx, kind, order.UserEmail, product, link); err != nil {
		return link, &DeliveryError{Link: link, Err: err}
	}
	s.log.Info("download link re-sent", zap.String("order_id", order.ID.String()))
	return link, nil
}
