package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
)

const EventOrderCompleted = "order.completed"

// OrderEvent is the payload of an order feed message.
type OrderEvent struct {
	OrderID     uuid.UUID          `json:"orderId"`
	ProductID   uuid.UUID          `json:"productId"`
	ProductName string             `json:"productName"`
	UserEmail   string             `json:"userEmail"`
	Amount      float64            `json:"amount"`
	Status      models.OrderStatus `json:"status"`
	At          time.Time          `json:"at"`
}

func newOrderEvent(order *models.Order, productName string) OrderEvent {
	return OrderEvent{
		OrderID:     order.ID,
		ProductID:   order.ProductID,
		ProductName: productName,
		UserEmail:   order.UserEmail,
		Amount:      order.Amount,
		Status:      order.Status,
		At:          order.PurchaseDate,
	}
}

// EventPublisher pushes order events to the admin feed.
type EventPublisher interface {
	Publish(ctx context.Context, msg WebSocketMessage) error
}

// HubPublisher delivers straight to the in-process hub.
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, msg WebSocketMessage) error {
	return p.hub.BroadcastMessage(msg)
}
