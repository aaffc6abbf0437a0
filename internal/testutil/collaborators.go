package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

// Mailer records every message and fails while Err is set.
type Mailer struct {
	mu   sync.Mutex
	sent []services.Email
	Err  error
}

func (m *Mailer) Send(_ context.Context, msg services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Mailer) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

func (m *Mailer) Sent() []services.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.Email(nil), m.sent...)
}

// Captcha accepts tokens while OK is true.
type Captcha struct {
	OK  bool
	Err error
}

func (c *Captcha) Verify(context.Context, string, string) (bool, error) {
	return c.OK, c.Err
}

// Storage is an in-memory object store with predictable signed URLs.
type Storage struct {
	mu      sync.Mutex
	objects map[string][]byte
	Deleted []string
	SignErr error
}

func NewStorage() *Storage {
	return &Storage{objects: make(map[string][]byte)}
}

func (s *Storage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.SignErr != nil {
		return "", s.SignErr
	}
	return fmt.Sprintf("https://files.test/%s?expires_in=%d", key, int(ttl.Seconds())), nil
}

func (s *Storage) Upload(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.Deleted = append(s.Deleted, key)
	return nil
}

func (s *Storage) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Gateway is a payment gateway that signs with a fixed secret.
type Gateway struct {
	Secret    string
	Err       error
	mu        sync.Mutex
	Requests  []services.GatewayOrderRequest
	nextOrder int
}

func (g *Gateway) CreateOrder(_ context.Context, req services.GatewayOrderRequest) (*services.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.Requests = append(g.Requests, req)
	g.nextOrder++
	return &services.GatewayOrder{
		ID:       fmt.Sprintf("order_test_%d", g.nextOrder),
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
	}, nil
}

func (g *Gateway) VerifySignature(orderID, paymentID, signature string) bool {
	return services.VerifyPaymentSignature(g.Secret, orderID, paymentID, signature)
}

func (g *Gateway) KeyID() string {
	return "rzp_test_key"
}

// Events records published feed messages.
type Events struct {
	mu   sync.Mutex
	msgs []services.WebSocketMessage
}

func (e *Events) Publish(_ context.Context, msg services.WebSocketMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
	return nil
}

func (e *Events) Messages() []services.WebSocketMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]services.WebSocketMessage(nil), e.msgs...)
}
