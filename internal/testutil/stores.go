package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
)

// ErrInjected is returned by stores configured to fail.
var ErrInjected = errors.New("injected failure")

// VerificationStore mirrors the guarded updates of the SQL repository under one mutex.
type VerificationStore struct {
	mu      sync.Mutex
	records []*models.VerificationRecord
}

func NewVerificationStore() *VerificationStore {
	return &VerificationStore{}
}

func (s *VerificationStore) Create(_ context.Context, rec *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

func (s *VerificationStore) FindLatestLive(_ context.Context, email string, productID uuid.UUID, now time.Time) (*models.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.VerificationRecord
	for _, r := range s.records {
		if r.Email != email || r.ProductID != productID || !r.IsLive(now) {
			continue
		}
		if best == nil || !r.CreatedAt.Before(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *VerificationStore) IncrementAttempts(_ context.Context, id uuid.UUID) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil || r.Verified || r.Attempts >= r.MaxAttempts {
		return 0, false, nil
	}
	r.Attempts++
	return r.Attempts, true, nil
}

func (s *VerificationStore) MarkVerified(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil || r.Verified || r.Attempts >= r.MaxAttempts || !now.Before(r.ExpiresAt) {
		return false, nil
	}
	r.Verified = true
	r.VerifiedAt = &now
	return true, nil
}

// All returns copies of every stored record in insertion order.
func (s *VerificationStore) All() []models.VerificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.VerificationRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

func (s *VerificationStore) find(id uuid.UUID) *models.VerificationRecord {
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

type ProductStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]models.Product
}

func NewProductStore(products ...models.Product) *ProductStore {
	s := &ProductStore{products: make(map[uuid.UUID]models.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *ProductStore) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (s *ProductStore) List(_ context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ProductStore) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.products[p.ID] = *p
	return nil
}

func (s *ProductStore) Update(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.products[p.ID] = *p
	return nil
}

func (s *ProductStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

type OrderStore struct {
	mu         sync.Mutex
	orders     []*models.Order
	products   *ProductStore
	FailCreate bool
}

// NewOrderStore joins orders to products the way the SQL repository preloads them.
func NewOrderStore(products *ProductStore) *OrderStore {
	return &OrderStore{products: products}
}

func (s *OrderStore) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate {
		return ErrInjected
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	cp := *o
	cp.Product = nil
	s.orders = append(s.orders, &cp)
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.findBy(ctx, func(o *models.Order) bool { return o.ID == id })
}

func (s *OrderStore) FindByRazorpayOrderID(ctx context.Context, gatewayID string) (*models.Order, error) {
	return s.findBy(ctx, func(o *models.Order) bool { return o.RazorpayOrderID == gatewayID })
}

func (s *OrderStore) findBy(ctx context.Context, match func(*models.Order) bool) (*models.Order, error) {
	s.mu.Lock()
	var found *models.Order
	for _, o := range s.orders {
		if match(o) {
			cp := *o
			found = &cp
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return nil, repositories.ErrNotFound
	}
	if s.products != nil {
		if p, err := s.products.FindByID(ctx, found.ProductID); err == nil {
			found.Product = p
		}
	}
	return found, nil
}

func (s *OrderStore) Complete(_ context.Context, id uuid.UUID, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id && o.Status == models.OrderStatusPending {
			o.Status = models.OrderStatusCompleted
			o.RazorpayPaymentID = paymentID
			return true, nil
		}
	}
	return false, nil
}

func (s *OrderStore) List(_ context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		out = append(out, *s.orders[i])
	}
	return out, nil
}

func (s *OrderStore) Stats(_ context.Context) (models.OrderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.OrderStats
	for _, o := range s.orders {
		stats.Total++
		switch o.Status {
		case models.OrderStatusCompleted:
			stats.Completed++
			stats.Revenue += o.Amount
		case models.OrderStatusPending:
			stats.Pending++
		}
	}
	return stats, nil
}

type EmailLogStore struct {
	mu         sync.Mutex
	logs       []models.EmailLog
	FailCreate bool
}

func NewEmailLogStore() *EmailLogStore {
	return &EmailLogStore{}
}

func (s *EmailLogStore) Create(_ context.Context, entry *models.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate {
		return ErrInjected
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *EmailLogStore) ListByStatus(_ context.Context, status models.EmailStatus, limit int) ([]models.EmailLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EmailLog
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.logs[i].Status == status {
			out = append(out, s.logs[i])
		}
	}
	return out, nil
}

func (s *EmailLogStore) All() []models.EmailLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EmailLog(nil), s.logs...)
}

type AdminStore struct {
	mu     sync.Mutex
	admins map[string]models.Admin
}

func NewAdminStore() *AdminStore {
	return &AdminStore{admins: make(map[string]models.Admin)}
}

func (s *AdminStore) Create(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(admin.Email)
	if _, exists := s.admins[key]; exists {
		return errors.New("duplicate email")
	}
	if admin.ID == uuid.Nil {
		admin.ID = uuid.New()
	}
	s.admins[key] = *admin
	return nil
}

func (s *AdminStore) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[strings.ToLower(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

type RateLimitStore struct {
	mu      sync.Mutex
	rows    []models.RateLimit
	FailSum bool
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{}
}

func (s *RateLimitStore) SumSince(_ context.Context, ip, endpoint string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSum {
		return 0, ErrInjected
	}
	total := 0
	for _, r := range s.rows {
		if r.IPAddress == ip && r.Endpoint == endpoint && !r.WindowStart.Before(since) {
			total += r.RequestCount
		}
	}
	return total, nil
}

func (s *RateLimitStore) Insert(_ context.Context, row *models.RateLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *row)
	return nil
}

func (s *RateLimitStore) Rows() []models.RateLimit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RateLimit(nil), s.rows...)
}
