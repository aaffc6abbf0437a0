package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
)

// Stores are satisfied by the gorm repositories and by the in-memory fakes in testutil.
// Lookups return repositories.ErrNotFound when nothing matches.

type VerificationStore interface {
	Create(ctx context.Context, rec *models.VerificationRecord) error
	FindLatestLive(ctx context.Context, email string, productID uuid.UUID, now time.Time) (*models.VerificationRecord, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (attempts int, ok bool, err error)
	MarkVerified(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type ProductStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByRazorpayOrderID(ctx context.Context, gatewayID string) (*models.Order, error)
	Complete(ctx context.Context, id uuid.UUID, paymentID string) (bool, error)
	List(ctx context.Context) ([]models.Order, error)
	Stats(ctx context.Context) (models.OrderStats, error)
}

type EmailLogStore interface {
	Create(ctx context.Context, entry *models.EmailLog) error
	ListByStatus(ctx context.Context, status models.EmailStatus, limit int) ([]models.EmailLog, error)
}

type AdminStore interface {
	Create(ctx context.Context, admin *models.Admin) error
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
}

type RateLimitStore interface {
	SumSince(ctx context.Context, ip, endpoint string, since time.Time) (int, error)
	Insert(ctx context.Context, row *models.RateLimit) error
}

// Clock lets tests move time without sleeping.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
