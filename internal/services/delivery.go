package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/pkg/utils"
	"go.uber.org/zap"
)

// Email kinds, also used as metric labels.
const (
	EmailKindCode     = "verification_code"
	EmailKindDownload = "download_link"
	EmailKindPurchase = "purchase"
	EmailKindResend   = "resend"
)

// Delivery signs product links, mails them and records the outcome.
// It is shared by the free, paid and admin-resend flows.
type Delivery struct {
	storage   ObjectStorage
	mailer    Mailer
	emailLogs EmailLogStore
	tasks     *TaskRunner
	events    EventPublisher
	linkTTL   time.Duration
	log       *zap.Logger
	now       Clock
}

func NewDelivery(storage ObjectStorage, mailer Mailer, emailLogs EmailLogStore, tasks *TaskRunner, events EventPublisher, linkTTL time.Duration, log *zap.Logger) *Delivery {
	return &Delivery{
		storage:   storage,
		mailer:    mailer,
		emailLogs: emailLogs,
		tasks:     tasks,
		events:    events,
		linkTTL:   linkTTL,
		log:       log.Named("delivery"),
		now:       systemClock,
	}
}

func (d *Delivery) WithClock(now Clock) *Delivery {
	d.now = now
	return d
}

// SignLink returns an expiring reference to the product's stored file.
func (d *Delivery) SignLink(ctx context.Context, product *models.Product) (string, error) {
	if product.FilePathInStorage == "" {
		return "", fmt.Errorf("%w: product %s has no stored file", ErrStorageSigning, product.ID)
	}
	link, err := d.storage.SignedURL(ctx, product.FilePathInStorage, d.linkTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageSigning, err)
	}
	return link, nil
}

// MailLink sends the download email and returns the provider error, if any.
// The outcome is logged to email_logs in the background either way.
func (d *Delivery) MailLink(ctx context.Context, kind, to string, product *models.Product, link string) error {
	var subject, body string
	if kind == EmailKindPurchase {
		subject, body = utils.PurchaseEmail(product.Name, link, d.linkTTL)
	} else {
		subject, body = utils.DownloadLinkEmail(product.Name, link, d.linkTTL)
	}

	err := d.mailer.Send(ctx, Email{To: to, Subject: subject, HTML: body})
	emailsTotal.WithLabelValues(kind, emailStatusLabel(err)).Inc()
	d.RecordEmail(to, product.Name, err)
	if err != nil {
		d.log.Warn("download email failed", zap.String("kind", kind), zap.String("product_id", product.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

// RecordEmail queues an email_logs row. Failures never reach the caller.
func (d *Delivery) RecordEmail(to, productName string, sendErr error) {
	entry := &models.EmailLog{
		UserEmail:   to,
		ProductName: productName,
		Status:      models.EmailStatusSent,
		SentAt:      d.now(),
	}
	if sendErr != nil {
		entry.Status = models.EmailStatusFailed
		entry.ErrorMessage = sendErr.Error()
	}
	d.tasks.Go("email_log", func(ctx context.Context) error {
		return d.emailLogs.Create(ctx, entry)
	})
}

// PublishCompleted announces a completed order on the admin feed.
func (d *Delivery) PublishCompleted(order *models.Order, productName string) {
	msg := WebSocketMessage{Type: EventOrderCompleted, Data: newOrderEvent(order, productName)}
	d.tasks.Go("order_event", func(ctx context.Context) error {
		return d.events.Publish(ctx, msg)
	})
}
