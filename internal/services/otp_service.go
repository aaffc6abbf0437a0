package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
	"github.com/vivekcuts/vivekcuts-backend/pkg/utils"
	"go.uber.org/zap"
)

const (
	EndpointSendOTP = "send-otp"
	unknownIP       = "unknown"
)

type OTPConfig struct {
	CodeTTL     time.Duration
	MaxAttempts int
	QuotaMax    int
}

// OTPService gates free downloads behind an emailed one-time code.
type OTPService struct {
	verifications VerificationStore
	products      ProductStore
	orders        OrderStore
	limiter       Limiter
	captcha       CaptchaVerifier
	mailer        Mailer
	delivery      *Delivery
	cfg           OTPConfig
	log           *zap.Logger
	now           Clock
}

func NewOTPService(
	verifications VerificationStore,
	products ProductStore,
	orders OrderStore,
	limiter Limiter,
	captcha CaptchaVerifier,
	mailer Mailer,
	delivery *Delivery,
	cfg OTPConfig,
	log *zap.Logger,
) *OTPService {
	return &OTPService{
		verifications: verifications,
		products:      products,
		orders:        orders,
		limiter:       limiter,
		captcha:       captcha,
		mailer:        mailer,
		delivery:      delivery,
		cfg:           cfg,
		log:           log.Named("otp"),
		now:           systemClock,
	}
}

func (s *OTPService) WithClock(now Clock) *OTPService {
	s.now = now
	return s
}

type RequestCodeInput struct {
	Email        string
	ProductID    string
	CaptchaToken string
	SourceIP     string
}

type RequestCodeResult struct {
	// Remaining is how many more codes the source may request in the current window.
	Remaining int
}

// RequestCode issues a code for a free product and emails it.
func (s *OTPService) RequestCode(ctx context.Context, in RequestCodeInput) (*RequestCodeResult, error) {
	source := in.SourceIP
	if source == "" {
		source = unknownIP
	}

	allowed, remaining, err := s.limiter.Check(ctx, source, EndpointSendOTP)
	if err != nil {
		s.log.Warn("rate limit check failed, allowing request", zap.String("ip", source), zap.Error(err))
		allowed, remaining = true, s.cfg.QuotaMax
	}
	if !allowed {
		rateLimitRejectionsTotal.WithLabelValues(EndpointSendOTP).Inc()
		otpRequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrQuotaExceeded
	}

	email := normalizeEmail(in.Email)
	if email == "" || in.ProductID == "" || in.CaptchaToken == "" {
		return nil, ErrMissingFields
	}
	if !utils.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	ok, err := s.captcha.Verify(ctx, in.CaptchaToken, source)
	if err != nil {
		s.log.Warn("captcha verification errored", zap.String("ip", source), zap.Error(err))
	}
	if err != nil || !ok {
		otpRequestsTotal.WithLabelValues("captcha_failed").Inc()
		return nil, ErrCaptchaFailed
	}

	product, err := s.loadFreeProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}

	now := s.now()
	record := &models.VerificationRecord{
		Email:        email,
		OTPCode:      code,
		ProductID:    product.ID,
		CaptchaToken: in.CaptchaToken,
		IPAddress:    source,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.CodeTTL),
		MaxAttempts:  s.cfg.MaxAttempts,
	}
	if err := s.verifications.Create(ctx, record); err != nil {
		s.log.Error("failed to store verification record", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}

	subject, body := utils.VerificationCodeEmail(code, product.Name, s.cfg.CodeTTL)
	err = s.mailer.Send(ctx, Email{To: email, Subject: subject, HTML: body})
	emailsTotal.WithLabelValues(EmailKindCode, emailStatusLabel(err)).Inc()
	if err != nil {
		s.log.Error("failed to send verification email", zap.String("product_id", product.ID.String()), zap.Error(err))
		otpRequestsTotal.WithLabelValues("email_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrEmailDispatch, err)
	}

	if err := s.limiter.Record(ctx, source, EndpointSendOTP); err != nil {
		s.log.Warn("failed to record rate limit hit", zap.String("ip", source), zap.Error(err))
	}

	otpRequestsTotal.WithLabelValues("sent").Inc()
	s.log.Info("verification code sent", zap.String("product_id", product.ID.String()), zap.String("ip", source))

	left := remaining - 1
	if left < 0 {
		left = 0
	}
	return &RequestCodeResult{Remaining: left}, nil
}

type VerifyCodeInput struct {
	Email     string
	Code      string
	ProductID string
}

type VerifyCodeResult struct {
	DownloadLink string
}

// VerifyCode redeems a code and delivers the download link. When the link
// email fails the error is a *DeliveryError that still carries the link.
func (s *OTPService) VerifyCode(ctx context.Context, in VerifyCodeInput) (*VerifyCodeResult, error) {
	email := normalizeEmail(in.Email)
	code := strings.TrimSpace(in.Code)
	if email == "" || code == "" || in.ProductID == "" {
		return nil, ErrMissingFields
	}

	productID, err := uuid.Parse(in.ProductID)
	if err != nil {
		otpVerificationsTotal.WithLabelValues("expired_or_missing").Inc()
		return nil, ErrCodeExpiredOrMissing
	}

	now := s.now()
	record, err := s.verifications.FindLatestLive(ctx, email, productID, now)
	if errors.Is(err, repositories.ErrNotFound) {
		otpVerificationsTotal.WithLabelValues("expired_or_missing").Inc()
		return nil, ErrCodeExpiredOrMissing
	}
	if err != nil {
		return nil, fmt.Errorf("find verification record: %w", err)
	}

	if record.AttemptsExhausted() {
		otpVerificationsTotal.WithLabelValues("attempts_exceeded").Inc()
		return nil, ErrAttemptsExceeded
	}

	if !utils.OTPEqual(record.OTPCode, code) {
		attempts, ok, err := s.verifications.IncrementAttempts(ctx, record.ID)
		if err != nil {
			return nil, fmt.Errorf("increment attempts: %w", err)
		}
		if !ok {
			otpVerificationsTotal.WithLabelValues("attempts_exceeded").Inc()
			return nil, ErrAttemptsExceeded
		}
		otpVerificationsTotal.WithLabelValues("mismatch").Inc()
		remaining := record.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, &CodeMismatchError{Remaining: remaining}
	}

	won, err := s.verifications.MarkVerified(ctx, record.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if !won {
		otpVerificationsTotal.WithLabelValues("expired_or_missing").Inc()
		return nil, ErrCodeExpiredOrMissing
	}

	product, err := s.loadFreeProduct(ctx, productID.String())
	if err != nil {
		return nil, err
	}

	link, err := s.delivery.SignLink(ctx, product)
	if err != nil {
		s.log.Error("failed to sign download link", zap.String("product_id", product.ID.String()), zap.Error(err))
		return nil, err
	}

	mailErr := s.delivery.MailLink(ctx, EmailKindDownload, email, product, link)

	order := &models.Order{
		ProductID:    product.ID,
		UserEmail:    email,
		Amount:       0,
		Status:       models.OrderStatusCompleted,
		PurchaseDate: s.now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.log.Error("failed to create free order", zap.String("product_id", product.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.delivery.PublishCompleted(order, product.Name)

	otpVerificationsTotal.WithLabelValues("verified").Inc()
	if mailErr != nil {
		return nil, &DeliveryError{Link: link, Err: mailErr}
	}
	return &VerifyCodeResult{DownloadLink: link}, nil
}

func (s *OTPService) loadFreeProduct(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := uuid.Parse(rawID)
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
	if !product.IsFree {
		return nil, ErrProductNotEligible
	}
	return product, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
