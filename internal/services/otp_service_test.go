package services_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
	"github.com/vivekcuts/vivekcuts-backend/internal/testutil"
	"go.uber.org/zap"
)

const testIP = "203.0.113.7"

type harness struct {
	clock         *testutil.Clock
	verifications *testutil.VerificationStore
	products      *testutil.ProductStore
	orders        *testutil.OrderStore
	emailLogs     *testutil.EmailLogStore
	rateLimits    *testutil.RateLimitStore
	mailer        *testutil.Mailer
	captcha       *testutil.Captcha
	storage       *testutil.Storage
	events        *testutil.Events
	tasks         *services.TaskRunner
	delivery      *services.Delivery
	svc           *services.OTPService

	free models.Product
	paid models.Product
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()

	h := &harness{
		clock:         testutil.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		verifications: testutil.NewVerificationStore(),
		emailLogs:     testutil.NewEmailLogStore(),
		rateLimits:    testutil.NewRateLimitStore(),
		mailer:        &testutil.Mailer{},
		captcha:       &testutil.Captcha{OK: true},
		storage:       testutil.NewStorage(),
		events:        &testutil.Events{},
		free: models.Product{
			ID:                uuid.New(),
			Name:              "Cinematic LUT Pack",
			IsFree:            true,
			FilePathInStorage: "products/luts.zip",
		},
		paid: models.Product{
			ID:                uuid.New(),
			Name:              "Transition Pack",
			Price:             499,
			FilePathInStorage: "products/transitions.zip",
		},
	}
	h.products = testutil.NewProductStore(h.free, h.paid)
	h.orders = testutil.NewOrderStore(h.products)
	h.tasks = services.NewTaskRunner(log, time.Second)
	h.delivery = services.NewDelivery(h.storage, h.mailer, h.emailLogs, h.tasks, h.events, 7*24*time.Hour, log).
		WithClock(h.clock.Now)

	limiter := services.NewSQLLimiter(h.rateLimits, 3, time.Hour).WithClock(h.clock.Now)
	h.svc = services.NewOTPService(
		h.verifications,
		h.products,
		h.orders,
		limiter,
		h.captcha,
		h.mailer,
		h.delivery,
		services.OTPConfig{CodeTTL: 10 * time.Minute, MaxAttempts: 5, QuotaMax: 3},
		log,
	).WithClock(h.clock.Now)

	t.Cleanup(h.tasks.Wait)
	return h
}

func (h *harness) request(email string, productID uuid.UUID) (*services.RequestCodeResult, error) {
	return h.svc.RequestCode(context.Background(), services.RequestCodeInput{
		Email:        email,
		ProductID:    productID.String(),
		CaptchaToken: "captcha-token",
		SourceIP:     testIP,
	})
}

func (h *harness) verify(email, code string, productID uuid.UUID) (*services.VerifyCodeResult, error) {
	return h.svc.VerifyCode(context.Background(), services.VerifyCodeInput{
		Email:     email,
		Code:      code,
		ProductID: productID.String(),
	})
}

func (h *harness) latestCode(t *testing.T) string {
	t.Helper()
	records := h.verifications.All()
	require.NotEmpty(t, records)
	return records[len(records)-1].OTPCode
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRequestCode_IssuesSixDigitCode(t *testing.T) {
	h := newHarness(t)

	res, err := h.request("Fan@Example.com ", h.free.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)

	records := h.verifications.All()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{5}$`), rec.OTPCode)
	assert.Equal(t, "fan@example.com", rec.Email)
	assert.Equal(t, h.free.ID, rec.ProductID)
	assert.Equal(t, testIP, rec.IPAddress)
	assert.Equal(t, "captcha-token", rec.CaptchaToken)
	assert.Equal(t, h.clock.Now().Add(10*time.Minute), rec.ExpiresAt)
	assert.Equal(t, 5, rec.MaxAttempts)
	assert.False(t, rec.Verified)

	sent := h.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "fan@example.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, rec.OTPCode)
	assert.Contains(t, sent[0].HTML, h.free.Name)

	rows := h.rateLimits.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, services.EndpointSendOTP, rows[0].Endpoint)
	assert.Equal(t, testIP, rows[0].IPAddress)
}

func TestRequestCode_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input services.RequestCodeInput
		want  error
	}{
		{"missing email", services.RequestCodeInput{ProductID: h.free.ID.String(), CaptchaToken: "t"}, services.ErrMissingFields},
		{"missing product", services.RequestCodeInput{Email: "a@b.co", CaptchaToken: "t"}, services.ErrMissingFields},
		{"missing captcha", services.RequestCodeInput{Email: "a@b.co", ProductID: h.free.ID.String()}, services.ErrMissingFields},
		{"bad email", services.RequestCodeInput{Email: "not-an-email", ProductID: h.free.ID.String(), CaptchaToken: "t"}, services.ErrInvalidEmail},
		{"unparsable product", services.RequestCodeInput{Email: "a@b.co", ProductID: "nope", CaptchaToken: "t"}, services.ErrProductNotFound},
		{"unknown product", services.RequestCodeInput{Email: "a@b.co", ProductID: uuid.NewString(), CaptchaToken: "t"}, services.ErrProductNotFound},
		{"paid product", services.RequestCodeInput{Email: "a@b.co", ProductID: h.paid.ID.String(), CaptchaToken: "t"}, services.ErrProductNotEligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.SourceIP = uuid.NewString() // fresh quota per case
			_, err := h.svc.RequestCode(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, h.verifications.All())
	assert.Empty(t, h.mailer.Sent())
}

func TestRequestCode_CaptchaFailsClosed(t *testing.T) {
	h := newHarness(t)

	h.captcha.OK = false
	_, err := h.request("fan@example.com", h.free.ID)
	assert.ErrorIs(t, err, services.ErrCaptchaFailed)

	h.captcha.OK = true
	h.captcha.Err = errors.New("siteverify unreachable")
	_, err = h.request("fan@example.com", h.free.ID)
	assert.ErrorIs(t, err, services.ErrCaptchaFailed)

	assert.Empty(t, h.verifications.All())
	assert.Empty(t, h.rateLimits.Rows())
}

func TestRequestCode_QuotaSlidingWindow(t *testing.T) {
	h := newHarness(t)

	for want := 2; want >= 0; want-- {
		res, err := h.request("fan@example.com", h.free.ID)
		require.NoError(t, err)
		assert.Equal(t, want, res.Remaining)
		h.clock.Advance(time.Minute)
	}

	_, err := h.request("fan@example.com", h.free.ID)
	assert.ErrorIs(t, err, services.ErrQuotaExceeded)
	assert.Len(t, h.verifications.All(), 3, "rejected requests touch no code state")

	// Oldest hit leaves the window one hour after it was recorded.
	h.clock.Advance(56 * time.Minute)
	_, err = h.request("fan@example.com", h.free.ID)
	assert.ErrorIs(t, err, services.ErrQuotaExceeded)

	h.clock.Advance(time.Minute + time.Second)
	res, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
}

func TestRequestCode_QuotaIsPerSource(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		_, err := h.request("fan@example.com", h.free.ID)
		require.NoError(t, err)
	}

	res, err := h.svc.RequestCode(context.Background(), services.RequestCodeInput{
		Email:        "fan@example.com",
		ProductID:    h.free.ID.String(),
		CaptchaToken: "captcha-token",
		SourceIP:     "198.51.100.1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestRequestCode_LimiterErrorFailsOpen(t *testing.T) {
	h := newHarness(t)
	h.rateLimits.FailSum = true

	res, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestRequestCode_EmailFailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	h.mailer.SetErr(errors.New("provider down"))

	_, err := h.request("fan@example.com", h.free.ID)
	assert.ErrorIs(t, err, services.ErrEmailDispatch)

	assert.Len(t, h.verifications.All(), 1)
	assert.Empty(t, h.rateLimits.Rows(), "failed sends are not counted")
}

func TestVerifyCode_SucceedsExactlyOnce(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	code := h.latestCode(t)

	res, err := h.verify("FAN@example.com", code, h.free.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/products/luts.zip?expires_in=604800", res.DownloadLink)

	_, err = h.verify("fan@example.com", code, h.free.ID)
	assert.ErrorIs(t, err, services.ErrCodeExpiredOrMissing)

	rec := h.verifications.All()[0]
	assert.True(t, rec.Verified)
	require.NotNil(t, rec.VerifiedAt)

	orders, err := h.orders.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCompleted, orders[0].Status)
	assert.Zero(t, orders[0].Amount)
	assert.Equal(t, "fan@example.com", orders[0].UserEmail)

	sent := h.mailer.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].HTML, "products/luts.zip")

	h.tasks.Wait()
	logs := h.emailLogs.All()
	require.Len(t, logs, 1)
	assert.Equal(t, models.EmailStatusSent, logs[0].Status)
	assert.Equal(t, h.free.Name, logs[0].ProductName)

	msgs := h.events.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, services.EventOrderCompleted, msgs[0].Type)
}

func TestVerifyCode_AttemptsBounded(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	code := h.latestCode(t)
	wrong := wrongCode(code)

	for want := 4; want >= 0; want-- {
		_, err := h.verify("fan@example.com", wrong, h.free.ID)
		var mismatch *services.CodeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.ErrorIs(t, err, services.ErrCodeMismatch)
		assert.Equal(t, want, mismatch.Remaining)
	}

	_, err = h.verify("fan@example.com", code, h.free.ID)
	assert.ErrorIs(t, err, services.ErrAttemptsExceeded)
	assert.Equal(t, 5, h.verifications.All()[0].Attempts)
	assert.False(t, h.verifications.All()[0].Verified)
}

func TestVerifyCode_ConcurrentMissesNeverExceedCap(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	wrong := wrongCode(h.latestCode(t))

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		mismatches int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.verify("fan@example.com", wrong, h.free.ID)
			if errors.Is(err, services.ErrCodeMismatch) {
				mu.Lock()
				mismatches++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, mismatches)
	assert.Equal(t, 5, h.verifications.All()[0].Attempts)
}

func TestVerifyCode_ConcurrentCorrectCodeDeliversOnce(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	code := h.latestCode(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.verify("fan@example.com", code, h.free.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	orders, _ := h.orders.List(context.Background())
	assert.Len(t, orders, 1)
}

func TestVerifyCode_ExpiredCodeRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	code := h.latestCode(t)

	h.clock.Advance(10*time.Minute + time.Second)
	_, err = h.verify("fan@example.com", code, h.free.ID)
	assert.ErrorIs(t, err, services.ErrCodeExpiredOrMissing)
}

func TestVerifyCode_NewestCodeWins(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	first := h.latestCode(t)

	h.clock.Advance(time.Minute)
	_, err = h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	second := h.latestCode(t)

	if first != second {
		_, err = h.verify("fan@example.com", first, h.free.ID)
		assert.ErrorIs(t, err, services.ErrCodeMismatch)
	}
	_, err = h.verify("fan@example.com", second, h.free.ID)
	assert.NoError(t, err)
}

func TestVerifyCode_PaidProductNeverVerifies(t *testing.T) {
	h := newHarness(t)

	// A record for a paid product can only exist if the product was repriced after issue.
	require.NoError(t, h.verifications.Create(context.Background(), &models.VerificationRecord{
		Email:       "fan@example.com",
		OTPCode:     "123456",
		ProductID:   h.paid.ID,
		CreatedAt:   h.clock.Now(),
		ExpiresAt:   h.clock.Now().Add(10 * time.Minute),
		MaxAttempts: 5,
	}))

	_, err := h.verify("fan@example.com", "123456", h.paid.ID)
	assert.ErrorIs(t, err, services.ErrProductNotEligible)

	orders, _ := h.orders.List(context.Background())
	assert.Empty(t, orders)
	assert.Empty(t, h.mailer.Sent())
}

func TestVerifyCode_MissingFields(t *testing.T) {
	h := newHarness(t)

	_, err := h.verify("", "123456", h.free.ID)
	assert.ErrorIs(t, err, services.ErrMissingFields)

	_, err = h.verify("fan@example.com", "  ", h.free.ID)
	assert.ErrorIs(t, err, services.ErrMissingFields)
}

func TestVerifyCode_UnknownPairIsExpiredOrMissing(t *testing.T) {
	h := newHarness(t)

	_, err := h.verify("fan@example.com", "123456", h.free.ID)
	assert.ErrorIs(t, err, services.ErrCodeExpiredOrMissing)

	_, err = h.svc.VerifyCode(context.Background(), services.VerifyCodeInput{
		Email: "fan@example.com", Code: "123456", ProductID: "not-a-uuid",
	})
	assert.ErrorIs(t, err, services.ErrCodeExpiredOrMissing)
}

func TestVerifyCode_SigningFailure(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	h.storage.SignErr = errors.New("presign failed")

	_, err = h.verify("fan@example.com", h.latestCode(t), h.free.ID)
	assert.ErrorIs(t, err, services.ErrStorageSigning)
}

func TestVerifyCode_EmailFailureStillReturnsLink(t *testing.T) {
	h := newHarness(t)

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)
	code := h.latestCode(t)
	h.mailer.SetErr(errors.New("provider down"))

	_, err = h.verify("fan@example.com", code, h.free.ID)
	var delivery *services.DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.ErrorIs(t, err, services.ErrEmailDispatch)
	assert.NotEmpty(t, delivery.Link)

	orders, _ := h.orders.List(context.Background())
	assert.Len(t, orders, 1)

	h.tasks.Wait()
	logs := h.emailLogs.All()
	require.Len(t, logs, 1)
	assert.Equal(t, models.EmailStatusFailed, logs[0].Status)
	assert.Contains(t, logs[0].ErrorMessage, "provider down")
}

func TestVerifyCode_EmailLogFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.emailLogs.FailCreate = true

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)

	res, err := h.verify("fan@example.com", h.latestCode(t), h.free.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.DownloadLink)

	h.tasks.Wait()
	assert.Empty(t, h.emailLogs.All())
}

func TestVerifyCode_OrderWriteFailure(t *testing.T) {
	h := newHarness(t)
	h.orders.FailCreate = true

	_, err := h.request("fan@example.com", h.free.ID)
	require.NoError(t, err)

	_, err = h.verify("fan@example.com", h.latestCode(t), h.free.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}
