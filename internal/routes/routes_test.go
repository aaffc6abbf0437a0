package routes_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/routes"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
	"github.com/vivekcuts/vivekcuts-backend/internal/testutil"
	"github.com/vivekcuts/vivekcuts-backend/pkg/utils"
	"go.uber.org/zap"
)

const jwtSecret = "router-test-secret"

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type testEnv struct {
	router   *gin.Engine
	clock    *testutil.Clock
	mailer   *testutil.Mailer
	captcha  *testutil.Captcha
	storage  *testutil.Storage
	products *testutil.ProductStore
	orders   *testutil.OrderStore
	gateway  *testutil.Gateway
	tasks    *services.TaskRunner
	free     models.Product
	paid     models.Product
	local    *services.LocalStorage
}

func newTestEnv(t *testing.T, opts ...func(*routes.Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	env := &testEnv{
		clock:   testutil.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		mailer:  &testutil.Mailer{},
		captcha: &testutil.Captcha{OK: true},
		storage: testutil.NewStorage(),
		gateway: &testutil.Gateway{Secret: "rzp_secret"},
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
	env.products = testutil.NewProductStore(env.free, env.paid)
	env.orders = testutil.NewOrderStore(env.products)
	emailLogs := testutil.NewEmailLogStore()
	env.tasks = services.NewTaskRunner(log, time.Second)
	t.Cleanup(env.tasks.Wait)

	local, err := services.NewLocalStorage(t.TempDir(), "http://localhost:8080", jwtSecret)
	require.NoError(t, err)
	env.local = local

	delivery := services.NewDelivery(env.storage, env.mailer, emailLogs, env.tasks, &testutil.Events{}, 7*24*time.Hour, log).
		WithClock(env.clock.Now)
	limiter := services.NewSQLLimiter(testutil.NewRateLimitStore(), 3, time.Hour).WithClock(env.clock.Now)
	otp := services.NewOTPService(
		testutil.NewVerificationStore(),
		env.products,
		env.orders,
		limiter,
		env.captcha,
		env.mailer,
		delivery,
		services.OTPConfig{CodeTTL: 10 * time.Minute, MaxAttempts: 5, QuotaMax: 3},
		log,
	).WithClock(env.clock.Now)

	admins := testutil.NewAdminStore()
	auth := services.NewAuthService(admins, jwtSecret, log)
	_, err = auth.CreateAdmin(context.Background(), "owner@example.com", "correct horse")
	require.NoError(t, err)

	deps := routes.Deps{
		AllowedOrigins: []string{"*"},
		JWTSecret:      jwtSecret,
		OTP:            otp,
		Payments:       services.NewPaymentService(env.gateway, env.products, env.orders, delivery, "INR", log),
		Auth:           auth,
		Catalog:        services.NewCatalogService(env.products, env.storage, log),
		Orders:         services.NewOrderService(env.orders, env.products, emailLogs, delivery, log),
		Hub:            services.NewHub([]string{"*"}, log),
		LocalStorage:   local,
		DB:             pinger{},
		Log:            log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.router = routes.NewRouter(deps)
	return env
}

func (e *testEnv) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	return e.doFrom("", method, path, body, headers...)
}

// doFrom sends the request from the peer address remote ("" keeps httptest's default).
func (e *testEnv) doFrom(remote, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if remote != "" {
		req.RemoteAddr = remote
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateAdminToken(jwtSecret, uuid.NewString(), "owner@example.com", time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (e *testEnv) lastCode(t *testing.T) string {
	t.Helper()
	sent := e.mailer.Sent()
	require.NotEmpty(t, sent)
	subject := sent[len(sent)-1].Subject
	require.True(t, strings.HasPrefix(subject, "Your Verification Code: "), subject)
	return strings.TrimPrefix(subject, "Your Verification Code: ")
}

func TestFreeDownloadFlow(t *testing.T) {
	env := newTestEnv(t)
	productID := env.free.ID.String()

	w := env.do(http.MethodPost, "/send-otp", map[string]string{
		"email":        "Fan@Example.com",
		"productId":    productID,
		"captchaToken": "tok",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Verification code sent to your email", body["message"])
	assert.EqualValues(t, 2, body["remaining"])

	code := env.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	w = env.do(http.MethodPost, "/verify-otp", map[string]string{"email": "fan@example.com", "otp": wrong, "productId": productID})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, "Invalid verification code", body["error"])
	assert.EqualValues(t, 4, body["remainingAttempts"])

	w = env.do(http.MethodPost, "/verify-otp", map[string]string{"email": "fan@example.com", "otp": code, "productId": productID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://files.test/products/luts.zip?expires_in=604800", body["downloadLink"])

	w = env.do(http.MethodPost, "/verify-otp", map[string]string{"email": "fan@example.com", "otp": code, "productId": productID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired verification code", decode(t, w)["error"])

	env.tasks.Wait()
	orders, err := env.orders.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCompleted, orders[0].Status)
	assert.Zero(t, orders[0].Amount)
}

func TestSendOTP_QuotaReturns429(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"email": "a@example.com", "productId": env.free.ID.String(), "captchaToken": "tok"}

	for i := 0; i < 3; i++ {
		w := env.doFrom("203.0.113.50:4000", http.MethodPost, "/send-otp", payload)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := env.doFrom("203.0.113.50:4001", http.MethodPost, "/send-otp", payload)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Too many requests. Please try again later.", body["error"])
	assert.EqualValues(t, 0, body["remaining"])

	// A malformed body from a throttled source still gets the quota answer.
	w = env.doFrom("203.0.113.50:4002", http.MethodPost, "/send-otp", "{not json")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = env.doFrom("203.0.113.51:4000", http.MethodPost, "/send-otp", payload)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSendOTP_ForwardingHeadersDoNotResetQuota(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"email": "a@example.com", "productId": env.free.ID.String(), "captchaToken": "tok"}

	for i := 0; i < 3; i++ {
		w := env.doFrom("198.51.100.9:5000", http.MethodPost, "/send-otp", payload,
			"X-Forwarded-For", fmt.Sprintf("10.9.9.%d", i),
			"CF-Connecting-IP", fmt.Sprintf("10.8.8.%d", i))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := env.doFrom("198.51.100.9:5000", http.MethodPost, "/send-otp", payload,
		"X-Forwarded-For", "10.9.9.200",
		"CF-Connecting-IP", "10.8.8.200")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSendOTP_TrustedProxyForwardsClientAddress(t *testing.T) {
	env := newTestEnv(t, func(d *routes.Deps) {
		d.TrustedProxies = []string{"192.0.2.0/24"}
	})
	payload := map[string]string{"email": "a@example.com", "productId": env.free.ID.String(), "captchaToken": "tok"}

	for i := 0; i < 3; i++ {
		w := env.doFrom("192.0.2.10:6000", http.MethodPost, "/send-otp", payload, "X-Forwarded-For", "198.51.100.1")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := env.doFrom("192.0.2.10:6000", http.MethodPost, "/send-otp", payload, "X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Another client behind the same proxy has its own quota.
	w = env.doFrom("192.0.2.10:6000", http.MethodPost, "/send-otp", payload, "X-Forwarded-For", "198.51.100.2")
	assert.Equal(t, http.StatusOK, w.Code)

	// An untrusted peer cannot borrow someone else's address.
	for i := 0; i < 3; i++ {
		w = env.doFrom("203.0.113.77:6000", http.MethodPost, "/send-otp", payload, "X-Forwarded-For", fmt.Sprintf("198.51.100.%d", 50+i))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w = env.doFrom("203.0.113.77:6000", http.MethodPost, "/send-otp", payload, "X-Forwarded-For", "198.51.100.99")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSendOTP_CloudflarePlatformHeader(t *testing.T) {
	env := newTestEnv(t, func(d *routes.Deps) {
		d.TrustedPlatform = "cloudflare"
	})
	payload := map[string]string{"email": "a@example.com", "productId": env.free.ID.String(), "captchaToken": "tok"}

	for i := 0; i < 3; i++ {
		w := env.doFrom("172.70.0.1:443", http.MethodPost, "/send-otp", payload, "CF-Connecting-IP", "198.51.100.30")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := env.doFrom("172.70.0.2:443", http.MethodPost, "/send-otp", payload, "CF-Connecting-IP", "198.51.100.30")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = env.doFrom("172.70.0.1:443", http.MethodPost, "/send-otp", payload, "CF-Connecting-IP", "198.51.100.31")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSendOTP_Rejections(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{"malformed body", "{", http.StatusBadRequest, "Missing required fields"},
		{"missing captcha", map[string]string{"email": "a@example.com", "productId": env.free.ID.String()}, http.StatusBadRequest, "Missing required fields"},
		{"bad email", map[string]string{"email": "nope", "productId": env.free.ID.String(), "captchaToken": "t"}, http.StatusBadRequest, "Invalid email format"},
		{"unknown product", map[string]string{"email": "a@example.com", "productId": uuid.NewString(), "captchaToken": "t"}, http.StatusNotFound, "Product not found"},
		{"paid product", map[string]string{"email": "a@example.com", "productId": env.paid.ID.String(), "captchaToken": "t"}, http.StatusBadRequest, "This product requires purchase"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/send-otp", tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, decode(t, w)["error"])
		})
	}

	env.captcha.OK = false
	w := env.do(http.MethodPost, "/send-otp", map[string]string{"email": "a@example.com", "productId": env.free.ID.String(), "captchaToken": "t"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CAPTCHA verification failed. Please try again.", decode(t, w)["error"])
}

func TestSendOTP_EmailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.SetErr(errors.New("smtp down"))

	w := env.do(http.MethodPost, "/send-otp", map[string]string{"email": "a@example.com", "productId": env.free.ID.String(), "captchaToken": "t"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to send verification email. Please try again.", decode(t, w)["error"])
}

func TestVerifyOTP_LinkSurvivesEmailFailure(t *testing.T) {
	env := newTestEnv(t)
	productID := env.free.ID.String()

	w := env.do(http.MethodPost, "/send-otp", map[string]string{"email": "a@example.com", "productId": productID, "captchaToken": "t"})
	require.Equal(t, http.StatusOK, w.Code)
	code := env.lastCode(t)

	env.mailer.SetErr(errors.New("smtp down"))
	w = env.do(http.MethodPost, "/verify-otp", map[string]string{"email": "a@example.com", "otp": code, "productId": productID})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Failed to send email, but here is your download link", body["error"])
	assert.Equal(t, "https://files.test/products/luts.zip?expires_in=604800", body["downloadLink"])
}

func TestVerifyOTP_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/verify-otp", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decode(t, w)["error"])
}

func TestPaymentFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/create-razorpay-order", map[string]string{"productId": env.paid.ID.String(), "email": "buyer@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	orderID, _ := body["razorpay_order_id"].(string)
	require.NotEmpty(t, orderID)
	assert.EqualValues(t, 49900, body["amount"])
	assert.Equal(t, "rzp_test_key", body["key_id"])

	w = env.do(http.MethodPost, "/verify-payment", map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "deadbeef",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid payment signature", decode(t, w)["error"])

	mac := hmac.New(sha256.New, []byte("rzp_secret"))
	mac.Write([]byte(orderID + "|pay_1"))
	w = env.do(http.MethodPost, "/verify-payment", map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  hex.EncodeToString(mac.Sum(nil)),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://files.test/products/transitions.zip?expires_in=604800", decode(t, w)["downloadLink"])

	w = env.do(http.MethodPost, "/create-razorpay-order", map[string]string{"productId": env.free.ID.String(), "email": "buyer@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/admin/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/admin/orders", nil, "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := utils.GenerateAdminToken("other-secret", uuid.NewString(), "x@example.com", time.Now())
	require.NoError(t, err)
	w = env.do(http.MethodGet, "/api/admin/orders", nil, "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/admin/orders", nil, "Authorization", env.adminToken(t))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "orders")
	assert.Contains(t, body, "stats")
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/admin/login", map[string]string{"email": "owner@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/admin/login", map[string]string{"email": "owner@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)

	w = env.do(http.MethodGet, "/api/admin/email-logs/failed", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "email_logs")
}

func TestAdminLogin_Throttled(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]string{"email": "owner@example.com", "password": "wrong"}

	for i := 0; i < 5; i++ {
		w := env.doFrom("198.51.100.44:7000", http.MethodPost, "/api/admin/login", creds, "X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.doFrom("198.51.100.44:7000", http.MethodPost, "/api/admin/login", creds, "X-Forwarded-For", "10.0.0.99")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAdminProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	auth := env.adminToken(t)

	w := env.do(http.MethodPost, "/api/admin/products", map[string]any{
		"name":                 "Sound FX",
		"price":                149,
		"category":             "Sound Effects",
		"file_path_in_storage": "products/sfx.zip",
	}, "Authorization", auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)

	w = env.do(http.MethodGet, "/api/products/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sound FX", decode(t, w)["name"])

	w = env.do(http.MethodPost, "/api/admin/products", map[string]any{
		"name":                 "Broken",
		"is_free":              true,
		"price":                10,
		"file_path_in_storage": "products/x.zip",
	}, "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "free products cannot have a price", decode(t, w)["error"])

	w = env.do(http.MethodDelete, "/api/admin/products/"+id, nil, "Authorization", auth)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, env.storage.Deleted, "products/sfx.zip")

	w = env.do(http.MethodGet, "/api/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["products"], 2)
	assert.NotEmpty(t, body["categories"])
}

func TestAdminUpload(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("folder", "products"))
	part, err := form.CreateFormFile("file", "pack.zip")
	require.NoError(t, err)
	_, _ = part.Write([]byte("zip-bytes"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", env.adminToken(t))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	key, _ := decode(t, w)["path"].(string)
	assert.True(t, strings.HasPrefix(key, "products/"), key)
	assert.True(t, strings.HasSuffix(key, "-pack.zip"), key)
	data, ok := env.storage.Object(key)
	require.True(t, ok)
	assert.Equal(t, "zip-bytes", string(data))
}

func TestLocalDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.local.Upload(ctx, "products/luts.zip", strings.NewReader("lut-data"), "application/zip"))

	link, err := env.local.SignedURL(ctx, "products/luts.zip", time.Hour)
	require.NoError(t, err)
	path := strings.TrimPrefix(link, "http://localhost:8080")

	w := env.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lut-data", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "luts.zip")

	w = env.do(http.MethodGet, "/downloads/not-a-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	missing, err := env.local.SignedURL(ctx, "products/missing.zip", time.Hour)
	require.NoError(t, err)
	w = env.do(http.MethodGet, strings.TrimPrefix(missing, "http://localhost:8080"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}
