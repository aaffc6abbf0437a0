package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RateLimitBackendPostgres = "postgres"
	RateLimitBackendRedis    = "redis"

	MailProviderResend = "resend"
	MailProviderSMTP   = "smtp"

	// TurnstileTestSecret always passes verification. Production refuses it.
	TurnstileTestSecret = "1x0000000000000000000000000000000AA"
)

// Config is built once at process start and handed to every constructor.
type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string
	PublicBaseURL  string

	// TrustedProxies are the CIDRs or addresses whose X-Forwarded-For is believed.
	// Empty means forwarding headers are ignored and the peer address is used.
	TrustedProxies []string
	// TrustedPlatform names a header set by the edge (cloudflare or a header name).
	TrustedPlatform string

	Database DatabaseConfig
	RedisURL string

	RateLimit RateLimitConfig
	OTP       OTPConfig
	Mail      MailConfig
	Captcha   CaptchaConfig
	Storage   StorageConfig
	Razorpay  RazorpayConfig

	JWTSecret string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	User     string
	Password string
	Name     string
	Port     string
}

// DSN prefers DATABASE_URL and falls back to the discrete DB_* variables.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		d.Host, d.User, d.Password, d.Name, d.Port,
	)
}

type RateLimitConfig struct {
	Backend string
	Max     int
	Window  time.Duration
}

type OTPConfig struct {
	TTL             time.Duration
	MaxAttempts     int
	DownloadLinkTTL time.Duration
}

type MailConfig struct {
	Provider      string
	From          string
	ResendAPIKey  string
	ResendBaseURL string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
}

type CaptchaConfig struct {
	SecretKey string
	VerifyURL string
}

type StorageConfig struct {
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	Bucket       string
	Endpoint     string
	LocalDir     string
}

// UseS3 reports whether enough AWS settings are present to talk to S3.
func (s StorageConfig) UseS3() bool {
	return s.AWSRegion != "" && s.AWSAccessKey != "" && s.AWSSecretKey != "" && s.Bucket != ""
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
}

// Configured reports whether both gateway credentials are set.
func (r RazorpayConfig) Configured() bool {
	return r.KeyID != "" && r.KeySecret != ""
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:          getEnv("APP_ENV", "local"),
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		TrustedProxies:  splitList(os.Getenv("TRUSTED_PROXIES")),
		TrustedPlatform: strings.TrimSpace(os.Getenv("TRUSTED_PLATFORM")),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "vivekcuts"),
			Port:     getEnv("DB_PORT", "5432"),
		},
		RedisURL: os.Getenv("REDIS_URL"),
		RateLimit: RateLimitConfig{
			Backend: strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendPostgres)),
			Max:     getEnvInt("RATE_LIMIT_MAX", 3),
			Window:  getEnvDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
		OTP: OTPConfig{
			TTL:             getEnvDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:     getEnvInt("OTP_MAX_ATTEMPTS", 5),
			DownloadLinkTTL: getEnvDuration("DOWNLOAD_LINK_TTL", 7*24*time.Hour),
		},
		Mail: MailConfig{
			Provider:      strings.ToLower(getEnv("MAIL_PROVIDER", MailProviderResend)),
			From:          getEnv("MAIL_FROM", "Vivek Cuts <noreply@mail.vivekcuts.in>"),
			ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
			ResendBaseURL: getEnv("RESEND_BASE_URL", "https://api.resend.com"),
			SMTPHost:      os.Getenv("SMTP_HOST"),
			SMTPPort:      getEnvInt("SMTP_PORT", 587),
			SMTPUser:      os.Getenv("SMTP_USER"),
			SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		},
		Captcha: CaptchaConfig{
			// Cloudflare's always-pass test secret keeps local setups working.
			SecretKey: getEnv("TURNSTILE_SECRET_KEY", TurnstileTestSecret),
			VerifyURL: getEnv("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		},
		Storage: StorageConfig{
			AWSRegion:    os.Getenv("AWS_REGION"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Bucket:       getEnv("AWS_S3_BUCKET", "products"),
			Endpoint:     os.Getenv("AWS_S3_ENDPOINT"),
			LocalDir:     getEnv("LOCAL_STORAGE_DIR", "./uploads"),
		},
		Razorpay: RazorpayConfig{
			KeyID:     os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
			BaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			Currency:  getEnv("RAZORPAY_CURRENCY", "INR"),
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
	}

	return cfg, cfg.Validate()
}

// Validate lists settings that are invalid everywhere, plus the ones production cannot run without.
func (c Config) Validate() error {
	var problems []string

	switch c.RateLimit.Backend {
	case RateLimitBackendPostgres:
	case RateLimitBackendRedis:
		if c.RedisURL == "" {
			problems = append(problems, "REDIS_URL (required by RATE_LIMIT_BACKEND=redis)")
		}
	default:
		problems = append(problems, "RATE_LIMIT_BACKEND must be postgres or redis")
	}

	switch c.Mail.Provider {
	case MailProviderResend, MailProviderSMTP:
	default:
		problems = append(problems, "MAIL_PROVIDER must be resend or smtp")
	}

	if c.RateLimit.Max <= 0 {
		problems = append(problems, "RATE_LIMIT_MAX must be positive")
	}
	if c.OTP.MaxAttempts <= 0 {
		problems = append(problems, "OTP_MAX_ATTEMPTS must be positive")
	}
	for _, proxy := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			problems = append(problems, "TRUSTED_PROXIES entry "+proxy+" is not an IP or CIDR")
		}
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			problems = append(problems, "JWT_SECRET")
		}
		if c.Mail.Provider == MailProviderResend && c.Mail.ResendAPIKey == "" {
			problems = append(problems, "RESEND_API_KEY")
		}
		if c.Mail.Provider == MailProviderSMTP && c.Mail.SMTPHost == "" {
			problems = append(problems, "SMTP_HOST")
		}
		if c.Captcha.SecretKey == "" || c.Captcha.SecretKey == TurnstileTestSecret {
			problems = append(problems, "TURNSTILE_SECRET_KEY")
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, ", "))
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
