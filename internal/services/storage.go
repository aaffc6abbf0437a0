package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vivekcuts/vivekcuts-backend/internal/config"
	"go.uber.org/zap"
)

// ObjectStorage holds the deliverable product files.
type ObjectStorage interface {
	// SignedURL returns a reference to key that stops working after ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
}

var ErrInvalidObjectKey = errors.New("invalid object key")

// NewStorage picks S3 when AWS credentials are configured and falls back to local disk.
func NewStorage(cfg config.StorageConfig, publicBaseURL, signingSecret string, log *zap.Logger) (ObjectStorage, error) {
	log = log.Named("storage")
	if cfg.UseS3() {
		s, err := NewS3Storage(cfg)
		if err != nil {
			return nil, err
		}
		log.Info("using S3 object storage", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.AWSRegion))
		return s, nil
	}

	log.Warn("AWS S3 not configured, using local file storage", zap.String("dir", cfg.LocalDir))
	return NewLocalStorage(cfg.LocalDir, publicBaseURL, signingSecret)
}

type S3Storage struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
}

func NewS3Storage(cfg config.StorageConfig) (*S3Storage, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.AWSRegion),
		Credentials: credentials.NewStaticCredentials(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Storage{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
	}, nil
}

func (s *S3Storage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url, nil
}

func (s *S3Storage) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// LocalStorage keeps files under dir and signs download links as short JWTs
// served by the /downloads/:token route.
type LocalStorage struct {
	dir     string
	baseURL string
	secret  []byte
	now     Clock
}

type downloadClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

func NewLocalStorage(dir, baseURL, secret string) (*LocalStorage, error) {
	if secret == "" {
		return nil, errors.New("local storage needs a signing secret")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     systemClock,
	}, nil
}

func (s *LocalStorage) WithClock(now Clock) *LocalStorage {
	s.now = now
	return s
}

func (s *LocalStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, downloadClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/downloads/" + signed, nil
}

// Resolve checks a download token and returns the absolute file path it grants.
func (s *LocalStorage) Resolve(token string) (string, error) {
	claims := &downloadClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if err := validateKey(claims.Key); err != nil {
		return "", ErrInvalidToken
	}
	return filepath.Join(s.dir, filepath.FromSlash(claims.Key)), nil
}

func (s *LocalStorage) Upload(_ context.Context, key string, body io.Reader, _ string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	dest := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create folder directory: %w", err)
	}

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, body); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidObjectKey
	}
	if cleaned := path.Clean(key); cleaned != key || strings.HasPrefix(cleaned, "..") {
		return ErrInvalidObjectKey
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// ObjectKey builds "<folder>/<unix ms>-<sanitized name>" for an uploaded file.
func ObjectKey(folder, filename string, now time.Time) string {
	name := unsafeFileChars.ReplaceAllString(filepath.Base(filename), "_")
	folder = strings.Trim(unsafeFolderChars.ReplaceAllString(folder, "_"), "/")
	if folder == "" {
		folder = "products"
	}
	return fmt.Sprintf("%s/%d-%s", folder, now.UnixMilli(), name)
}

var unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9/_-]|\.\.`)
