package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
	"go.uber.org/zap"
)

// CatalogService manages products and their stored files.
type CatalogService struct {
	products ProductStore
	storage  ObjectStorage
	log      *zap.Logger
	now      Clock
}

func NewCatalogService(products ProductStore, storage ObjectStorage, log *zap.Logger) *CatalogService {
	return &CatalogService{products: products, storage: storage, log: log.Named("catalog"), now: systemClock}
}

func (s *CatalogService) WithClock(now Clock) *CatalogService {
	s.now = now
	return s
}

type ProductInput struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Price             *float64 `json:"price"`
	Category          string   `json:"category"`
	ImageURL          string   `json:"image_url"`
	FilePathInStorage string   `json:"file_path_in_storage"`
	IsFree            bool     `json:"is_free"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.FilePathInStorage) == "" {
		return ErrMissingFields
	}
	if in.IsFree && in.Price != nil && *in.Price != 0 {
		return fmt.Errorf("%w: free products cannot have a price", ErrValidation)
	}
	if !in.IsFree && (in.Price == nil || *in.Price <= 0) {
		return fmt.Errorf("%w: paid products need a price above zero", ErrValidation)
	}
	if err := validateKey(in.FilePathInStorage); err != nil {
		return fmt.Errorf("%w: invalid file path", ErrValidation)
	}
	return nil
}

func (in ProductInput) apply(p *models.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Category = in.Category
	if p.Category == "" {
		p.Category = models.DefaultCategories[0]
	}
	p.ImageURL = in.ImageURL
	p.FilePathInStorage = in.FilePathInStorage
	p.IsFree = in.IsFree
	p.Price = 0
	if !in.IsFree && in.Price != nil {
		p.Price = *in.Price
	}
}

func (s *CatalogService) List(ctx context.Context) ([]models.Product, error) {
	return s.products.List(ctx)
}

func (s *CatalogService) Get(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrProductNotFound
	}
	p, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &models.Product{ID: uuid.New(), CreatedAt: s.now()}
	in.apply(p)
	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.log.Info("product created", zap.String("product_id", p.ID.String()))
	return p, nil
}

func (s *CatalogService) Update(ctx context.Context, rawID string, in ProductInput) (*models.Product, error) {
	p, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	previousFile := p.FilePathInStorage
	in.apply(p)

	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	if previousFile != "" && previousFile != p.FilePathInStorage {
		s.removeFile(ctx, previousFile)
	}
	return p, nil
}

// Delete removes the product row and then its stored file.
func (s *CatalogService) Delete(ctx context.Context, rawID string) error {
	p, err := s.Get(ctx, rawID)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, p.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if p.FilePathInStorage != "" {
		s.removeFile(ctx, p.FilePathInStorage)
	}
	return nil
}

func (s *CatalogService) removeFile(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
	}
}

// Upload stores body under a timestamped key in folder and returns the key.
func (s *CatalogService) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error) {
	if filename == "" {
		return "", ErrMissingFields
	}
	key := ObjectKey(folder, filename, s.now())
	if err := s.storage.Upload(ctx, key, body, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.log.Info("file uploaded", zap.String("key", key))
	return key, nil
}
