package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vicekohler/foodcompare/internal/common"
	"github.com/vicekohler/foodcompare/internal/db"
)

const (
	storesCacheKey     = "catalog:stores"
	categoriesCacheKey = "catalog:categories"
	productCacheKeyFn  = "catalog:product:%d"
)

// Repository is the persistence surface the catalog needs.
type Repository interface {
	CreateStore(ctx context.Context, name string, logoURL, website *string) (db.Store, error)
	UpdateStore(ctx context.Context, id int64, name string, logoURL, website *string) (db.Store, error)
	DeleteStore(ctx context.Context, id int64) error
	GetStore(ctx context.Context, id int64) (db.Store, error)
	ListStores(ctx context.Context) ([]db.Store, error)

	CreateProduct(ctx context.Context, params db.ProductParams) (db.Product, error)
	UpdateProduct(ctx context.Context, id int64, params db.ProductParams) (db.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (db.Product, error)
	ListProducts(ctx context.Context, search string, limit, offset int) ([]db.Product, error)
	CountProducts(ctx context.Context, search string) (int64, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// StoreInput captures payload for creating or updating a store.
type StoreInput struct {
	Name    string  `json:"name"`
	LogoURL *string `json:"logo_url"`
	Website *string `json:"website"`
}

// ProductInput captures payload for creating or updating a product.
type ProductInput struct {
	Name      string   `json:"name"`
	Brand     *string  `json:"brand"`
	Barcode   *string  `json:"barcode"`
	Category  *string  `json:"category"`
	ImageURL  *string  `json:"image_url"`
	SizeValue *float64 `json:"size_value"`
	SizeUnit  *string  `json:"size_unit"`
}

func (i ProductInput) params() db.ProductParams {
	return db.ProductParams{
		Name:      strings.TrimSpace(i.Name),
		Brand:     i.Brand,
		Barcode:   i.Barcode,
		Category:  i.Category,
		ImageURL:  i.ImageURL,
		SizeValue: i.SizeValue,
		SizeUnit:  i.SizeUnit,
	}
}

// ProductPage is a paginated product listing.
type ProductPage struct {
	Items []db.Product `json:"data"`
	Total int64        `json:"total"`
}

// Service orchestrates store and product catalog operations.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService constructs a catalog service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (i StoreInput) validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	return nil
}

func (i ProductInput) validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	if i.SizeValue != nil {
		v := *i.SizeValue
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return common.NewAppError("VALIDATION_ERROR", "size_value must be a positive number", http.StatusBadRequest, nil)
		}
	}
	if (i.SizeValue == nil) != (i.SizeUnit == nil || strings.TrimSpace(*i.SizeUnit) == "") {
		return common.NewAppError("VALIDATION_ERROR", "size_value and size_unit must be provided together", http.StatusBadRequest, nil)
	}
	return nil
}

// ListStores returns all stores, serving the cached copy when present.
func (s *Service) ListStores(ctx context.Context) ([]db.Store, error) {
	var cached []db.Store
	if ok, err := s.cache.GetJSON(ctx, storesCacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, storesCacheKey, stores)
	return stores, nil
}

// GetStore fetches a store by id.
func (s *Service) GetStore(ctx context.Context, id int64) (db.Store, error) {
	store, err := s.repo.GetStore(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Store{}, common.NotFound("store not found", err)
	}
	return store, err
}

// CreateStore inserts a store and invalidates the stores cache.
func (s *Service) CreateStore(ctx context.Context, input StoreInput) (db.Store, error) {
	if err := input.validate(); err != nil {
		return db.Store{}, err
	}
	store, err := s.repo.CreateStore(ctx, strings.TrimSpace(input.Name), input.LogoURL, input.Website)
	if err != nil {
		return db.Store{}, err
	}
	s.cache.Del(ctx, storesCacheKey)
	return store, nil
}

// UpdateStore replaces mutable store fields.
func (s *Service) UpdateStore(ctx context.Context, id int64, input StoreInput) (db.Store, error) {
	if err := input.validate(); err != nil {
		return db.Store{}, err
	}
	store, err := s.repo.UpdateStore(ctx, id, strings.TrimSpace(input.Name), input.LogoURL, input.Website)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Store{}, common.NotFound("store not found", err)
	}
	if err != nil {
		return db.Store{}, err
	}
	s.cache.Del(ctx, storesCacheKey)
	return store, nil
}

// DeleteStore removes a store and its prices.
func (s *Service) DeleteStore(ctx context.Context, id int64) error {
	err := s.repo.DeleteStore(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFound("store not found", err)
	}
	if err != nil {
		return err
	}
	s.cache.Del(ctx, storesCacheKey)
	return nil
}

// ListProducts returns a filtered page of products plus the total count.
func (s *Service) ListProducts(ctx context.Context, search string, limit, offset int) (ProductPage, error) {
	items, err := s.repo.ListProducts(ctx, search, limit, offset)
	if err != nil {
		return ProductPage{}, err
	}
	total, err := s.repo.CountProducts(ctx, search)
	if err != nil {
		return ProductPage{}, err
	}
	return ProductPage{Items: items, Total: total}, nil
}

// GetProduct fetches a product by id, serving the cached copy when present.
func (s *Service) GetProduct(ctx context.Context, id int64) (db.Product, error) {
	key := fmt.Sprintf(productCacheKeyFn, id)
	var cached db.Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	product, err := s.repo.GetProduct(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Product{}, common.NotFound("product not found", err)
	}
	if err != nil {
		return db.Product{}, err
	}
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}

// ListCategories returns the distinct product categories, serving the
// cached copy when present.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	var cached []string
	if ok, err := s.cache.GetJSON(ctx, categoriesCacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, categoriesCacheKey, categories)
	return categories, nil
}

// CreateProduct inserts a product.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (db.Product, error) {
	if err := input.validate(); err != nil {
		return db.Product{}, err
	}
	product, err := s.repo.CreateProduct(ctx, input.params())
	if err != nil {
		return db.Product{}, err
	}
	s.cache.Del(ctx, categoriesCacheKey)
	return product, nil
}

// UpdateProduct replaces mutable product fields and drops the cached copies.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (db.Product, error) {
	if err := input.validate(); err != nil {
		return db.Product{}, err
	}
	product, err := s.repo.UpdateProduct(ctx, id, input.params())
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Product{}, common.NotFound("product not found", err)
	}
	if err != nil {
		return db.Product{}, err
	}
	s.cache.Del(ctx, fmt.Sprintf(productCacheKeyFn, id), categoriesCacheKey)
	return product, nil
}

// DeleteProduct removes a product along with its prices and history.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.repo.DeleteProduct(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFound("product not found", err)
	}
	if err != nil {
		return err
	}
	s.cache.Del(ctx, fmt.Sprintf(productCacheKeyFn, id), categoriesCacheKey)
	return nil
}
