package prices

import (
	"context"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/vicekohler/foodcompare/internal/common"
	"github.com/vicekohler/foodcompare/internal/db"
	"github.com/vicekohler/foodcompare/internal/obs"
	"github.com/vicekohler/foodcompare/internal/pricing"
)

// Repository is the persistence surface the price service needs.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (db.Product, error)
	GetStore(ctx context.Context, id int64) (db.Store, error)
	ListPricesByProduct(ctx context.Context, productID int64) ([]db.ProductPriceRow, error)
	ListQuoteRows(ctx context.Context, productIDs []int64) ([]db.QuoteRow, error)
	UpsertPrice(ctx context.Context, params db.UpsertPriceParams) (db.Price, bool, error)
	DeletePrice(ctx context.Context, id int64) error
	ListPrices(ctx context.Context, limit, offset int) ([]db.ProductPriceRow, error)
	ListPriceHistory(ctx context.Context, productID int64, storeID *int64, limit int) ([]db.PriceHistoryEntry, error)
}

// Enqueuer dispatches background work after price writes.
type Enqueuer interface {
	EnqueuePriceHistory(ctx context.Context, productID, storeID int64, price float64, currency string, recordedAt time.Time) error
}

// UpsertInput is the payload for recording a price observation.
type UpsertInput struct {
	ProductID  int64      `json:"product_id" validate:"required,gt=0"`
	StoreID    int64      `json:"store_id" validate:"required,gt=0"`
	Price      float64    `json:"price" validate:"required,gt=0"`
	Currency   string     `json:"currency" validate:"omitempty,len=3"`
	URL        *string    `json:"url" validate:"omitempty,url"`
	PromoText  *string    `json:"promo_text"`
	CapturedAt *time.Time `json:"captured_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// PolicyEcho reflects the effective comparison policy back to the caller.
type PolicyEcho struct {
	StaleHours  int  `json:"staleHours"`
	HideExpired bool `json:"hideExpired"`
	PreferFresh bool `json:"preferFresh"`
}

// Comparison is the compare endpoint response.
type Comparison struct {
	Product pricing.Product `json:"product"`
	Best    *pricing.Offer  `json:"best"`
	Offers  []pricing.Offer `json:"prices"`
	Policy  PolicyEcho      `json:"policy"`
}

// Service orchestrates price reads, writes, and cart quoting.
type Service struct {
	repo     Repository
	enqueuer Enqueuer
	validate *validator.Validate

	DefaultPolicy pricing.Policy
	Currency      string

	// Now is injectable so freshness decisions are deterministic in tests.
	Now func() time.Time
}

// NewService constructs a price service.
func NewService(repo Repository, enqueuer Enqueuer, validate *validator.Validate, policy pricing.Policy, currency string) *Service {
	if validate == nil {
		validate = validator.New()
	}
	if currency == "" {
		currency = "CLP"
	}
	return &Service{
		repo:          repo,
		enqueuer:      enqueuer,
		validate:      validate,
		DefaultPolicy: policy,
		Currency:      currency,
		Now:           time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func toProduct(p db.Product) pricing.Product {
	return pricing.Product{ID: p.ID, Name: p.Name, SizeValue: p.SizeValue, SizeUnit: p.SizeUnit}
}

func toObservation(row db.ProductPriceRow) pricing.Observation {
	return pricing.Observation{
		ID:         row.ID,
		StoreID:    row.StoreID,
		StoreName:  row.StoreName,
		StoreLogo:  row.StoreLogo,
		Price:      row.Price.Price,
		Currency:   row.Currency,
		URL:        row.URL,
		PromoText:  row.PromoText,
		CapturedAt: row.CapturedAt,
		ExpiresAt:  row.ExpiresAt,
	}
}

// Compare ranks every store's current offer for a product.
func (s *Service) Compare(ctx context.Context, productID int64, pol pricing.Policy) (Comparison, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comparison{}, common.NotFound("product not found", err)
	}
	if err != nil {
		return Comparison{}, err
	}

	rows, err := s.repo.ListPricesByProduct(ctx, productID)
	if err != nil {
		return Comparison{}, err
	}
	observations := make([]pricing.Observation, 0, len(rows))
	for _, row := range rows {
		observations = append(observations, toObservation(row))
	}

	p := toProduct(product)
	ranking := pricing.Rank(p, observations, pol, s.now())
	if obs.ComparableOffers != nil {
		comparable := 0
		for _, offer := range ranking.Offers {
			if offer.NormalizedPrice != nil {
				comparable++
			}
		}
		obs.ComparableOffers.Observe(float64(comparable))
	}
	staleAfter := pol.StaleAfter
	if staleAfter <= 0 {
		staleAfter = pricing.DefaultStaleAfter
	}
	echo := PolicyEcho{
		StaleHours:  int(staleAfter / time.Hour),
		HideExpired: pol.HideExpired,
		PreferFresh: pol.PreferFresh,
	}
	return Comparison{Product: p, Best: ranking.Best, Offers: ranking.Offers, Policy: echo}, nil
}

// ByProduct returns every store's offer for a product enriched with
// normalization and freshness, in stable row order.
func (s *Service) ByProduct(ctx context.Context, productID int64, pol pricing.Policy) ([]pricing.Offer, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("product not found", err)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListPricesByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	p := toProduct(product)
	now := s.now()
	offers := make([]pricing.Offer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, pricing.Enrich(p, toObservation(row), pol, now))
	}
	return offers, nil
}

// QuoteCart prices a whole cart against every store with full coverage.
func (s *Service) QuoteCart(ctx context.Context, lines []pricing.Line) (pricing.Quote, error) {
	collapsed, err := pricing.CollapseLines(lines)
	if err != nil {
		return pricing.Quote{}, common.NewAppError("VALIDATION_ERROR", "cart has no valid lines", http.StatusBadRequest, err)
	}

	productIDs := make([]int64, 0, len(collapsed))
	for _, line := range collapsed {
		productIDs = append(productIDs, line.ProductID)
	}
	rows, err := s.repo.ListQuoteRows(ctx, productIDs)
	if err != nil {
		return pricing.Quote{}, err
	}
	quoteRows := make([]pricing.PriceRow, 0, len(rows))
	for _, row := range rows {
		quoteRows = append(quoteRows, pricing.PriceRow{
			ProductID: row.ProductID,
			StoreID:   row.StoreID,
			StoreName: row.StoreName,
			StoreLogo: row.StoreLogo,
			Price:     row.Price,
		})
	}

	quote, err := pricing.QuoteCart(collapsed, quoteRows)
	if err != nil {
		return pricing.Quote{}, common.NewAppError("VALIDATION_ERROR", "cart has no valid lines", http.StatusBadRequest, err)
	}
	if obs.QuoteStoreCandidates != nil {
		obs.QuoteStoreCandidates.Observe(float64(len(quote.ByStore)))
	}
	return quote, nil
}

// Upsert records a price observation, creating or replacing the
// (product, store) row, and queues a history append.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (db.Price, bool, error) {
	if err := s.validate.Struct(input); err != nil {
		return db.Price{}, false, common.NewAppError("VALIDATION_ERROR", "invalid price payload", http.StatusBadRequest, err)
	}
	if _, err := s.repo.GetProduct(ctx, input.ProductID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Price{}, false, common.NotFound("product not found", err)
		}
		return db.Price{}, false, err
	}
	if _, err := s.repo.GetStore(ctx, input.StoreID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Price{}, false, common.NotFound("store not found", err)
		}
		return db.Price{}, false, err
	}

	currency := input.Currency
	if currency == "" {
		currency = s.Currency
	}
	capturedAt := input.CapturedAt
	if capturedAt == nil {
		now := s.now()
		capturedAt = &now
	}

	price, created, err := s.repo.UpsertPrice(ctx, db.UpsertPriceParams{
		ProductID:  input.ProductID,
		StoreID:    input.StoreID,
		Price:      input.Price,
		Currency:   currency,
		URL:        input.URL,
		PromoText:  input.PromoText,
		CapturedAt: capturedAt,
		ExpiresAt:  input.ExpiresAt,
	})
	if err != nil {
		return db.Price{}, false, err
	}

	if s.enqueuer != nil {
		_ = s.enqueuer.EnqueuePriceHistory(ctx, price.ProductID, price.StoreID, price.Price, price.Currency, *capturedAt)
	}
	return price, created, nil
}

// History returns the most recent recorded prices for a product,
// optionally narrowed to a single store.
func (s *Service) History(ctx context.Context, productID int64, storeID *int64, limit int) ([]db.PriceHistoryEntry, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("product not found", err)
		}
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	return s.repo.ListPriceHistory(ctx, productID, storeID, limit)
}

// List returns a page of current prices across all products.
func (s *Service) List(ctx context.Context, limit, offset int) ([]db.ProductPriceRow, error) {
	return s.repo.ListPrices(ctx, limit, offset)
}

// Delete removes a price row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeletePrice(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFound("price not found", err)
	}
	return err
}
