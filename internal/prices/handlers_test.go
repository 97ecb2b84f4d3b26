package prices_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/vicekohler/foodcompare/internal/db"
	"github.com/vicekohler/foodcompare/internal/prices"
	"github.com/vicekohler/foodcompare/internal/pricing"
)

type fakeRepo struct {
	products         map[int64]db.Product
	stores           map[int64]db.Store
	rows             []db.ProductPriceRow
	history          []db.PriceHistoryEntry
	upserts          []db.UpsertPriceParams
	lastHistoryLimit int
}

func (f *fakeRepo) GetProduct(_ context.Context, id int64) (db.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeRepo) GetStore(_ context.Context, id int64) (db.Store, error) {
	s, ok := f.stores[id]
	if !ok {
		return db.Store{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeRepo) ListPricesByProduct(_ context.Context, productID int64) ([]db.ProductPriceRow, error) {
	out := make([]db.ProductPriceRow, 0)
	for _, row := range f.rows {
		if row.ProductID == productID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListQuoteRows(_ context.Context, productIDs []int64) ([]db.QuoteRow, error) {
	wanted := map[int64]bool{}
	for _, id := range productIDs {
		wanted[id] = true
	}
	out := make([]db.QuoteRow, 0)
	for _, row := range f.rows {
		if wanted[row.ProductID] {
			out = append(out, db.QuoteRow{
				ProductID: row.ProductID,
				StoreID:   row.StoreID,
				StoreName: row.StoreName,
				StoreLogo: row.StoreLogo,
				Price:     row.Price.Price,
			})
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertPrice(_ context.Context, params db.UpsertPriceParams) (db.Price, bool, error) {
	f.upserts = append(f.upserts, params)
	created := true
	for _, row := range f.rows {
		if row.ProductID == params.ProductID && row.StoreID == params.StoreID {
			created = false
		}
	}
	return db.Price{
		ID:         int64(len(f.upserts)),
		ProductID:  params.ProductID,
		StoreID:    params.StoreID,
		Price:      params.Price,
		Currency:   params.Currency,
		CapturedAt: params.CapturedAt,
		ExpiresAt:  params.ExpiresAt,
		UpdatedAt:  time.Now(),
	}, created, nil
}

func (f *fakeRepo) DeletePrice(_ context.Context, id int64) error {
	for i, row := range f.rows {
		if row.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeRepo) ListPrices(_ context.Context, limit, offset int) ([]db.ProductPriceRow, error) {
	if offset >= len(f.rows) {
		return nil, nil
	}
	out := f.rows[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ListPriceHistory(_ context.Context, productID int64, storeID *int64, limit int) ([]db.PriceHistoryEntry, error) {
	f.lastHistoryLimit = limit
	out := make([]db.PriceHistoryEntry, 0)
	for _, e := range f.history {
		if e.ProductID != productID {
			continue
		}
		if storeID != nil && e.StoreID != *storeID {
			continue
		}
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingEnqueuer struct {
	calls int
}

func (e *recordingEnqueuer) EnqueuePriceHistory(context.Context, int64, int64, float64, string, time.Time) error {
	e.calls++
	return nil
}

func strPtr(s string) *string { return &s }

func f64Ptr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func priceRow(id, productID, storeID int64, storeName string, price float64, capturedAt *time.Time) db.ProductPriceRow {
	row := db.ProductPriceRow{StoreName: strPtr(storeName)}
	row.ID = id
	row.ProductID = productID
	row.StoreID = storeID
	row.Price.Price = price
	row.Currency = "CLP"
	row.CapturedAt = capturedAt
	return row
}

func newTestRouter(t *testing.T, repo *fakeRepo, enq *recordingEnqueuer) http.Handler {
	t.Helper()
	var enqueuer prices.Enqueuer
	if enq != nil {
		enqueuer = enq
	}
	service := prices.NewService(repo, enqueuer, nil, pricing.DefaultPolicy(), "CLP")
	service.Now = func() time.Time { return testNow }
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		prices.NewHandler(service).Routes(r)
	})
	return router
}

func seededRepo() *fakeRepo {
	return &fakeRepo{
		products: map[int64]db.Product{
			1: {ID: 1, Name: "Arroz Grado 1", SizeValue: f64Ptr(1000), SizeUnit: strPtr("g")},
			2: {ID: 2, Name: "Aceite Maravilla", SizeValue: f64Ptr(1), SizeUnit: strPtr("l")},
		},
		stores: map[int64]db.Store{
			10: {ID: 10, Name: "Jumbo"},
			20: {ID: 20, Name: "Lider"},
		},
		rows: []db.ProductPriceRow{
			priceRow(100, 1, 10, "Jumbo", 2000, timePtr(testNow.Add(-time.Hour))),
			priceRow(101, 1, 20, "Lider", 2100, timePtr(testNow.Add(-72*time.Hour))),
			priceRow(102, 2, 10, "Jumbo", 3500, timePtr(testNow.Add(-time.Hour))),
		},
	}
}

func TestCompareRanksFreshCheapestFirst(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/prices/compare/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Best   *pricing.Offer  `json:"best"`
		Prices []pricing.Offer `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotNil(t, body.Best)
	require.Equal(t, int64(10), body.Best.StoreID)
	require.Len(t, body.Prices, 2)
	require.False(t, body.Prices[0].Stale)
	require.True(t, body.Prices[1].Stale)
}

func TestComparePolicyQueryOverrides(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	// with a 100h threshold nothing is stale
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/prices/compare/1?staleHours=100", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Prices []pricing.Offer `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	for _, offer := range body.Prices {
		require.False(t, offer.Stale)
	}
}

func TestCompareUnknownProductReturns404(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/prices/compare/999", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuotePicksCheapestCoveringStore(t *testing.T) {
	repo := seededRepo()
	// give Lider coverage of product 2 so both stores qualify
	repo.rows = append(repo.rows, priceRow(103, 2, 20, "Lider", 3300, timePtr(testNow)))
	router := newTestRouter(t, repo, nil)

	body := strings.NewReader(`{"items":[{"product_id":1,"qty":2},{"product_id":2,"qty":1}]}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/prices/quote", body))
	require.Equal(t, http.StatusOK, rr.Code)

	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &quote))
	require.NotNil(t, quote.BestStore)
	require.Equal(t, int64(10), quote.BestStore.StoreID)
	require.InDelta(t, 7500, quote.BestStore.Total, 0.001)
	require.Len(t, quote.ByStore, 2)
}

func TestQuoteExcludesPartialCoverage(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	// Lider has no price for product 2
	body := strings.NewReader(`{"items":[{"product_id":1,"qty":1},{"product_id":2,"qty":1}]}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/prices/quote", body))
	require.Equal(t, http.StatusOK, rr.Code)

	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &quote))
	require.Len(t, quote.ByStore, 1)
	require.Equal(t, int64(10), quote.ByStore[0].StoreID)
}

func TestQuoteEmptyCartRejected(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/prices/quote", strings.NewReader(`{"items":[]}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestUpsertCreatesAndEnqueuesHistory(t *testing.T) {
	repo := seededRepo()
	enq := &recordingEnqueuer{}
	router := newTestRouter(t, repo, enq)

	body := strings.NewReader(`{"product_id":2,"store_id":20,"price":3290}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/prices", body))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, 1, enq.calls)

	require.Len(t, repo.upserts, 1)
	require.Equal(t, "CLP", repo.upserts[0].Currency)
	require.NotNil(t, repo.upserts[0].CapturedAt)
	require.Equal(t, testNow, *repo.upserts[0].CapturedAt)
}

func TestUpsertExistingPairReturns200(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	body := strings.NewReader(`{"product_id":1,"store_id":10,"price":1990}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/prices", body))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestUpsertValidation(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	cases := []string{
		`{"store_id":10,"price":1000}`,
		`{"product_id":1,"store_id":10,"price":-5}`,
		`{"product_id":1,"store_id":10}`,
	}
	for _, payload := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/prices", strings.NewReader(payload)))
		require.Equal(t, http.StatusBadRequest, rr.Code, payload)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/prices", strings.NewReader(`{"product_id":99,"store_id":10,"price":100}`)))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	repo := seededRepo()
	repo.history = []db.PriceHistoryEntry{
		{ID: 1, ProductID: 1, StoreID: 10, Price: 2100, Currency: "CLP", RecordedAt: testNow.Add(-48 * time.Hour)},
		{ID: 2, ProductID: 1, StoreID: 10, Price: 2000, Currency: "CLP", RecordedAt: testNow},
	}
	router := newTestRouter(t, repo, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/prices/history/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data []db.PriceHistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, 200, repo.lastHistoryLimit)
}

func TestHistoryFiltersByStore(t *testing.T) {
	repo := seededRepo()
	repo.history = []db.PriceHistoryEntry{
		{ID: 1, ProductID: 1, StoreID: 10, Price: 2100, Currency: "CLP", RecordedAt: testNow.Add(-time.Hour)},
		{ID: 2, ProductID: 1, StoreID: 20, Price: 2200, Currency: "CLP", RecordedAt: testNow},
	}
	router := newTestRouter(t, repo, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/prices/history/1?storeId=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data []db.PriceHistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, int64(10), body.Data[0].StoreID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/prices/history/1?storeId=abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeletePrice(t *testing.T) {
	router := newTestRouter(t, seededRepo(), nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/prices/100", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/prices/100", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
