package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vicekohler/foodcompare/internal/catalog"
	"github.com/vicekohler/foodcompare/internal/db"
)

type fakeRepo struct {
	stores        map[int64]db.Store
	products      map[int64]db.Product
	nextID        int64
	listStoreHits int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stores: map[int64]db.Store{}, products: map[int64]db.Product{}, nextID: 1}
}

func (f *fakeRepo) CreateStore(_ context.Context, name string, logoURL, website *string) (db.Store, error) {
	s := db.Store{ID: f.nextID, Name: name, LogoURL: logoURL, Website: website, CreatedAt: time.Now()}
	f.stores[s.ID] = s
	f.nextID++
	return s, nil
}

func (f *fakeRepo) UpdateStore(_ context.Context, id int64, name string, logoURL, website *string) (db.Store, error) {
	s, ok := f.stores[id]
	if !ok {
		return db.Store{}, pgx.ErrNoRows
	}
	s.Name, s.LogoURL, s.Website = name, logoURL, website
	f.stores[id] = s
	return s, nil
}

func (f *fakeRepo) DeleteStore(_ context.Context, id int64) error {
	if _, ok := f.stores[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.stores, id)
	return nil
}

func (f *fakeRepo) GetStore(_ context.Context, id int64) (db.Store, error) {
	s, ok := f.stores[id]
	if !ok {
		return db.Store{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeRepo) ListStores(context.Context) ([]db.Store, error) {
	f.listStoreHits++
	out := make([]db.Store, 0, len(f.stores))
	for _, s := range f.stores {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeRepo) CreateProduct(_ context.Context, params db.ProductParams) (db.Product, error) {
	p := db.Product{
		ID:        f.nextID,
		Name:      params.Name,
		Brand:     params.Brand,
		Barcode:   params.Barcode,
		Category:  params.Category,
		ImageURL:  params.ImageURL,
		SizeValue: params.SizeValue,
		SizeUnit:  params.SizeUnit,
		CreatedAt: time.Now(),
	}
	f.products[p.ID] = p
	f.nextID++
	return p, nil
}

func (f *fakeRepo) UpdateProduct(_ context.Context, id int64, params db.ProductParams) (db.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	p.Name, p.Brand, p.Barcode = params.Name, params.Brand, params.Barcode
	p.Category, p.ImageURL = params.Category, params.ImageURL
	p.SizeValue, p.SizeUnit = params.SizeValue, params.SizeUnit
	f.products[id] = p
	return p, nil
}

func (f *fakeRepo) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := f.products[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.products, id)
	return nil
}

func (f *fakeRepo) GetProduct(_ context.Context, id int64) (db.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeRepo) ListProducts(_ context.Context, search string, limit, offset int) ([]db.Product, error) {
	out := make([]db.Product, 0, len(f.products))
	for _, p := range f.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, p)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CountProducts(_ context.Context, search string) (int64, error) {
	items, _ := f.ListProducts(context.Background(), search, len(f.products), 0)
	return int64(len(items)), nil
}

func (f *fakeRepo) ListCategories(context.Context) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, p := range f.products {
		if p.Category == nil || *p.Category == "" || seen[*p.Category] {
			continue
		}
		seen[*p.Category] = true
		out = append(out, *p.Category)
	}
	sort.Strings(out)
	return out, nil
}

func newTestHandler(t *testing.T) (*fakeRepo, http.Handler) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newFakeRepo()
	service := catalog.NewService(repo, catalog.NewCache(client, time.Minute))
	router := chi.NewRouter()
	router.Route("/api/v1", catalog.NewHandler(service).Routes)
	return repo, router
}

func TestCreateAndGetStore(t *testing.T) {
	_, router := newTestHandler(t)

	body := strings.NewReader(`{"name":"Jumbo","logo_url":"https://cdn.example.com/jumbo.png"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		Data db.Store `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "Jumbo", created.Data.Name)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stores/1", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateStoreRequiresName(t *testing.T) {
	_, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", strings.NewReader(`{"name":"  "}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestListStoresServedFromCache(t *testing.T) {
	repo, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", strings.NewReader(`{"name":"Lider"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	require.Equal(t, 1, repo.listStoreHits)
}

func TestProductSizeValidation(t *testing.T) {
	_, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Arroz","size_value":-1,"size_unit":"g"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Arroz","size_value":1000,"size_unit":"g"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestCreateProductKeepsCategoryAndImage(t *testing.T) {
	_, router := newTestHandler(t)

	body := strings.NewReader(`{"name":"Arroz Grado 1","category":"despensa","image_url":"https://cdn.example.com/arroz.png"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		Data db.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.NotNil(t, created.Data.Category)
	require.Equal(t, "despensa", *created.Data.Category)
	require.NotNil(t, created.Data.ImageURL)
	require.Equal(t, "https://cdn.example.com/arroz.png", *created.Data.ImageURL)
}

func TestListCategories(t *testing.T) {
	_, router := newTestHandler(t)

	for _, payload := range []string{
		`{"name":"Arroz","category":"despensa"}`,
		`{"name":"Aceite","category":"despensa"}`,
		`{"name":"Leche","category":"lacteos"}`,
		`{"name":"Sin rubro"}`,
	} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(payload)))
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/categories", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, []string{"despensa", "lacteos"}, body.Data)
}

func TestSearchProducts(t *testing.T) {
	_, router := newTestHandler(t)

	for _, payload := range []string{
		`{"name":"Arroz Grado 1"}`,
		`{"name":"Aceite Maravilla"}`,
	} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(payload)))
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=arroz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data []db.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "Arroz Grado 1", body.Data[0].Name)
}

func TestGetMissingProductReturns404(t *testing.T) {
	_, router := newTestHandler(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/99", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "NOT_FOUND")
}

func TestDeleteStore(t *testing.T) {
	_, router := newTestHandler(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/stores", strings.NewReader(`{"name":"Unimarc"}`)))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/stores/1", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stores/1", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
