package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vicekohler/foodcompare/internal/common"
)

// Handler exposes store and product catalog endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/stores", func(r chi.Router) {
		r.Get("/", h.ListStores)
		r.Post("/", h.CreateStore)
		r.Get("/{storeID}", h.GetStore)
		r.Put("/{storeID}", h.UpdateStore)
		r.Delete("/{storeID}", h.DeleteStore)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/search", h.SearchProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/{productID}", h.GetProduct)
		r.Put("/{productID}", h.UpdateProduct)
		r.Delete("/{productID}", h.DeleteProduct)
	})
}

// ListStores handles GET /api/v1/stores.
func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stores})
}

// GetStore handles GET /api/v1/stores/{storeID}.
func (h *Handler) GetStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storeID")
	if !ok {
		return
	}
	store, err := h.service.GetStore(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": store})
}

// CreateStore handles POST /api/v1/stores.
func (h *Handler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var input StoreInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	store, err := h.service.CreateStore(r.Context(), input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": store})
}

// UpdateStore handles PUT /api/v1/stores/{storeID}.
func (h *Handler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storeID")
	if !ok {
		return
	}
	var input StoreInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	store, err := h.service.UpdateStore(r.Context(), id, input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": store})
}

// DeleteStore handles DELETE /api/v1/stores/{storeID}.
func (h *Handler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storeID")
	if !ok {
		return
	}
	if err := h.service.DeleteStore(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts handles GET /api/v1/products with search and pagination.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.ParseLimitOffset(r, 20, 100)
	page, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(page.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": page.Items, "total": page.Total})
}

// SearchProducts handles GET /api/v1/products/search?q=. It shares the
// listing path but takes the term from the q parameter.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.ParseLimitOffset(r, 20, 100)
	page, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(page.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": page.Items, "total": page.Total})
}

// ListCategories handles GET /api/v1/products/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": categories})
}

// GetProduct handles GET /api/v1/products/{productID}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// CreateProduct handles POST /api/v1/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": product})
}

// UpdateProduct handles PUT /api/v1/products/{productID}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var input ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), id, input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// DeleteProduct handles DELETE /api/v1/products/{productID}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+name, nil)
		return 0, false
	}
	return id, true
}
