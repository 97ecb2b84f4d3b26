package prices

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vicekohler/foodcompare/internal/common"
	"github.com/vicekohler/foodcompare/internal/obs"
	"github.com/vicekohler/foodcompare/internal/pricing"
)

// Handler exposes price comparison, quoting, and write endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the price endpoints on a chi router. Write middleware
// (rate limiting, idempotency) is attached by the caller.
func (h *Handler) Routes(r chi.Router, write ...func(http.Handler) http.Handler) {
	r.Route("/prices", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/compare/{productID}", h.Compare)
		r.Post("/quote", h.Quote)
		r.Get("/by-product/{productID}", h.ByProduct)
		r.Get("/history/{productID}", h.History)
		r.Delete("/{priceID}", h.Delete)
		r.Group(func(r chi.Router) {
			for _, mw := range write {
				r.Use(mw)
			}
			r.Post("/", h.Upsert)
		})
	})
}

// policyFromQuery derives the freshness policy for a request, starting
// from the service defaults.
func (h *Handler) policyFromQuery(r *http.Request) pricing.Policy {
	pol := h.service.DefaultPolicy
	query := r.URL.Query()
	if hours := common.AtoiDefault(query.Get("staleHours"), 0); hours > 0 {
		pol.StaleAfter = time.Duration(hours) * time.Hour
	}
	pol.HideExpired = common.BoolDefault(query.Get("hideExpired"), pol.HideExpired)
	pol.PreferFresh = common.BoolDefault(query.Get("preferFresh"), pol.PreferFresh)
	return pol
}

// Compare handles GET /api/v1/prices/compare/{productID}.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	comparison, err := h.service.Compare(r.Context(), id, h.policyFromQuery(r))
	if err != nil {
		countResult(obs.CompareTotal, err)
		common.WriteError(w, err)
		return
	}
	countResult(obs.CompareTotal, nil)
	common.JSON(w, http.StatusOK, comparison)
}

// Quote handles POST /api/v1/prices/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []pricing.Line `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	quote, err := h.service.QuoteCart(r.Context(), body.Items)
	if err != nil {
		countResult(obs.QuoteTotal, err)
		common.WriteError(w, err)
		return
	}
	countResult(obs.QuoteTotal, nil)
	common.JSON(w, http.StatusOK, quote)
}

// ByProduct handles GET /api/v1/prices/by-product/{productID}.
func (h *Handler) ByProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	offers, err := h.service.ByProduct(r.Context(), id, h.policyFromQuery(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": offers})
}

// Upsert handles POST /api/v1/prices.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var input UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	price, created, err := h.service.Upsert(r.Context(), input)
	if err != nil {
		countResult(obs.PriceUpsertTotal, err)
		common.WriteError(w, err)
		return
	}
	countResult(obs.PriceUpsertTotal, nil)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.JSON(w, status, map[string]any{"data": price})
}

// History handles GET /api/v1/prices/history/{productID}.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	query := r.URL.Query()
	limit := common.AtoiDefault(query.Get("limit"), 200)
	var storeID *int64
	if raw := query.Get("storeId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid storeId", nil)
			return
		}
		storeID = &parsed
	}
	entries, err := h.service.History(r.Context(), id, storeID, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

// List handles GET /api/v1/prices.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.ParseLimitOffset(r, 50, 200)
	rows, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Delete handles DELETE /api/v1/prices/{priceID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "priceID")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
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

// countResult is a no-op until domain metrics are registered, which
// keeps handler unit tests free of registry setup.
func countResult(vec *prometheus.CounterVec, err error) {
	if vec == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus > 0 && appErr.HTTPStatus < 500 {
			result = "rejected"
		}
	}
	vec.WithLabelValues(result).Inc()
}
