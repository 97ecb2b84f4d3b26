package pricing

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptyCart is returned when no cart line survives input normalization.
// It is a caller error and maps to HTTP 400 at the boundary.
var ErrEmptyCart = errors.New("cart has no valid lines")

// Line is one request-scoped cart entry.
type Line struct {
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty"`
}

// PriceRow is one (product, store) cell of the price table together with
// the store metadata echoed back on quotes. Quoting works on raw prices:
// the shopper buys a fixed quantity, so basket cost is compared without
// per-unit normalization.
type PriceRow struct {
	ProductID int64
	StoreID   int64
	StoreName *string
	StoreLogo *string
	Price     float64
}

// StoreQuote is the total cost of fulfilling the entire cart at one store.
type StoreQuote struct {
	StoreID   int64   `json:"store_id"`
	StoreName *string `json:"store_name"`
	StoreLogo *string `json:"store_logo"`
	Total     float64 `json:"total"`
}

// Quote ranks the stores able to cover the whole cart. BestStore is nil
// when no store qualifies.
type Quote struct {
	ByStore   []StoreQuote `json:"by_store"`
	BestStore *StoreQuote  `json:"best_store"`
}

// CollapseLines merges duplicate product entries by summing quantities and
// drops lines with a missing product id or non-positive quantity. First-seen
// product order is preserved. An empty result is ErrEmptyCart.
func CollapseLines(lines []Line) ([]Line, error) {
	index := make(map[int64]int, len(lines))
	collapsed := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 || line.Qty <= 0 || math.IsNaN(line.Qty) {
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			collapsed[i].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(collapsed)
		collapsed = append(collapsed, line)
	}
	if len(collapsed) == 0 {
		return nil, ErrEmptyCart
	}
	return collapsed, nil
}

// QuoteCart computes, per store, the cost of buying every cart line at that
// single store. A store missing a price for any distinct product is
// disqualified entirely; partial baskets are never offered. Qualifying
// stores are sorted by total ascending, ties keeping price-table discovery
// order so identical inputs always quote identically.
func QuoteCart(lines []Line, rows []PriceRow) (Quote, error) {
	collapsed, err := CollapseLines(lines)
	if err != nil {
		return Quote{}, err
	}

	prices := make(map[int64]map[int64]float64, len(collapsed))
	storeOrder := make([]int64, 0)
	stores := make(map[int64]StoreQuote)
	for _, row := range rows {
		byStore, ok := prices[row.ProductID]
		if !ok {
			byStore = make(map[int64]float64)
			prices[row.ProductID] = byStore
		}
		byStore[row.StoreID] = row.Price
		if _, seen := stores[row.StoreID]; !seen {
			storeOrder = append(storeOrder, row.StoreID)
			stores[row.StoreID] = StoreQuote{
				StoreID:   row.StoreID,
				StoreName: row.StoreName,
				StoreLogo: row.StoreLogo,
			}
		}
	}

	quotes := make([]StoreQuote, 0, len(storeOrder))
	for _, storeID := range storeOrder {
		total := 0.0
		covered := true
		for _, line := range collapsed {
			price, ok := prices[line.ProductID][storeID]
			if !ok {
				covered = false
				break
			}
			total += price * line.Qty
		}
		if !covered {
			continue
		}
		quote := stores[storeID]
		quote.Total = round2(total)
		quotes = append(quotes, quote)
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Total < quotes[j].Total
	})

	result := Quote{ByStore: quotes}
	if len(quotes) > 0 {
		result.BestStore = &quotes[0]
	}
	return result, nil
}
