package pricing

import (
	"sort"
	"time"
)

// Product carries the catalog fields the normalizer needs. Size and unit
// may be absent, in which case every offer for the product is
// unnormalizable and drops out of ranking.
type Product struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	SizeValue *float64 `json:"size_value"`
	SizeUnit  *string  `json:"size_unit"`
}

// Observation is the current price of a product at one store, as fetched
// from the price table.
type Observation struct {
	ID         int64      `json:"id"`
	StoreID    int64      `json:"store_id"`
	StoreName  *string    `json:"store_name"`
	StoreLogo  *string    `json:"store_logo"`
	Price      float64    `json:"price"`
	Currency   string     `json:"currency"`
	URL        *string    `json:"url"`
	PromoText  *string    `json:"promo_text"`
	CapturedAt *time.Time `json:"captured_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// Offer is an Observation enriched with the derived comparison fields.
// It is computed fresh on every query and never persisted.
type Offer struct {
	Observation
	NormalizedPrice *float64 `json:"normalized_price"`
	Stale           bool     `json:"stale"`
	Expired         bool     `json:"expired"`
}

// Policy controls filtering and tie-breaking during ranking.
type Policy struct {
	StaleAfter  time.Duration
	HideExpired bool
	PreferFresh bool
}

// DefaultPolicy mirrors the comparison endpoint defaults.
func DefaultPolicy() Policy {
	return Policy{StaleAfter: DefaultStaleAfter, HideExpired: true, PreferFresh: true}
}

// Ranking is the result of a single-product comparison. Best is nil when no
// offer survives filtering; that is a valid "no comparison possible"
// outcome, not an error.
type Ranking struct {
	Best   *Offer  `json:"best"`
	Offers []Offer `json:"prices"`
}

// Enrich derives the comparison fields for one observation under the given
// policy and instant.
func Enrich(product Product, o Observation, pol Policy, now time.Time) Offer {
	offer := Offer{
		Observation: o,
		Stale:       Stale(o.CapturedAt, staleAfter(pol), now),
		Expired:     Expired(o.ExpiresAt, now),
	}
	if product.SizeValue != nil && product.SizeUnit != nil {
		if normalized, ok := Normalize(*product.SizeValue, *product.SizeUnit, o.Price); ok {
			offer.NormalizedPrice = &normalized
		}
	}
	return offer
}

// Rank orders a product's offers by normalized price with deterministic
// tie-breaks. Offers without a normalized price are always dropped; expired
// offers are dropped only when the policy says so. The comparator, in
// priority order: normalized price ascending, fresh before stale (when
// PreferFresh), raw price ascending, observation id ascending.
func Rank(product Product, observations []Observation, pol Policy, now time.Time) Ranking {
	offers := make([]Offer, 0, len(observations))
	for _, o := range observations {
		offer := Enrich(product, o, pol, now)
		if offer.NormalizedPrice == nil {
			continue
		}
		if pol.HideExpired && offer.Expired {
			continue
		}
		offers = append(offers, offer)
	}

	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		if *a.NormalizedPrice != *b.NormalizedPrice {
			return *a.NormalizedPrice < *b.NormalizedPrice
		}
		if pol.PreferFresh && a.Stale != b.Stale {
			return !a.Stale
		}
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		return a.ID < b.ID
	})

	ranking := Ranking{Offers: offers}
	if len(offers) > 0 {
		ranking.Best = &offers[0]
	}
	return ranking
}

func staleAfter(pol Policy) time.Duration {
	if pol.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return pol.StaleAfter
}
