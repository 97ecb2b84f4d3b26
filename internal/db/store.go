package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a retailer whose prices are tracked.
type Store struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	LogoURL   *string   `json:"logo_url"`
	Website   *string   `json:"website"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a grocery item identified across stores.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Brand     *string   `json:"brand"`
	Barcode   *string   `json:"barcode"`
	Category  *string   `json:"category"`
	ImageURL  *string   `json:"image_url"`
	SizeValue *float64  `json:"size_value"`
	SizeUnit  *string   `json:"size_unit"`
	CreatedAt time.Time `json:"created_at"`
}

// Price is the latest observed price of a product at a store.
type Price struct {
	ID         int64      `json:"id"`
	ProductID  int64      `json:"product_id"`
	StoreID    int64      `json:"store_id"`
	Price      float64    `json:"price"`
	Currency   string     `json:"currency"`
	URL        *string    `json:"url"`
	PromoText  *string    `json:"promo_text"`
	CapturedAt *time.Time `json:"captured_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ProductPriceRow is a price joined with its store for presentation.
type ProductPriceRow struct {
	Price
	StoreName *string `json:"store_name"`
	StoreLogo *string `json:"store_logo"`
}

// QuoteRow is the minimal projection needed to price a cart line.
type QuoteRow struct {
	ProductID int64
	StoreID   int64
	StoreName *string
	StoreLogo *string
	Price     float64
}

// PriceHistoryEntry is an immutable record of an observed price.
type PriceHistoryEntry struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	StoreID    int64     `json:"store_id"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Queries wraps a pgx pool with the application's SQL surface.
type Queries struct {
	pool *pgxpool.Pool
}

// New constructs Queries over the given pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// Pool exposes the underlying pool for health probes and migrations.
func (q *Queries) Pool() *pgxpool.Pool { return q.pool }

const storeColumns = "id, name, logo_url, website, created_at"

func scanStore(row pgx.Row) (Store, error) {
	var s Store
	err := row.Scan(&s.ID, &s.Name, &s.LogoURL, &s.Website, &s.CreatedAt)
	return s, err
}

// CreateStore inserts a store and returns it.
func (q *Queries) CreateStore(ctx context.Context, name string, logoURL, website *string) (Store, error) {
	row := q.pool.QueryRow(ctx,
		"INSERT INTO stores (name, logo_url, website) VALUES ($1, $2, $3) RETURNING "+storeColumns,
		name, logoURL, website)
	return scanStore(row)
}

// UpdateStore updates mutable store fields and returns the updated row.
func (q *Queries) UpdateStore(ctx context.Context, id int64, name string, logoURL, website *string) (Store, error) {
	row := q.pool.QueryRow(ctx,
		"UPDATE stores SET name = $2, logo_url = $3, website = $4 WHERE id = $1 RETURNING "+storeColumns,
		id, name, logoURL, website)
	return scanStore(row)
}

// DeleteStore removes a store. Prices referencing it cascade.
func (q *Queries) DeleteStore(ctx context.Context, id int64) error {
	tag, err := q.pool.Exec(ctx, "DELETE FROM stores WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetStore fetches a single store by id.
func (q *Queries) GetStore(ctx context.Context, id int64) (Store, error) {
	row := q.pool.QueryRow(ctx, "SELECT "+storeColumns+" FROM stores WHERE id = $1", id)
	return scanStore(row)
}

// ListStores returns all stores ordered by name.
func (q *Queries) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := q.pool.Query(ctx, "SELECT "+storeColumns+" FROM stores ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]Store, 0)
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

const productColumns = "id, name, brand, barcode, category, image_url, size_value, size_unit, created_at"

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Barcode, &p.Category, &p.ImageURL, &p.SizeValue, &p.SizeUnit, &p.CreatedAt)
	return p, err
}

// ProductParams captures the writable product fields.
type ProductParams struct {
	Name      string
	Brand     *string
	Barcode   *string
	Category  *string
	ImageURL  *string
	SizeValue *float64
	SizeUnit  *string
}

// CreateProduct inserts a product and returns it.
func (q *Queries) CreateProduct(ctx context.Context, params ProductParams) (Product, error) {
	row := q.pool.QueryRow(ctx,
		"INSERT INTO products (name, brand, barcode, category, image_url, size_value, size_unit) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+productColumns,
		params.Name, params.Brand, params.Barcode, params.Category, params.ImageURL, params.SizeValue, params.SizeUnit)
	return scanProduct(row)
}

// UpdateProduct updates mutable product fields and returns the updated row.
func (q *Queries) UpdateProduct(ctx context.Context, id int64, params ProductParams) (Product, error) {
	row := q.pool.QueryRow(ctx,
		"UPDATE products SET name = $2, brand = $3, barcode = $4, category = $5, image_url = $6, size_value = $7, size_unit = $8 WHERE id = $1 RETURNING "+productColumns,
		id, params.Name, params.Brand, params.Barcode, params.Category, params.ImageURL, params.SizeValue, params.SizeUnit)
	return scanProduct(row)
}

// DeleteProduct removes a product. Prices and history cascade.
func (q *Queries) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := q.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetProduct fetches a single product by id.
func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := q.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProduct(row)
}

// ListProducts returns products matching the optional case-insensitive
// search term, newest first.
func (q *Queries) ListProducts(ctx context.Context, search string, limit, offset int) ([]Product, error) {
	var (
		rows pgx.Rows
		err  error
	)
	search = strings.TrimSpace(search)
	if search != "" {
		rows, err = q.pool.Query(ctx,
			"SELECT "+productColumns+" FROM products WHERE name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%' ORDER BY id DESC LIMIT $2 OFFSET $3",
			search, limit, offset)
	} else {
		rows, err = q.pool.Query(ctx,
			"SELECT "+productColumns+" FROM products ORDER BY id DESC LIMIT $1 OFFSET $2",
			limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListCategories returns the distinct non-empty product categories.
func (q *Queries) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := q.pool.Query(ctx,
		"SELECT DISTINCT category FROM products WHERE category IS NOT NULL AND category <> '' ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountProducts returns the total count for the same filter ListProducts applies.
func (q *Queries) CountProducts(ctx context.Context, search string) (int64, error) {
	var total int64
	search = strings.TrimSpace(search)
	if search != "" {
		err := q.pool.QueryRow(ctx,
			"SELECT count(*) FROM products WHERE name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%'",
			search).Scan(&total)
		return total, err
	}
	err := q.pool.QueryRow(ctx, "SELECT count(*) FROM products").Scan(&total)
	return total, err
}

// UpsertPriceParams captures a price observation for a product at a store.
type UpsertPriceParams struct {
	ProductID  int64
	StoreID    int64
	Price      float64
	Currency   string
	URL        *string
	PromoText  *string
	CapturedAt *time.Time
	ExpiresAt  *time.Time
}

const priceColumns = "id, product_id, store_id, price, currency, url, promo_text, captured_at, expires_at, updated_at"

// UpsertPrice inserts or replaces the price for a (product, store) pair.
// The returned flag reports whether a new row was created.
func (q *Queries) UpsertPrice(ctx context.Context, params UpsertPriceParams) (Price, bool, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO prices (product_id, store_id, price, currency, url, promo_text, captured_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (product_id, store_id) DO UPDATE SET
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			url = EXCLUDED.url,
			promo_text = EXCLUDED.promo_text,
			captured_at = EXCLUDED.captured_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING `+priceColumns+`, (xmax = 0) AS inserted`,
		params.ProductID, params.StoreID, params.Price, params.Currency,
		params.URL, params.PromoText, params.CapturedAt, params.ExpiresAt)

	var p Price
	var inserted bool
	err := row.Scan(&p.ID, &p.ProductID, &p.StoreID, &p.Price, &p.Currency, &p.URL, &p.PromoText, &p.CapturedAt, &p.ExpiresAt, &p.UpdatedAt, &inserted)
	return p, inserted, err
}

// DeletePrice removes a price row.
func (q *Queries) DeletePrice(ctx context.Context, id int64) error {
	tag, err := q.pool.Exec(ctx, "DELETE FROM prices WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListPricesByProduct returns every store's current price for a product
// joined with store presentation fields.
func (q *Queries) ListPricesByProduct(ctx context.Context, productID int64) ([]ProductPriceRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT p.id, p.product_id, p.store_id, p.price, p.currency, p.url, p.promo_text,
		       p.captured_at, p.expires_at, p.updated_at, s.name, s.logo_url
		FROM prices p
		JOIN stores s ON s.id = p.store_id
		WHERE p.product_id = $1
		ORDER BY p.id`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ProductPriceRow, 0)
	for rows.Next() {
		var r ProductPriceRow
		if err := rows.Scan(&r.ID, &r.ProductID, &r.StoreID, &r.Price.Price, &r.Currency, &r.URL, &r.PromoText,
			&r.CapturedAt, &r.ExpiresAt, &r.UpdatedAt, &r.StoreName, &r.StoreLogo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPrices returns a page of prices across all products, newest first.
func (q *Queries) ListPrices(ctx context.Context, limit, offset int) ([]ProductPriceRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT p.id, p.product_id, p.store_id, p.price, p.currency, p.url, p.promo_text,
		       p.captured_at, p.expires_at, p.updated_at, s.name, s.logo_url
		FROM prices p
		JOIN stores s ON s.id = p.store_id
		ORDER BY p.updated_at DESC, p.id DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ProductPriceRow, 0, limit)
	for rows.Next() {
		var r ProductPriceRow
		if err := rows.Scan(&r.ID, &r.ProductID, &r.StoreID, &r.Price.Price, &r.Currency, &r.URL, &r.PromoText,
			&r.CapturedAt, &r.ExpiresAt, &r.UpdatedAt, &r.StoreName, &r.StoreLogo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListQuoteRows returns current prices for the given products across all stores.
func (q *Queries) ListQuoteRows(ctx context.Context, productIDs []int64) ([]QuoteRow, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT p.product_id, p.store_id, s.name, s.logo_url, p.price
		FROM prices p
		JOIN stores s ON s.id = p.store_id
		WHERE p.product_id = ANY($1)
		ORDER BY p.store_id, p.product_id`,
		productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]QuoteRow, 0)
	for rows.Next() {
		var r QuoteRow
		if err := rows.Scan(&r.ProductID, &r.StoreID, &r.StoreName, &r.StoreLogo, &r.Price); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertPriceHistory appends an immutable history record.
func (q *Queries) InsertPriceHistory(ctx context.Context, productID, storeID int64, price float64, currency string, recordedAt time.Time) error {
	_, err := q.pool.Exec(ctx,
		"INSERT INTO price_history (product_id, store_id, price, currency, recorded_at) VALUES ($1, $2, $3, $4, $5)",
		productID, storeID, price, currency, recordedAt)
	return err
}

// ListPriceHistory returns the most recent history entries for a product,
// optionally restricted to a single store.
func (q *Queries) ListPriceHistory(ctx context.Context, productID int64, storeID *int64, limit int) ([]PriceHistoryEntry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if storeID != nil {
		rows, err = q.pool.Query(ctx,
			"SELECT id, product_id, store_id, price, currency, recorded_at FROM price_history WHERE product_id = $1 AND store_id = $2 ORDER BY recorded_at DESC, id DESC LIMIT $3",
			productID, *storeID, limit)
	} else {
		rows, err = q.pool.Query(ctx,
			"SELECT id, product_id, store_id, price, currency, recorded_at FROM price_history WHERE product_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT $2",
			productID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PriceHistoryEntry, 0, limit)
	for rows.Next() {
		var e PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.StoreID, &e.Price, &e.Currency, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
