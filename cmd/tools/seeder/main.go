package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedStores(db)
	seedProducts(db)
	seedPrices(db)

	log.Println("Seeding completed successfully!")
}

func seedStores(db *sql.DB) {
	stores := []struct {
		Name    string
		Logo    string
		Website string
	}{
		{"Jumbo", "https://cdn.example.com/logos/jumbo.png", "https://www.jumbo.cl"},
		{"Lider", "https://cdn.example.com/logos/lider.png", "https://www.lider.cl"},
		{"Unimarc", "https://cdn.example.com/logos/unimarc.png", "https://www.unimarc.cl"},
		{"Santa Isabel", "https://cdn.example.com/logos/santaisabel.png", "https://www.santaisabel.cl"},
		{"Tottus", "https://cdn.example.com/logos/tottus.png", "https://www.tottus.cl"},
	}

	log.Println("Seeding stores...")
	for _, s := range stores {
		_, err := db.Exec(`
			INSERT INTO stores (name, logo_url, website)
			SELECT $1, $2, $3
			WHERE NOT EXISTS (SELECT 1 FROM stores WHERE name = $1);
		`, s.Name, s.Logo, s.Website)
		if err != nil {
			log.Printf("Failed to seed store %s: %v", s.Name, err)
		}
	}
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Name      string
		Brand     string
		Barcode   string
		Category  string
		SizeValue float64
		SizeUnit  string
	}{
		{"Arroz Grado 1", "Tucapel", "7801234000017", "despensa", 1000, "g"},
		{"Aceite Maravilla", "Chef", "7801234000024", "despensa", 1, "l"},
		{"Leche Entera", "Colun", "7801234000031", "lacteos", 1, "l"},
		{"Harina sin Polvos", "Selecta", "7801234000048", "despensa", 1, "kg"},
		{"Azucar Granulada", "Iansa", "7801234000055", "despensa", 1, "kg"},
		{"Fideos Espirales", "Carozzi", "7801234000062", "despensa", 400, "g"},
		{"Atun en Agua", "San Jose", "7801234000079", "conservas", 160, "gr"},
		{"Bebida Cola", "Coca-Cola", "7801234000086", "bebidas", 1.5, "l"},
		{"Yogurt Natural", "Soprole", "7801234000093", "lacteos", 155, "g"},
		{"Detergente Liquido", "Omo", "7801234000109", "limpieza", 3, "lt"},
	}

	log.Println("Seeding products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (name, brand, barcode, category, image_url, size_value, size_unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (barcode) WHERE barcode IS NOT NULL DO NOTHING;
		`, p.Name, p.Brand, p.Barcode, p.Category, "https://cdn.example.com/products/"+p.Barcode+".png", p.SizeValue, p.SizeUnit)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
		}
	}
}

func seedPrices(db *sql.DB) {
	log.Println("Seeding prices...")
	// every store gets a price for every product, spread around a base
	// derived from the product id so comparisons have variety
	_, err := db.Exec(`
		INSERT INTO prices (product_id, store_id, price, currency, captured_at)
		SELECT p.id,
		       s.id,
		       round((500 + p.id * 350 + s.id * 90)::numeric, 0),
		       'CLP',
		       now() - (s.id % 4) * interval '1 day'
		FROM products p
		CROSS JOIN stores s
		ON CONFLICT (product_id, store_id) DO NOTHING;
	`)
	if err != nil {
		log.Printf("Failed to seed prices: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO price_history (product_id, store_id, price, currency, recorded_at)
		SELECT product_id, store_id, price, currency, coalesce(captured_at, now())
		FROM prices
		WHERE NOT EXISTS (SELECT 1 FROM price_history);
	`)
	if err != nil {
		log.Printf("Failed to seed price history: %v", err)
	}
}
