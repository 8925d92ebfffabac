package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Gimmick12-DYY/ADRD-KG/models"
	"github.com/Gimmick12-DYY/ADRD-KG/pkg/fileparse"
	"github.com/Gimmick12-DYY/ADRD-KG/pkg/ingest"
)

// Loads a spreadsheet of datasets straight into the catalog, bypassing the
// review queue. Intended for seeding a fresh database with known-good data.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: go run ./cmd/load_sample_data <datasets.csv|datasets.xlsx>")
		os.Exit(2)
	}
	path := os.Args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read %s: %v", path, err)
	}
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if fileType == "" {
		fileType = "csv"
	}

	rows, err := fileparse.Parse(fileType, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		log.Fatalf("failed to parse %s: %v", path, err)
	}
	if len(rows) == 0 {
		log.Fatalf("no data rows in %s", path)
	}

	_ = godotenv.Load()
	db, err := openDB()
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Dataset{}, &models.Publication{}); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	res := ingest.Rows(db, rows)
	fmt.Printf("added %d dataset(s), %d row(s) failed\n", res.AddedCount, res.ErrorCount)
	for _, e := range res.Errors {
		fmt.Println("  " + e)
	}
	if res.AddedCount == 0 {
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "adrd_kg.db"
	}
	return gorm.Open(sqlite.Open(path), &gorm.Config{})
}
