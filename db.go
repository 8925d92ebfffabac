package main

import (
	"log"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Gimmick12-DYY/ADRD-KG/models"
)

var db *gorm.DB

func initDB() {
	var err error
	db, err = openDB()
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	// Control schema migrations with env DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}

	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.Dataset{}); err != nil {
			log.Printf("migration warning (datasets): %v", err)
		}
		if err := db.AutoMigrate(&models.Publication{}); err != nil {
			log.Printf("migration warning (publications): %v", err)
		}
		if err := db.AutoMigrate(&models.PendingUpload{}); err != nil {
			log.Printf("migration warning (pending_uploads): %v", err)
		}
		if err := db.AutoMigrate(&models.AdminUser{}); err != nil {
			log.Printf("migration warning (admin_users): %v", err)
		}
	}
	seedDB()
}

// openDB prefers a Postgres DSN in DB_DSN; without one it falls back to a
// local SQLite file (DB_PATH, default adrd_kg.db), which is what small
// deployments and the test suite run on.
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

func seedDB() {
	// Ensure a reviewer account exists so the management UI is reachable
	// on a fresh database.
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	var count int64
	db.Model(&models.AdminUser{}).Where("username = ?", username).Count(&count)
	if count == 0 {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			password = "admin123"
		}
		admin := models.AdminUser{Username: username}
		if err := admin.SetPassword(password); err != nil {
			log.Printf("failed to hash seed admin password: %v", err)
			return
		}
		if err := db.Create(&admin).Error; err != nil {
			log.Printf("failed to seed admin user: %v", err)
			return
		}
		log.Printf("Seeded admin user: username=%s", username)
	}
}
