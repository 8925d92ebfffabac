package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Gimmick12-DYY/ADRD-KG/models"
)

// CreateAdmin registers a reviewer account. Usernames are unique; the
// pre-check is optimistic, the unique index catches races.
func CreateAdmin(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username required")
	}
	if len(password) < 6 { // basic password policy
		return fmt.Errorf("password too short (min 6)")
	}
	var existing models.AdminUser
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return fmt.Errorf("user already exists")
	}
	admin := models.AdminUser{Username: username}
	if err := admin.SetPassword(password); err != nil {
		return err
	}
	if err := db.Create(&admin).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("user already exists")
		}
		return err
	}
	return nil
}

// Authenticate checks reviewer credentials and records the login time.
func Authenticate(username, password string) (models.AdminUser, error) {
	username = strings.TrimSpace(username)
	var admin models.AdminUser
	if err := db.Where("username = ?", username).First(&admin).Error; err != nil {
		return models.AdminUser{}, fmt.Errorf("invalid credentials")
	}
	if !admin.CheckPassword(password) {
		return models.AdminUser{}, fmt.Errorf("invalid credentials")
	}
	now := time.Now()
	admin.LastLogin = &now
	db.Model(&admin).Update("last_login", now)
	return admin, nil
}

// issueToken signs a short-lived HS256 token for the reviewer. Clients may
// carry it as a Bearer header; the management endpoints also work without
// it since the dashboard keeps its session client-side.
func issueToken(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// parseToken validates an HS256 token and returns the username claim.
func parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return "", fmt.Errorf("invalid claims")
	}
	return username, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "UNIQUE constraint") || strings.Contains(s, "already exists")
}
