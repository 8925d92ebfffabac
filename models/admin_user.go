package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is a reviewer account for the management workflow.
type AdminUser struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string `gorm:"size:255;not null;unique"`
	HashedPassword []byte `gorm:"not null"`
	LastLogin      *time.Time
}

// SetPassword replaces the stored hash with a bcrypt hash of password.
func (a *AdminUser) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.HashedPassword = hashed
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (a *AdminUser) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.HashedPassword, []byte(password)) == nil
}
