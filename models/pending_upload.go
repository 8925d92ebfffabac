package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Review states for a PendingUpload. A record starts pending and moves to
// approved or rejected exactly once; both are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// PendingUpload is a submitted spreadsheet awaiting administrative review.
// FileContent holds the parsed rows as a JSON array of objects.
type PendingUpload struct {
	ID          uint           `gorm:"primaryKey"`
	CreatedAt   time.Time      `gorm:"index"`
	UpdatedAt   time.Time
	FileName    string         `gorm:"size:255;not null"`
	FileType    string         `gorm:"size:32;not null;default:csv"`
	FileContent datatypes.JSON
	UploadedBy  string         `gorm:"size:255"`
	Status      string         `gorm:"size:16;not null;default:pending;index"`
	ReviewNotes string         `gorm:"type:text"`
	ReviewedBy  string         `gorm:"size:255"`
	ReviewedAt  *time.Time
}

// Rows decodes the stored file content into an ordered list of row records.
// Absent or malformed content yields an empty list, never an error; a broken
// payload must not take the detail view down with it.
func (u *PendingUpload) Rows() []map[string]any {
	if len(u.FileContent) == 0 {
		return []map[string]any{}
	}
	var rows []map[string]any
	if err := json.Unmarshal(u.FileContent, &rows); err != nil {
		return []map[string]any{}
	}
	return rows
}

// Reviewable reports whether the record can still receive a review decision.
func (u *PendingUpload) Reviewable() bool {
	return u.Status == StatusPending
}
