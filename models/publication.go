package models

import "time"

// Publication is a research publication linked to a dataset by name.
type Publication struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
	Title       string    `gorm:"size:1000;not null" json:"title"`
	Authors     string    `gorm:"type:text" json:"authors"`
	Journal     string    `gorm:"size:500" json:"journal"`
	Year        int       `gorm:"index" json:"year"`
	PMID        string    `gorm:"column:pmid;size:50" json:"pmid"`
	DOI         string    `gorm:"column:doi;size:200" json:"doi"`
	DatasetName string    `gorm:"size:500;index" json:"dataset_name"`
}
