package models

import "time"

// Dataset is one catalog entry describing an ADRD research dataset.
type Dataset struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"-"`
	Name              string    `gorm:"size:500;not null;index" json:"name"`
	Description       string    `gorm:"type:text" json:"description"`
	DiseaseType       string    `gorm:"size:200;index" json:"disease_type"`
	SampleSize        int       `json:"sample_size"`
	DataAccessibility string    `gorm:"size:200" json:"data_accessibility"`
	WGSAvailable      string    `gorm:"column:wgs_available;size:50" json:"wgs_available"`
	ImagingTypes      string    `gorm:"type:text" json:"imaging_types"`
	Modalities        string    `gorm:"type:text" json:"modalities"`
}
