package models

import (
	"time"

	"gorm.io/datatypes"
)

// Summary is a generated weekly report backed by a PDF on disk.
type Summary struct {
	ID              uint                      `gorm:"primaryKey" json:"id"`
	UserID          uint                      `gorm:"index;not null" json:"userId"`
	Date            time.Time                 `gorm:"index" json:"date"`
	Available       bool                      `json:"available"`
	URL             string                    `gorm:"size:512" json:"url"`
	FileName        string                    `gorm:"size:255;uniqueIndex" json:"fileName"`
	PDFPath         string                    `gorm:"size:1024" json:"-"`
	CheckIns        datatypes.JSONSlice[uint] `json:"checkIns"`
	Insights        string                    `gorm:"type:text" json:"insights"`
	Recommendations string                    `gorm:"type:text" json:"recommendations"`
	CreatedAt       time.Time                 `json:"createdAt"`
}
