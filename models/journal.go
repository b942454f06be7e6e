package models

import (
	"time"

	"gorm.io/datatypes"
)

// Journal is a user's journal entry. Mood is nil when analysis was unavailable.
type Journal struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	UserID      uint                        `gorm:"index;not null" json:"userId"`
	Title       string                      `gorm:"size:200;not null" json:"title"`
	Content     string                      `gorm:"type:text;not null" json:"content"`
	ContentHTML string                      `gorm:"-" json:"contentHtml,omitempty"`
	Mood        *string                     `gorm:"size:32" json:"mood"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	IsPrivate   bool                        `json:"isPrivate"`
	CreatedAt   time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}
