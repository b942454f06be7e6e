package models

import "time"

// Reward is a catalog item redeemable for tokens.
type Reward struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	ImageURL    string    `gorm:"size:512" json:"imageUrl,omitempty"`
	TokenCost   int       `gorm:"not null" json:"tokenCost"`
	Category    string    `gorm:"size:16;not null" json:"category"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ValidRewardCategory reports whether c is a known reward category.
func ValidRewardCategory(c string) bool {
	switch c {
	case "therapy", "content", "plant", "other":
		return true
	}
	return false
}
