package models

import "time"

// Transaction types.
const (
	TokenEarned = "earned"
	TokenSpent  = "spent"
)

// Transaction sources.
const (
	SourceStreak         = "streak"
	SourceRecommendation = "recommendation"
	SourceCommunity      = "community"
	SourceRedemption     = "redemption"
	SourceAdmin          = "admin"
	SourceActivity       = "activity"
)

// TokenTransaction is an append-only ledger entry. Amount is always positive;
// Type carries the sign.
type TokenTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"userId"`
	Amount      int       `gorm:"not null" json:"amount"`
	Type        string    `gorm:"size:8;not null" json:"type"`
	Source      string    `gorm:"size:32;not null" json:"source"`
	Description string    `gorm:"size:255;not null" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// ValidTokenSource reports whether s is a known transaction source.
func ValidTokenSource(s string) bool {
	switch s {
	case SourceStreak, SourceRecommendation, SourceCommunity, SourceRedemption, SourceAdmin, SourceActivity:
		return true
	}
	return false
}
