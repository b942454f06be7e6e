package models

import "time"

// RecommendationFeedback records whether the user found a recommendation helpful.
type RecommendationFeedback struct {
	Helpful   *bool      `json:"helpful"`
	Timestamp *time.Time `json:"timestamp"`
}

// Recommendation is a suggested activity or piece of content for a user.
type Recommendation struct {
	ID              uint                   `gorm:"primaryKey" json:"id"`
	UserID          uint                   `gorm:"index;not null" json:"userId"`
	Type            string                 `gorm:"size:16;not null" json:"type"`
	Title           string                 `gorm:"size:255;not null" json:"title"`
	Description     string                 `gorm:"type:text;not null" json:"description"`
	Link            string                 `gorm:"size:512" json:"link,omitempty"`
	Source          string                 `gorm:"size:64" json:"source,omitempty"`
	Mood            string                 `gorm:"size:32" json:"mood,omitempty"`
	IsCompleted     bool                   `json:"isCompleted"`
	Feedback        RecommendationFeedback `gorm:"embedded;embeddedPrefix:feedback_" json:"feedback"`
	// FeedbackAwarded is set once the helpful-feedback award was granted.
	FeedbackAwarded bool                   `gorm:"not null;default:false" json:"-"`
	CreatedAt       time.Time              `gorm:"index" json:"createdAt"`
}

// ValidRecommendationType reports whether t is a known recommendation type.
func ValidRecommendationType(t string) bool {
	switch t {
	case "music", "video", "activity", "journal":
		return true
	}
	return false
}
