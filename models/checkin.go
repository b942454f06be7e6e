package models

import (
	"time"

	"gorm.io/datatypes"
)

// Check-in methods.
const (
	MethodVoice = "voice"
	MethodText  = "text"
)

// CheckIn is one immutable mood submission.
type CheckIn struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	UserID           uint                        `gorm:"index;not null" json:"userId"`
	Mood             string                      `gorm:"size:32;not null" json:"mood"`
	MoodScore        int                         `gorm:"not null" json:"moodScore"`
	EnergyLevel      int                         `gorm:"not null" json:"energyLevel"`
	EmotionalState   string                      `gorm:"size:64;not null" json:"emotionalState"`
	DetectedEmotions datatypes.JSONSlice[string] `json:"detectedEmotions"`
	SentimentScore   float64                     `json:"sentimentScore"`
	Method           string                      `gorm:"size:8;not null" json:"method"`
	Text             string                      `gorm:"type:text" json:"text,omitempty"`
	AudioPath        string                      `gorm:"size:512" json:"audioPath,omitempty"`
	AnalysisFailed   bool                        `json:"analysisFailed"`
	CreatedAt        time.Time                   `gorm:"index" json:"createdAt"`
}
