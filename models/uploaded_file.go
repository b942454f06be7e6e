package models

import "time"

// UploadedFile records a stored voice recording for timed cleanup.
type UploadedFile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"userId"`
	FilePath  string    `gorm:"size:1024;not null" json:"-"`
	ExpireAt  time.Time `gorm:"index" json:"expireAt"`
	CreatedAt time.Time `json:"createdAt"`
}
