package models

import "time"

// CommunityGroup is a chat group users can join.
type CommunityGroup struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	Name        string             `gorm:"size:120;not null" json:"name"`
	Description string             `gorm:"type:text;not null" json:"description"`
	Category    string             `gorm:"size:64;not null" json:"category"`
	CreatedBy   uint               `json:"createdBy"`
	Members     []CommunityMember  `gorm:"foreignKey:GroupID" json:"members"`
	Messages    []CommunityMessage `gorm:"foreignKey:GroupID" json:"messages,omitempty"`
	CreatedAt   time.Time          `gorm:"index" json:"createdAt"`
}

// CommunityMember links a user to a group.
type CommunityMember struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	GroupID   uint      `gorm:"uniqueIndex:idx_group_user;not null" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_group_user;not null" json:"userId"`
	CreatedAt time.Time `json:"joinedAt"`
}

// CommunityMessage is a message posted to a group.
type CommunityMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"index;not null" json:"groupId"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	User      *User     `json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
