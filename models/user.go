package models

import (
	"time"

	"gorm.io/gorm"
)

// Plant levels grow with the check-in streak.
const (
	PlantNone   = "none"
	PlantSprout = "sprout"
	PlantLeaf   = "leaf"
	PlantFlower = "flower"
	PlantTree   = "tree"
)

// User roles.
const (
	RoleStudent      = "student"
	RoleProfessional = "professional"
	RoleOther        = "other"
)

// Streak is the consecutive-day check-in state stored on the user row.
type Streak struct {
	Count       int        `gorm:"not null;default:0" json:"count"`
	LastCheckIn *time.Time `json:"lastCheckIn"`
	PlantLevel  string     `gorm:"size:16;not null;default:none" json:"plantLevel"`
}

// TokenWallet mirrors the sum of the user's token transactions.
type TokenWallet struct {
	Balance     int        `gorm:"not null;default:0" json:"balance"`
	Lifetime    int        `gorm:"not null;default:0" json:"lifetime"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// Wallet is an optional external wallet reference. It is stored only.
type Wallet struct {
	Address   string `gorm:"size:128" json:"address"`
	Connected bool   `json:"connected"`
}

// User is an account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"size:100;not null" json:"name"`
	Email          string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string         `gorm:"size:255" json:"-"`
	Role           string         `gorm:"size:16;not null;default:other" json:"role"`
	ProfilePicture string         `gorm:"size:512" json:"profilePicture"`
	Streak         Streak         `gorm:"embedded;embeddedPrefix:streak_" json:"streak"`
	Tokens         TokenWallet    `gorm:"embedded;embeddedPrefix:tokens_" json:"tokens"`
	Wallet         Wallet         `gorm:"embedded;embeddedPrefix:wallet_" json:"wallet"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// ValidRole reports whether r is an accepted role value.
func ValidRole(r string) bool {
	switch r {
	case RoleStudent, RoleProfessional, RoleOther:
		return true
	}
	return false
}

// BeforeCreate fills defaults the database cannot express for zero values.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleOther
	}
	if u.Streak.PlantLevel == "" {
		u.Streak.PlantLevel = PlantNone
	}
	return nil
}
