package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"default:user"`  // user, admin
	Provider     string `gorm:"default:local"` // local, github, google
}

type Profile struct {
	gorm.Model
	UserID      uint `gorm:"uniqueIndex"`
	DisplayName string
	AvatarURL   string
	Bio         string
}

type LoginHistory struct {
	gorm.Model
	UserID    uint
	LoginTime time.Time
}
