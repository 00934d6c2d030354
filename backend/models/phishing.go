package models

import (
	"time"

	"gorm.io/gorm"
)

type PhishingScenario struct {
	gorm.Model
	Subject     string
	Sender      string
	Body        string
	IsPhish     bool
	Explanation string
	Difficulty  string // beginner, intermediate, advanced
	AuthorID    uint
}

type PhishingAttempt struct {
	gorm.Model
	AttemptID  string `gorm:"index"` // uuid assigned per attempt
	UserID     uint
	ScenarioID uint
	SaidPhish  bool
	Correct    bool
}

type UserPhishingResult struct {
	gorm.Model
	UserID        uint `gorm:"uniqueIndex"`
	ScenariosSeen int
	CorrectCalls  int
	Accuracy      float64
	LastAttempt   time.Time
}
