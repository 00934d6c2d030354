package models

import (
	"time"

	"gorm.io/gorm"
)

// Lab progress statuses
const (
	LabStatusNotStarted = "not_started"
	LabStatusInProgress = "in_progress"
	LabStatusCompleted  = "completed"
)

// LabProgress is one row per (user, lab)
type LabProgress struct {
	gorm.Model
	UserID               uint   `gorm:"uniqueIndex:idx_lab_progress_user_lab"`
	LabID                uint   `gorm:"uniqueIndex:idx_lab_progress_user_lab"`
	Status               string `gorm:"default:not_started"` // not_started, in_progress, completed
	StartedAt            time.Time
	CompletedAt          *time.Time
	CompletionPercentage int
	TotalSteps           int
	CompletedSteps       int
}

// IsCompleted is derived from Status so the two can never drift apart
func (p *LabProgress) IsCompleted() bool {
	return p.Status == LabStatusCompleted
}

// LabStepProgress is one row per (user, lab, step); completion is write-once
type LabStepProgress struct {
	gorm.Model
	UserID      uint `gorm:"uniqueIndex:idx_step_progress_user_lab_step"`
	LabID       uint `gorm:"uniqueIndex:idx_step_progress_user_lab_step"`
	StepID      uint `gorm:"uniqueIndex:idx_step_progress_user_lab_step"`
	StepTitle   string
	Completed   bool
	CompletedAt *time.Time
}

// UserProgressSummary aggregates lab progress across all of a user's labs
type UserProgressSummary struct {
	gorm.Model
	UserID               uint `gorm:"uniqueIndex"`
	TotalLabs            int
	CompletedLabs        int
	InProgressLabs       int
	CompletionPercentage int
	EarnedPoints         int `gorm:"default:0"`
	LastActivityAt       time.Time
}

// Achievement is one row per (user, name); duplicate awards are no-ops
type Achievement struct {
	gorm.Model
	UserID      uint   `gorm:"uniqueIndex:idx_achievements_user_name"`
	Name        string `gorm:"uniqueIndex:idx_achievements_user_name"`
	Description string
	Icon        string
	EarnedAt    time.Time
}
