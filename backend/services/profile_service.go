package services

import (
	"errors"
	"time"

	"cyberverse/backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	profileCreateAttempts = 3
	profileRetryBaseWait  = 100 * time.Millisecond
)

// EnsureProfile creates the user's profile row if it does not exist yet.
// It runs right after signup and on session fetches, so creation is retried
// a bounded number of times with exponential backoff instead of the caller
// attempting several fallback paths.
func EnsureProfile(db *gorm.DB, userID uint, displayName string) (*models.Profile, error) {
	var profile models.Profile
	err := db.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = models.Profile{UserID: userID, DisplayName: displayName}

	var lastErr error
	for attempt := 0; attempt < profileCreateAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(profileRetryBaseWait << (attempt - 1))
		}

		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&profile).Error
		if err == nil {
			if profile.ID == 0 {
				// a concurrent request created it first
				if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
					return nil, err
				}
			}
			return &profile, nil
		}
		lastErr = err
	}

	return nil, lastErr
}
