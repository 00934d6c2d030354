package services

import (
	"errors"
	"log"
	"math"
	"time"

	"cyberverse/backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidInput is returned when a required identifier or title is missing
	ErrInvalidInput = errors.New("missing required progress fields")
	// ErrNoSteps is returned by CompleteLab when the user has no recorded steps for the lab
	ErrNoSteps = errors.New("lab has no recorded steps")
)

// ProgressService keeps the three progress entities (per-lab row, per-step
// rows, per-user summary) consistent with each other. Every method takes the
// authenticated user id explicitly; handlers resolve it from the session
// before calling in, so an unauthenticated request never reaches the store.
type ProgressService struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewProgressService(db *gorm.DB, logger *log.Logger) *ProgressService {
	return &ProgressService{DB: db, Logger: logger}
}

// GetLabProgress returns the user's progress row for a lab, or nil when the
// lab has not been started yet.
func (s *ProgressService) GetLabProgress(userID, labID uint) (*models.LabProgress, error) {
	var progress models.LabProgress
	err := s.DB.Where("user_id = ? AND lab_id = ?", userID, labID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// StartLab creates the progress row for (user, lab) if it does not exist.
// An existing row is returned unchanged; counters are never reset.
func (s *ProgressService) StartLab(userID, labID uint) (*models.LabProgress, error) {
	if userID == 0 || labID == 0 {
		return nil, ErrInvalidInput
	}

	existing, err := s.GetLabProgress(userID, labID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	progress := models.LabProgress{
		UserID:    userID,
		LabID:     labID,
		Status:    models.LabStatusInProgress,
		StartedAt: time.Now(),
	}
	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "lab_id"}},
		DoNothing: true,
	}).Create(&progress).Error
	if err != nil {
		return nil, err
	}
	if progress.ID == 0 {
		// another tab won the insert race; use the stored row
		return s.GetLabProgress(userID, labID)
	}

	s.recomputeSummary(userID)

	return &progress, nil
}

// UpdateStepProgress records the completion state of one step. Completion is
// monotonic: an already-completed step is never reset and its completion
// timestamp never changes. Any write triggers a recompute of the parent lab
// row and the user summary.
func (s *ProgressService) UpdateStepProgress(userID, labID, stepID uint, stepTitle string, completed bool) (*models.LabStepProgress, error) {
	if userID == 0 || labID == 0 || stepID == 0 || stepTitle == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.StartLab(userID, labID); err != nil {
		return nil, err
	}

	var step models.LabStepProgress
	err := s.DB.Where("user_id = ? AND lab_id = ? AND step_id = ?", userID, labID, stepID).First(&step).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		step = models.LabStepProgress{
			UserID:    userID,
			LabID:     labID,
			StepID:    stepID,
			StepTitle: stepTitle,
			Completed: completed,
		}
		if completed {
			now := time.Now()
			step.CompletedAt = &now
		}
		insertErr := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "lab_id"}, {Name: "step_id"}},
			DoNothing: true,
		}).Create(&step).Error
		if insertErr != nil {
			return nil, insertErr
		}
		if step.ID == 0 {
			// lost an insert race against another session
			if err := s.DB.Where("user_id = ? AND lab_id = ? AND step_id = ?", userID, labID, stepID).First(&step).Error; err != nil {
				return nil, err
			}
		}
	case err != nil:
		return nil, err
	case step.Completed:
		// write-once: leave the row untouched whatever the requested state
	default:
		if completed {
			now := time.Now()
			step.Completed = true
			step.CompletedAt = &now
			if err := s.DB.Save(&step).Error; err != nil {
				return nil, err
			}
		}
	}

	if err := s.recomputeLabProgress(userID, labID); err != nil {
		return nil, err
	}
	s.recomputeSummary(userID)

	return &step, nil
}

// CompleteLab marks the whole lab finished, independent of per-step calls.
// It refuses when no steps were ever recorded and is a no-op on a lab that
// is already completed.
func (s *ProgressService) CompleteLab(userID, labID uint) (*models.LabProgress, error) {
	if userID == 0 || labID == 0 {
		return nil, ErrInvalidInput
	}

	progress, err := s.GetLabProgress(userID, labID)
	if err != nil {
		return nil, err
	}
	if progress != nil && progress.IsCompleted() {
		return progress, nil
	}

	var steps []models.LabStepProgress
	if err := s.DB.Where("user_id = ? AND lab_id = ?", userID, labID).Find(&steps).Error; err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	if progress == nil {
		progress, err = s.StartLab(userID, labID)
		if err != nil {
			return nil, err
		}
	}

	completed := 0
	for _, step := range steps {
		if step.Completed {
			completed++
		}
	}

	now := time.Now()
	progress.TotalSteps = len(steps)
	progress.CompletedSteps = completed
	progress.CompletionPercentage = percentage(completed, len(steps))
	progress.Status = models.LabStatusCompleted
	progress.CompletedAt = &now // explicit completion always re-stamps

	if err := s.DB.Save(progress).Error; err != nil {
		return nil, err
	}

	s.recomputeSummary(userID)

	return progress, nil
}

// GetUserSummary returns the user's aggregate summary, or nil when the user
// has no labs yet.
func (s *ProgressService) GetUserSummary(userID uint) (*models.UserProgressSummary, error) {
	var summary models.UserProgressSummary
	err := s.DB.Where("user_id = ?", userID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// TouchSummaryActivity bumps the summary's last-activity stamp, e.g. on
// login. A user with no labs has no summary row, so there is nothing to
// touch.
func (s *ProgressService) TouchSummaryActivity(userID uint) error {
	var summary models.UserProgressSummary
	err := s.DB.Where("user_id = ?", userID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	summary.LastActivityAt = time.Now()
	return s.DB.Save(&summary).Error
}

func (s *ProgressService) GetUserAchievements(userID uint) ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := s.DB.Where("user_id = ?", userID).Order("earned_at DESC").Find(&achievements).Error; err != nil {
		return nil, err
	}
	return achievements, nil
}

// AwardAchievement inserts the achievement if absent; awarding the same name
// twice returns the existing row.
func (s *ProgressService) AwardAchievement(userID uint, name, description, icon string) (*models.Achievement, error) {
	if userID == 0 || name == "" {
		return nil, ErrInvalidInput
	}

	var existing models.Achievement
	err := s.DB.Where("user_id = ? AND name = ?", userID, name).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	achievement := models.Achievement{
		UserID:      userID,
		Name:        name,
		Description: description,
		Icon:        icon,
		EarnedAt:    time.Now(),
	}
	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&achievement).Error
	if err != nil {
		return nil, err
	}
	if achievement.ID == 0 {
		if err := s.DB.Where("user_id = ? AND name = ?", userID, name).First(&achievement).Error; err != nil {
			return nil, err
		}
	}
	return &achievement, nil
}

// recomputeLabProgress re-derives the lab row from its step rows. The step
// rows are authoritative; totals count recorded steps, not the lab's step
// catalog. CompletedAt is stamped only on the first transition to completed.
func (s *ProgressService) recomputeLabProgress(userID, labID uint) error {
	var steps []models.LabStepProgress
	if err := s.DB.Where("user_id = ? AND lab_id = ?", userID, labID).Find(&steps).Error; err != nil {
		return err
	}

	completed := 0
	for _, step := range steps {
		if step.Completed {
			completed++
		}
	}

	var progress models.LabProgress
	if err := s.DB.Where("user_id = ? AND lab_id = ?", userID, labID).First(&progress).Error; err != nil {
		return err
	}

	progress.TotalSteps = len(steps)
	progress.CompletedSteps = completed
	progress.CompletionPercentage = percentage(completed, len(steps))
	if completed > 0 && completed == len(steps) {
		progress.Status = models.LabStatusCompleted
		if progress.CompletedAt == nil {
			now := time.Now()
			progress.CompletedAt = &now
		}
	} else {
		progress.Status = models.LabStatusInProgress
	}

	return s.DB.Save(&progress).Error
}

// recomputeSummary re-derives the per-user aggregate from all lab rows.
// A user with zero labs gets no summary row. Failures here are logged and
// swallowed so a summary hiccup never fails the primary write.
func (s *ProgressService) recomputeSummary(userID uint) {
	var labs []models.LabProgress
	if err := s.DB.Where("user_id = ?", userID).Find(&labs).Error; err != nil {
		s.Logger.Printf("progress: summary recompute failed for user %d: %v", userID, err)
		return
	}
	if len(labs) == 0 {
		return
	}

	completedLabs := 0
	inProgressLabs := 0
	for _, lab := range labs {
		if lab.IsCompleted() {
			completedLabs++
		} else if lab.CompletionPercentage > 0 {
			inProgressLabs++
		}
	}

	var summary models.UserProgressSummary
	err := s.DB.Where("user_id = ?", userID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		summary = models.UserProgressSummary{UserID: userID}
	} else if err != nil {
		s.Logger.Printf("progress: summary recompute failed for user %d: %v", userID, err)
		return
	}

	summary.TotalLabs = len(labs)
	summary.CompletedLabs = completedLabs
	summary.InProgressLabs = inProgressLabs
	summary.CompletionPercentage = percentage(completedLabs, len(labs))
	summary.LastActivityAt = time.Now()
	// EarnedPoints carries over; zero on first creation

	if err := s.DB.Save(&summary).Error; err != nil {
		s.Logger.Printf("progress: summary recompute failed for user %d: %v", userID, err)
	}
}

func percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
