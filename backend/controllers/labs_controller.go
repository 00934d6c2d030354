package controllers

import (
	"errors"
	"strconv"

	"cyberverse/backend/config"
	"cyberverse/backend/models"
	"cyberverse/backend/services"
	"cyberverse/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LabsController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Progress *services.ProgressService
}

func NewLabsController(db *gorm.DB, cfg *config.Config, progress *services.ProgressService) *LabsController {
	return &LabsController{DB: db, Cfg: cfg, Progress: progress}
}

func (lc *LabsController) GetUserLabs(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, lc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var labs []models.Lab
	lc.DB.Joins("JOIN lab_progresses ON lab_progresses.lab_id = labs.id").
		Where("lab_progresses.user_id = ?", userID).
		Find(&labs)

	result := []fiber.Map{}
	for _, lab := range labs {
		progress, err := lc.Progress.GetLabProgress(userID, lab.ID)
		if err != nil || progress == nil {
			continue
		}

		result = append(result, fiber.Map{
			"id":           lab.ID,
			"title":        lab.Title,
			"category":     lab.Category,
			"difficulty":   lab.Difficulty,
			"status":       progress.Status,
			"progress":     progress.CompletionPercentage,
			"steps":        progress.TotalSteps,
			"completed":    progress.CompletedSteps,
			"started_at":   progress.StartedAt,
			"completed_at": progress.CompletedAt,
		})
	}

	return c.JSON(result)
}

func (lc *LabsController) GetAvailableLabs(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, lc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	category := c.Query("category")
	difficulty := c.Query("difficulty")

	query := lc.DB.Model(&models.Lab{}).Where("access_level = 'public'")

	if category != "" {
		query = query.Where("category = ?", category)
	}
	if difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}

	var labs []models.Lab
	query.Find(&labs)

	result := []fiber.Map{}
	for _, lab := range labs {
		var stepCount int64
		lc.DB.Model(&models.LabStep{}).Where("lab_id = ?", lab.ID).Count(&stepCount)

		entry := fiber.Map{
			"id":          lab.ID,
			"title":       lab.Title,
			"description": lab.ShortDesc,
			"category":    lab.Category,
			"difficulty":  lab.Difficulty,
			"points":      lab.Points,
			"icon_url":    lab.IconURL,
			"steps":       stepCount,
			"progress":    0,
		}

		progress, err := lc.Progress.GetLabProgress(userID, lab.ID)
		if err == nil && progress != nil {
			entry["progress"] = progress.CompletionPercentage
			entry["status"] = progress.Status
		}

		result = append(result, entry)
	}

	return c.JSON(result)
}

func (lc *LabsController) GetLabDetails(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, lc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	labID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lab ID",
		})
	}

	var lab models.Lab
	if err := lc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_order ASC")
	}).First(&lab, labID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lab not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	progress, err := lc.Progress.GetLabProgress(userID, uint(labID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var stepProgress []models.LabStepProgress
	lc.DB.Where("user_id = ? AND lab_id = ?", userID, labID).Find(&stepProgress)

	return c.JSON(fiber.Map{
		"lab": fiber.Map{
			"id":          lab.ID,
			"title":       lab.Title,
			"description": lab.Description,
			"short_desc":  lab.ShortDesc,
			"category":    lab.Category,
			"difficulty":  lab.Difficulty,
			"points":      lab.Points,
			"icon_url":    lab.IconURL,
			"author":      lab.AuthorID,
			"steps":       lab.Steps,
		},
		"progress":      progress,
		"step_progress": stepProgress,
	})
}

// StartLab creates the caller's progress row for the lab; calling it again
// returns the existing row untouched.
func (lc *LabsController) StartLab(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, lc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	labID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lab ID",
		})
	}

	var lab models.Lab
	if err := lc.DB.First(&lab, labID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lab not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	progress, err := lc.Progress.StartLab(userID, uint(labID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not start lab",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Lab started",
		"progress": progress,
	})
}

// UpdateStepProgress records a step completion. The flag check itself runs in
// the client against the step's expected flag; the server only persists the
// reported state.
func (lc *LabsController) UpdateStepProgress(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, lc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	labID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lab ID",
		})
	}

	stepID, err := strconv.Atoi(c.Params("stepId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid step ID",
		})
	}

	var input struct {
		Completed bool `json:"completed"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var step models.LabStep
	if err := lc.DB.Where("id = ? AND lab_id = ?", stepID, labID).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Step not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	stepProgress, err := lc.Progress.UpdateStepProgress(userID, uint(labID), step.ID, step.Title, input.Completed)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid step progress",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save progress",
		})
	}

	labProgress, err := lc.Progress.GetLabProgress(userID, uint(labID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	return c.JSON(fiber.Map{
		"message":       "Progress updated",
		"step_progress": stepProgress,
		"progress":      labProgress,
	})
}

// CompleteLab finishes the whole lab in one call, independent of per-step
// submissions.
func (lc *LabsController) CompleteLab(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, lc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	labID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lab ID",
		})
	}

	progress, err := lc.Progress.CompleteLab(userID, uint(labID))
	if err != nil {
		if errors.Is(err, services.ErrNoSteps) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Lab has no recorded steps",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not complete lab",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Lab completed",
		"progress": progress,
	})
}

func (lc *LabsController) GetLabAnalytics(c *fiber.Ctx) error {
	labID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lab ID",
		})
	}

	var progresses []models.LabProgress
	if err := lc.DB.Where("lab_id = ?", labID).Find(&progresses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	users := []fiber.Map{}
	for _, progress := range progresses {
		var user models.User
		if err := lc.DB.First(&user, progress.UserID).Error; err != nil {
			continue
		}

		users = append(users, fiber.Map{
			"user_id":         user.ID,
			"username":        user.Username,
			"status":          progress.Status,
			"completed_steps": progress.CompletedSteps,
			"total_steps":     progress.TotalSteps,
			"completion_rate": progress.CompletionPercentage,
		})
	}

	return c.JSON(fiber.Map{
		"analytics": users,
	})
}

func (lc *LabsController) CreateLab(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, lc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var lab models.Lab
	if err := c.BodyParser(&lab); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	lab.AuthorID = userID

	if err := lc.DB.Create(&lab).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create lab",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Lab created",
		"lab":     lab,
	})
}

func (lc *LabsController) AddStep(c *fiber.Ctx) error {
	labID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lab ID",
		})
	}

	var lab models.Lab
	if err := lc.DB.First(&lab, labID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lab not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var step models.LabStep
	if err := c.BodyParser(&step); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	step.LabID = lab.ID

	if err := lc.DB.Create(&step).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create step",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Step added",
		"step":    step,
	})
}

func (lc *LabsController) UpdateStep(c *fiber.Ctx) error {
	labID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid lab ID",
		})
	}

	stepID, err := strconv.Atoi(c.Params("stepId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid step ID",
		})
	}

	var step models.LabStep
	if err := lc.DB.Where("id = ? AND lab_id = ?", stepID, labID).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Step not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var input struct {
		Title         string `json:"title"`
		Instructions  string `json:"instructions"`
		Hint          string `json:"hint"`
		Flag          string `json:"flag"`
		SequenceOrder int    `json:"sequence_order"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if input.Title != "" {
		step.Title = input.Title
	}
	if input.Instructions != "" {
		step.Instructions = input.Instructions
	}
	if input.Hint != "" {
		step.Hint = input.Hint
	}
	if input.Flag != "" {
		step.Flag = input.Flag
	}
	if input.SequenceOrder > 0 {
		step.SequenceOrder = input.SequenceOrder
	}

	if err := lc.DB.Save(&step).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update step",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Step updated",
		"step":    step,
	})
}
