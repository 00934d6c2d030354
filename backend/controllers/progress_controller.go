package controllers

import (
	"time"

	"cyberverse/backend/config"
	"cyberverse/backend/models"
	"cyberverse/backend/services"
	"cyberverse/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ProgressController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Progress *services.ProgressService
}

func NewProgressController(db *gorm.DB, cfg *config.Config, progress *services.ProgressService) *ProgressController {
	return &ProgressController{DB: db, Cfg: cfg, Progress: progress}
}

// GetProgress godoc
// @Summary Get user progress
// @Description Returns the user's summary plus recent per-lab progress
// @Tags progress
// @Produce json
// @Param days query int false "Number of days to look back" default(30)
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /progress [get]
func (pc *ProgressController) GetProgress(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	days := c.QueryInt("days", 30)
	if days < 1 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	summary, err := pc.Progress.GetUserSummary(userID)
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch progress summary")
	}

	var recent []models.LabProgress
	if err := pc.DB.Where("user_id = ? AND updated_at >= ?", userID, since).
		Order("updated_at DESC").
		Find(&recent).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch lab progress")
	}

	return c.JSON(fiber.Map{
		"summary":     summary,
		"recent_labs": recent,
		"period_days": days,
	})
}

// GetProgressOverview godoc
// @Summary Get progress overview
// @Description Returns totals across labs and phishing training
// @Tags progress
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /progress/overview [get]
func (pc *ProgressController) GetProgressOverview(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	summary, err := pc.Progress.GetUserSummary(userID)
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch progress summary")
	}

	var phishing models.UserPhishingResult
	pc.DB.Where("user_id = ?", userID).First(&phishing)

	overview := fiber.Map{
		"total_labs":            0,
		"completed_labs":        0,
		"in_progress_labs":      0,
		"completion_percentage": 0,
		"earned_points":         0,
		"phishing_seen":         phishing.ScenariosSeen,
		"phishing_accuracy":     phishing.Accuracy,
	}
	if summary != nil {
		overview["total_labs"] = summary.TotalLabs
		overview["completed_labs"] = summary.CompletedLabs
		overview["in_progress_labs"] = summary.InProgressLabs
		overview["completion_percentage"] = summary.CompletionPercentage
		overview["earned_points"] = summary.EarnedPoints
		overview["last_activity_at"] = summary.LastActivityAt
	}

	return c.JSON(overview)
}

// GetAchievements godoc
// @Summary Get user achievements
// @Description Returns achievements earned by the user
// @Tags progress
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /achievements [get]
func (pc *ProgressController) GetAchievements(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	achievements, err := pc.Progress.GetUserAchievements(userID)
	if err != nil {
		return utils.InternalServerError(c, "Failed to fetch achievements")
	}

	return c.JSON(fiber.Map{
		"achievements": achievements,
	})
}
