package controllers

import (
	"time"

	"cyberverse/backend/config"
	"cyberverse/backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SystemController serves the diagnostic endpoints used during development
// to check store connectivity.
type SystemController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewSystemController(db *gorm.DB, cfg *config.Config) *SystemController {
	return &SystemController{DB: db, Cfg: cfg}
}

func (sc *SystemController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// DBStatus pings the store and reports row counts for the core tables.
func (sc *SystemController) DBStatus(c *fiber.Ctx) error {
	report := fiber.Map{
		"connected": false,
		"time":      time.Now().UTC(),
	}

	sqlDB, err := sc.DB.DB()
	if err != nil {
		report["error"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(report)
	}
	if err := sqlDB.Ping(); err != nil {
		report["error"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(report)
	}
	report["connected"] = true

	counts := fiber.Map{}
	tables := map[string]interface{}{
		"users":                 &models.User{},
		"labs":                  &models.Lab{},
		"lab_progress":          &models.LabProgress{},
		"lab_step_progress":     &models.LabStepProgress{},
		"user_progress_summary": &models.UserProgressSummary{},
		"resources":             &models.Resource{},
	}
	for name, model := range tables {
		var count int64
		if err := sc.DB.Model(model).Count(&count).Error; err != nil {
			counts[name] = "error: " + err.Error()
			continue
		}
		counts[name] = count
	}
	report["tables"] = counts

	return c.JSON(report)
}
