package controllers

import (
	"errors"
	"math"
	"strconv"
	"time"

	"cyberverse/backend/config"
	"cyberverse/backend/models"
	"cyberverse/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PhishingController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewPhishingController(db *gorm.DB, cfg *config.Config) *PhishingController {
	return &PhishingController{DB: db, Cfg: cfg}
}

// GetScenarios returns the scenario list with verdicts and explanations
// withheld; those are only revealed after an attempt is graded.
func (pc *PhishingController) GetScenarios(c *fiber.Ctx) error {
	_, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	difficulty := c.Query("difficulty")

	query := pc.DB.Model(&models.PhishingScenario{})
	if difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}

	var scenarios []models.PhishingScenario
	query.Find(&scenarios)

	result := []fiber.Map{}
	for _, scenario := range scenarios {
		result = append(result, fiber.Map{
			"id":         scenario.ID,
			"subject":    scenario.Subject,
			"sender":     scenario.Sender,
			"body":       scenario.Body,
			"difficulty": scenario.Difficulty,
		})
	}

	return c.JSON(result)
}

// SubmitAttempt grades a phishing verdict server-side and updates the
// caller's running result row.
func (pc *PhishingController) SubmitAttempt(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	scenarioID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scenario ID",
		})
	}

	var input struct {
		IsPhish bool `json:"is_phish"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	var scenario models.PhishingScenario
	if err := pc.DB.First(&scenario, scenarioID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Scenario not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	correct := input.IsPhish == scenario.IsPhish

	attempt := models.PhishingAttempt{
		AttemptID:  uuid.NewString(),
		UserID:     userID,
		ScenarioID: scenario.ID,
		SaidPhish:  input.IsPhish,
		Correct:    correct,
	}
	if err := pc.DB.Create(&attempt).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save attempt",
		})
	}

	var result models.UserPhishingResult
	if err := pc.DB.Where("user_id = ?", userID).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = models.UserPhishingResult{UserID: userID}
		} else {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not query database",
			})
		}
	}

	result.ScenariosSeen++
	if correct {
		result.CorrectCalls++
	}
	result.Accuracy = math.Round(float64(result.CorrectCalls)/float64(result.ScenariosSeen)*100) / 100
	result.LastAttempt = time.Now()

	if err := pc.DB.Save(&result).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save result",
		})
	}

	return c.JSON(fiber.Map{
		"attempt_id":  attempt.AttemptID,
		"correct":     correct,
		"is_phish":    scenario.IsPhish,
		"explanation": scenario.Explanation,
	})
}

func (pc *PhishingController) GetStats(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var result models.UserPhishingResult
	pc.DB.Where("user_id = ?", userID).First(&result)

	var total int64
	pc.DB.Model(&models.PhishingScenario{}).Count(&total)

	return c.JSON(fiber.Map{
		"scenarios_total": total,
		"scenarios_seen":  result.ScenariosSeen,
		"correct_calls":   result.CorrectCalls,
		"accuracy":        result.Accuracy,
		"last_attempt":    result.LastAttempt,
	})
}

func (pc *PhishingController) CreateScenario(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var scenario models.PhishingScenario
	if err := c.BodyParser(&scenario); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	scenario.AuthorID = userID

	if err := pc.DB.Create(&scenario).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create scenario",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Scenario created",
		"scenario": scenario,
	})
}
