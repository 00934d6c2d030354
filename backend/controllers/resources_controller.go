package controllers

import (
	"errors"
	"strconv"
	"strings"

	"cyberverse/backend/config"
	"cyberverse/backend/models"
	"cyberverse/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResourcesController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewResourcesController(db *gorm.DB, cfg *config.Config) *ResourcesController {
	return &ResourcesController{DB: db, Cfg: cfg}
}

// GetResources returns the board, optionally filtered by tag and sorted by
// newest, top (upvotes) or comments.
func (rc *ResourcesController) GetResources(c *fiber.Ctx) error {
	_, err := utils.ExtractUserIDFromToken(c, rc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	tag := c.Query("tag")
	sort := c.Query("sort", "newest") // newest, top, comments

	query := rc.DB.Model(&models.Resource{})

	if tag != "" {
		query = query.Where("tags LIKE ?", "%"+tag+"%")
	}

	switch sort {
	case "top":
		query = query.Order("upvotes DESC")
	case "comments":
		query = query.Order("(SELECT COUNT(*) FROM resource_comments WHERE resource_comments.resource_id = resources.id) DESC")
	default: // newest
		query = query.Order("created_at DESC")
	}

	var resources []models.Resource
	if err := query.Find(&resources).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch resources")
	}

	result := []fiber.Map{}
	for _, resource := range resources {
		var commentCount int64
		rc.DB.Model(&models.ResourceComment{}).Where("resource_id = ?", resource.ID).Count(&commentCount)

		result = append(result, fiber.Map{
			"id":          resource.ID,
			"title":       resource.Title,
			"url":         resource.URL,
			"description": resource.Description,
			"tags":        splitTags(resource.Tags),
			"author":      resource.AuthorName,
			"upvotes":     resource.Upvotes,
			"comments":    commentCount,
			"created_at":  resource.CreatedAt,
		})
	}

	return c.JSON(result)
}

func (rc *ResourcesController) CreateResource(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, rc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var input struct {
		Title       string   `json:"title"`
		URL         string   `json:"url"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if input.Title == "" || input.URL == "" {
		return utils.ValidationError(c, map[string]string{
			"title": "required",
			"url":   "required",
		})
	}

	var user models.User
	if err := rc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	resource := models.Resource{
		Title:       input.Title,
		URL:         input.URL,
		Description: input.Description,
		Tags:        strings.Join(input.Tags, ","),
		AuthorID:    user.ID,
		AuthorName:  user.Username,
	}

	if err := rc.DB.Create(&resource).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create resource",
		})
	}

	return utils.Created(c, resource)
}

// UpvoteResource records one upvote per user per resource; repeated votes
// are no-ops.
func (rc *ResourcesController) UpvoteResource(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, rc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	resourceID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid resource ID",
		})
	}

	var resource models.Resource
	if err := rc.DB.First(&resource, resourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Resource not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	// the unique index on (resource_id, user_id) arbitrates concurrent votes;
	// whoever loses the insert just sees the vote as already recorded
	vote := models.ResourceVote{ResourceID: uint(resourceID), UserID: userID}
	res := rc.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&vote)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save vote",
		})
	}
	if res.RowsAffected == 0 {
		return c.JSON(fiber.Map{
			"message": "Already upvoted",
			"upvotes": resource.Upvotes,
		})
	}

	if err := rc.DB.Model(&resource).UpdateColumn("upvotes", gorm.Expr("upvotes + ?", 1)).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update resource",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Upvoted",
		"upvotes": resource.Upvotes + 1,
	})
}

func (rc *ResourcesController) GetComments(c *fiber.Ctx) error {
	_, err := utils.ExtractUserIDFromToken(c, rc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	resourceID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid resource ID",
		})
	}

	var comments []models.ResourceComment
	if err := rc.DB.Where("resource_id = ?", resourceID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return utils.InternalServerError(c, "Failed to fetch comments")
	}

	return c.JSON(fiber.Map{
		"comments": comments,
	})
}

func (rc *ResourcesController) AddComment(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, rc.Cfg)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	resourceID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid resource ID",
		})
	}

	var input struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON",
		})
	}

	if input.Text == "" {
		return utils.BadRequest(c, "Comment text is required")
	}

	var resource models.Resource
	if err := rc.DB.First(&resource, resourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Resource not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not query database",
		})
	}

	var user models.User
	if err := rc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	comment := models.ResourceComment{
		ResourceID: resource.ID,
		UserID:     user.ID,
		UserName:   user.Username,
		Text:       input.Text,
	}

	if err := rc.DB.Create(&comment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save comment",
		})
	}

	return utils.Created(c, comment)
}

func splitTags(tags string) []string {
	if tags == "" {
		return []string{}
	}
	return strings.Split(tags, ",")
}
