package controllers

import (
	"cyberverse/backend/config"
	"cyberverse/backend/models"
	"cyberverse/backend/services"
	"cyberverse/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewUserController(db *gorm.DB, cfg *config.Config) *UserController {
	return &UserController{DB: db, Cfg: cfg}
}

// GetAccount godoc
// @Summary Get current account
// @Description Returns the identity of the current session
// @Tags account
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /account [get]
func (uc *UserController) GetAccount(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, uc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	// The profile row may be missing if signup was interrupted
	profile, err := services.EnsureProfile(uc.DB, user.ID, user.Username)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	return c.JSON(fiber.Map{
		"id":       user.ID,
		"name":     profile.DisplayName,
		"email":    user.Email,
		"avatar":   profile.AvatarURL,
		"provider": user.Provider,
	})
}

// GetProfile godoc
// @Summary Get user profile
// @Description Returns authenticated user's profile with progress data
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/profile [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, uc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	profile, err := services.EnsureProfile(uc.DB, user.ID, user.Username)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	var summary models.UserProgressSummary
	uc.DB.Where("user_id = ?", userID).First(&summary)

	// Most recently touched labs still in progress
	var activeLabs []models.LabProgress
	uc.DB.Where("user_id = ? AND status = ?", userID, models.LabStatusInProgress).
		Order("updated_at DESC").
		Limit(3).
		Find(&activeLabs)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"role":         user.Role,
		"display_name": profile.DisplayName,
		"avatar":       profile.AvatarURL,
		"bio":          profile.Bio,
		"created_at":   user.CreatedAt,
		"summary":      summary,
		"active_labs":  activeLabs,
	})
}

// UpdateProfile godoc
// @Summary Update user profile
// @Description Updates authenticated user's account and profile data
// @Tags users
// @Accept json
// @Produce json
// @Param input body map[string]interface{} true "Profile update data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/profile [put]
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, uc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
		Bio         string `json:"bio"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	if input.Username != "" && input.Username != user.Username {
		var existingUser models.User
		if err := uc.DB.Where("username = ?", input.Username).First(&existingUser).Error; err == nil {
			if existingUser.ID != user.ID {
				return utils.BadRequest(c, "Username already taken")
			}
		}
		user.Username = input.Username
	}

	if input.Email != "" && input.Email != user.Email {
		var existingUser models.User
		if err := uc.DB.Where("email = ?", input.Email).First(&existingUser).Error; err == nil {
			if existingUser.ID != user.ID {
				return utils.BadRequest(c, "Email already taken")
			}
		}
		user.Email = input.Email
	}

	if input.NewPassword != "" {
		if input.OldPassword == "" {
			return utils.BadRequest(c, "Old password is required to set new password")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
			return utils.Unauthorized(c, "Invalid old password")
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return utils.InternalServerError(c, "Could not hash password")
		}
		user.PasswordHash = string(hashedPassword)
	}

	if err := uc.DB.Save(&user).Error; err != nil {
		return utils.InternalServerError(c, "Could not update user")
	}

	profile, err := services.EnsureProfile(uc.DB, user.ID, user.Username)
	if err != nil {
		return utils.InternalServerError(c, "Could not load profile")
	}

	if input.DisplayName != "" {
		profile.DisplayName = input.DisplayName
	}
	if input.AvatarURL != "" {
		profile.AvatarURL = input.AvatarURL
	}
	if input.Bio != "" {
		profile.Bio = input.Bio
	}

	if err := uc.DB.Save(profile).Error; err != nil {
		return utils.InternalServerError(c, "Could not update profile")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "Profile updated successfully",
	})
}
