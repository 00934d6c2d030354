package routes

import (
	"cyberverse/backend/config"
	"cyberverse/backend/controllers"
	"cyberverse/backend/middleware"
	"cyberverse/backend/services"
	"cyberverse/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	progressService := services.NewProgressService(db, utils.InitLogger())

	// Auth routes
	authController := controllers.NewAuthController(db, cfg, progressService)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)
	app.Post("/api/auth/logout", authController.Logout)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(db, cfg)

	// Account and profile routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/account", authMiddleware, userController.GetAccount)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// Progress routes
	progressController := controllers.NewProgressController(db, cfg, progressService)
	app.Get("/api/progress", authMiddleware, progressController.GetProgress)
	app.Get("/api/progress/overview", authMiddleware, progressController.GetProgressOverview)
	app.Get("/api/achievements", authMiddleware, progressController.GetAchievements)

	// Lab routes
	labsController := controllers.NewLabsController(db, cfg, progressService)
	labs := app.Group("/api/labs", authMiddleware)
	labs.Get("/", labsController.GetUserLabs)
	labs.Get("/available", labsController.GetAvailableLabs)
	labs.Get("/:id", labsController.GetLabDetails)
	labs.Post("/:id/start", labsController.StartLab)
	labs.Post("/:id/steps/:stepId/progress", labsController.UpdateStepProgress)
	labs.Post("/:id/complete", labsController.CompleteLab)
	labs.Get("/:id/analytics", adminMiddleware, labsController.GetLabAnalytics)

	// Phishing simulator routes
	phishingController := controllers.NewPhishingController(db, cfg)
	phishing := app.Group("/api/phishing", authMiddleware)
	phishing.Get("/scenarios", phishingController.GetScenarios)
	phishing.Post("/scenarios/:id/attempt", phishingController.SubmitAttempt)
	phishing.Get("/stats", phishingController.GetStats)

	// Resource board routes
	resourcesController := controllers.NewResourcesController(db, cfg)
	resources := app.Group("/api/resources", authMiddleware)
	resources.Get("/", resourcesController.GetResources)
	resources.Post("/", resourcesController.CreateResource)
	resources.Post("/:id/upvote", resourcesController.UpvoteResource)
	resources.Get("/:id/comments", resourcesController.GetComments)
	resources.Post("/:id/comments", resourcesController.AddComment)

	// System diagnostics
	systemController := controllers.NewSystemController(db, cfg)
	app.Get("/api/system/health", systemController.Health)
	app.Get("/api/system/db", systemController.DBStatus)

	// Admin routes for labs
	adminLabs := app.Group("/api/admin/labs", authMiddleware, adminMiddleware)
	adminLabs.Post("/", labsController.CreateLab)
	adminLabs.Post("/:id/steps", labsController.AddStep)
	adminLabs.Put("/:id/steps/:stepId", labsController.UpdateStep)

	// Admin routes for phishing scenarios
	adminPhishing := app.Group("/api/admin/phishing", authMiddleware, adminMiddleware)
	adminPhishing.Post("/scenarios", phishingController.CreateScenario)
}
