package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"project/backend/config"
	"project/backend/controllers"
	"project/backend/importer"
	"project/backend/middleware"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	source := importer.NewHTTPSource(cfg.ModulestoreURL)
	store := importer.NewHTTPStore(cfg.BlockstoreURL)
	SetupRoutesWithImporter(app, db, cfg, source, store)
}

// SetupRoutesWithImporter registers every route, taking the importer
// backends explicitly so tests can substitute fakes.
func SetupRoutesWithImporter(app *fiber.App, db *gorm.DB, cfg *config.Config, source importer.BlockSource, store importer.BundleStore) {
	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(db, cfg)

	// User routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// Goal routes. Unsubscribe is deliberately unauthenticated: the token in
	// the link is the credential.
	goalsController := controllers.NewGoalsController(db, cfg)
	app.Post("/api/goals", authMiddleware, goalsController.SetGoal)
	app.Get("/api/goals/:courseID", authMiddleware, goalsController.GetGoal)
	app.Delete("/api/goals/:courseID", authMiddleware, goalsController.DeleteGoal)
	app.Post("/api/goals/unsubscribe/:token", goalsController.Unsubscribe)

	// Library routes
	librariesController := controllers.NewLibrariesController(db, cfg, source, store)

	libraries := app.Group("/api/libraries", authMiddleware)
	libraries.Get("/", librariesController.GetLibraries)
	libraries.Get("/:key", librariesController.GetLibrary)
	libraries.Get("/:key/permissions", librariesController.GetPermissions)
	libraries.Get("/:key/import-tasks", librariesController.GetImportTasks)
	libraries.Get("/:key/import-tasks/:taskID", librariesController.GetImportTask)

	// Admin routes for libraries
	adminLibraries := app.Group("/api/admin/libraries", authMiddleware, adminMiddleware)
	adminLibraries.Post("/", librariesController.CreateLibrary)
	adminLibraries.Put("/:key", librariesController.UpdateLibrary)
	adminLibraries.Delete("/:key", librariesController.DeleteLibrary)
	adminLibraries.Put("/:key/permissions", librariesController.GrantPermission)
	adminLibraries.Delete("/:key/permissions/:permID", librariesController.RevokePermission)
	adminLibraries.Post("/:key/import-tasks", librariesController.CreateImportTask)
	adminLibraries.Post("/:key/import-tasks/:taskID/run", librariesController.RunImportTask)

	// Admin routes for organizations and groups
	orgsController := controllers.NewOrgsController(db, cfg)
	app.Get("/api/orgs", authMiddleware, orgsController.GetOrgs)
	adminOrgs := app.Group("/api/admin", authMiddleware, adminMiddleware)
	adminOrgs.Post("/orgs", orgsController.CreateOrg)
	adminOrgs.Post("/groups", orgsController.CreateGroup)
	adminOrgs.Post("/groups/:id/members", orgsController.AddGroupMember)
}
