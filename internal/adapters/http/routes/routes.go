package routes

import (
	"edhub/internal/adapters/http/handlers"
	"edhub/internal/adapters/http/middleware"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/config"
	"edhub/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application and returns the
// publication service so the caller can run the background sweep.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.PublicationService {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	courseRepo := repositories.NewCourseRepository(db)
	chapterRepo := repositories.NewChapterRepository(db)
	packageRepo := repositories.NewPackageRepository(db)
	enrollmentRepo := repositories.NewEnrollmentRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	watchRepo := repositories.NewWatchHistoryRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo, enrollmentRepo)
	catalogService := services.NewCatalogService(courseRepo, chapterRepo)
	packageService := services.NewPackageService(packageRepo, courseRepo)
	publicationService := services.NewPublicationService(courseRepo)
	enrollmentService := services.NewEnrollmentService(enrollmentRepo, userRepo, courseRepo, packageRepo)
	watchService := services.NewWatchService(watchRepo, chapterRepo, enrollmentService)
	dashboardService := services.NewDashboardService(db)
	notificationService := services.NewNotificationService(cfg.Email)

	gateway := services.NewFawaterakClient(cfg.Fawaterak)
	paymentService := services.NewPaymentService(
		paymentRepo,
		userRepo,
		courseRepo,
		packageRepo,
		enrollmentService,
		gateway,
		notificationService,
		cfg.Frontend,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, userService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	courseHandler := handlers.NewCourseHandler(catalogService, enrollmentService, publicationService)
	packageHandler := handlers.NewPackageHandler(packageService)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	watchHandler := handlers.NewWatchHandler(watchService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	auth := middleware.AuthMiddleware(authService)

	// Auth routes
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/signup", middleware.AuthRateLimiter(), authHandler.SignUp)
	authRoutes.Post("/signin", middleware.AuthRateLimiter(), authHandler.SignIn)
	authRoutes.Post("/signout", auth, authHandler.SignOut)
	authRoutes.Get("/me", auth, authHandler.Me)

	// Public catalog routes (optional auth gates lesson URLs)
	courseRoutes := apiV1.Group("/courses")
	courseRoutes.Get("/", middleware.OptionalAuth(authService), courseHandler.List)
	courseRoutes.Get("/:id", middleware.OptionalAuth(authService), courseHandler.Get)

	packageRoutes := apiV1.Group("/packages")
	packageRoutes.Get("/", packageHandler.List)
	packageRoutes.Get("/:id", packageHandler.Get)

	// Profile routes
	userRoutes := apiV1.Group("/users")
	userRoutes.Patch("/me", auth, userHandler.UpdateProfile)

	// Enrollment routes (authenticated students)
	enrollmentRoutes := apiV1.Group("/enrollments")
	enrollmentRoutes.Use(auth)
	enrollmentRoutes.Post("/course", enrollmentHandler.EnrollCourse)
	enrollmentRoutes.Post("/package", enrollmentHandler.EnrollPackage)
	enrollmentRoutes.Get("/my-courses", enrollmentHandler.MyCourses)
	enrollmentRoutes.Get("/access/:id", enrollmentHandler.CheckAccess)

	// Payment routes
	paymentRoutes := apiV1.Group("/payments")
	paymentRoutes.Post("/webhook/fawaterak", paymentHandler.Webhook) // gateway calls this, no auth
	paymentRoutes.Post("/create-invoice", auth, middleware.PaymentRateLimiter(), paymentHandler.CreateInvoice)
	paymentRoutes.Get("/status/:merchantRefNum", auth, paymentHandler.CheckStatus)
	paymentRoutes.Get("/my-payments", auth, paymentHandler.MyPayments)

	// Watch routes
	watchRoutes := apiV1.Group("/watch")
	watchRoutes.Use(auth)
	watchRoutes.Get("/history", watchHandler.History)
	watchRoutes.Post("/:id", watchHandler.Record)

	// Student dashboard
	apiV1.Get("/dashboard", auth, dashboardHandler.Student)

	// Admin routes
	adminRoutes := apiV1.Group("/admin")
	adminRoutes.Use(auth)
	adminRoutes.Use(middleware.AdminOnly())

	adminRoutes.Get("/dashboard", dashboardHandler.Admin)

	adminRoutes.Get("/users", userHandler.List)
	adminRoutes.Get("/users/:id", userHandler.Get)
	adminRoutes.Post("/users/:id/ban", userHandler.Ban)
	adminRoutes.Post("/users/:id/unban", userHandler.Unban)
	adminRoutes.Delete("/users/:id", userHandler.Delete)

	adminRoutes.Get("/courses", courseHandler.ListAdmin)
	adminRoutes.Post("/courses", courseHandler.Create)
	adminRoutes.Put("/courses/:id", courseHandler.Update)
	adminRoutes.Delete("/courses/:id", courseHandler.Delete)
	adminRoutes.Post("/courses/:id/chapters", courseHandler.AddChapter)
	adminRoutes.Put("/chapters/:id", courseHandler.UpdateChapter)
	adminRoutes.Delete("/chapters/:id", courseHandler.DeleteChapter)
	adminRoutes.Post("/chapters/:id/lessons", courseHandler.AddLesson)
	adminRoutes.Put("/lessons/:id", courseHandler.UpdateLesson)
	adminRoutes.Delete("/lessons/:id", courseHandler.DeleteLesson)

	adminRoutes.Get("/packages", packageHandler.ListAdmin)
	adminRoutes.Post("/packages", packageHandler.Create)
	adminRoutes.Put("/packages/:id", packageHandler.Update)
	adminRoutes.Delete("/packages/:id", packageHandler.Delete)

	adminRoutes.Get("/enrollments", enrollmentHandler.ListAdmin)
	adminRoutes.Patch("/enrollments/:id/status", enrollmentHandler.UpdateStatus)

	adminRoutes.Get("/payments", paymentHandler.ListAdmin)
	adminRoutes.Post("/payments/:id/refund", paymentHandler.Refund)

	return publicationService
}
