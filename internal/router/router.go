package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/academy-api/internal/config"
	"github.com/noah-isme/academy-api/internal/handler"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/observability"
)

// Dependencies groups router dependencies for registration. Nil handlers are
// skipped so tests can mount only what they exercise.
type Dependencies struct {
	ProgressHandler     *handler.ProgressHandler
	HomeworkHandler     *handler.HomeworkHandler
	SubmissionHandler   *handler.SubmissionHandler
	DeadlineHandler     *handler.DeadlineHandler
	NotificationHandler *handler.NotificationHandler
	DashboardHandler    *handler.DashboardHandler
	UserHandler         *handler.UserHandler
	CourseHandler       *handler.CourseHandler
	GroupHandler        *handler.GroupHandler
	ActivityHandler     *handler.ActivityHandler
	SeedHandler         *handler.SeedHandler
	HealthProbes        map[string]handler.Pinger
	JWTMiddleware       fiber.Handler
	// Users, when set, rechecks every token against the stored account.
	Users               middleware.UserLookup
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/tools"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	guards := []fiber.Handler{jwtMiddleware}
	if deps.Users != nil {
		guards = append(guards, middleware.ActiveUser(deps.Users))
	}
	guards = append(guards, middleware.Authenticated())
	protected := api.Group("", guards...)

	if deps.DeadlineHandler != nil {
		deps.DeadlineHandler.Register(protected.Group("/deadlines", middleware.RequireRole(models.RoleAdmin)))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(protected.Group("/activity", middleware.RequireRole(models.RoleAdmin, models.RoleModerator)))
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(protected)
	}
	if deps.HomeworkHandler != nil {
		deps.HomeworkHandler.Register(protected)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(protected)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(protected)
	}
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(protected)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.Register(protected)
	}
	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(protected)
	}
	if deps.GroupHandler != nil {
		deps.GroupHandler.Register(protected)
	}
}
