package main

import (
	"github.com/dukex/tripwire/pkg/geofence"
	"github.com/dukex/tripwire/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewAPI builds the HTTP app. adapter may be nil when geofencing is off.
func NewAPI(e *engine, adapter *geofence.Adapter) *fiber.App {
	handlers := web.NewAPIHandlers(
		e.repository,
		e.manager,
		adapter,
		e.metrics,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Tripwire")
	})

	handlers.Register(app)

	return app
}
