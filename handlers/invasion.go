package handlers

import (
	"city-conquest-system/middleware"
	"city-conquest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupInvasionRoutes(app *fiber.App, invasionService *services.InvasionService, resolver *services.InvasionResolver) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/invasions", invasionService.StartInvasionHandler)
	secured.Get("/invasions/active", invasionService.ListActiveInvasionsHandler)
	secured.Post("/invasions/:id/cancel", invasionService.CancelInvasionHandler)

	// 🔒 Operational routes — resolution normally happens in the background
	admin := secured.Group("/admin")
	admin.Post("/invasions/:id/resolve", invasionService.ResolveInvasionHandler)
	admin.Post("/invasions/force-resolve", func(c *fiber.Ctx) error {
		resolved, err := resolver.ForceResolveAll()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"resolved": resolved})
	})
}
