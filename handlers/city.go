package handlers

import (
	"city-conquest-system/middleware"
	"city-conquest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCityRoutes(app *fiber.App, cityService *services.CityService) {
	// 🔓 Public map data
	app.Get("/cities", cityService.GetCities)
	app.Get("/cities/available", cityService.GetAvailableCities)
	app.Get("/cities/:id", cityService.GetCityByID)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/users/me/cities", cityService.GetUserCities)
	secured.Post("/cities/:id/purchase", cityService.PurchaseCityHandler)
}
