package handlers

import (
	"city-conquest-system/middleware"
	"city-conquest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSeasonRoutes(app *fiber.App, seasonService *services.SeasonService, rankingService *services.RankingService, eventsService *services.EventsService) {
	// 🔓 Public reads
	app.Get("/seasons", seasonService.GetAllSeasons)
	app.Get("/seasons/active", seasonService.GetActiveSeason)
	app.Get("/events", eventsService.GetGlobalEvents)
	app.Get("/rankings/inhabitants", rankingService.GetTopByInhabitants)
	app.Get("/rankings/cities", rankingService.GetTopByCities)
	app.Get("/rankings/countries", rankingService.GetTopByCountries)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/users/me/rank", rankingService.GetUserRank)

	// 🔒 Admin-only routes
	admin := secured.Group("/admin")
	admin.Post("/seasons/:id/close", seasonService.CloseSeasonHandler)
}
