package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"city-conquest-system/handlers"
	"city-conquest-system/middleware"
	"city-conquest-system/models"
	"city-conquest-system/services"
	"city-conquest-system/utils"
	"city-conquest-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Country{},
		&models.City{},
		&models.Season{},
		&models.Profile{},
		&models.CityOwnership{},
		&models.Invasion{},
		&models.GlobalEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := services.SeedReferenceData(db); err != nil {
		log.Fatal("failed to seed reference data:", err)
	}

	cityService := services.NewCityService(db)
	invasionService := services.NewInvasionService(db)
	seasonService := services.NewSeasonService(db)
	rankingService := services.NewRankingService(db)
	eventsService := services.NewEventsService(db)

	resolver := services.NewInvasionResolver(invasionService)
	if err := resolver.Start(); err != nil {
		log.Fatal("failed to start invasion resolver:", err)
	}
	defer resolver.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.ReconcileInvasions(ctx, invasionService, 30*time.Second)

	handlers.SetupCityRoutes(app, cityService)
	handlers.SetupInvasionRoutes(app, invasionService, resolver)
	handlers.SetupSeasonRoutes(app, seasonService, rankingService, eventsService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Invasion resolver running")
	log.Println("✅ Invasion reconciler running (every 30s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
