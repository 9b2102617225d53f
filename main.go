package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/koratarata807/misenabiai/config"
	"github.com/koratarata807/misenabiai/handlers"
	"github.com/koratarata807/misenabiai/metrics"
	"github.com/koratarata807/misenabiai/models"
	"github.com/koratarata807/misenabiai/services"
	"github.com/koratarata807/misenabiai/utils"
	"github.com/koratarata807/misenabiai/workers"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New(fiber.Config{})

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, x-job-key",
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.CouponEvent{},
		&models.CouponSendLog{},
		&models.ShopSettings{},
		&models.UserSegment{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	storage, err := utils.NewStorage(ctx)
	if err != nil {
		log.Fatal("failed to initialize storage client:", err)
	}

	shopsPath := os.Getenv("SHOPS_YAML")
	if shopsPath == "" {
		shopsPath = "config/shops.yaml"
	}
	shops, err := config.LoadShops(shopsPath)
	if err != nil {
		log.Fatal("failed to load shops config:", err)
	}
	log.Printf("✅ Loaded %d shops from %s", len(shops), shopsPath)

	trackingBase := os.Getenv("TRACKING_BASE_URL")
	if trackingBase == "" {
		log.Fatal("TRACKING_BASE_URL environment variable not set")
	}
	dryRun := strings.EqualFold(os.Getenv("DRY_RUN"), "1") || strings.EqualFold(os.Getenv("DRY_RUN"), "true")

	logPool := workers.NewLogWriterPool(ctx, storage)
	eventLogger := services.NewEventLogger(logPool)
	lineClient := services.NewLineClient()

	trackingService := services.NewTrackingService(db, eventLogger)
	registrationService := services.NewRegistrationService(db, shops)
	segmentationService := services.NewSegmentationService(db)
	dashboardService := services.NewDashboardService(db)
	settingsService := services.NewSettingsService(db)
	dispatchService := services.NewDispatchService(db, shops, lineClient, trackingBase, dryRun)

	dispatchService.StartDailyScheduler()

	handlers.SetupTrackingRoutes(app, trackingService)
	handlers.SetupLiffRoutes(app, registrationService)
	handlers.SetupDashboardRoutes(app, dashboardService, segmentationService, settingsService)
	handlers.SetupJobRoutes(app, dispatchService, lineClient)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9108"
	}
	go metrics.Serve(metricsAddr)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Metrics on %s/metrics", metricsAddr)
	log.Println("✅ Daily coupon scheduler armed (10:00 JST)")
	if dryRun {
		log.Println("⚠️  DRY_RUN enabled — dispatch job will not push messages")
	}

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := dispatchService.StopScheduler(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
