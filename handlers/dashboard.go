// handlers/dashboard.go
package handlers

import (
	"github.com/koratarata807/misenabiai/services"

	"github.com/gofiber/fiber/v2"
)

func SetupDashboardRoutes(app *fiber.App, dashboardService *services.DashboardService, segmentationService *services.SegmentationService, settingsService *services.SettingsService) {
	app.Get("/dashboard/summary", dashboardService.GetSummary)
	app.Get("/dashboard/segments", segmentationService.GetSegments)

	app.Get("/settings", settingsService.GetSettings)
	app.Put("/settings", settingsService.PutSettings)
}
