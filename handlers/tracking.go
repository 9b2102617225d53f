// handlers/tracking.go
package handlers

import (
	"github.com/koratarata807/misenabiai/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTrackingRoutes(app *fiber.App, trackingService *services.TrackingService) {
	// Public — LINE clients hit this straight from coupon messages.
	app.Get("/coupon/redirect", trackingService.Redirect)
}
