// handlers/liff.go
package handlers

import (
	"github.com/koratarata807/misenabiai/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLiffRoutes(app *fiber.App, registrationService *services.RegistrationService) {
	// LIFF welcome-coupon registration
	app.Post("/liff/register", registrationService.Register)

	// LINE platform webhook (follow events)
	app.Post("/line/callback/:shop_id", registrationService.LineCallback)
}
