// handlers/jobs.go
package handlers

import (
	"log"
	"os"
	"time"

	"github.com/koratarata807/misenabiai/middleware"
	"github.com/koratarata807/misenabiai/services"

	"github.com/gofiber/fiber/v2"
)

func SetupJobRoutes(app *fiber.App, dispatchService *services.DispatchService, lineClient *services.LineClient) {
	jobs := app.Group("/jobs", middleware.JobKeyMiddleware())

	// Fired daily by the external cron; also safe to trigger by hand —
	// the dispatch job's send-log guard keeps reruns idempotent per day.
	jobs.Post("/daily-coupon", func(c *fiber.Ctx) error {
		report := dispatchService.RunDaily(c.UserContext())
		return c.JSON(fiber.Map{
			"ok":     true,
			"ran_at": time.Now().UTC().Format(time.RFC3339),
			"report": report,
		})
	})

	// One text message to the configured test user.
	jobs.Post("/test-line", func(c *fiber.Ctx) error {
		token := os.Getenv("LINE_TOKEN_SHOPA")
		userID := os.Getenv("TEST_LINE_USER_ID")
		if token == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "LINE_TOKEN_SHOPA is not set"})
		}
		if userID == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "TEST_LINE_USER_ID is not set"})
		}

		if err := lineClient.PushText(c.UserContext(), token, userID, "✅ テスト送信です"); err != nil {
			log.Printf("❌ [JOBS] test push failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
}
