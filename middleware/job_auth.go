// middleware/job_auth.go
package middleware

import (
	"crypto/subtle"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
)

// JobKeyMiddleware guards the job-trigger endpoints. The scheduler (Cloud
// Run cron or similar) sends the shared key in x-job-key; the env var
// JOB_KEY is the single source of truth.
func JobKeyMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := os.Getenv("JOB_KEY")
		if expected == "" {
			log.Printf("❌ [JOB_AUTH] JOB_KEY is not set — rejecting %s", c.Path())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "JOB_KEY is not set",
			})
		}

		got := c.Get("x-job-key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			log.Printf("🚫 [JOB_AUTH] invalid job key for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}
