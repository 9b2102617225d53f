// services/dashboard_service.go
package services

import (
	"context"
	"time"

	"github.com/koratarata807/misenabiai/models"
	"github.com/koratarata807/misenabiai/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// How many JST days the daily series covers (today included).
const dailySeriesDays = 7

// DashboardService aggregates coupon_events for the shop dashboard.
type DashboardService struct {
	DB *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{DB: db}
}

type dailyCount struct {
	Date        string `json:"date"` // YYYY-MM-DD (JST)
	OpenedUsers int64  `json:"opened_users"`
}

// GetSummary handles GET /dashboard/summary?shop_id.
func (s *DashboardService) GetSummary(c *fiber.Ctx) error {
	shopID := c.Query("shop_id")
	if shopID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "shop_id is required"})
	}

	ctx := c.UserContext()
	todayStart := utils.JSTDayStart(utils.JSTNow())

	today, err := s.openedUsers(ctx, shopID, todayStart, todayStart.AddDate(0, 0, 1))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "summary query failed", "cause": err.Error()})
	}
	yesterday, err := s.openedUsers(ctx, shopID, todayStart.AddDate(0, 0, -1), todayStart)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "summary query failed", "cause": err.Error()})
	}

	daily := make([]dailyCount, 0, dailySeriesDays)
	for i := dailySeriesDays - 1; i >= 0; i-- {
		dayStart := todayStart.AddDate(0, 0, -i)
		n, err := s.openedUsers(ctx, shopID, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "summary query failed", "cause": err.Error()})
		}
		daily = append(daily, dailyCount{Date: dayStart.Format("2006-01-02"), OpenedUsers: n})
	}

	return c.JSON(fiber.Map{
		"shop_id": shopID,
		"summary": fiber.Map{
			"today_open_users":     today,
			"yesterday_open_users": yesterday,
		},
		"daily": daily,
	})
}

// openedUsers counts distinct users with an "opened" event in [from, to).
// Anonymous events (empty user_id) are excluded.
func (s *DashboardService) openedUsers(ctx context.Context, shopID string, from, to time.Time) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.CouponEvent{}).
		Where("shop_id = ? AND event_type = ? AND user_id <> ? AND timestamp >= ? AND timestamp < ?",
			shopID, models.EventTypeOpened, "", from.UTC(), to.UTC()).
		Distinct("user_id").
		Count(&n).Error
	return n, err
}
