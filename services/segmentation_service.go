// services/segmentation_service.go
package services

import (
	"strings"

	"github.com/koratarata807/misenabiai/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MaxSegmentRows caps how many rows one segment query may return.
const MaxSegmentRows = 50

// SegmentationService reads the pre-aggregated engagement tiers for the
// dashboard. Read-only — the rows come from an external aggregation job.
type SegmentationService struct {
	DB *gorm.DB
}

func NewSegmentationService(db *gorm.DB) *SegmentationService {
	return &SegmentationService{DB: db}
}

// GetSegments handles GET /dashboard/segments?shop_id&segment&limit.
func (s *SegmentationService) GetSegments(c *fiber.Ctx) error {
	shopID := c.Query("shop_id")
	if shopID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "shop_id is required"})
	}

	tier := models.SegmentTier(strings.ToUpper(c.Query("segment", string(models.SegmentHot))))
	switch tier {
	case models.SegmentHot, models.SegmentWarm, models.SegmentCold:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "segment must be HOT, WARM or COLD"})
	}

	limit := c.QueryInt("limit", MaxSegmentRows)
	if limit <= 0 || limit > MaxSegmentRows {
		limit = MaxSegmentRows
	}

	var rows []models.UserSegment
	if err := s.DB.WithContext(c.UserContext()).
		Where("shop_id = ? AND segment = ?", shopID, tier).
		Order("open_count DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "segment query failed", "cause": err.Error()})
	}

	return c.JSON(fiber.Map{
		"shop_id": shopID,
		"segment": tier,
		"users":   rows,
	})
}
