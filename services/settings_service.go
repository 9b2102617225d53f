// services/settings_service.go
package services

import (
	"errors"

	"github.com/koratarata807/misenabiai/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsService serves the per-shop settings form.
type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// GetSettings handles GET /settings?shop_id.
func (s *SettingsService) GetSettings(c *fiber.Ctx) error {
	shopID := c.Query("shop_id")
	if shopID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "shop_id is required"})
	}

	var st models.ShopSettings
	if err := s.DB.WithContext(c.UserContext()).First(&st, "id = ?", shopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "shop not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settings lookup failed", "cause": err.Error()})
	}

	return c.JSON(fiber.Map{"shop": st})
}

// PutSettings handles PUT /settings — full-record upsert. A missing id is
// derived from the shop name so the dashboard can create shops by name.
func (s *SettingsService) PutSettings(c *fiber.Ctx) error {
	var st models.ShopSettings
	if err := c.BodyParser(&st); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid settings body"})
	}
	if st.ID == "" && st.Name != "" {
		st.ID = slug.Make(st.Name)
	}
	if st.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id or name is required"})
	}

	if err := s.DB.WithContext(c.UserContext()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&st).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settings save failed", "cause": err.Error()})
	}

	return c.JSON(fiber.Map{"shop": st})
}
