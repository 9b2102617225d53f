// services/registration_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/koratarata807/misenabiai/config"
	"github.com/koratarata807/misenabiai/metrics"
	"github.com/koratarata807/misenabiai/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registration outcomes. A (shop, user) pair emits "granted" exactly once,
// ever; every later call converges to "already_granted".
const (
	StatusGranted        = "granted"
	StatusAlreadyGranted = "already_granted"
)

// RegistrationService handles LIFF registration and the LINE follow
// webhook for the welcome-coupon state machine.
type RegistrationService struct {
	DB    *gorm.DB
	Shops map[string]config.Shop
}

func NewRegistrationService(db *gorm.DB, shops map[string]config.Shop) *RegistrationService {
	return &RegistrationService{DB: db, Shops: shops}
}

type registerRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ShopID      string `json:"shop_id"`
}

// Register handles POST /liff/register.
func (s *RegistrationService) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
	}
	if req.UserID == "" || req.ShopID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "user_id and shop_id are required"})
	}

	status, err := s.RegisterUser(c.UserContext(), req.ShopID, req.UserID, req.DisplayName)
	if err != nil {
		metrics.CountRegistration("error")
		log.Printf("❌ [REGISTER] shop=%s uid=%s: %v", req.ShopID, req.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}

	metrics.CountRegistration(status)
	return c.JSON(fiber.Map{
		"ok":     true,
		"status": status,
		"coupon": s.welcomeCoupon(c.UserContext(), req.ShopID),
	})
}

// RegisterUser runs the grant state machine:
//
//	no row                     → insert with grant timestamp → granted
//	row exists, grant unset    → conditional update sets it  → granted
//	row exists, grant set      → metadata refresh only       → already_granted
//
// The insert uses ON CONFLICT DO NOTHING on (shop_id, user_id) and the
// update is guarded by `welcome_coupon_sent_at IS NULL`, so two
// near-simultaneous first calls race down to exactly one granted.
func (s *RegistrationService) RegisterUser(ctx context.Context, shopID, userID, displayName string) (string, error) {
	now := time.Now().UTC()

	u := models.User{
		ID:                  uuid.NewString(),
		ShopID:              shopID,
		UserID:              userID,
		DisplayName:         displayName,
		RegisteredAt:        now,
		WelcomeCouponSentAt: &now,
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&u)
	if res.Error != nil {
		return "", fmt.Errorf("failed to insert user: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return StatusGranted, nil
	}

	// Row already exists. Grant only if still ungranted — atomic via the
	// NULL guard in the WHERE clause.
	grant := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("shop_id = ? AND user_id = ? AND welcome_coupon_sent_at IS NULL", shopID, userID).
		Update("welcome_coupon_sent_at", now)
	if grant.Error != nil {
		return "", fmt.Errorf("failed to grant welcome coupon: %w", grant.Error)
	}

	// Metadata refresh is best-effort on every repeat call.
	if displayName != "" {
		if err := s.DB.WithContext(ctx).Model(&models.User{}).
			Where("shop_id = ? AND user_id = ?", shopID, userID).
			Update("display_name", displayName).Error; err != nil {
			log.Printf("⚠️ [REGISTER] metadata refresh failed shop=%s uid=%s: %v", shopID, userID, err)
		}
	}

	if grant.RowsAffected == 1 {
		return StatusGranted, nil
	}
	return StatusAlreadyGranted, nil
}

// EnsureRegistered records a follower without granting anything — the
// webhook path. Existing rows are left untouched (registration date is
// kept).
func (s *RegistrationService) EnsureRegistered(ctx context.Context, shopID, userID string, registeredAt time.Time) error {
	u := models.User{
		ID:           uuid.NewString(),
		ShopID:       shopID,
		UserID:       userID,
		RegisteredAt: registeredAt,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&u).Error
	if err != nil {
		return fmt.Errorf("failed to upsert follower: %w", err)
	}
	return nil
}

type lineWebhookEvent struct {
	Type   string `json:"type"`
	Source struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Timestamp int64 `json:"timestamp"` // epoch millis
}

type lineWebhookBody struct {
	Events []lineWebhookEvent `json:"events"`
}

// LineCallback handles POST /line/callback/:shop_id — the LINE platform
// webhook. Only follow events matter here; everything else is ignored.
func (s *RegistrationService) LineCallback(c *fiber.Ctx) error {
	shopID := c.Params("shop_id")
	if _, ok := s.Shops[shopID]; !ok {
		log.Printf("⚠️ [WEBHOOK] unknown shop_id: %s", shopID)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown shop"})
	}

	var body lineWebhookBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid webhook body"})
	}

	for _, ev := range body.Events {
		if ev.Type != "follow" || ev.Source.UserID == "" {
			continue
		}
		registeredAt := time.UnixMilli(ev.Timestamp).UTC()
		if err := s.EnsureRegistered(c.UserContext(), shopID, ev.Source.UserID, registeredAt); err != nil {
			log.Printf("❌ [WEBHOOK] follow upsert failed shop=%s uid=%s: %v", shopID, ev.Source.UserID, err)
			continue
		}
		log.Printf("✅ [WEBHOOK] follow: shop=%s uid=%s reg=%s", shopID, ev.Source.UserID, registeredAt.Format(time.RFC3339))
	}

	return c.SendString("OK")
}

func (s *RegistrationService) welcomeCoupon(ctx context.Context, shopID string) models.Coupon {
	var st models.ShopSettings
	err := s.DB.WithContext(ctx).First(&st, "id = ?", shopID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ [REGISTER] settings lookup failed shop=%s: %v", shopID, err)
		}
		return (*models.ShopSettings)(nil).WelcomeCoupon()
	}
	return st.WelcomeCoupon()
}
