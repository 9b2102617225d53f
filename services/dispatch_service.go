// services/dispatch_service.go
package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/koratarata807/misenabiai/config"
	"github.com/koratarata807/misenabiai/metrics"
	"github.com/koratarata807/misenabiai/models"
	"github.com/koratarata807/misenabiai/utils"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// One batch never pushes to more users than this per shop and coupon type.
const dispatchTargetLimit = 5000

// CouponPusher is the outbound-messaging slice the dispatch job needs.
// *LineClient implements it.
type CouponPusher interface {
	PushImage(ctx context.Context, token, to, text, imageURL string) error
	PushFlex(ctx context.Context, token, to, text, imageURL, couponURL string) error
}

// DispatchService runs the daily anniversary-coupon job: 7 and 30 days
// after registration each user gets one coupon push, wrapped in a tracking
// link when the shop has a coupon URL.
type DispatchService struct {
	DB           *gorm.DB
	Shops        map[string]config.Shop
	Pusher       CouponPusher
	TrackingBase string // e.g. "https://tracking.example.com/coupon/redirect"
	DryRun       bool

	sched gocron.Scheduler
}

func NewDispatchService(db *gorm.DB, shops map[string]config.Shop, pusher CouponPusher, trackingBase string, dryRun bool) *DispatchService {
	return &DispatchService{DB: db, Shops: shops, Pusher: pusher, TrackingBase: trackingBase, DryRun: dryRun}
}

// DispatchReport summarizes one run.
type DispatchReport struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type couponWave struct {
	days       int
	couponType string
	sentCol    string
	template   string
	image      string
}

// RunDaily processes every configured shop. Per-shop failures are logged
// and do not stop the run.
func (d *DispatchService) RunDaily(ctx context.Context) DispatchReport {
	log.Println("=== daily coupon dispatch START ===")

	var report DispatchReport
	for shopID, shop := range d.Shops {
		r := d.runForShop(ctx, shopID, shop)
		report.Sent += r.Sent
		report.Skipped += r.Skipped
		report.Failed += r.Failed
	}
	log.Printf("=== daily coupon dispatch DONE sent=%d skipped=%d failed=%d ===", report.Sent, report.Skipped, report.Failed)
	return report
}

func (d *DispatchService) runForShop(ctx context.Context, shopID string, shop config.Shop) DispatchReport {
	var report DispatchReport
	log.Printf("[DISPATCH] === shop: %s (%s) ===", shopID, shop.Name)

	token := shop.LineToken()
	if token == "" {
		log.Printf("❌ [DISPATCH] LINE token missing for shop=%s", shopID)
		return report
	}
	if shop.Coupon7Image == "" {
		log.Printf("❌ [DISPATCH] coupon7_image missing for shop=%s", shopID)
		return report
	}

	img30 := shop.Coupon30Image
	if img30 == "" {
		img30 = shop.Coupon7Image
	}
	msg30 := shop.CouponAfter30Days
	if msg30 == "" {
		msg30 = shop.CouponAfter7Days
	}

	waves := []couponWave{
		{days: 7, couponType: "7days", sentCol: "coupon7_sent_at", template: shop.CouponAfter7Days, image: shop.Coupon7Image},
		{days: 30, couponType: "30days", sentCol: "coupon30_sent_at", template: msg30, image: img30},
	}

	var logs []models.CouponSendLog
	for _, w := range waves {
		targets, err := d.fetchTargets(ctx, shopID, w.days, w.sentCol)
		if err != nil {
			log.Printf("❌ [DISPATCH] target query failed shop=%s type=%s: %v", shopID, w.couponType, err)
			continue
		}
		log.Printf("[DISPATCH] %s targets: %d", w.couponType, len(targets))

		if d.DryRun {
			log.Printf("[DISPATCH] DRY_RUN=1 → send skipped (%s)", w.couponType)
			continue
		}

		for _, t := range targets {
			sentAt := time.Now().UTC()

			// Same-day idempotency guard: a crashed or double-triggered run
			// must not push the same coupon twice in one day.
			dup, err := d.alreadySentToday(ctx, shopID, t.UserID, w.couponType, sentAt)
			if err != nil {
				log.Printf("❌ [DISPATCH] send-log check failed shop=%s uid=%s: %v", shopID, t.UserID, err)
				report.Failed++
				continue
			}
			if dup {
				log.Printf("[DISPATCH] skip, already sent today shop=%s uid=%s type=%s", shopID, t.UserID, w.couponType)
				report.Skipped++
				continue
			}

			text := renderTemplate(w.template, t.DisplayName, w.days)
			if err := d.send(ctx, token, shop, t.UserID, text, w.image, w.couponType, shopID); err != nil {
				log.Printf("❌ [DISPATCH] push failed shop=%s uid=%s type=%s: %v", shopID, t.UserID, w.couponType, err)
				report.Failed++
				continue
			}

			if err := d.markSent(ctx, shopID, t.UserID, w.sentCol, sentAt); err != nil {
				log.Printf("⚠️ [DISPATCH] mark-sent failed shop=%s uid=%s col=%s: %v", shopID, t.UserID, w.sentCol, err)
			}
			logs = append(logs, models.CouponSendLog{
				ShopID:     shopID,
				UserID:     t.UserID,
				CouponType: w.couponType,
				SentAt:     sentAt,
			})
			metrics.CountCouponSent(shopID, w.couponType)
			report.Sent++
		}
	}

	if len(logs) > 0 {
		if err := d.DB.WithContext(ctx).Create(&logs).Error; err != nil {
			log.Printf("❌ [DISPATCH] send-log insert failed shop=%s: %v", shopID, err)
		} else {
			log.Printf("✅ [DISPATCH] send logs inserted: %d", len(logs))
		}
	}
	return report
}

// fetchTargets selects users registered at least `days` ago whose sent
// column for this wave is still NULL.
func (d *DispatchService) fetchTargets(ctx context.Context, shopID string, days int, sentCol string) ([]models.User, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var users []models.User
	err := d.DB.WithContext(ctx).
		Where("shop_id = ? AND registered_at <= ? AND "+sentCol+" IS NULL", shopID, cutoff).
		Limit(dispatchTargetLimit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch targets: %w", err)
	}
	return users, nil
}

func (d *DispatchService) alreadySentToday(ctx context.Context, shopID, userID, couponType string, now time.Time) (bool, error) {
	dayStart := utils.JSTDayStart(now)
	var n int64
	err := d.DB.WithContext(ctx).Model(&models.CouponSendLog{}).
		Where("shop_id = ? AND user_id = ? AND coupon_type = ? AND sent_at >= ? AND sent_at < ?",
			shopID, userID, couponType, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC()).
		Count(&n).Error
	return n > 0, err
}

func (d *DispatchService) markSent(ctx context.Context, shopID, userID, sentCol string, sentAt time.Time) error {
	res := d.DB.WithContext(ctx).Model(&models.User{}).
		Where("shop_id = ? AND user_id = ?", shopID, userID).
		Update(sentCol, sentAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no user row matched shop=%s uid=%s", shopID, userID)
	}
	return nil
}

func (d *DispatchService) send(ctx context.Context, token string, shop config.Shop, userID, text, imageURL, couponType, shopID string) error {
	if shop.CouponURL != "" {
		tracking := BuildTrackingURL(d.TrackingBase, shopID, couponType, userID, shop.CouponURL)
		return d.Pusher.PushFlex(ctx, token, userID, text, imageURL, tracking)
	}
	return d.Pusher.PushImage(ctx, token, userID, text, imageURL)
}

// BuildTrackingURL wraps dest in a tracking redirect link.
func BuildTrackingURL(base, shopID, couponType, userID, dest string) string {
	v := url.Values{}
	v.Set("shop", shopID)
	v.Set("type", couponType)
	v.Set("uid", userID)
	v.Set("dest", dest)
	return base + "?" + v.Encode()
}

// renderTemplate substitutes {name} (and the legacy {display_name}) in the
// shop's message template, with a generic fallback when no template is set.
func renderTemplate(tpl, displayName string, days int) string {
	name := strings.TrimSpace(displayName)
	if tpl == "" {
		return fmt.Sprintf("%sさん、登録%d日記念のクーポンです。", name, days)
	}
	out := strings.ReplaceAll(tpl, "{name}", name)
	return strings.ReplaceAll(out, "{display_name}", name)
}
