// services/tracking_service.go
package services

import (
	"context"
	"log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/koratarata807/misenabiai/metrics"
	"github.com/koratarata807/misenabiai/models"
	"github.com/koratarata807/misenabiai/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultFallbackURL is where suspicious or broken tracking links land.
const DefaultFallbackURL = "https://line.me/"

// Destination hosts a tracking link may redirect to. Fixed in code — the
// open-redirect guard, not a tenant setting.
var allowedRedirectHosts = map[string]struct{}{
	"line.me":      {},
	"www.line.me":  {},
	"lin.ee":       {},
	"liff.line.me": {},
	"page.line.me": {},
}

// EventAppender is the CSV half of the dual write.
type EventAppender interface {
	AppendEvent(ctx context.Context, ev models.CouponEvent) error
}

// TrackingService serves the coupon tracking redirect. Its one hard
// invariant: the response is always a redirect, no matter what the backends
// do.
type TrackingService struct {
	DB          *gorm.DB
	Logger      EventAppender
	FallbackURL string
	ipSalt      string
}

func NewTrackingService(db *gorm.DB, logger EventAppender) *TrackingService {
	return &TrackingService{
		DB:          db,
		Logger:      logger,
		FallbackURL: DefaultFallbackURL,
		ipSalt:      os.Getenv("IP_HASH_SALT"),
	}
}

// Redirect handles GET /coupon/redirect?shop&type&uid&dest&campaign&ref&path.
func (s *TrackingService) Redirect(c *fiber.Ctx) error {
	shopID := c.Query("shop")
	couponType := c.Query("type")
	userID := c.Query("uid")
	dest, fellBack := s.resolveDestination(c.Query("dest"))

	if shopID == "" || couponType == "" || userID == "" {
		log.Printf("⚠️ [TRACKING] missing params shop=%q type=%q uid=%q — redirecting without logging", shopID, couponType, userID)
		metrics.CountRedirect("missing_params")
		return c.Redirect(s.FallbackURL, fiber.StatusFound)
	}

	ev := models.CouponEvent{
		ShopID:     shopID,
		UserID:     userID,
		CouponType: couponType,
		EventType:  models.EventTypeOpened,
		UserAgent:  c.Get("User-Agent"),
		IPHash:     utils.HashIP(c.IP(), s.ipSalt),
		CampaignID: c.Query("campaign"),
		Referrer:   c.Query("ref"),
		Path:       c.Query("path"),
		SessionID:  uuid.NewString(),
		DeviceType: utils.ClassifyDevice(c.Get("User-Agent")),
		Timestamp:  time.Now().UTC(),
	}

	// Dual write: relational insert + CSV append, concurrently. Both are
	// best-effort and both must settle before the redirect goes out.
	ctx := c.UserContext()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dbEv := ev
		err := s.DB.WithContext(ctx).Create(&dbEv).Error
		metrics.CountEventWrite("db", err)
		if err != nil {
			log.Printf("❌ [TRACKING] db insert failed shop=%s uid=%s: %v", shopID, userID, err)
		}
	}()
	go func() {
		defer wg.Done()
		err := s.Logger.AppendEvent(ctx, ev)
		metrics.CountEventWrite("csv", err)
		if err != nil {
			log.Printf("❌ [TRACKING] csv append failed shop=%s uid=%s: %v", shopID, userID, err)
		}
	}()
	wg.Wait()

	if fellBack {
		metrics.CountRedirect("fallback")
	} else {
		metrics.CountRedirect("ok")
	}
	return c.Redirect(dest, fiber.StatusFound)
}

// resolveDestination decodes the dest parameter and enforces the host
// allow-list. Anything that fails to parse, uses a non-http scheme, or
// points off-list lands on the fallback; the bool reports whether that
// happened, since a caller may legitimately ask for the fallback URL itself.
func (s *TrackingService) resolveDestination(raw string) (string, bool) {
	if raw == "" {
		return s.FallbackURL, true
	}
	u, err := url.Parse(raw)
	if err != nil {
		log.Printf("⚠️ [TRACKING] bad dest %q: %v", raw, err)
		return s.FallbackURL, true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return s.FallbackURL, true
	}
	if _, ok := allowedRedirectHosts[u.Hostname()]; !ok {
		log.Printf("⚠️ [TRACKING] dest host %q not allow-listed", u.Hostname())
		return s.FallbackURL, true
	}
	return u.String(), false
}
