package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/koratarata807/misenabiai/config"
	"github.com/koratarata807/misenabiai/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type pushedMessage struct {
	To        string
	Text      string
	ImageURL  string
	CouponURL string
	UsedFlex  bool
}

type fakePusher struct {
	pushed []pushedMessage
	fail   bool
}

func (f *fakePusher) PushImage(ctx context.Context, token, to, text, imageURL string) error {
	if f.fail {
		return errors.New("push failed")
	}
	f.pushed = append(f.pushed, pushedMessage{To: to, Text: text, ImageURL: imageURL})
	return nil
}

func (f *fakePusher) PushFlex(ctx context.Context, token, to, text, imageURL, couponURL string) error {
	if f.fail {
		return errors.New("push failed")
	}
	f.pushed = append(f.pushed, pushedMessage{To: to, Text: text, ImageURL: imageURL, CouponURL: couponURL, UsedFlex: true})
	return nil
}

func dispatchShops() map[string]config.Shop {
	return map[string]config.Shop{
		"shopA": {
			ID:                "shopA",
			Name:              "Shop A",
			LineTokenEnv:      "TEST_LINE_TOKEN",
			CouponURL:         "https://lin.ee/abc",
			Coupon7Image:      "https://cdn.example.com/c7.png",
			CouponAfter7Days:  "{name}さん、7日記念です",
			CouponAfter30Days: "{name}さん、30日記念です",
		},
	}
}

func seedTarget(t *testing.T, db *gorm.DB, userID string, registeredDaysAgo int) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		ID:           uuid.NewString(),
		ShopID:       "shopA",
		UserID:       userID,
		DisplayName:  "太郎",
		RegisteredAt: time.Now().UTC().AddDate(0, 0, -registeredDaysAgo),
	}).Error)
}

func TestDispatchSendsSevenDayCoupon(t *testing.T) {
	t.Setenv("TEST_LINE_TOKEN", "tok")
	db := setupDB(t)
	pusher := &fakePusher{}
	svc := NewDispatchService(db, dispatchShops(), pusher, "https://track.example.com/coupon/redirect", false)

	seedTarget(t, db, "U1", 8)  // due for 7days
	seedTarget(t, db, "U2", 2)  // not yet

	report := svc.RunDaily(context.Background())
	require.Equal(t, 1, report.Sent)
	require.Zero(t, report.Failed)

	require.Len(t, pusher.pushed, 1)
	msg := pusher.pushed[0]
	require.Equal(t, "U1", msg.To)
	require.True(t, msg.UsedFlex)
	require.Contains(t, msg.Text, "太郎さん、7日記念です")
	require.Contains(t, msg.CouponURL, "https://track.example.com/coupon/redirect?")
	require.Contains(t, msg.CouponURL, "shop=shopA")
	require.Contains(t, msg.CouponURL, "type=7days")
	require.Contains(t, msg.CouponURL, "uid=U1")
	require.Contains(t, msg.CouponURL, "dest=https%3A%2F%2Flin.ee%2Fabc")

	// sent marker and log row written
	var u models.User
	require.NoError(t, db.First(&u, "user_id = ?", "U1").Error)
	require.NotNil(t, u.Coupon7SentAt)
	var logs int64
	require.NoError(t, db.Model(&models.CouponSendLog{}).Where("coupon_type = ?", "7days").Count(&logs).Error)
	require.EqualValues(t, 1, logs)
}

func TestDispatchRerunSameDayIsIdempotent(t *testing.T) {
	t.Setenv("TEST_LINE_TOKEN", "tok")
	db := setupDB(t)
	pusher := &fakePusher{}
	svc := NewDispatchService(db, dispatchShops(), pusher, "https://track.example.com/coupon/redirect", false)

	seedTarget(t, db, "U1", 8)

	first := svc.RunDaily(context.Background())
	require.Equal(t, 1, first.Sent)

	// Clear the sent marker to simulate a partially failed first run; the
	// same-day send-log guard must still suppress a duplicate push.
	require.NoError(t, db.Model(&models.User{}).Where("user_id = ?", "U1").Update("coupon7_sent_at", nil).Error)

	second := svc.RunDaily(context.Background())
	require.Zero(t, second.Sent)
	require.Equal(t, 1, second.Skipped)
	require.Len(t, pusher.pushed, 1)
}

func TestDispatchThirtyDayWave(t *testing.T) {
	t.Setenv("TEST_LINE_TOKEN", "tok")
	db := setupDB(t)
	pusher := &fakePusher{}
	svc := NewDispatchService(db, dispatchShops(), pusher, "https://track.example.com/coupon/redirect", false)

	seedTarget(t, db, "U1", 31)

	report := svc.RunDaily(context.Background())
	require.Equal(t, 2, report.Sent) // both 7days and 30days are due

	require.Len(t, pusher.pushed, 2)
	for _, m := range pusher.pushed {
		require.Equal(t, "U1", m.To)
	}

	var u models.User
	require.NoError(t, db.First(&u, "user_id = ?", "U1").Error)
	require.NotNil(t, u.Coupon7SentAt)
	require.NotNil(t, u.Coupon30SentAt)
}

func TestDispatchDryRunSendsNothing(t *testing.T) {
	t.Setenv("TEST_LINE_TOKEN", "tok")
	db := setupDB(t)
	pusher := &fakePusher{}
	svc := NewDispatchService(db, dispatchShops(), pusher, "https://track.example.com/coupon/redirect", true)

	seedTarget(t, db, "U1", 8)

	report := svc.RunDaily(context.Background())
	require.Zero(t, report.Sent)
	require.Empty(t, pusher.pushed)

	var u models.User
	require.NoError(t, db.First(&u, "user_id = ?", "U1").Error)
	require.Nil(t, u.Coupon7SentAt)
}

func TestDispatchPushFailureLeavesUserUnmarked(t *testing.T) {
	t.Setenv("TEST_LINE_TOKEN", "tok")
	db := setupDB(t)
	pusher := &fakePusher{fail: true}
	svc := NewDispatchService(db, dispatchShops(), pusher, "https://track.example.com/coupon/redirect", false)

	seedTarget(t, db, "U1", 8)

	report := svc.RunDaily(context.Background())
	require.Zero(t, report.Sent)
	require.Equal(t, 1, report.Failed)

	var u models.User
	require.NoError(t, db.First(&u, "user_id = ?", "U1").Error)
	require.Nil(t, u.Coupon7SentAt)
}

func TestDispatchSkipsShopWithoutToken(t *testing.T) {
	db := setupDB(t)
	pusher := &fakePusher{}
	shops := dispatchShops()
	svc := NewDispatchService(db, shops, pusher, "https://track.example.com/coupon/redirect", false)

	seedTarget(t, db, "U1", 8)

	report := svc.RunDaily(context.Background())
	require.Zero(t, report.Sent)
	require.Empty(t, pusher.pushed)
}

func TestRenderTemplateFallback(t *testing.T) {
	require.Equal(t, "太郎さん、7日記念です", renderTemplate("{name}さん、7日記念です", "太郎", 7))
	require.Equal(t, "太郎さん、登録30日記念のクーポンです。", renderTemplate("", "太郎 ", 30))
}
