package services

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/koratarata807/misenabiai/config"
	"github.com/koratarata807/misenabiai/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRegistrationApp(t *testing.T) (*fiber.App, *RegistrationService, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	svc := NewRegistrationService(db, map[string]config.Shop{
		"shopA": {ID: "shopA", Name: "Shop A"},
	})
	app := fiber.New()
	app.Post("/liff/register", svc.Register)
	app.Post("/line/callback/:shop_id", svc.LineCallback)
	return app, svc, db
}

type registerResponse struct {
	OK     bool          `json:"ok"`
	Status string        `json:"status"`
	Coupon models.Coupon `json:"coupon"`
	Error  string        `json:"error"`
}

func TestRegisterGrantsOnceThenAlreadyGranted(t *testing.T) {
	app, _, _ := setupRegistrationApp(t)
	body := map[string]string{"user_id": "U1", "display_name": "太郎", "shop_id": "shopA"}

	resp := httpDo(t, app, "POST", "/liff/register", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first registerResponse
	decodeJSON(t, resp, &first)
	require.True(t, first.OK)
	require.Equal(t, StatusGranted, first.Status)
	require.Equal(t, "ドリンク1杯無料", first.Coupon.Title)
	require.Equal(t, "本日限り", first.Coupon.ExpiresText)

	for i := 0; i < 3; i++ {
		resp = httpDo(t, app, "POST", "/liff/register", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var again registerResponse
		decodeJSON(t, resp, &again)
		require.True(t, again.OK)
		require.Equal(t, StatusAlreadyGranted, again.Status)
		require.Equal(t, "ドリンク1杯無料", again.Coupon.Title)
	}
}

func TestRegisterConcurrentGrantsExactlyOnce(t *testing.T) {
	_, svc, db := setupRegistrationApp(t)

	// Serialize sqlite access so concurrent writers contend on the grant
	// logic rather than on driver-level locks.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const n = 8
	gate := make(chan struct{})
	statuses := make(chan string, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			status, err := svc.RegisterUser(context.Background(), "shopA", "U9", "同時")
			statuses <- status
			errs <- err
		}()
	}
	close(gate)
	wg.Wait()
	close(statuses)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	granted := 0
	for status := range statuses {
		switch status {
		case StatusGranted:
			granted++
		case StatusAlreadyGranted:
		default:
			t.Fatalf("unexpected status %q", status)
		}
	}
	require.Equal(t, 1, granted)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("shop_id = ? AND user_id = ?", "shopA", "U9").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterValidatesBody(t *testing.T) {
	app, _, _ := setupRegistrationApp(t)

	resp := httpDo(t, app, "POST", "/liff/register", map[string]string{"display_name": "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out registerResponse
	decodeJSON(t, resp, &out)
	require.False(t, out.OK)
	require.NotEmpty(t, out.Error)
}

func TestRegisterGrantsFollowerRegisteredViaWebhook(t *testing.T) {
	app, svc, db := setupRegistrationApp(t)

	followedAt := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, svc.EnsureRegistered(context.Background(), "shopA", "U2", followedAt))

	// follow alone must not grant
	var u models.User
	require.NoError(t, db.First(&u, "shop_id = ? AND user_id = ?", "shopA", "U2").Error)
	require.Nil(t, u.WelcomeCouponSentAt)

	resp := httpDo(t, app, "POST", "/liff/register", map[string]string{"user_id": "U2", "display_name": "花子", "shop_id": "shopA"})
	var out registerResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, StatusGranted, out.Status)

	// original registration date preserved, metadata refreshed
	require.NoError(t, db.First(&u, "shop_id = ? AND user_id = ?", "shopA", "U2").Error)
	require.NotNil(t, u.WelcomeCouponSentAt)
	require.WithinDuration(t, followedAt, u.RegisteredAt, time.Second)
	require.Equal(t, "花子", u.DisplayName)
}

func TestRegisterGrantTimestampNeverCleared(t *testing.T) {
	_, svc, db := setupRegistrationApp(t)

	status, err := svc.RegisterUser(context.Background(), "shopA", "U3", "a")
	require.NoError(t, err)
	require.Equal(t, StatusGranted, status)

	var u models.User
	require.NoError(t, db.First(&u, "shop_id = ? AND user_id = ?", "shopA", "U3").Error)
	granted := *u.WelcomeCouponSentAt

	status, err = svc.RegisterUser(context.Background(), "shopA", "U3", "b")
	require.NoError(t, err)
	require.Equal(t, StatusAlreadyGranted, status)

	require.NoError(t, db.First(&u, "shop_id = ? AND user_id = ?", "shopA", "U3").Error)
	require.NotNil(t, u.WelcomeCouponSentAt)
	require.True(t, u.WelcomeCouponSentAt.Equal(granted))
}

func TestRegisterUsesShopSettingsCoupon(t *testing.T) {
	app, _, db := setupRegistrationApp(t)
	require.NoError(t, db.Create(&models.ShopSettings{
		ID:                   "shopA",
		Name:                 "Shop A",
		WelcomeCouponTitle:   "餃子1皿無料",
		WelcomeCouponExpires: "今週末まで",
	}).Error)

	resp := httpDo(t, app, "POST", "/liff/register", map[string]string{"user_id": "U4", "shop_id": "shopA"})
	var out registerResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, "餃子1皿無料", out.Coupon.Title)
	require.Equal(t, "今週末まで", out.Coupon.ExpiresText)
}

func TestLineCallbackRegistersFollowers(t *testing.T) {
	app, _, db := setupRegistrationApp(t)

	body := map[string]any{
		"events": []map[string]any{
			{"type": "follow", "source": map[string]any{"userId": "U5"}, "timestamp": time.Now().UnixMilli()},
			{"type": "message", "source": map[string]any{"userId": "U6"}, "timestamp": time.Now().UnixMilli()},
		},
	}
	resp := httpDo(t, app, "POST", "/line/callback/shopA", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Where("shop_id = ?", "shopA").Count(&n).Error)
	require.EqualValues(t, 1, n) // follow recorded, message ignored
}

func TestLineCallbackRejectsUnknownShop(t *testing.T) {
	app, _, _ := setupRegistrationApp(t)

	resp := httpDo(t, app, "POST", "/line/callback/nope", map[string]any{"events": []any{}})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
