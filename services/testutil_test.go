package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/koratarata807/misenabiai/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupDB opens a per-test in-memory database so tests cannot interfere.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.CouponEvent{},
		&models.CouponSendLog{},
		&models.ShopSettings{},
		&models.UserSegment{},
	))
	return db
}

func httpDo(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// memAppender is an in-memory EventAppender/LogAppender stand-in.
type memAppender struct {
	mu    sync.Mutex
	lines map[string][]string
	fail  bool
}

func newMemAppender() *memAppender {
	return &memAppender{lines: make(map[string][]string)}
}

func (m *memAppender) Append(ctx context.Context, key, header, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("append failed")
	}
	if _, ok := m.lines[key]; !ok {
		m.lines[key] = []string{header}
	}
	m.lines[key] = append(m.lines[key], line)
	return nil
}
