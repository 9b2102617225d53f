// services/event_logger.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/koratarata807/misenabiai/models"
)

// CSVHeader is the fixed first line of every per-shop event log.
const CSVHeader = "timestamp,shop_id,user_id,coupon_type,event_type,ip_hash,user_agent"

// LogAppender serializes line appends to a durable log object.
type LogAppender interface {
	Append(ctx context.Context, key, header, line string) error
}

// EventLogger writes coupon events to the per-shop CSV log in object
// storage. Errors are returned to the caller — the tracking gateway decides
// whether they may block anything (they may not).
type EventLogger struct {
	appender LogAppender
}

func NewEventLogger(appender LogAppender) *EventLogger {
	return &EventLogger{appender: appender}
}

// AppendEvent durably appends one CSV record to the shop's log.
func (l *EventLogger) AppendEvent(ctx context.Context, ev models.CouponEvent) error {
	return l.appender.Append(ctx, LogKey(ev.ShopID), CSVHeader, CSVLine(ev))
}

// LogKey is the object key of a shop's cumulative event log.
func LogKey(shopID string) string {
	return fmt.Sprintf("logs/%s/coupon_events.csv", shopID)
}

// CSVLine encodes one event in the fixed column order. The user-agent is
// JSON-quoted and any literal commas replaced with spaces so each record
// stays on one line; other fields are written as-is (shop/user/coupon ids
// never contain commas).
func CSVLine(ev models.CouponEvent) string {
	ua, _ := json.Marshal(ev.UserAgent)
	fields := []string{
		ev.Timestamp.UTC().Format(time.RFC3339),
		ev.ShopID,
		ev.UserID,
		ev.CouponType,
		string(ev.EventType),
		ev.IPHash,
		strings.ReplaceAll(string(ua), ",", " "),
	}
	return strings.Join(fields, ",")
}
