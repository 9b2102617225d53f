package models

import "time"

// SegmentTier buckets users by engagement for the dashboard.
type SegmentTier string

const (
	SegmentHot  SegmentTier = "HOT"
	SegmentWarm SegmentTier = "WARM"
	SegmentCold SegmentTier = "COLD"
)

// UserSegment is a pre-aggregated engagement row per (shop, user).
// Populated by an external aggregation job — this service only reads it.
type UserSegment struct {
	ID                uint        `gorm:"primaryKey;autoIncrement" json:"-"`
	ShopID            string      `gorm:"index;not null" json:"shop_id"`
	UserID            string      `gorm:"not null" json:"user_id"`
	Segment           SegmentTier `gorm:"index;not null" json:"segment"`
	OpenCount         int         `json:"open_count"`
	DaysSinceLastOpen int         `json:"days_since_last_open"`
	LastOpenedAt      *time.Time  `json:"last_opened_at,omitempty"`
}
