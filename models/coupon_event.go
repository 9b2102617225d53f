package models

import "time"

// EventType indicates what the tracked user did
type EventType string

const (
	EventTypeOpened  EventType = "opened"
	EventTypeVisited EventType = "visited"
)

// DeviceType is a coarse device class derived from the user-agent string
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceUnknown DeviceType = "unknown"
)

// CouponEvent is an immutable record of one tracked coupon click/visit.
// Rows are insert-only — never updated or deleted. UserID is empty for
// anonymous visits. IPHash is a salted one-way hash; the raw client IP is
// never persisted anywhere.
type CouponEvent struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID     string     `gorm:"index;not null" json:"shop_id"`
	UserID     string     `gorm:"index" json:"user_id"`
	CouponType string     `gorm:"not null" json:"coupon_type"` // e.g. "welcome", "7days", "30days"
	EventType  EventType  `gorm:"not null" json:"event_type"`
	UserAgent  string     `gorm:"type:text" json:"user_agent"`
	IPHash     string     `json:"ip_hash"`
	CampaignID string     `json:"campaign_id"`
	Referrer   string     `json:"referrer"`
	Path       string     `json:"path"`
	SessionID  string     `gorm:"type:uuid" json:"session_id"`
	DeviceType DeviceType `json:"device_type"`
	Timestamp  time.Time  `gorm:"index;not null" json:"timestamp"`
}
