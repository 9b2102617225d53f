package models

import (
	"time"
)

// User is a LINE friend of one shop. One row per (shop_id, user_id);
// created on the first follow/registration and kept forever.
// WelcomeCouponSentAt is set at most once and never cleared — it is the
// grant marker for the welcome-coupon state machine.
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	ShopID      string `gorm:"uniqueIndex:idx_shop_line_user;not null" json:"shop_id"`
	UserID      string `gorm:"uniqueIndex:idx_shop_line_user;not null" json:"user_id"` // LINE user id (Uxxxx...)
	DisplayName string `json:"display_name"`

	RegisteredAt        time.Time  `gorm:"not null" json:"registered_at"`
	WelcomeCouponSentAt *time.Time `json:"welcome_coupon_sent_at,omitempty"`
	Coupon7SentAt       *time.Time `json:"coupon7_sent_at,omitempty"`
	Coupon30SentAt      *time.Time `json:"coupon30_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
