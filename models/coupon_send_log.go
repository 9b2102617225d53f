package models

import "time"

// CouponSendLog records one outbound coupon push. The dispatch job checks
// it before sending so the same (shop, user, type) is pushed at most once
// per calendar day even if the job runs twice.
type CouponSendLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID     string    `gorm:"index;not null" json:"shop_id"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	CouponType string    `gorm:"not null" json:"coupon_type"`
	SentAt     time.Time `gorm:"index;not null" json:"sent_at"`
}
