package models

import "time"

// ShopSettings is the per-shop marketing configuration edited from the
// dashboard settings form. The primary key is the shop id itself.
type ShopSettings struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`

	// CouponURL is the real destination (lin.ee etc.) wrapped by tracking links.
	CouponURL     string `json:"coupon_url"`
	Coupon7Image  string `gorm:"type:text" json:"coupon7_image"`
	Coupon30Image string `gorm:"type:text" json:"coupon30_image"`

	// Message templates; {name} is replaced with the user's display name.
	Coupon7Message  string `gorm:"type:text" json:"coupon7_message"`
	Coupon30Message string `gorm:"type:text" json:"coupon30_message"`

	// Welcome coupon payload shown right after LIFF registration.
	WelcomeCouponTitle   string `json:"welcome_coupon_title"`
	WelcomeCouponExpires string `json:"welcome_coupon_expires"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Coupon is the static payload returned to the LIFF client on registration.
type Coupon struct {
	Title       string `json:"title"`
	ExpiresText string `json:"expires_text"`
}

// Defaults used when a shop has no settings row (or blank fields).
const (
	DefaultWelcomeCouponTitle   = "ドリンク1杯無料"
	DefaultWelcomeCouponExpires = "本日限り"
)

// WelcomeCoupon builds the coupon payload for this shop, falling back to
// the service-wide defaults for blank fields.
func (s *ShopSettings) WelcomeCoupon() Coupon {
	c := Coupon{Title: DefaultWelcomeCouponTitle, ExpiresText: DefaultWelcomeCouponExpires}
	if s == nil {
		return c
	}
	if s.WelcomeCouponTitle != "" {
		c.Title = s.WelcomeCouponTitle
	}
	if s.WelcomeCouponExpires != "" {
		c.ExpiresText = s.WelcomeCouponExpires
	}
	return c
}
