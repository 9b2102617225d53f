// config/shops.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Shop is one entry under `shops:` in shops.yaml.
type Shop struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	LineTokenEnv string `yaml:"line_token_env"` // env var holding the channel access token
	CouponURL    string `yaml:"coupon_url"`     // lin.ee etc.; wrapped by tracking links when set

	Coupon7Image  string `yaml:"coupon7_image"`
	Coupon30Image string `yaml:"coupon30_image"`

	CouponAfter7Days  string `yaml:"coupon_after_7days"`
	CouponAfter30Days string `yaml:"coupon_after_30days"`
}

// LineToken resolves this shop's LINE channel access token from the
// environment. Empty when the env var is unset.
func (s Shop) LineToken() string {
	if s.LineTokenEnv == "" {
		return ""
	}
	return os.Getenv(s.LineTokenEnv)
}

type shopsFile struct {
	Shops []Shop `yaml:"shops"`
}

// LoadShops reads shops.yaml into an id-keyed map. Entries without an id
// are dropped.
func LoadShops(path string) (map[string]Shop, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var f shopsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	shops := make(map[string]Shop, len(f.Shops))
	for _, s := range f.Shops {
		if s.ID != "" {
			shops[s.ID] = s
		}
	}
	return shops, nil
}
