// utils/clientinfo.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/koratarata807/misenabiai/models"
)

// Token lists checked in order: mobile first, then tablet, then desktop.
// "iPad" must come after the mobile tokens but the mobile list deliberately
// excludes the bare "Mobile" token so iPad Safari is not misclassified.
var (
	mobileTokens  = []string{"iPhone", "Android"}
	tabletTokens  = []string{"iPad"}
	desktopTokens = []string{"Windows NT", "Macintosh", "X11"}
)

// ClassifyDevice maps a raw user-agent string to a coarse device class.
// Pure substring heuristics; empty or unrecognized agents are "unknown".
func ClassifyDevice(userAgent string) models.DeviceType {
	if userAgent == "" {
		return models.DeviceUnknown
	}
	for _, t := range mobileTokens {
		if strings.Contains(userAgent, t) {
			return models.DeviceMobile
		}
	}
	for _, t := range tabletTokens {
		if strings.Contains(userAgent, t) {
			return models.DeviceTablet
		}
	}
	for _, t := range desktopTokens {
		if strings.Contains(userAgent, t) {
			return models.DeviceDesktop
		}
	}
	return models.DeviceUnknown
}

// HashIP derives a one-way identifier from a client IP. The raw IP is never
// stored; the salt keeps the hash from being reversible by enumeration.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + ip))
	return hex.EncodeToString(sum[:16])
}
