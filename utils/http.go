// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for outbound calls (LINE push API).
// 10 seconds matches the platform's own recommended push timeout.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}
