// utils/jst.go
package utils

import "time"

// JST is the business timezone — "today" on the dashboard and the dispatch
// job's send-day boundary are both JST days.
var JST = time.FixedZone("Asia/Tokyo", 9*60*60)

// JSTNow returns the current time in JST.
func JSTNow() time.Time {
	return time.Now().In(JST)
}

// JSTDayStart truncates t to midnight of its JST calendar day.
func JSTDayStart(t time.Time) time.Time {
	t = t.In(JST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, JST)
}
