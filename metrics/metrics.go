package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_redirects_total",
		Help: "Tracking redirects served, by outcome (ok, fallback, missing_params)",
	}, []string{"outcome"})

	eventWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_event_writes_total",
		Help: "Event log write attempts, by sink (db, csv) and result (ok, error)",
	}, []string{"sink", "result"})

	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liff_registrations_total",
		Help: "LIFF registration outcomes (granted, already_granted, error)",
	}, []string{"status"})

	couponsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_coupons_sent_total",
		Help: "Coupon pushes sent by the dispatch job, by shop and coupon type",
	}, []string{"shop", "coupon_type"})
)

// CountRedirect records one served tracking redirect.
func CountRedirect(outcome string) {
	redirectsTotal.WithLabelValues(outcome).Inc()
}

// CountEventWrite records one best-effort event write attempt.
func CountEventWrite(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventWritesTotal.WithLabelValues(sink, result).Inc()
}

// CountRegistration records one registration outcome.
func CountRegistration(status string) {
	registrationsTotal.WithLabelValues(status).Inc()
}

// CountCouponSent records one successful coupon push.
func CountCouponSent(shopID, couponType string) {
	couponsSentTotal.WithLabelValues(shopID, couponType).Inc()
}

// Serve exposes /metrics on its own listener so the main app port stays
// business-only. Blocking; run in a goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("⚠️ metrics listener stopped: %v", err)
	}
}
