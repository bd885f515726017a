package domain

import "time"

// DayLayout is the calendar-day key format used across stores and caches.
const DayLayout = "2006-01-02"

// DayOf returns the calendar-day key of t in t's own location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// MarketSnapshot is one polled observation of the underlying and its indicators.
// Corresponds to analysis_history rows; immutable once stored.
type MarketSnapshot struct {
	Timestamp       time.Time
	UnderlyingPrice float64 // spot
	Verdict         Verdict
	Confidence      float64 // 0-100

	// Optional indicators (nil = not computed)
	VIX             *float64
	IVSkew          *float64
	MaxPain         *float64
	CallOIChange    *float64
	PutOIChange     *float64
	ATMCallOIChange *float64
	ATMPutOIChange  *float64
	FuturesOIChange *float64
	FuturesBasis    *float64

	PrevVerdict Verdict
}

// Day returns the calendar-day key of the snapshot.
func (s *MarketSnapshot) Day() string {
	return DayOf(s.Timestamp)
}
