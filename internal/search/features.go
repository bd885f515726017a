// Package search ranks combinations of filter predicates over resolved trades.
package search

import (
	"time"

	"option-replay-lab/internal/domain"
)

// Features are the entry-time attributes predicates are evaluated on.
// Missing snapshot indicators read as zero.
type Features struct {
	Verdict    domain.Verdict
	Confidence float64

	VIX             float64
	IVSkew          float64
	MaxPain         float64
	ATMDistance     float64 // strike - max pain
	CallOIChange    float64
	PutOIChange     float64
	FuturesOIChange float64
	FuturesBasis    float64

	EntryPremium float64
	EntryTime    time.Time
	Day          string
}

// FeaturesOf extracts features from a trade's entry and triggering snapshot.
func FeaturesOf(t *domain.ResolvedTrade) Features {
	e := t.Entry
	f := Features{
		EntryPremium: e.EntryPremium,
		EntryTime:    e.Timestamp,
		Day:          e.Day,
	}
	if f.Day == "" {
		f.Day = domain.DayOf(e.Timestamp)
	}

	if snap := e.Snapshot; snap != nil {
		f.Verdict = snap.Verdict
		f.Confidence = snap.Confidence
		f.VIX = value(snap.VIX)
		f.IVSkew = value(snap.IVSkew)
		f.MaxPain = value(snap.MaxPain)
		f.CallOIChange = value(snap.CallOIChange)
		f.PutOIChange = value(snap.PutOIChange)
		f.FuturesOIChange = value(snap.FuturesOIChange)
		f.FuturesBasis = value(snap.FuturesBasis)
	}
	f.ATMDistance = e.Instrument.Strike - f.MaxPain

	return f
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
