package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/lookup"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func clock(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func snap(h, m int, spot float64, verdict string, conf float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Timestamp:       clock(h, m),
		UnderlyingPrice: spot,
		Verdict:         domain.ParseVerdict(verdict),
		Confidence:      conf,
	}
}

// flatQuotes prices every strike in [lo, hi] on both sides once a minute over the session.
func flatQuotes(lo, hi, premium float64) []*domain.OptionQuote {
	var quotes []*domain.OptionQuote
	for ts := clock(9, 15); !ts.After(clock(15, 30)); ts = ts.Add(time.Minute) {
		for k := lo; k <= hi; k += 50 {
			quotes = append(quotes,
				&domain.OptionQuote{Timestamp: ts, Strike: k, Type: domain.OptionCall, LTP: premium},
				&domain.OptionQuote{Timestamp: ts, Strike: k, Type: domain.OptionPut, LTP: premium},
			)
		}
	}
	return quotes
}

func TestATMStrike(t *testing.T) {
	tests := []struct {
		spot float64
		want float64
	}{
		{24362, 24350},
		{24376, 24400},
		{24325, 24300}, // half rounds to even multiple
		{24375, 24400},
		{24350, 24350},
	}
	for _, tt := range tests {
		if got := ATMStrike(tt.spot, 50); got != tt.want {
			t.Errorf("ATMStrike(%v) = %v, want %v", tt.spot, got, tt.want)
		}
	}
}

func TestStrikeFor(t *testing.T) {
	assert.Equal(t, 24400.0, StrikeFor(24362, domain.OptionCall, 50, 1))
	assert.Equal(t, 24300.0, StrikeFor(24362, domain.OptionPut, 50, 1))
	assert.Equal(t, 24300.0, StrikeFor(24362, domain.OptionCall, 50, -1))
	assert.Equal(t, 24350.0, StrikeFor(24362, domain.OptionPut, 50, 0))
}

func TestSelect_WindowAndDirection(t *testing.T) {
	snaps := []*domain.MarketSnapshot{
		snap(10, 59, 24362, "Bulls Winning", 80),    // before window
		snap(11, 5, 24362, "Neutral", 80),           // no direction
		snap(11, 10, 24362, "Slightly Bearish", 80), // first match
		snap(13, 59, 24362, "Bulls Winning", 80),
		snap(14, 0, 24362, "Bulls Winning", 80), // window end is exclusive
	}
	idx := lookup.NewIndex(flatQuotes(24200, 24500, 100))

	opts := DefaultOptions()
	opts.FirstPerTag = false
	s, err := New([]Rule{NewRule("all", Directional())}, opts)
	require.NoError(t, err)

	got := s.Select(snaps, idx)
	require.Len(t, got, 2)

	assert.Equal(t, clock(11, 10), got[0].Timestamp)
	assert.Equal(t, domain.InstrumentKey{Strike: 24350, Type: domain.OptionPut}, got[0].Instrument)
	assert.Equal(t, domain.DirectionBear, got[0].Direction)
	assert.Equal(t, 100.0, got[0].EntryPremium)
	assert.Equal(t, "2024-03-01", got[0].Day)
	assert.Same(t, snaps[2], got[0].Snapshot)

	assert.Equal(t, domain.OptionCall, got[1].Instrument.Type)
	assert.Equal(t, clock(13, 59), got[1].Timestamp)
}

func TestSelect_OnePerDay(t *testing.T) {
	snaps := []*domain.MarketSnapshot{
		snap(11, 0, 24362, "Bulls Winning", 80),
		snap(11, 5, 24362, "Bulls Winning", 80),
	}
	idx := lookup.NewIndex(flatQuotes(24200, 24500, 100))

	opts := DefaultOptions()
	opts.OnePerDay = true
	opts.FirstPerTag = false
	s, err := New([]Rule{NewRule("all", Directional())}, opts)
	require.NoError(t, err)

	got := s.Select(snaps, idx)
	require.Len(t, got, 1)
	assert.Equal(t, clock(11, 0), got[0].Timestamp)
}

func TestSelect_SkipsMissingAndSubFloorPremium(t *testing.T) {
	snaps := []*domain.MarketSnapshot{
		snap(11, 0, 24362, "Bulls Winning", 80), // 24350 CE unpriced
		snap(11, 5, 24412, "Bulls Winning", 80), // 24400 CE below floor
		snap(11, 10, 24462, "Bulls Winning", 80),
	}
	quotes := []*domain.OptionQuote{
		{Timestamp: clock(11, 0), Strike: 24350, Type: domain.OptionCall, LTP: 0},
		{Timestamp: clock(11, 5), Strike: 24400, Type: domain.OptionCall, LTP: 4.95},
		{Timestamp: clock(11, 10), Strike: 24450, Type: domain.OptionCall, LTP: 5},
	}

	opts := DefaultOptions()
	opts.OnePerDay = true
	s, err := New([]Rule{NewRule("bull", Directional())}, opts)
	require.NoError(t, err)

	got := s.Select(snaps, lookup.NewIndex(quotes))
	require.Len(t, got, 1)
	assert.Equal(t, 24450.0, got[0].Instrument.Strike)
	assert.Equal(t, 5.0, got[0].EntryPremium, "premium at the floor is accepted")
}

func TestSelect_FirstPerTagPriority(t *testing.T) {
	snaps := []*domain.MarketSnapshot{
		snap(11, 0, 24362, "Bulls Winning", 70),
		snap(11, 5, 24362, "Bulls Strongly Winning", 90),
		snap(11, 10, 24362, "Bulls Strongly Winning", 90),
		snap(11, 15, 24362, "Slightly Bullish", 66),
	}
	rules := []Rule{
		NewRule("strong", Strengths(domain.StrengthStrong), MinConfidence(85)),
		NewRule("co65", MinConfidence(65)),
	}
	s, err := New(rules, DefaultOptions())
	require.NoError(t, err)

	got := s.Select(snaps, lookup.NewIndex(flatQuotes(24200, 24500, 100)))
	require.Len(t, got, 2)
	assert.Equal(t, "co65", got[0].Tag)
	assert.Equal(t, clock(11, 0), got[0].Timestamp)
	assert.Equal(t, "strong", got[1].Tag)
	assert.Equal(t, clock(11, 5), got[1].Timestamp)
}

func TestSelect_MaxPerDay(t *testing.T) {
	var snaps []*domain.MarketSnapshot
	for m := 0; m < 30; m += 5 {
		snaps = append(snaps, snap(11, m, 24362, "Bulls Winning", 80))
	}
	opts := DefaultOptions()
	opts.FirstPerTag = false
	opts.MaxPerDay = 3
	s, err := New([]Rule{NewRule("all", Directional())}, opts)
	require.NoError(t, err)

	got := s.Select(snaps, lookup.NewIndex(flatQuotes(24200, 24500, 100)))
	assert.Len(t, got, 3)
}

func TestSelect_StrikeOffset(t *testing.T) {
	opts := DefaultOptions()
	opts.StrikeOffset = 2
	s, err := New([]Rule{NewRule("otm", Directional())}, opts)
	require.NoError(t, err)

	got := s.Select([]*domain.MarketSnapshot{snap(12, 0, 24362, "Bears Winning", 80)},
		lookup.NewIndex(flatQuotes(24000, 24600, 40)))
	require.Len(t, got, 1)
	assert.Equal(t, domain.InstrumentKey{Strike: 24250, Type: domain.OptionPut}, got[0].Instrument)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoRules)

	opts := DefaultOptions()
	opts.StrikeIncrement = 0
	_, err = New([]Rule{NewRule("x")}, opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.StartHour, opts.EndHour = 14, 11
	_, err = New([]Rule{NewRule("x")}, opts)
	assert.Error(t, err)

	_, err = New([]Rule{{Tag: "nil match"}}, DefaultOptions())
	assert.Error(t, err)
}
