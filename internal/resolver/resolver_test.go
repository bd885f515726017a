package resolver

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-replay-lab/internal/domain"
)

var (
	entryTime = time.Date(2024, 3, 1, 11, 30, 0, 0, time.UTC)
	callKey   = domain.InstrumentKey{Strike: 24350, Type: domain.OptionCall}
)

func newEntry(premium float64) domain.EntryDecision {
	return domain.EntryDecision{
		Tag:          "test",
		Day:          "2024-03-01",
		Timestamp:    entryTime,
		Instrument:   callKey,
		Direction:    domain.DirectionBull,
		Spot:         24362,
		EntryPremium: premium,
	}
}

// series returns call quotes one minute apart starting one minute after entry.
func series(prices ...float64) []*domain.OptionQuote {
	quotes := make([]*domain.OptionQuote, len(prices))
	for i, p := range prices {
		quotes[i] = &domain.OptionQuote{
			Timestamp: entryTime.Add(time.Duration(i+1) * time.Minute),
			Strike:    callKey.Strike,
			Type:      callKey.Type,
			LTP:       p,
		}
	}
	return quotes
}

func mustResolver(t *testing.T, risk domain.RiskConfig) *Resolver {
	t.Helper()
	r, err := New(risk)
	require.NoError(t, err)
	return r
}

func TestResolve_StopLossHit(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	trade, err := r.Resolve(newEntry(100), series(105, 98, 79))
	require.NoError(t, err)

	assert.Equal(t, domain.ExitStopLoss, trade.ExitReason)
	assert.Equal(t, 79.0, trade.ExitPremium)
	assert.InDelta(t, -21.0, trade.PnLPct, 1e-9)
	assert.False(t, trade.Won)
	assert.Equal(t, 105.0, trade.PeakPremium)
	assert.Equal(t, 79.0, trade.TroughPremium)
	assert.Equal(t, entryTime.Add(3*time.Minute), trade.ExitTime)
}

func TestResolve_TargetHit(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	trade, err := r.Resolve(newEntry(100), series(105, 110, 123))
	require.NoError(t, err)

	assert.Equal(t, domain.ExitTarget, trade.ExitReason)
	assert.Equal(t, 123.0, trade.ExitPremium)
	assert.InDelta(t, 23.0, trade.PnLPct, 1e-9)
	assert.True(t, trade.Won)
	assert.True(t, trade.FirstTargetHit)
}

func TestResolve_SessionCloseFallback(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	trade, err := r.Resolve(newEntry(100), series(105, 110, 100, 115))
	require.NoError(t, err)

	assert.Equal(t, domain.ExitSessionClose, trade.ExitReason)
	assert.Equal(t, 115.0, trade.ExitPremium)
	assert.InDelta(t, 15.0, trade.PnLPct, 1e-9)
	assert.True(t, trade.Won)
	assert.False(t, trade.FirstTargetHit)
}

func TestResolve_SessionCloseAtCutoff(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	cutoff := time.Date(2024, 3, 1, 15, 20, 0, 0, time.UTC)
	quotes := []*domain.OptionQuote{
		{Timestamp: cutoff.Add(-time.Minute), Strike: 24350, Type: domain.OptionCall, LTP: 101},
		{Timestamp: cutoff, Strike: 24350, Type: domain.OptionCall, LTP: 99},
		{Timestamp: cutoff.Add(time.Minute), Strike: 24350, Type: domain.OptionCall, LTP: 130},
	}

	trade, err := r.Resolve(newEntry(100), quotes)
	require.NoError(t, err)

	assert.Equal(t, domain.ExitSessionClose, trade.ExitReason)
	assert.Equal(t, cutoff, trade.ExitTime)
	assert.Equal(t, 99.0, trade.ExitPremium)
	assert.False(t, trade.Won, "losing session close is not a win")
}

func TestResolve_ThresholdsInclusive(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	trade, err := r.Resolve(newEntry(100), series(80))
	require.NoError(t, err)
	assert.Equal(t, domain.ExitStopLoss, trade.ExitReason, "price equal to stop triggers stop")

	trade, err = r.Resolve(newEntry(100), series(122))
	require.NoError(t, err)
	assert.Equal(t, domain.ExitTarget, trade.ExitReason, "price equal to target triggers target")
}

func TestResolve_MinPremiumFloor(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	trade, err := r.Resolve(newEntry(5), series(5.5))
	require.NoError(t, err, "premium exactly at the floor is accepted")
	assert.Equal(t, domain.ExitSessionClose, trade.ExitReason)

	_, err = r.Resolve(newEntry(4), series(5.5))
	assert.ErrorIs(t, err, ErrBelowMinPremium)

	_, err = r.Resolve(newEntry(4.99), series(5.5))
	assert.ErrorIs(t, err, ErrBelowMinPremium)
}

func TestResolve_NoExitData(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	before := &domain.OptionQuote{Timestamp: entryTime, Strike: 24350, Type: domain.OptionCall, LTP: 150}
	otherSide := &domain.OptionQuote{Timestamp: entryTime.Add(time.Minute), Strike: 24350, Type: domain.OptionPut, LTP: 150}
	unpriced := &domain.OptionQuote{Timestamp: entryTime.Add(2 * time.Minute), Strike: 24350, Type: domain.OptionCall, LTP: 0}

	_, err := r.Resolve(newEntry(100), []*domain.OptionQuote{before, otherSide, unpriced})
	assert.ErrorIs(t, err, ErrNoExitData)

	_, err = r.Resolve(newEntry(100), nil)
	assert.ErrorIs(t, err, ErrNoExitData)
}

func TestResolve_DayIsolation(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	sameDay := &domain.OptionQuote{Timestamp: entryTime.Add(time.Hour), Strike: 24350, Type: domain.OptionCall, LTP: 104}
	nextDay := &domain.OptionQuote{Timestamp: entryTime.Add(22 * time.Hour), Strike: 24350, Type: domain.OptionCall, LTP: 50}

	trade, err := r.Resolve(newEntry(100), []*domain.OptionQuote{sameDay, nextDay})
	require.NoError(t, err)
	assert.Equal(t, domain.ExitSessionClose, trade.ExitReason)
	assert.Equal(t, 104.0, trade.ExitPremium, "next-day quote must never be read")
	assert.Equal(t, 100.0, trade.TroughPremium)

	// The next day is the only subsequent data: no exit at all
	_, err = r.Resolve(newEntry(100), []*domain.OptionQuote{nextDay})
	assert.ErrorIs(t, err, ErrNoExitData)
}

func TestResolve_DualTarget(t *testing.T) {
	second := 50.0
	risk := domain.DefaultRiskConfig()
	risk.SecondTargetPct = &second
	r := mustResolver(t, risk)
	assert.Equal(t, "SL20_TGT22_TGT50_EOD1520", r.ID())

	t.Run("checkpoint then second target", func(t *testing.T) {
		trade, err := r.Resolve(newEntry(100), series(110, 125, 140, 151))
		require.NoError(t, err)
		assert.Equal(t, domain.ExitTarget, trade.ExitReason)
		assert.Equal(t, 151.0, trade.ExitPremium)
		assert.True(t, trade.FirstTargetHit)
		require.NotNil(t, trade.FirstTargetTime)
		assert.Equal(t, entryTime.Add(2*time.Minute), *trade.FirstTargetTime)
		assert.InDelta(t, 25.0, trade.FirstTargetPnLPct(), 1e-9)
	})

	t.Run("checkpoint then stop", func(t *testing.T) {
		trade, err := r.Resolve(newEntry(100), series(125, 100, 79))
		require.NoError(t, err)
		assert.Equal(t, domain.ExitStopLoss, trade.ExitReason)
		assert.True(t, trade.FirstTargetHit)
		assert.False(t, trade.Won)
		assert.InDelta(t, -21.0, trade.PnLPct, 1e-9)
		assert.InDelta(t, 25.0, trade.FirstTargetPnLPct(), 1e-9)
	})

	t.Run("first target alone does not terminate", func(t *testing.T) {
		trade, err := r.Resolve(newEntry(100), series(125, 130))
		require.NoError(t, err)
		assert.Equal(t, domain.ExitSessionClose, trade.ExitReason)
		assert.Equal(t, 130.0, trade.ExitPremium)
		assert.True(t, trade.Won)
	})
}

func TestNew_InvalidRisk(t *testing.T) {
	risk := domain.DefaultRiskConfig()
	risk.StopLossPct = 0
	_, err := New(risk)
	assert.ErrorIs(t, err, domain.ErrInvalidRiskConfig)
}

func TestResolve_InvalidEntry(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())

	entry := newEntry(100)
	entry.Instrument.Type = "XX"
	_, err := r.Resolve(entry, series(110))
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, err = r.Resolve(newEntry(0), series(110))
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestResolve_Deterministic(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())
	quotes := series(101, 99, 104, 97, 110)

	a, err := r.Resolve(newEntry(100), quotes)
	require.NoError(t, err)
	b, err := r.Resolve(newEntry(100), quotes)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a.TradeID)
}

// randomWalk returns a priced series of n quotes around start.
func randomWalk(rng *rand.Rand, start float64, n int) []float64 {
	prices := make([]float64, n)
	p := start
	for i := range prices {
		p *= 1 + (rng.Float64()-0.5)*0.08
		prices[i] = math.Round(p*100) / 100
	}
	return prices
}

func TestResolve_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := mustResolver(t, domain.DefaultRiskConfig())

	for i := 0; i < 300; i++ {
		entry := newEntry(20 + rng.Float64()*200)
		trade, err := r.Resolve(entry, series(randomWalk(rng, entry.EntryPremium, 1+rng.Intn(400))...))
		require.NoError(t, err)

		wantWon := trade.ExitReason == domain.ExitTarget ||
			(trade.ExitReason == domain.ExitSessionClose && trade.PnLPct > 0)
		if trade.Won != wantWon {
			t.Fatalf("won invariant broken: %+v", trade)
		}
		wantPnL := (trade.ExitPremium - trade.Entry.EntryPremium) / trade.Entry.EntryPremium * 100
		if math.Abs(trade.PnLPct-wantPnL) >= 1e-9 {
			t.Fatalf("pnl invariant broken: got %v want %v", trade.PnLPct, wantPnL)
		}
		if trade.PeakPremium < trade.ExitPremium || trade.TroughPremium > trade.ExitPremium {
			t.Fatalf("exit outside peak/trough: %+v", trade)
		}
		if !trade.ExitTime.After(entry.Timestamp) {
			t.Fatalf("exit not after entry: %+v", trade)
		}
	}
}

func TestResolve_WiderStopNeverLowersWinRate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	type sample struct {
		entry  domain.EntryDecision
		quotes []*domain.OptionQuote
	}
	samples := make([]sample, 200)
	for i := range samples {
		e := newEntry(50 + rng.Float64()*100)
		samples[i] = sample{entry: e, quotes: series(randomWalk(rng, e.EntryPremium, 60+rng.Intn(200))...)}
	}

	prevRate := -1.0
	for _, sl := range []float64{5, 10, 15, 20, 30, 45, 60, 90} {
		risk := domain.DefaultRiskConfig()
		risk.StopLossPct = sl
		r := mustResolver(t, risk)

		wins := 0
		for _, s := range samples {
			trade, err := r.Resolve(s.entry, s.quotes)
			require.NoError(t, err)
			if trade.Won {
				wins++
			}
		}
		rate := float64(wins) / float64(len(samples))
		if rate < prevRate {
			t.Fatalf("stop %.0f%%: win rate %.3f fell below %.3f", sl, rate, prevRate)
		}
		prevRate = rate
	}
}

func TestResolver_ID(t *testing.T) {
	r := mustResolver(t, domain.DefaultRiskConfig())
	assert.Equal(t, "SL20_TGT22_EOD1520", r.ID())

	risk := domain.DefaultRiskConfig()
	risk.StopLossPct = 12.5
	risk.SessionClose = domain.ClockTime{Hour: 15, Minute: 0}
	r = mustResolver(t, risk)
	assert.Equal(t, "SL12.5_TGT22_EOD1500", r.ID())
	assert.NoError(t, r.Risk().Validate())
}
