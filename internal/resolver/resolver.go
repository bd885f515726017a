package resolver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"option-replay-lab/internal/domain"
)

// Errors returned by Resolve. Callers drop the entry on any of them.
var (
	ErrBelowMinPremium = errors.New("entry premium below minimum")
	ErrNoExitData      = errors.New("no quote after entry")
	ErrInvalidEntry    = errors.New("invalid entry")
)

// Resolver walks one day's quotes forward from an entry and reports the first
// terminal event: stop-loss, target or session close.
type Resolver struct {
	risk domain.RiskConfig
	id   string
}

// New creates a Resolver for risk. The config is validated once here.
func New(risk domain.RiskConfig) (*Resolver, error) {
	if err := risk.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{risk: risk, id: resolverID(risk)}, nil
}

// ID returns the resolver identifier including parameters,
// e.g. "SL20_TGT22_EOD1520" or "SL20_TGT22_TGT50_EOD1520".
func (r *Resolver) ID() string {
	return r.id
}

// Risk returns the risk configuration.
func (r *Resolver) Risk() domain.RiskConfig {
	return r.risk
}

func resolverID(risk domain.RiskConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SL%s_TGT%s", trimPct(risk.StopLossPct), trimPct(risk.TargetPct))
	if risk.SecondTargetPct != nil {
		fmt.Fprintf(&b, "_TGT%s", trimPct(*risk.SecondTargetPct))
	}
	fmt.Fprintf(&b, "_EOD%02d%02d", risk.SessionClose.Hour, risk.SessionClose.Minute)
	return b.String()
}

func trimPct(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

// Resolve simulates the position opened by entry.
// Per quote, in input order:
//   - skip quotes at/before entry, of another instrument, without a price, or of another day
//   - update peak/trough
//   - price <= stop → STOP_LOSS
//   - price >= target → TARGET (with a second target, the first is a checkpoint only)
//   - time of day at/after session close → SESSION_CLOSE
//
// If no quote terminates, the last qualifying quote closes the position as
// SESSION_CLOSE. With no qualifying quote at all, returns ErrNoExitData.
func (r *Resolver) Resolve(entry domain.EntryDecision, quotes []*domain.OptionQuote) (*domain.ResolvedTrade, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	if entry.EntryPremium < r.risk.MinPremium {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrBelowMinPremium, entry.EntryPremium, r.risk.MinPremium)
	}

	entryPrice := entry.EntryPremium
	entryDay := domain.DayOf(entry.Timestamp)
	stopPrice := r.risk.StopPrice(entryPrice)
	firstTarget := r.risk.TargetPrice(entryPrice)
	finalTarget := r.risk.FinalTargetPrice(entryPrice)
	dual := r.risk.SecondTargetPct != nil

	peak := entryPrice
	trough := entryPrice

	var last *domain.OptionQuote
	var exit *domain.OptionQuote
	var exitReason domain.ExitReason

	var firstHit bool
	var firstTime *time.Time
	var firstPremium float64

	for _, q := range quotes {
		if !q.Timestamp.After(entry.Timestamp) {
			continue
		}
		if q.Strike != entry.Instrument.Strike || q.Type != entry.Instrument.Type || !q.HasPrice() {
			continue
		}
		if domain.DayOf(q.Timestamp) != entryDay {
			continue
		}

		price := q.LTP
		last = q

		if price > peak {
			peak = price
		}
		if price < trough {
			trough = price
		}

		// Check exit conditions (order matters)
		if price <= stopPrice {
			exit, exitReason = q, domain.ExitStopLoss
			break
		}

		if dual && !firstHit && price >= firstTarget {
			ts := q.Timestamp
			firstHit, firstTime, firstPremium = true, &ts, price
		}

		if price >= finalTarget {
			exit, exitReason = q, domain.ExitTarget
			break
		}

		if r.risk.SessionClose.Reached(q.Timestamp) {
			exit, exitReason = q, domain.ExitSessionClose
			break
		}
	}

	// If no exit triggered, close at the last quote of the day
	if exit == nil {
		if last == nil {
			return nil, fmt.Errorf("%w: %s at %s", ErrNoExitData, entry.Instrument, entry.Timestamp.Format(time.DateTime))
		}
		exit, exitReason = last, domain.ExitSessionClose
	}

	trade := buildTrade(r.id, entry, exit, exitReason, peak, trough)
	if dual {
		trade.FirstTargetHit = firstHit
		trade.FirstTargetTime = firstTime
		trade.FirstTargetPremium = firstPremium
	} else if exitReason == domain.ExitTarget {
		ts := exit.Timestamp
		trade.FirstTargetHit = true
		trade.FirstTargetTime = &ts
		trade.FirstTargetPremium = exit.LTP
	}
	return trade, nil
}

func validateEntry(entry domain.EntryDecision) error {
	if entry.EntryPremium <= 0 {
		return fmt.Errorf("%w: non-positive premium %.2f", ErrInvalidEntry, entry.EntryPremium)
	}
	if !entry.Instrument.Type.Valid() {
		return fmt.Errorf("%w: option type %q", ErrInvalidEntry, entry.Instrument.Type)
	}
	if entry.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidEntry)
	}
	return nil
}
