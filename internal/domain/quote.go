package domain

import (
	"fmt"
	"time"
)

// OptionType is the option side.
type OptionType string

// Option type constants
const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// Valid reports whether t is CALL or PUT.
func (t OptionType) Valid() bool {
	return t == OptionCall || t == OptionPut
}

// InstrumentKey identifies one option contract within a day.
type InstrumentKey struct {
	Strike float64
	Type   OptionType
}

// String renders the key as e.g. "24350CE".
func (k InstrumentKey) String() string {
	suffix := "CE"
	if k.Type == OptionPut {
		suffix = "PE"
	}
	return fmt.Sprintf("%.0f%s", k.Strike, suffix)
}

// OptionQuote is a last-traded premium for one instrument at one instant.
// LTP <= 0 means no trade at that instant.
type OptionQuote struct {
	Timestamp time.Time
	Strike    float64
	Type      OptionType
	LTP       float64
}

// Key returns the instrument key of the quote.
func (q *OptionQuote) Key() InstrumentKey {
	return InstrumentKey{Strike: q.Strike, Type: q.Type}
}

// HasPrice reports whether the quote carries a usable premium.
func (q *OptionQuote) HasPrice() bool {
	return q.LTP > 0
}
