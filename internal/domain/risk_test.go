package domain

import (
	"errors"
	"testing"
	"time"
)

func TestClockTime_Reached(t *testing.T) {
	c := ClockTime{Hour: 15, Minute: 20}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Duration
		want bool
	}{
		{"before hour", 14*time.Hour + 59*time.Minute, false},
		{"same hour before minute", 15*time.Hour + 19*time.Minute + 59*time.Second, false},
		{"exact cutoff", 15*time.Hour + 20*time.Minute, true},
		{"after cutoff", 15*time.Hour + 29*time.Minute, true},
		{"later hour", 16 * time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Reached(day.Add(tt.at)); got != tt.want {
				t.Errorf("Reached() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("15:20")
	if err != nil {
		t.Fatalf("ParseClock() error = %v", err)
	}
	if c != DefaultSessionClose {
		t.Errorf("ParseClock() = %v, want %v", c, DefaultSessionClose)
	}
	if c.String() != "15:20" {
		t.Errorf("String() = %s", c.String())
	}
	if _, err := ParseClock("3pm"); err == nil {
		t.Error("expected error for malformed clock")
	}
}

func TestRiskConfig_Validate(t *testing.T) {
	second := 40.0
	low := 10.0

	tests := []struct {
		name    string
		mutate  func(*RiskConfig)
		wantErr bool
	}{
		{"defaults", func(*RiskConfig) {}, false},
		{"dual target", func(r *RiskConfig) { r.SecondTargetPct = &second }, false},
		{"zero stop", func(r *RiskConfig) { r.StopLossPct = 0 }, true},
		{"full stop", func(r *RiskConfig) { r.StopLossPct = 100 }, true},
		{"zero target", func(r *RiskConfig) { r.TargetPct = 0 }, true},
		{"second below first", func(r *RiskConfig) { r.SecondTargetPct = &low }, true},
		{"negative floor", func(r *RiskConfig) { r.MinPremium = -1 }, true},
		{"bad clock", func(r *RiskConfig) { r.SessionClose = ClockTime{Hour: 25} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRiskConfig()
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRiskConfig) {
				t.Errorf("error should wrap ErrInvalidRiskConfig, got %v", err)
			}
		})
	}
}

func TestRiskConfig_Prices(t *testing.T) {
	r := DefaultRiskConfig()
	if got := r.StopPrice(100); got != 80 {
		t.Errorf("StopPrice(100) = %v, want 80", got)
	}
	if got := r.TargetPrice(100); got != 122 {
		t.Errorf("TargetPrice(100) = %v, want 122", got)
	}
	if got := r.FinalTargetPrice(100); got != 122 {
		t.Errorf("FinalTargetPrice(100) = %v, want 122", got)
	}
	second := 50.0
	r.SecondTargetPct = &second
	if got := r.FinalTargetPrice(100); got != 150 {
		t.Errorf("FinalTargetPrice(100) with second target = %v, want 150", got)
	}
}

func TestIsWin(t *testing.T) {
	if !IsWin(ExitTarget, -1) {
		t.Error("target exit always wins")
	}
	if IsWin(ExitStopLoss, 5) {
		t.Error("stop-loss never wins")
	}
	if !IsWin(ExitSessionClose, 0.01) {
		t.Error("positive session close wins")
	}
	if IsWin(ExitSessionClose, 0) {
		t.Error("flat session close does not win")
	}
}

func TestClassifyAdd(t *testing.T) {
	if ClassifyAdd(12.5) != AddScaleIntoWinner {
		t.Error("positive unrealized should scale into winner")
	}
	if ClassifyAdd(0) != AddAverageIntoLoser {
		t.Error("zero unrealized counts as averaging into loser")
	}
	if ClassifyAdd(-3) != AddAverageIntoLoser {
		t.Error("negative unrealized should average into loser")
	}
}
