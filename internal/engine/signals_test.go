package engine

import (
	"math"
	"testing"
	"time"

	"craftdesk/internal/workshop"
)

// signalFixture builds an item whose latest price lands on the same weekday
// as one earlier sample, so the weekday average is (earlier+latest)/2.
func signalFixture(s *workshop.State, id, name string, earlier, latest int64, start time.Time) {
	addItem(s, id, name)
	addPrice(s, id, earlier, start)
	addPrice(s, id, latest, start.AddDate(0, 0, 7))
}

func TestComputeSignals_ThresholdBoundary(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 0, 10)
	s := workshop.NewState()
	// Both items have a weekday average of 100 for the latest point's
	// weekday. At threshold 0.08: 85 gives ratio −0.15 and triggers,
	// 95 gives −0.05 and does not.
	signalFixture(s, "drop", "Dropping Ore", 115, 85, start)
	signalFixture(s, "flat", "Flat Ore", 105, 95, start)
	s.Rule = workshop.SignalRule{Enabled: true, LookbackDays: 30, DropRatio: 0.08}

	res, err := ComputeSignals(s, SignalQuery{}, now)
	if err != nil {
		t.Fatalf("ComputeSignals: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}

	first := res.Rows[0]
	if first.ItemID != "drop" || !first.Triggered {
		t.Errorf("first row = %+v, want triggered Dropping Ore", first)
	}
	if first.DeviationRatio == nil || math.Abs(*first.DeviationRatio-(-0.15)) > 1e-9 {
		t.Errorf("deviation = %v, want -0.15", first.DeviationRatio)
	}

	second := res.Rows[1]
	if second.ItemID != "flat" || second.Triggered {
		t.Errorf("second row = %+v, want non-triggered Flat Ore", second)
	}
	if second.DeviationRatio == nil || math.Abs(*second.DeviationRatio-(-0.05)) > 1e-9 {
		t.Errorf("deviation = %v, want -0.05", second.DeviationRatio)
	}
}

func TestComputeSignals_DisabledRuleNeverTriggers(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 0, 10)
	s := workshop.NewState()
	signalFixture(s, "drop", "Dropping Ore", 150, 50, start)
	s.Rule = workshop.SignalRule{Enabled: false, LookbackDays: 30, DropRatio: 0.08}

	res, err := ComputeSignals(s, SignalQuery{}, now)
	if err != nil {
		t.Fatalf("ComputeSignals: %v", err)
	}
	if res.Rows[0].Triggered {
		t.Error("row triggered with disabled rule")
	}
	// The deviation is still reported so the UI can show it.
	if res.Rows[0].DeviationRatio == nil {
		t.Error("deviation = nil, want -0.5")
	}
}

func TestComputeSignals_RuleOverride(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 0, 10)
	s := workshop.NewState()
	signalFixture(s, "drop", "Dropping Ore", 110, 90, start) // ratio -0.1
	s.Rule = workshop.SignalRule{Enabled: true, LookbackDays: 30, DropRatio: 0.25}

	// Persisted threshold 0.25 leaves the row quiet; the per-query override
	// at 0.05 triggers it.
	res, err := ComputeSignals(s, SignalQuery{}, now)
	if err != nil {
		t.Fatalf("ComputeSignals: %v", err)
	}
	if res.Rows[0].Triggered {
		t.Error("row triggered at persisted threshold 0.25")
	}

	override := workshop.SignalRule{Enabled: true, LookbackDays: 30, DropRatio: 0.05}
	res, err = ComputeSignals(s, SignalQuery{Rule: &override}, now)
	if err != nil {
		t.Fatalf("ComputeSignals: %v", err)
	}
	if !res.Rows[0].Triggered {
		t.Error("row not triggered at override threshold 0.05")
	}
}

func TestComputeSignals_Ranking(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 0, 10)
	s := workshop.NewState()
	signalFixture(s, "deep", "Deep Drop", 140, 60, start) // ratio -0.4, triggers
	signalFixture(s, "mild", "Mild Drop", 110, 90, start) // ratio -0.1, triggers
	signalFixture(s, "up", "Rising Ore", 90, 110, start)  // ratio +0.1
	addItem(s, "none", "Silent Ore")                      // no samples: excluded
	s.Rule = workshop.SignalRule{Enabled: true, LookbackDays: 30, DropRatio: 0.08}

	res, err := ComputeSignals(s, SignalQuery{}, now)
	if err != nil {
		t.Fatalf("ComputeSignals: %v", err)
	}
	want := []string{"deep", "mild", "up"}
	if len(res.Rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(res.Rows), len(want))
	}
	for i, id := range want {
		if res.Rows[i].ItemID != id {
			t.Errorf("rank %d = %s, want %s", i, res.Rows[i].ItemID, id)
		}
	}
}

func TestComputeSignals_ZeroWeekdayAverageHasNoDeviation(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 0, 10)
	s := workshop.NewState()
	signalFixture(s, "free", "Free Ore", 0, 0, start)
	signalFixture(s, "drop", "Dropping Ore", 110, 90, start)
	s.Rule = workshop.SignalRule{Enabled: true, LookbackDays: 30, DropRatio: 0.08}

	res, err := ComputeSignals(s, SignalQuery{}, now)
	if err != nil {
		t.Fatalf("ComputeSignals: %v", err)
	}
	// Incomputable deviation sorts last.
	last := res.Rows[len(res.Rows)-1]
	if last.ItemID != "free" || last.DeviationRatio != nil || last.Triggered {
		t.Errorf("last row = %+v, want undeviated Free Ore", last)
	}
}
