package engine

import (
	"math"
	"testing"
	"time"

	"craftdesk/internal/workshop"
)

func historyState(prices []int64, start time.Time) *workshop.State {
	s := workshop.NewState()
	addItem(s, "a", "Alpha Ore")
	for i, p := range prices {
		addPrice(s, "a", p, start.AddDate(0, 0, i))
	}
	return s
}

func TestQueryPriceHistory_SevenSampleMovingAverage(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	s := historyState([]int64{100, 110, 90, 120, 95, 105, 115, 100}, start)
	now := start.AddDate(0, 0, 9)

	res, err := QueryPriceHistory(s, "a", Window{LookbackDays: 30}, now)
	if err != nil {
		t.Fatalf("QueryPriceHistory: %v", err)
	}
	if res.SampleCount != 8 {
		t.Fatalf("sampleCount = %d, want 8", res.SampleCount)
	}
	// The first 6 points have no moving average yet.
	for i := 0; i < 6; i++ {
		if res.Points[i].MovingAvg != nil {
			t.Errorf("point %d movingAvg = %v, want nil", i, *res.Points[i].MovingAvg)
		}
	}
	// 8th point: mean(110,90,120,95,105,115,100) = 735/7 = 105.
	last := res.Points[7]
	if last.MovingAvg == nil || math.Abs(*last.MovingAvg-105) > 1e-9 {
		t.Errorf("8th point movingAvg = %v, want 105", last.MovingAvg)
	}
	// Window average: (100+110+90+120+95+105+115+100)/8 = 835/8 = 104.375.
	if res.Average == nil || math.Abs(*res.Average-104.375) > 1e-9 {
		t.Errorf("average = %v, want 104.375", res.Average)
	}
	if res.MinPrice == nil || *res.MinPrice != 90 {
		t.Errorf("minPrice = %v, want 90", res.MinPrice)
	}
	if res.MaxPrice == nil || *res.MaxPrice != 120 {
		t.Errorf("maxPrice = %v, want 120", res.MaxPrice)
	}
}

func TestQueryPriceHistory_MovingAverageCountsOnlyInWindowSamples(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	// 10 old samples followed by 3 recent ones.
	prices := []int64{50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 100, 110, 90}
	s := historyState(prices, start)
	// Window covering only the last 3 samples: the moving average must stay
	// nil because fewer than 7 samples fall inside the window, even though
	// the item has more history globally.
	now := start.AddDate(0, 0, 13)
	res, err := QueryPriceHistory(s, "a", Window{LookbackDays: 4}, now)
	if err != nil {
		t.Fatalf("QueryPriceHistory: %v", err)
	}
	if res.SampleCount != 3 {
		t.Fatalf("sampleCount = %d, want 3", res.SampleCount)
	}
	for i, p := range res.Points {
		if p.MovingAvg != nil {
			t.Errorf("point %d movingAvg = %v, want nil", i, *p.MovingAvg)
		}
	}
}

func TestQueryPriceHistory_WeekdayAverages(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC) // a Monday
	s := workshop.NewState()
	addItem(s, "a", "Alpha Ore")
	addPrice(s, "a", 100, start)                  // Monday
	addPrice(s, "a", 200, start.AddDate(0, 0, 7)) // next Monday
	addPrice(s, "a", 80, start.AddDate(0, 0, 1))  // Tuesday
	now := start.AddDate(0, 0, 10)

	res, err := QueryPriceHistory(s, "a", Window{LookbackDays: 30}, now)
	if err != nil {
		t.Fatalf("QueryPriceHistory: %v", err)
	}
	monday := int(start.Weekday())
	tuesday := int(start.AddDate(0, 0, 1).Weekday())
	if got := res.WeekdayAverages[monday]; got == nil || *got != 150 {
		t.Errorf("monday average = %v, want 150", got)
	}
	if got := res.WeekdayAverages[tuesday]; got == nil || *got != 80 {
		t.Errorf("tuesday average = %v, want 80", got)
	}
	for wd := 0; wd < 7; wd++ {
		if wd == monday || wd == tuesday {
			continue
		}
		if res.WeekdayAverages[wd] != nil {
			t.Errorf("weekday %d average = %v, want nil", wd, *res.WeekdayAverages[wd])
		}
	}
}

func TestWindow_Resolve(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// Default lookback is 30 days.
	from, to, err := Window{}.Resolve(now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !to.Equal(now) || !from.Equal(now.AddDate(0, 0, -30)) {
		t.Errorf("default window = [%v, %v)", from, to)
	}

	// Lookback clamps to 365.
	from, to, err = Window{LookbackDays: 5000}.Resolve(now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !from.Equal(to.AddDate(0, 0, -365)) {
		t.Errorf("clamped window spans %v", to.Sub(from))
	}

	// Only To given: From = To − lookback.
	end := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	from, to, err = Window{To: &end, LookbackDays: 7}.Resolve(now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !to.Equal(end) || !from.Equal(end.AddDate(0, 0, -7)) {
		t.Errorf("to-anchored window = [%v, %v)", from, to)
	}
}

func TestWindow_InvertedRangeIsError(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	from := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if _, _, err := (Window{From: &from, To: &to}).Resolve(now); err == nil {
		t.Error("Resolve(inverted range) = nil error, want error")
	}
}

func TestQueryPriceHistory_UnknownItem(t *testing.T) {
	s := workshop.NewState()
	if _, err := QueryPriceHistory(s, "nope", Window{}, time.Now()); err == nil {
		t.Error("QueryPriceHistory(unknown item) = nil error, want error")
	}
}

func TestQueryPriceHistory_WindowBoundsAreHalfOpen(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := workshop.NewState()
	addItem(s, "a", "Alpha Ore")
	addPrice(s, "a", 100, start)                  // exactly at from: included
	addPrice(s, "a", 200, start.AddDate(0, 0, 5)) // exactly at to: excluded
	end := start.AddDate(0, 0, 5)
	res, err := QueryPriceHistory(s, "a", Window{From: &start, To: &end}, end)
	if err != nil {
		t.Fatalf("QueryPriceHistory: %v", err)
	}
	if res.SampleCount != 1 || res.Points[0].UnitPrice != 100 {
		t.Errorf("samples = %d, want only the price at the window start", res.SampleCount)
	}
}
