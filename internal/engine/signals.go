package engine

import (
	"sort"
	"strings"
	"time"

	"craftdesk/internal/workshop"
)

// SignalQuery selects the window and optionally overrides the persisted
// signal rule for one detection pass.
type SignalQuery struct {
	Window Window
	Rule   *workshop.SignalRule // nil uses the state's persisted rule
}

// SignalRow is the deviation verdict for one item. DeviationRatio is nil
// when no deviation is computable (no in-window samples on the latest
// point's weekday, or a zero weekday average).
type SignalRow struct {
	ItemID         string    `json:"item_id"`
	ItemName       string    `json:"item_name"`
	LatestPrice    int64     `json:"latest_price"`
	LatestAt       time.Time `json:"latest_at"`
	Weekday        int       `json:"weekday"`
	WeekdayAverage *float64  `json:"weekday_average"`
	DeviationRatio *float64  `json:"deviation_ratio"`
	SampleCount    int       `json:"sample_count"`
	Triggered      bool      `json:"triggered"`
}

// SignalResult carries the ranked rows plus the rule and window actually used.
type SignalResult struct {
	From time.Time           `json:"from"`
	To   time.Time           `json:"to"`
	Rule workshop.SignalRule `json:"rule"`
	Rows []SignalRow         `json:"rows"`
}

// ComputeSignals evaluates every item with in-window price data against the
// signal rule: the latest in-window price is compared with that point's own
// weekday average, and the row triggers when the rule is enabled and the
// deviation ratio is at or below the negative threshold.
//
// Ranking: triggered rows first, then ascending deviation ratio (more
// negative first) with incomputable deviations last, ties broken by sample
// count descending, then item name ascending.
func ComputeSignals(s *workshop.State, q SignalQuery, now time.Time) (*SignalResult, error) {
	rule := s.Rule
	if q.Rule != nil {
		rule = *q.Rule
	}
	rule = rule.Clamped()

	window := q.Window
	if window.LookbackDays <= 0 && window.From == nil && window.To == nil {
		window.LookbackDays = rule.LookbackDays
	}
	from, to, err := window.Resolve(now)
	if err != nil {
		return nil, err
	}

	res := &SignalResult{From: from, To: to, Rule: rule}
	for i := range s.Items {
		item := &s.Items[i]
		snaps := snapshotsInWindow(s, item.ID, from, to)
		if len(snaps) == 0 {
			continue
		}
		latest := snaps[len(snaps)-1]
		row := SignalRow{
			ItemID:      item.ID,
			ItemName:    item.Name,
			LatestPrice: latest.UnitPrice,
			LatestAt:    latest.CapturedAt,
			Weekday:     int(latest.CapturedAt.Weekday()),
			SampleCount: len(snaps),
		}

		var wdSum float64
		var wdCount int
		for _, p := range snaps {
			if p.CapturedAt.Weekday() == latest.CapturedAt.Weekday() {
				wdSum += float64(p.UnitPrice)
				wdCount++
			}
		}
		if wdCount > 0 {
			avg := wdSum / float64(wdCount)
			row.WeekdayAverage = f64(avg)
			if avg != 0 {
				dev := (float64(latest.UnitPrice) - avg) / avg
				row.DeviationRatio = f64(dev)
				row.Triggered = rule.Enabled && dev <= -rule.DropRatio
			}
		}
		res.Rows = append(res.Rows, row)
	}

	sort.Slice(res.Rows, func(i, j int) bool {
		a, b := res.Rows[i], res.Rows[j]
		if a.Triggered != b.Triggered {
			return a.Triggered
		}
		if c := compareDeviationAsc(a.DeviationRatio, b.DeviationRatio); c != 0 {
			return c < 0
		}
		if a.SampleCount != b.SampleCount {
			return a.SampleCount > b.SampleCount
		}
		return strings.ToLower(a.ItemName) < strings.ToLower(b.ItemName)
	})
	return res, nil
}

// compareDeviationAsc orders known deviations ascending with nil last.
func compareDeviationAsc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}
