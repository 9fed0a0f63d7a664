package engine

import (
	"fmt"
	"sort"
	"time"

	"craftdesk/internal/workshop"
)

// DefaultLookbackDays is used when a window specifies no lookback.
const DefaultLookbackDays = 30

// movingAverageSpan is the sample count of the running moving average.
const movingAverageSpan = 7

// Window selects the snapshot range for history and signal queries.
// Either an explicit [From, To) pair or a lookback-day count; when only To
// is set, From = To minus the lookback.
type Window struct {
	From         *time.Time
	To           *time.Time
	LookbackDays int
}

// Resolve turns the window into a concrete [from, to) range anchored at now.
// An inverted explicit range is an error, never silently corrected.
func (w Window) Resolve(now time.Time) (time.Time, time.Time, error) {
	days := w.LookbackDays
	if days <= 0 {
		days = DefaultLookbackDays
	}
	if days > 365 {
		days = 365
	}
	to := now
	if w.To != nil {
		to = *w.To
	}
	from := to.AddDate(0, 0, -days)
	if w.From != nil {
		from = *w.From
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window: from %s is after to %s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}

// HistoryPoint is one snapshot inside the queried window. MovingAvg is nil
// until enough in-window samples have accumulated.
type HistoryPoint struct {
	SnapshotID int64           `json:"snapshot_id"`
	UnitPrice  int64           `json:"unit_price"`
	CapturedAt time.Time       `json:"captured_at"`
	Source     workshop.Source `json:"source"`
	MovingAvg  *float64        `json:"moving_avg"`
}

// HistoryResult is the windowed price history of one item.
type HistoryResult struct {
	ItemID          string         `json:"item_id"`
	ItemName        string         `json:"item_name"`
	From            time.Time      `json:"from"`
	To              time.Time      `json:"to"`
	Points          []HistoryPoint `json:"points"`
	Average         *float64       `json:"average"`
	WeekdayAverages [7]*float64    `json:"weekday_averages"` // Sunday = 0
	MinPrice        *int64         `json:"min_price"`
	MaxPrice        *int64         `json:"max_price"`
	SampleCount     int            `json:"sample_count"`
}

// QueryPriceHistory computes windowed statistics for one item: the points in
// capture order (ties by snapshot id), a running moving average over the
// last 7 in-window samples, the window average, per-weekday averages, and
// the price spread.
func QueryPriceHistory(s *workshop.State, itemID string, window Window, now time.Time) (*HistoryResult, error) {
	idx := workshop.BuildIndex(s)
	item, ok := idx.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("history for %s: %w", itemID, workshop.ErrItemNotFound)
	}
	from, to, err := window.Resolve(now)
	if err != nil {
		return nil, err
	}

	snaps := snapshotsInWindow(s, itemID, from, to)
	res := &HistoryResult{
		ItemID:      itemID,
		ItemName:    item.Name,
		From:        from,
		To:          to,
		SampleCount: len(snaps),
	}

	var sum float64
	var weekdaySum [7]float64
	var weekdayCount [7]int
	recent := make([]int64, 0, movingAverageSpan)

	for _, p := range snaps {
		point := HistoryPoint{
			SnapshotID: p.ID,
			UnitPrice:  p.UnitPrice,
			CapturedAt: p.CapturedAt,
			Source:     p.Source,
		}
		recent = append(recent, p.UnitPrice)
		if len(recent) > movingAverageSpan {
			recent = recent[1:]
		}
		if len(recent) == movingAverageSpan {
			var windowSum int64
			for _, v := range recent {
				windowSum += v
			}
			point.MovingAvg = f64(float64(windowSum) / float64(movingAverageSpan))
		}
		res.Points = append(res.Points, point)

		sum += float64(p.UnitPrice)
		wd := int(p.CapturedAt.Weekday())
		weekdaySum[wd] += float64(p.UnitPrice)
		weekdayCount[wd]++
		if res.MinPrice == nil || p.UnitPrice < *res.MinPrice {
			res.MinPrice = i64(p.UnitPrice)
		}
		if res.MaxPrice == nil || p.UnitPrice > *res.MaxPrice {
			res.MaxPrice = i64(p.UnitPrice)
		}
	}

	if len(snaps) > 0 {
		res.Average = f64(sum / float64(len(snaps)))
	}
	for wd := 0; wd < 7; wd++ {
		if weekdayCount[wd] > 0 {
			res.WeekdayAverages[wd] = f64(weekdaySum[wd] / float64(weekdayCount[wd]))
		}
	}
	return res, nil
}

// snapshotsInWindow selects an item's snapshots with capturedAt in [from, to),
// ordered by capture time ascending, ties by id ascending.
func snapshotsInWindow(s *workshop.State, itemID string, from, to time.Time) []workshop.PriceSnapshot {
	var snaps []workshop.PriceSnapshot
	for _, p := range s.Prices {
		if p.ItemID != itemID {
			continue
		}
		if p.CapturedAt.Before(from) || !p.CapturedAt.Before(to) {
			continue
		}
		snaps = append(snaps, p)
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].CapturedAt.Equal(snaps[j].CapturedAt) {
			return snaps[i].CapturedAt.Before(snaps[j].CapturedAt)
		}
		return snaps[i].ID < snaps[j].ID
	})
	return snaps
}
