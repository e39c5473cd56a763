package forecast

import (
	"math"

	"island-tracker/internal/domain"
)

const (
	DefaultTrendWindow = 14
	maxDailyChange     = 0.5
	maxMonthlyPercent  = 50.0
)

type Trend struct {
	Peak    float64
	Average float64
}

// RecentTrend is a weighted mean of day-over-day relative changes over the
// first days records, which must be ordered most-recent-first. The newest
// transition has weight 1, the next 1/2, and so on; each change is clamped
// to ±50% so one viral day cannot dominate.
func RecentTrend(sorted []domain.DailyRecord, days int) Trend {
	if days < 2 || len(sorted) < days {
		return Trend{}
	}

	recent := sorted[:days]
	var peakSum, avgSum, weightSum float64
	for i := 1; i < len(recent); i++ {
		weight := 1 / float64(i)

		peakChange := relativeChange(recent[i-1].Peak, recent[i].Peak)
		avgChange := relativeChange(recent[i-1].Average, recent[i].Average)

		peakSum += clamp(peakChange, -maxDailyChange, maxDailyChange) * weight
		avgSum += clamp(avgChange, -maxDailyChange, maxDailyChange) * weight
		weightSum += weight
	}

	return Trend{Peak: peakSum / weightSum, Average: avgSum / weightSum}
}

func relativeChange(current, previous int) float64 {
	base := previous
	if base == 0 {
		base = 1
	}
	return float64(current-previous) / float64(base)
}

// MonthlyTrend is the percent change between the two newest months, each
// clamped to ±50. ok is false when fewer than two months exist or the older
// month has no players to compare against.
func MonthlyTrend(sorted []domain.MonthlyRecord) (domain.MonthlyTrend, bool) {
	if len(sorted) < 2 {
		return domain.MonthlyTrend{}, false
	}
	last, prev := sorted[0], sorted[1]
	if prev.Peak <= 0 || prev.Average <= 0 {
		return domain.MonthlyTrend{}, false
	}

	rawPeak := float64(last.Peak-prev.Peak) / float64(prev.Peak) * 100
	rawAvg := float64(last.Average-prev.Average) / float64(prev.Average) * 100

	return domain.MonthlyTrend{
		PeakTrendPercent:    clamp(rawPeak, -maxMonthlyPercent, maxMonthlyPercent),
		AverageTrendPercent: clamp(rawAvg, -maxMonthlyPercent, maxMonthlyPercent),
	}, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
