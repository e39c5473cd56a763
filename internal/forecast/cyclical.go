package forecast

import (
	"math"
	"time"

	"island-tracker/internal/domain"
)

var weekdays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

type weekdayBucket struct {
	peaks    []int
	averages []int
}

// AnalyzeCyclical derives day-of-week multipliers from a daily series.
// Records whose date label does not parse still count toward the overall
// means but belong to no weekday.
func AnalyzeCyclical(daily []domain.DailyRecord, ref time.Time) domain.CyclicalPatterns {
	buckets := make(map[time.Weekday]*weekdayBucket, len(weekdays))
	for _, wd := range weekdays {
		buckets[wd] = &weekdayBucket{}
	}

	peaks := make([]int, 0, len(daily))
	averages := make([]int, 0, len(daily))
	for _, d := range daily {
		peaks = append(peaks, d.Peak)
		averages = append(averages, d.Average)
		if at, ok := domain.ParseLabel(d.Date, ref); ok {
			b := buckets[at.Weekday()]
			b.peaks = append(b.peaks, d.Peak)
			b.averages = append(b.averages, d.Average)
		}
	}
	overallPeak := mean(peaks)
	overallAvg := mean(averages)

	multipliers := make(map[string]domain.Multiplier, len(weekdays))
	var totalVariation float64
	for _, wd := range weekdays {
		b := buckets[wd]
		if len(b.peaks) == 0 {
			multipliers[wd.String()] = domain.Multiplier{Peak: 1, Average: 1}
			continue
		}
		m := domain.Multiplier{
			Peak:    ratio(mean(b.peaks), overallPeak),
			Average: ratio(mean(b.averages), overallAvg),
		}
		multipliers[wd.String()] = m
		totalVariation += math.Abs(m.Peak-1) + math.Abs(m.Average-1)
	}

	return domain.CyclicalPatterns{
		DayOfWeekMultipliers: multipliers,
		WeeklyVariation:      totalVariation / float64(2*len(weekdays)),
	}
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// ratio is neutral when the overall mean is zero.
func ratio(part, whole float64) float64 {
	if whole == 0 {
		return 1
	}
	return part / whole
}
