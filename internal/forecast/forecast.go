// Package forecast projects island player counts from scraped daily and
// monthly series. It is pure: no I/O, no shared state beyond the injected
// random source.
package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"island-tracker/internal/domain"
)

const (
	MinDailyRecords = 7
	HorizonDays     = 30

	rollingWindow = 7

	minMultiplier = 0.5
	maxMultiplier = 2.0

	monthlyDamping = 0.3
	recentDamping  = 0.2
	trendDecayDays = 21.0

	jitterMin   = 0.95
	jitterSpan  = 0.10
	bufferMin   = 1.05
	bufferSpan  = 0.10
	floorFactor = 0.1
	ceilFactor  = 3.0

	strongVariation   = 0.3
	weakVariation     = 0.1
	moderateVariation = 0.2
)

// Random yields values in [0, 1).
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

type Forecaster struct {
	rng Random
	now func() time.Time
}

func New(rng Random, now func() time.Time) *Forecaster {
	if rng == nil {
		rng = globalRandom{}
	}
	if now == nil {
		now = time.Now
	}
	return &Forecaster{rng: rng, now: now}
}

// NewDefault uses the runtime's goroutine-safe generator and the wall clock.
func NewDefault() *Forecaster {
	return New(nil, nil)
}

// Forecast returns nil when there are fewer than seven daily records.
func (f *Forecaster) Forecast(daily []domain.DailyRecord, monthly []domain.MonthlyRecord) *domain.ForecastResult {
	if len(daily) < MinDailyRecords {
		return nil
	}

	today := f.now()
	sortedDaily := domain.SortDaily(daily, today)

	cyclical := AnalyzeCyclical(sortedDaily, today)
	base := RollingBase(sortedDaily)
	recent := RecentTrend(sortedDaily, DefaultTrendWindow)

	var monthlyTrend domain.MonthlyTrend
	confidence := domain.ConfidenceMedium
	if len(monthly) >= 2 {
		if trend, ok := MonthlyTrend(domain.SortMonthly(monthly, today)); ok {
			monthlyTrend = trend
			confidence = domain.ConfidenceHigh
		}
	} else {
		confidence = domain.ConfidenceLow
	}
	confidence = adjustForCycles(confidence, cyclical.WeeklyVariation)

	peakBounds := boundsFor(base.Peak)
	avgBounds := boundsFor(base.Average)

	monthlyPeak := clamp(1+monthlyTrend.PeakTrendPercent/100*monthlyDamping, minMultiplier, maxMultiplier)
	monthlyAvg := clamp(1+monthlyTrend.AverageTrendPercent/100*monthlyDamping, minMultiplier, maxMultiplier)

	days := make([]domain.ForecastedDay, 0, HorizonDays)
	for i := 1; i <= HorizonDays; i++ {
		date := today.AddDate(0, 0, i)
		dayMult, ok := cyclical.DayOfWeekMultipliers[date.Weekday().String()]
		if !ok {
			dayMult = domain.Multiplier{Peak: 1, Average: 1}
		}

		decay := math.Exp(-float64(i) / trendDecayDays)
		recentPeak := clamp(1+recent.Peak*decay*recentDamping, minMultiplier, maxMultiplier)
		recentAvg := clamp(1+recent.Average*decay*recentDamping, minMultiplier, maxMultiplier)

		peak := math.Round(float64(base.Peak) *
			clamp(dayMult.Peak, minMultiplier, maxMultiplier) *
			monthlyPeak *
			recentPeak *
			f.jitter())
		avg := math.Round(float64(base.Average) *
			clamp(dayMult.Average, minMultiplier, maxMultiplier) *
			monthlyAvg *
			recentAvg *
			f.jitter())

		predictedPeak := peakBounds.apply(int(peak))
		predictedAvg := avgBounds.apply(int(avg))

		if predictedPeak < predictedAvg {
			buffer := bufferMin + f.rng.Float64()*bufferSpan
			predictedPeak = int(math.Round(float64(predictedAvg) * buffer))
			if predictedPeak > peakBounds.hi {
				predictedPeak = max(peakBounds.hi, predictedAvg)
			}
		}

		days = append(days, domain.ForecastedDay{
			Date:             date.Format("Mon, Jan 2"),
			PredictedPeak:    predictedPeak,
			PredictedAverage: predictedAvg,
			Confidence:       DayConfidence(confidence, i),
			IsForecasted:     true,
		})
	}

	return &domain.ForecastResult{
		ForecastedDays:  days,
		ForecastedMonth: summarizeMonth(today, days),
		Methodology: domain.Methodology{
			RollingAverageBase:     base,
			MonthlyTrendAdjustment: monthlyTrend,
			CyclicalPatterns:       cyclical,
			Confidence:             rationale(confidence, len(monthly) > 0, cyclical.WeeklyVariation),
		},
	}
}

// RollingBase is the rounded mean of the newest seven records.
func RollingBase(sorted []domain.DailyRecord) domain.PeakAverage {
	window := sorted[:min(rollingWindow, len(sorted))]
	peaks := make([]int, len(window))
	averages := make([]int, len(window))
	for i, d := range window {
		peaks[i] = d.Peak
		averages[i] = d.Average
	}
	return domain.PeakAverage{
		Peak:    int(math.Round(mean(peaks))),
		Average: int(math.Round(mean(averages))),
	}
}

func (f *Forecaster) jitter() float64 {
	return jitterMin + f.rng.Float64()*jitterSpan
}

type bounds struct {
	lo, hi int
}

// boundsFor keeps a prediction within [max(1, 0.1×base), 3×base].
func boundsFor(base int) bounds {
	return bounds{
		lo: int(math.Ceil(math.Max(1, floorFactor*float64(base)))),
		hi: int(ceilFactor * float64(base)),
	}
}

func (b bounds) apply(v int) int {
	return max(b.lo, min(b.hi, v))
}

func adjustForCycles(c domain.Confidence, variation float64) domain.Confidence {
	switch {
	case variation > strongVariation:
		if c != domain.ConfidenceHigh {
			return domain.ConfidenceMedium
		}
	case variation < weakVariation:
		if c == domain.ConfidenceHigh {
			return domain.ConfidenceMedium
		}
		return domain.ConfidenceLow
	}
	return c
}

// DayConfidence decays the overall confidence with the forecast horizon.
func DayConfidence(base domain.Confidence, day int) domain.Confidence {
	switch {
	case day > 21:
		return domain.ConfidenceLow
	case day > 14:
		if base == domain.ConfidenceHigh {
			return domain.ConfidenceMedium
		}
		return domain.ConfidenceLow
	}
	return base
}

func summarizeMonth(today time.Time, days []domain.ForecastedDay) domain.ForecastedMonth {
	next := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, today.Location())

	var peak, avgSum int
	for _, d := range days {
		peak = max(peak, d.PredictedPeak)
		avgSum += d.PredictedAverage
	}
	return domain.ForecastedMonth{
		Month:            next.Format("January 2006"),
		PredictedPeak:    peak,
		PredictedAverage: int(math.Round(float64(avgSum) / float64(len(days)))),
		TotalDays:        len(days),
	}
}

func rationale(c domain.Confidence, hasMonthly bool, variation float64) string {
	source := "rolling average only"
	if hasMonthly {
		source = "monthly trend data"
	}
	strength := "weak"
	switch {
	case variation > moderateVariation:
		strength = "strong"
	case variation > weakVariation:
		strength = "moderate"
	}
	return fmt.Sprintf("%s confidence based on %s and %s cyclical patterns", c, source, strength)
}
