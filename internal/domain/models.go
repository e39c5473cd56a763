package domain

import (
	"regexp"
	"time"
)

var mapCodePattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}$`)

// MapCode is a creative island code in the XXXX-XXXX-XXXX shape.
type MapCode string

func ParseMapCode(raw string) (MapCode, error) {
	if raw == "" {
		return "", ErrMapCodeRequired
	}
	if !mapCodePattern.MatchString(raw) {
		return "", ErrInvalidMapCode
	}
	return MapCode(raw), nil
}

func (c MapCode) String() string { return string(c) }

type ExtractOptions struct {
	IncludeDaily   bool
	IncludeMonthly bool
}

type Snapshot struct {
	MapCode     MapCode  `json:"mapCode"`
	PlayerCount int      `json:"playerCount"`
	Rank        string   `json:"rank,omitempty"`
	Title       string   `json:"title,omitempty"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags"`
}

type DailyRecord struct {
	Date              string  `json:"date"`
	Peak              int     `json:"peak"`
	Gain              int     `json:"gain"`
	GainPercent       float64 `json:"gainPercent"`
	Average           int     `json:"average"`
	AvgGain           int     `json:"avgGain"`
	AvgGainPercent    float64 `json:"avgGainPercent"`
	EstimatedEarnings string  `json:"estimatedEarnings"`
}

type MonthlyRecord struct {
	Month             string  `json:"month"`
	Peak              int     `json:"peak"`
	Gain              int     `json:"gain"`
	GainPercent       float64 `json:"gainPercent"`
	Average           int     `json:"average"`
	AvgGain           int     `json:"avgGain"`
	AvgGainPercent    float64 `json:"avgGainPercent"`
	EstimatedEarnings string  `json:"estimatedEarnings"`
}

// Extraction is everything read from one island page. Daily and Monthly
// are nil when not requested or when their sub-extraction failed.
type Extraction struct {
	Snapshot Snapshot
	Daily    []DailyRecord
	Monthly  []MonthlyRecord
}

type IslandStats struct {
	Snapshot
	ScrapedAt      time.Time       `json:"scrapedAt"`
	HistoricalData []DailyRecord   `json:"historicalData,omitempty"`
	MonthlyData    []MonthlyRecord `json:"monthlyData,omitempty"`
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type ForecastedDay struct {
	Date             string     `json:"date"`
	PredictedPeak    int        `json:"predictedPeak"`
	PredictedAverage int        `json:"predictedAverage"`
	Confidence       Confidence `json:"confidence"`
	IsForecasted     bool       `json:"isForecasted"`
}

type ForecastedMonth struct {
	Month            string `json:"month"`
	PredictedPeak    int    `json:"predictedPeak"`
	PredictedAverage int    `json:"predictedAverage"`
	TotalDays        int    `json:"totalDays"`
}

type PeakAverage struct {
	Peak    int `json:"peak"`
	Average int `json:"average"`
}

type Multiplier struct {
	Peak    float64 `json:"peak"`
	Average float64 `json:"average"`
}

type MonthlyTrend struct {
	PeakTrendPercent    float64 `json:"peakTrendPercent"`
	AverageTrendPercent float64 `json:"averageTrendPercent"`
}

type CyclicalPatterns struct {
	DayOfWeekMultipliers map[string]Multiplier `json:"dayOfWeekMultipliers"`
	WeeklyVariation      float64               `json:"weeklyVariation"`
}

type Methodology struct {
	RollingAverageBase     PeakAverage      `json:"rollingAverageBase"`
	MonthlyTrendAdjustment MonthlyTrend     `json:"monthlyTrendAdjustment"`
	CyclicalPatterns       CyclicalPatterns `json:"cyclicalPatterns"`
	Confidence             string           `json:"confidence"`
}

type ForecastResult struct {
	ForecastedDays  []ForecastedDay `json:"forecastedDays"`
	ForecastedMonth ForecastedMonth `json:"forecastedMonth"`
	Methodology     Methodology     `json:"methodology"`
}

type StoredSeries struct {
	MapCode MapCode         `json:"mapCode"`
	Latest  *IslandStats    `json:"latest"`
	Daily   []DailyRecord   `json:"historicalData"`
	Monthly []MonthlyRecord `json:"monthlyData"`
}
