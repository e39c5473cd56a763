package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"island-tracker/internal/constants"
	"island-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const dayLayout = "2006-01-02"

type StatsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStatsRepository(sqlDB *sql.DB, logger zerolog.Logger) *StatsRepository {
	return &StatsRepository{
		db:     sqlDB,
		logger: logger.With().Str("component", "stats_repository").Logger(),
	}
}

// Save records a scrape: the island row is replaced and series rows are
// upserted by (map code, label), so repeated scrapes extend the history.
func (r *StatsRepository) Save(ctx context.Context, stats *domain.IslandStats) error {
	tags, err := json.Marshal(stats.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO islands (map_code, title, author, rank, tags, player_count, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (map_code) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			rank = excluded.rank,
			tags = excluded.tags,
			player_count = excluded.player_count,
			scraped_at = excluded.scraped_at,
			updated_at = CURRENT_TIMESTAMP`,
		stats.MapCode.String(), stats.Title, stats.Author, stats.Rank, string(tags), stats.PlayerCount, stats.ScrapedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert island: %w", err)
	}

	rows := make([]seriesRow, 0, len(stats.HistoricalData))
	for _, d := range stats.HistoricalData {
		rows = append(rows, dailyRow(d, stats.ScrapedAt))
	}
	if err := r.upsertSeries(ctx, tx, dailyTable, stats.MapCode, rows, stats.ScrapedAt); err != nil {
		return err
	}

	rows = rows[:0]
	for _, m := range stats.MonthlyData {
		rows = append(rows, monthlyRow(m, stats.ScrapedAt))
	}
	if err := r.upsertSeries(ctx, tx, monthlyTable, stats.MapCode, rows, stats.ScrapedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stats: %w", err)
	}

	r.logger.Debug().
		Str("map_code", stats.MapCode.String()).
		Int("days", len(stats.HistoricalData)).
		Int("months", len(stats.MonthlyData)).
		Msg("stats saved")
	return nil
}

type seriesTable struct {
	name    string
	dateCol string
}

var (
	dailyTable   = seriesTable{name: "daily_stats", dateCol: "day"}
	monthlyTable = seriesTable{name: "monthly_stats", dateCol: "month"}
)

type seriesRow struct {
	label             string
	sortKey           sql.NullString
	peak              int
	gain              int
	gainPercent       float64
	average           int
	avgGain           int
	avgGainPercent    float64
	estimatedEarnings string
}

func dailyRow(d domain.DailyRecord, ref time.Time) seriesRow {
	return seriesRow{
		label:             d.Date,
		sortKey:           sortKey(d.Date, ref),
		peak:              d.Peak,
		gain:              d.Gain,
		gainPercent:       d.GainPercent,
		average:           d.Average,
		avgGain:           d.AvgGain,
		avgGainPercent:    d.AvgGainPercent,
		estimatedEarnings: d.EstimatedEarnings,
	}
}

func monthlyRow(m domain.MonthlyRecord, ref time.Time) seriesRow {
	return seriesRow{
		label:             m.Month,
		sortKey:           sortKey(m.Month, ref),
		peak:              m.Peak,
		gain:              m.Gain,
		gainPercent:       m.GainPercent,
		average:           m.Average,
		avgGain:           m.AvgGain,
		avgGainPercent:    m.AvgGainPercent,
		estimatedEarnings: m.EstimatedEarnings,
	}
}

func sortKey(label string, ref time.Time) sql.NullString {
	at, ok := domain.ParseLabel(label, ref)
	if !ok {
		return sql.NullString{}
	}
	return sql.NullString{String: at.Format(dayLayout), Valid: true}
}

func (r *StatsRepository) upsertSeries(ctx context.Context, tx *sql.Tx, table seriesTable, code domain.MapCode, rows []seriesRow, at time.Time) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (id, map_code, label, %[2]s, peak, gain, gain_percent, average, avg_gain, avg_gain_percent, estimated_earnings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (map_code, label) DO UPDATE SET
			%[2]s = excluded.%[2]s,
			peak = excluded.peak,
			gain = excluded.gain,
			gain_percent = excluded.gain_percent,
			average = excluded.average,
			avg_gain = excluded.avg_gain,
			avg_gain_percent = excluded.avg_gain_percent,
			estimated_earnings = excluded.estimated_earnings,
			updated_at = excluded.updated_at`, table.name, table.dateCol))
	if err != nil {
		return fmt.Errorf("failed to prepare %s upsert: %w", table.name, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			id, code.String(), row.label, row.sortKey,
			row.peak, row.gain, row.gainPercent,
			row.average, row.avgGain, row.avgGainPercent,
			row.estimatedEarnings, at.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert %s row %d: %w", table.name, i, err)
		}
		if (i+1)%constants.DBBatchSize == 0 {
			r.logger.Debug().Str("table", table.name).Int("rows", i+1).Msg("series upsert progress")
		}
	}
	return nil
}

// Island returns the most recent stored snapshot for code.
func (r *StatsRepository) Island(ctx context.Context, code domain.MapCode) (*domain.IslandStats, error) {
	var (
		stats domain.IslandStats
		tags  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT map_code, title, author, rank, tags, player_count, scraped_at
		FROM islands WHERE map_code = ?`, code.String(),
	).Scan(&stats.MapCode, &stats.Title, &stats.Author, &stats.Rank, &tags, &stats.PlayerCount, &stats.ScrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no stored stats for %s", domain.ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load island: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &stats.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if stats.Tags == nil {
		stats.Tags = []string{}
	}
	return &stats, nil
}

// Series returns up to dailyLimit days and monthlyLimit months, newest
// first. Rows whose label never parsed sort last.
func (r *StatsRepository) Series(ctx context.Context, code domain.MapCode, dailyLimit, monthlyLimit int) (*domain.StoredSeries, error) {
	out := &domain.StoredSeries{
		MapCode: code,
		Daily:   []domain.DailyRecord{},
		Monthly: []domain.MonthlyRecord{},
	}

	err := r.scanSeries(ctx, dailyTable, code, dailyLimit, func(row seriesRow) {
		out.Daily = append(out.Daily, domain.DailyRecord{
			Date:              row.label,
			Peak:              row.peak,
			Gain:              row.gain,
			GainPercent:       row.gainPercent,
			Average:           row.average,
			AvgGain:           row.avgGain,
			AvgGainPercent:    row.avgGainPercent,
			EstimatedEarnings: row.estimatedEarnings,
		})
	})
	if err != nil {
		return nil, err
	}

	err = r.scanSeries(ctx, monthlyTable, code, monthlyLimit, func(row seriesRow) {
		out.Monthly = append(out.Monthly, domain.MonthlyRecord{
			Month:             row.label,
			Peak:              row.peak,
			Gain:              row.gain,
			GainPercent:       row.gainPercent,
			Average:           row.average,
			AvgGain:           row.avgGain,
			AvgGainPercent:    row.avgGainPercent,
			EstimatedEarnings: row.estimatedEarnings,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *StatsRepository) scanSeries(ctx context.Context, table seriesTable, code domain.MapCode, limit int, fn func(seriesRow)) error {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT label, %[2]s, peak, gain, gain_percent, average, avg_gain, avg_gain_percent, estimated_earnings
		FROM %[1]s
		WHERE map_code = ?
		ORDER BY %[2]s IS NULL, %[2]s DESC, updated_at DESC
		LIMIT ?`, table.name, table.dateCol), code.String(), limit)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row seriesRow
		if err := rows.Scan(
			&row.label, &row.sortKey,
			&row.peak, &row.gain, &row.gainPercent,
			&row.average, &row.avgGain, &row.avgGainPercent,
			&row.estimatedEarnings,
		); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", table.name, err)
		}
		fn(row)
	}
	return rows.Err()
}

// Ping reports whether the store is reachable.
func (r *StatsRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return r.db.PingContext(ctx)
}
