package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/radiusdt/adsight/internal/models"
)

// pgxQuerier is the part of *pgxpool.Pool the record source needs.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// postgresPeriodQuery reads one reporting period. NULL counters are
// coalesced to zero in the database.
const postgresPeriodQuery = `
	SELECT report_month,
		COALESCE(platform, ''), COALESCE(region, ''), COALESCE(age_group, ''), COALESCE(gender, ''),
		COALESCE(spend, 0)::float8, COALESCE(revenue, 0)::float8,
		COALESCE(impressions, 0)::bigint, COALESCE(video_starts, 0)::bigint,
		COALESCE(views_3s, 0)::bigint, COALESCE(views_25, 0)::bigint,
		COALESCE(views_50, 0)::bigint, COALESCE(views_100, 0)::bigint,
		COALESCE(clicks, 0)::bigint, COALESCE(conversions, 0)::bigint
	FROM video_ad_performance
	WHERE report_month = $1`

// PostgresRecordSource reads video_ad_performance from PostgreSQL (Supabase
// included).
type PostgresRecordSource struct {
	db pgxQuerier
}

// NewPostgresRecordSource creates a record source backed by db, typically a
// *pgxpool.Pool.
func NewPostgresRecordSource(db pgxQuerier) *PostgresRecordSource {
	return &PostgresRecordSource{db: db}
}

// FetchPeriod returns every record whose report_month equals period.
func (s *PostgresRecordSource) FetchPeriod(ctx context.Context, period string) ([]models.Record, error) {
	month, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, postgresPeriodQuery, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query period %s: %w", period, err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(
			&r.ReportMonth, &r.Platform, &r.Region, &r.AgeGroup, &r.Gender,
			&r.Spend, &r.Revenue,
			&r.Impressions, &r.VideoStarts, &r.Views3s, &r.Views25, &r.Views50, &r.Views100,
			&r.Clicks, &r.Conversions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read period %s: %w", period, err)
	}

	return records, nil
}
