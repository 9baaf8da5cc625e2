package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/radiusdt/adsight/internal/models"
)

// chQuerier is the part of driver.Conn the record source needs.
type chQuerier interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// clickHousePeriodQuery casts every column so scans into Go types are exact.
const clickHousePeriodQuery = `
	SELECT toDate(report_month),
		toString(ifNull(platform, '')), toString(ifNull(region, '')),
		toString(ifNull(age_group, '')), toString(ifNull(gender, '')),
		toFloat64(ifNull(spend, 0)), toFloat64(ifNull(revenue, 0)),
		toInt64(ifNull(impressions, 0)), toInt64(ifNull(video_starts, 0)),
		toInt64(ifNull(views_3s, 0)), toInt64(ifNull(views_25, 0)),
		toInt64(ifNull(views_50, 0)), toInt64(ifNull(views_100, 0)),
		toInt64(ifNull(clicks, 0)), toInt64(ifNull(conversions, 0))
	FROM video_ad_performance
	WHERE toDate(report_month) = toDate(?)`

// ClickHouseRecordSource reads video_ad_performance from a ClickHouse
// warehouse.
type ClickHouseRecordSource struct {
	conn chQuerier
}

// NewClickHouseRecordSource creates a record source backed by conn.
func NewClickHouseRecordSource(conn chQuerier) *ClickHouseRecordSource {
	return &ClickHouseRecordSource{conn: conn}
}

// FetchPeriod returns every record whose report_month equals period.
func (s *ClickHouseRecordSource) FetchPeriod(ctx context.Context, period string) ([]models.Record, error) {
	month, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, clickHousePeriodQuery, month.Format(periodLayout))
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
