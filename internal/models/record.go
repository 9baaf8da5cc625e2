package models

import "time"

// ===========================================
// SOURCE DATASET
// ===========================================

// TableName is the only table generated queries may read from.
const TableName = "video_ad_performance"

// Dimension columns of the dataset. Filters and grouping only understand these.
const (
	DimensionPlatform = "platform"
	DimensionRegion   = "region"
	DimensionAgeGroup = "age_group"
	DimensionGender   = "gender"
)

// Dimensions lists the dimension columns in the order filters are extracted.
var Dimensions = []string{DimensionPlatform, DimensionRegion, DimensionAgeGroup, DimensionGender}

// Known dimension values. They describe the dataset to the query generator;
// records carrying other values are still aggregated.
var (
	Platforms = []string{"Meta", "TikTok", "YouTube", "Snapchat"}
	Regions   = []string{"North America", "Europe", "Asia Pacific", "Latin America"}
	AgeGroups = []string{"18-24", "25-34", "35-44", "45+"}
	Genders   = []string{"Male", "Female"}
)

// Record is one row of video_ad_performance. Records are immutable facts;
// adapters coalesce NULL counters to zero before handing them out.
type Record struct {
	ReportMonth time.Time `json:"report_month"`
	Platform    string    `json:"platform"`
	Region      string    `json:"region"`
	AgeGroup    string    `json:"age_group"`
	Gender      string    `json:"gender"`

	// Monetary
	Spend   float64 `json:"spend"`
	Revenue float64 `json:"revenue"`

	// Delivery
	Impressions int64 `json:"impressions"`
	VideoStarts int64 `json:"video_starts"`
	Views3s     int64 `json:"views_3s"`
	Views25     int64 `json:"views_25"`
	Views50     int64 `json:"views_50"`
	Views100    int64 `json:"views_100"`

	// Response
	Clicks      int64 `json:"clicks"`
	Conversions int64 `json:"conversions"`
}

// DimensionValue returns the record's value for a dimension column.
// ok is false for unknown columns.
func (r *Record) DimensionValue(column string) (value string, ok bool) {
	switch column {
	case DimensionPlatform:
		return r.Platform, true
	case DimensionRegion:
		return r.Region, true
	case DimensionAgeGroup:
		return r.AgeGroup, true
	case DimensionGender:
		return r.Gender, true
	}
	return "", false
}

// IsDimension reports whether column is one of the known dimension columns.
func IsDimension(column string) bool {
	for _, d := range Dimensions {
		if d == column {
			return true
		}
	}
	return false
}

// ===========================================
// AGGREGATE
// ===========================================

// Aggregate holds summed counters and the ratios derived from them for one
// group (or for the whole record set).
type Aggregate struct {
	Rows int `json:"rows"`

	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
	Impressions int64   `json:"impressions"`
	VideoStarts int64   `json:"video_starts"`
	Views3s     int64   `json:"views_3s"`
	Views25     int64   `json:"views_25"`
	Views50     int64   `json:"views_50"`
	Views100    int64   `json:"views_100"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`

	// Derived
	ROAS           float64 `json:"roas"`            // revenue / spend, whole number
	CTR            float64 `json:"ctr"`             // clicks / impressions * 100
	CPA            float64 `json:"cpa"`             // spend / conversions
	ConversionRate float64 `json:"conversion_rate"` // conversions / clicks * 100
	CompletionRate float64 `json:"completion_rate"` // views_100 / video_starts * 100
	CPM            float64 `json:"cpm"`             // spend / impressions * 1000
}
