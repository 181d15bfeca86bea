package models

import (
	"errors"
	"time"
)

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects ranges whose end precedes their start.
func (d DateRange) Validate() error {
	if d.Start.IsZero() || d.End.IsZero() {
		return errors.New("date range start and end are required")
	}
	if d.End.Before(d.Start) {
		return errors.New("date range end precedes start")
	}
	return nil
}

// Contains reports whether t falls inside the range.
func (d DateRange) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// Days returns the number of calendar days the range spans, minimum 1
// for a valid non-empty range.
func (d DateRange) Days() int {
	days := int(d.End.Sub(d.Start).Hours() / 24)
	if d.End.Sub(d.Start)%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// ReportFilter narrows an analysis to a period and optional dimensions.
type ReportFilter struct {
	Period       DateRange `json:"period"`
	CampaignID   string    `json:"campaign_id,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	DiscountType string    `json:"discount_type,omitempty"`
	Country      string    `json:"country,omitempty"`
}

// Validate checks the filter before any aggregation runs.
func (f ReportFilter) Validate() error {
	return f.Period.Validate()
}

// Matches reports whether a redemption satisfies the filter dimensions.
// The period bound is checked separately by the store query.
func (f ReportFilter) Matches(r *Redemption) bool {
	if f.CampaignID != "" && r.CampaignID != f.CampaignID {
		return false
	}
	if f.Channel != "" && r.Channel != f.Channel {
		return false
	}
	if f.DiscountType != "" && r.DiscountType != f.DiscountType {
		return false
	}
	if f.Country != "" && r.Country != f.Country {
		return false
	}
	return true
}

// OverviewMetrics summarizes redemption activity over a window.
type OverviewMetrics struct {
	TotalRedemptions  int64   `json:"total_redemptions"`
	DistinctUsers     int64   `json:"distinct_users"`
	TotalRevenue      float64 `json:"total_revenue"`
	TotalDiscount     float64 `json:"total_discount"`
	AverageOrderValue float64 `json:"average_order_value"`

	NewCustomers       int64 `json:"new_customers"`
	ExistingCustomers  int64 `json:"existing_customers"`
	MobileRedemptions  int64 `json:"mobile_redemptions"`
	DesktopRedemptions int64 `json:"desktop_redemptions"`

	DiscountRate    float64 `json:"discount_rate"`
	NewCustomerRate float64 `json:"new_customer_rate"`
}

// TrendPoint is one day of overview metrics, computed independently of
// every other day.
type TrendPoint struct {
	Date    time.Time       `json:"date"`
	Metrics OverviewMetrics `json:"metrics"`
}

// RetentionHorizon names the standard retention checkpoints in weeks.
type RetentionHorizon int

const (
	HorizonWeek1  RetentionHorizon = 1
	HorizonWeek4  RetentionHorizon = 4
	HorizonWeek12 RetentionHorizon = 12
	HorizonWeek24 RetentionHorizon = 24
)

// RetentionHorizons lists the reported horizons in ascending order.
var RetentionHorizons = []RetentionHorizon{HorizonWeek1, HorizonWeek4, HorizonWeek12, HorizonWeek24}

// CohortSummary describes one acquisition cohort. Retention values are nil
// when the cohort is younger than the horizon: "not yet available" must not
// be confused with zero retention.
type CohortSummary struct {
	CohortKey   string    `json:"cohort_key"`
	PeriodStart time.Time `json:"period_start"`
	Size        int64     `json:"size"`

	Week1  *float64 `json:"retention_week1"`
	Week4  *float64 `json:"retention_week4"`
	Week12 *float64 `json:"retention_week12"`
	Week24 *float64 `json:"retention_week24"`

	TotalRevenue float64 `json:"total_revenue"`
	LTV          float64 `json:"ltv"`
}

// RetentionAt returns the retention fraction for a horizon, or nil when the
// cohort is too young to report that horizon.
func (c *CohortSummary) RetentionAt(h RetentionHorizon) *float64 {
	switch h {
	case HorizonWeek1:
		return c.Week1
	case HorizonWeek4:
		return c.Week4
	case HorizonWeek12:
		return c.Week12
	case HorizonWeek24:
		return c.Week24
	}
	return nil
}

// SetRetention stores the retention fraction for a horizon.
func (c *CohortSummary) SetRetention(h RetentionHorizon, v float64) {
	switch h {
	case HorizonWeek1:
		c.Week1 = &v
	case HorizonWeek4:
		c.Week4 = &v
	case HorizonWeek12:
		c.Week12 = &v
	case HorizonWeek24:
		c.Week24 = &v
	}
}

// CannibalizationRisk classifies how much promo revenue displaces full-price
// revenue.
type CannibalizationRisk string

const (
	CannibalizationLow    CannibalizationRisk = "low"
	CannibalizationMedium CannibalizationRisk = "medium"
	CannibalizationHigh   CannibalizationRisk = "high"
)

// IncrementalResult estimates incremental revenue versus cannibalized
// revenue. The split is a heuristic: existing-customer redemptions are
// treated as fully cannibalized and new-customer revenue as fully
// incremental. There is no randomized holdout in this design, so these
// figures are proxies, not causal estimates.
type IncrementalResult struct {
	TotalRedemptions int64   `json:"total_redemptions"`
	TotalRevenue     float64 `json:"total_revenue"`

	NewCustomerCount        int64   `json:"new_customer_count"`
	NewCustomerRevenue      float64 `json:"new_customer_revenue"`
	ExistingCustomerCount   int64   `json:"existing_customer_count"`
	ExistingCustomerRevenue float64 `json:"existing_customer_revenue"`

	NetIncrementalRevenue     float64             `json:"net_incremental_revenue"`
	CannibalizationRate       float64             `json:"cannibalization_rate"`
	CannibalizationPercentage float64             `json:"cannibalization_percentage"`
	RiskLevel                 CannibalizationRisk `json:"risk_level"`
}

// FraudPattern is one recurring abuse pattern observed across redemptions,
// ranked by occurrence count.
type FraudPattern struct {
	Pattern           string   `json:"pattern"`
	Occurrences       int64    `json:"occurrences"`
	AvgConfidence     float64  `json:"avg_confidence"`
	RevenueImpact     float64  `json:"revenue_impact"`
	AffectedCountries []string `json:"affected_countries"`
}

// FraudSection aggregates fraud findings for a report period.
type FraudSection struct {
	ScoredRedemptions int64          `json:"scored_redemptions"`
	FlaggedForReview  int64          `json:"flagged_for_review"`
	FlaggedRate       float64        `json:"flagged_rate"`
	Patterns          []FraudPattern `json:"patterns"`
}

// TrendDirection is the period-over-period movement of headline revenue.
type TrendDirection string

const (
	TrendPositive TrendDirection = "positive"
	TrendNegative TrendDirection = "negative"
	TrendStable   TrendDirection = "stable"
)

// ExecutiveSummary is the headline view composed for a performance report.
type ExecutiveSummary struct {
	TotalRedemptions      int64          `json:"total_redemptions"`
	TotalRevenue          float64        `json:"total_revenue"`
	NetIncrementalRevenue float64        `json:"net_incremental_revenue"`
	Trend                 TrendDirection `json:"trend"`
	Recommendations       []string       `json:"recommendations"`
}

// PerformanceReport is an immutable snapshot composed from all
// sub-analyses. A new report supersedes the previous one; reports are
// never updated in place.
type PerformanceReport struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Period      DateRange `json:"period"`

	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`

	Summary     ExecutiveSummary   `json:"summary"`
	Overview    *OverviewMetrics   `json:"overview,omitempty"`
	Trends      []TrendPoint       `json:"trends,omitempty"`
	Incremental *IncrementalResult `json:"incremental,omitempty"`
	Cohorts     []CohortSummary    `json:"cohorts,omitempty"`
	Fraud       *FraudSection      `json:"fraud,omitempty"`

	// Degraded lists sections whose sub-analysis failed. An empty list
	// means the report is complete.
	Degraded []string `json:"degraded,omitempty"`
}
