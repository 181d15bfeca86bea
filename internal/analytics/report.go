package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/metrics"
	"github.com/promopulse/promopulse/internal/models"
	"github.com/promopulse/promopulse/internal/storage"
)

// Recommendation trigger points. Policy constants, tunable in one place.
const (
	recFlaggedRateThreshold  = 0.05
	recDiscountRateThreshold = 0.4
	recRetentionFloor        = 0.2
)

// ReportAggregator composes every sub-analysis into one performance report.
type ReportAggregator struct {
	overview    *RedemptionAggregator
	cohorts     *CohortAnalyzer
	incremental *IncrementalRevenueAnalyzer
	fraud       *FraudRiskScorer
	campaigns   storage.CampaignRepo
	logger      *zap.Logger
	metrics     *metrics.Metrics

	now func() time.Time
}

// NewReportAggregator constructs a ReportAggregator. campaigns and m may be
// nil; report labels are then left unenriched and no latency is recorded.
func NewReportAggregator(
	overview *RedemptionAggregator,
	cohorts *CohortAnalyzer,
	incremental *IncrementalRevenueAnalyzer,
	fraud *FraudRiskScorer,
	campaigns storage.CampaignRepo,
	logger *zap.Logger,
	m *metrics.Metrics,
) *ReportAggregator {
	return &ReportAggregator{
		overview:    overview,
		cohorts:     cohorts,
		incremental: incremental,
		fraud:       fraud,
		campaigns:   campaigns,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// Generate runs all sub-analyses concurrently over the same filter window
// and composes the result. The sub-analyses are read-only and independent,
// so they fan out with no shared mutable state; the context carries the
// caller's timeout and aborts the whole aggregation.
//
// Partial-failure policy: a failed sub-analysis degrades its section (the
// section is omitted and named in Degraded) and Generate returns the report
// together with ErrPartialAggregation. Only when every sub-analysis fails
// does the whole request fail.
func (g *ReportAggregator) Generate(ctx context.Context, filter models.ReportFilter) (*models.PerformanceReport, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	report := &models.PerformanceReport{
		ReportID:    uuid.New().String(),
		GeneratedAt: g.now().UTC(),
		Period:      filter.Period,
		CampaignID:  filter.CampaignID,
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, 5)

		overview    *models.OverviewMetrics
		trends      []models.TrendPoint
		cohorts     []models.CohortSummary
		incremental *models.IncrementalResult
		fraud       *models.FraudSection
	)

	sections := []string{"overview", "trends", "cohorts", "incremental", "fraud"}

	run := func(slot int, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			errs[slot] = fn()
			if g.metrics != nil {
				g.metrics.RecordSectionDuration(sections[slot], time.Since(start))
			}
		}()
	}

	run(0, func() (err error) {
		overview, err = g.overview.Summarize(ctx, filter)
		return err
	})
	run(1, func() (err error) {
		trends, err = g.overview.Trends(ctx, filter)
		return err
	})
	run(2, func() (err error) {
		cohorts, err = g.cohorts.Cohorts(ctx, filter.Period, GranularityWeekly)
		return err
	})
	run(3, func() (err error) {
		incremental, err = g.incremental.Analyze(ctx, filter)
		return err
	})
	run(4, func() (err error) {
		fraud, err = g.fraud.Section(ctx, filter)
		return err
	})
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("report generation aborted: %w", err)
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		report.Degraded = append(report.Degraded, sections[i])
		g.logger.Warn("report section degraded",
			zap.String("section", sections[i]),
			zap.Error(err),
		)
	}
	if failed == len(errs) {
		return nil, fmt.Errorf("%w: all sub-analyses failed, first error: %v", ErrDataUnavailable, errs[0])
	}

	report.Overview = overview
	report.Trends = trends
	report.Cohorts = cohorts
	report.Incremental = incremental
	report.Fraud = fraud

	g.enrichCampaign(ctx, report)
	report.Summary = g.summarize(ctx, filter, report)

	if failed > 0 {
		return report, fmt.Errorf("%w: %d of %d sections degraded", ErrPartialAggregation, failed, len(errs))
	}
	return report, nil
}

func (g *ReportAggregator) enrichCampaign(ctx context.Context, report *models.PerformanceReport) {
	if g.campaigns == nil || report.CampaignID == "" {
		return
	}
	c, err := g.campaigns.GetByID(ctx, report.CampaignID)
	if err != nil {
		g.logger.Debug("campaign lookup failed", zap.Error(err), zap.String("campaign_id", report.CampaignID))
		return
	}
	if c != nil {
		report.CampaignName = c.Name
	}
}

// summarize derives the executive summary. Recommendation generation is
// rule-based and deterministic: the same inputs always yield the same set,
// in the same order.
func (g *ReportAggregator) summarize(ctx context.Context, filter models.ReportFilter, report *models.PerformanceReport) models.ExecutiveSummary {
	summary := models.ExecutiveSummary{Trend: models.TrendStable}

	if report.Overview != nil {
		summary.TotalRedemptions = report.Overview.TotalRedemptions
		summary.TotalRevenue = report.Overview.TotalRevenue
	}
	if report.Incremental != nil {
		summary.NetIncrementalRevenue = report.Incremental.NetIncrementalRevenue
	}
	if report.Overview != nil {
		summary.Trend = g.trendDirection(ctx, filter, report.Overview.TotalRevenue)
	}
	summary.Recommendations = buildRecommendations(report)
	return summary
}

// trendDirection compares this period's revenue against the immediately
// preceding period of equal length.
func (g *ReportAggregator) trendDirection(ctx context.Context, filter models.ReportFilter, currentRevenue float64) models.TrendDirection {
	span := filter.Period.End.Sub(filter.Period.Start)
	previous := filter
	previous.Period = models.DateRange{
		Start: filter.Period.Start.Add(-span),
		End:   filter.Period.Start,
	}

	prior, err := g.overview.Summarize(ctx, previous)
	if err != nil {
		g.logger.Debug("prior period summary failed", zap.Error(err))
		return models.TrendStable
	}

	delta := currentRevenue - prior.TotalRevenue
	switch {
	case delta > 0:
		return models.TrendPositive
	case delta < 0:
		return models.TrendNegative
	default:
		return models.TrendStable
	}
}

// buildRecommendations maps threshold breaches in the sub-analyses to a
// bounded, ordered recommendation list.
func buildRecommendations(report *models.PerformanceReport) []string {
	var recs []string

	if inc := report.Incremental; inc != nil {
		switch inc.RiskLevel {
		case models.CannibalizationHigh:
			recs = append(recs, "High cannibalization: most redemptions come from existing customers; review discount targeting and eligibility.")
		case models.CannibalizationMedium:
			recs = append(recs, "Moderate cannibalization: consider restricting codes to new or lapsed customers.")
		}
	}

	if f := report.Fraud; f != nil {
		if f.FlaggedRate > recFlaggedRateThreshold {
			recs = append(recs, "Elevated fraud flag rate: tighten redemption eligibility rules and review velocity limits.")
		}
		if len(f.Patterns) > 0 {
			recs = append(recs, fmt.Sprintf("Recurring abuse pattern %q detected %d times; prioritize for manual review.",
				f.Patterns[0].Pattern, f.Patterns[0].Occurrences))
		}
	}

	if o := report.Overview; o != nil && o.DiscountRate > recDiscountRateThreshold {
		recs = append(recs, "Discount depth exceeds 40% of gross revenue; evaluate lower discount tiers.")
	}

	for _, c := range report.Cohorts {
		if c.Week4 != nil && *c.Week4 < recRetentionFloor {
			recs = append(recs, fmt.Sprintf("Cohort %s retains under %.0f%% at week 4; promo may be attracting one-time buyers.",
				c.CohortKey, recRetentionFloor*100))
			break
		}
	}

	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}
