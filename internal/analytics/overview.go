package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/models"
	"github.com/promopulse/promopulse/internal/storage"
)

// RedemptionAggregator turns raw redemption records into summary metrics
// over a filtered window.
type RedemptionAggregator struct {
	store  storage.RedemptionStore
	cache  *redis.Client
	logger *zap.Logger

	now func() time.Time
}

// NewRedemptionAggregator constructs a RedemptionAggregator. cache may be
// nil, in which case daily trend points are always recomputed.
func NewRedemptionAggregator(store storage.RedemptionStore, cache *redis.Client, logger *zap.Logger) *RedemptionAggregator {
	return &RedemptionAggregator{store: store, cache: cache, logger: logger, now: time.Now}
}

// Summarize computes overview metrics for the filter window. A window with
// no redemptions returns an explicit all-zero struct, never an error.
func (a *RedemptionAggregator) Summarize(ctx context.Context, filter models.ReportFilter) (*models.OverviewMetrics, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	redemptions, err := a.store.Query(ctx, storage.RedemptionFilter{
		Period:       filter.Period,
		CampaignID:   filter.CampaignID,
		Channel:      filter.Channel,
		DiscountType: filter.DiscountType,
		Country:      filter.Country,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: redemption query failed: %v", ErrDataUnavailable, err)
	}

	return summarizeRedemptions(redemptions), nil
}

// summarizeRedemptions folds a redemption slice into overview metrics.
// Division-by-zero branches are guarded so an empty slice yields zeros.
func summarizeRedemptions(redemptions []*models.Redemption) *models.OverviewMetrics {
	m := &models.OverviewMetrics{}
	users := make(map[string]struct{})

	for _, r := range redemptions {
		m.TotalRedemptions++
		m.TotalRevenue += r.FinalAmount
		m.TotalDiscount += r.DiscountAmount
		if r.UserID != "" {
			users[r.UserID] = struct{}{}
		}
		if r.IsNewCustomer {
			m.NewCustomers++
		} else {
			m.ExistingCustomers++
		}
		switch r.DeviceType {
		case "mobile":
			m.MobileRedemptions++
		case "desktop":
			m.DesktopRedemptions++
		}
	}
	m.DistinctUsers = int64(len(users))

	if m.TotalRedemptions > 0 {
		m.AverageOrderValue = m.TotalRevenue / float64(m.TotalRedemptions)
		m.NewCustomerRate = float64(m.NewCustomers) / float64(m.TotalRedemptions)
	}
	if m.TotalRevenue+m.TotalDiscount > 0 {
		m.DiscountRate = m.TotalDiscount / (m.TotalRevenue + m.TotalDiscount)
	}
	return m
}

// Trends returns one overview point per day of the filter window. Each day
// is computed independently, no running totals, so any sub-range reproduces
// the same values. Edge days the window cuts mid-day are clamped to the
// window bounds, keeping the series consistent with Summarize over the same
// range. Stores that can roll up per day server-side are queried once;
// otherwise each day is summarized individually, with whole elapsed days
// cached in Redis.
func (a *RedemptionAggregator) Trends(ctx context.Context, filter models.ReportFilter) ([]models.TrendPoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	if dt, ok := a.store.(storage.DailyTotaler); ok {
		return a.trendsFromRollup(ctx, filter, dt)
	}

	var points []models.TrendPoint
	start := filter.Period.Start.Truncate(24 * time.Hour)

	for day := start; day.Before(filter.Period.End); day = day.AddDate(0, 0, 1) {
		dayEnd := day.AddDate(0, 0, 1)
		full := fullDay(day, dayEnd, filter.Period)

		// A clamped edge bucket covers only part of the day, so it never
		// shares cache entries with other windows.
		if full {
			if cached := a.cachedDay(ctx, filter, day); cached != nil {
				points = append(points, models.TrendPoint{Date: day, Metrics: *cached})
				continue
			}
		}

		dayFilter := filter
		dayFilter.Period = clampDay(day, dayEnd, filter.Period)
		m, err := a.Summarize(ctx, dayFilter)
		if err != nil {
			return nil, err
		}
		points = append(points, models.TrendPoint{Date: day, Metrics: *m})

		if cacheableDay(day, dayEnd, filter.Period, a.now()) {
			a.cacheDay(ctx, filter, day, m)
		}
	}
	return points, nil
}

// trendsFromRollup builds the trend series from a single server-side per-day
// rollup query. Days absent from the rollup become explicit zero points so
// the series stays dense; the store clamps edge buckets via the timestamp
// bounds.
func (a *RedemptionAggregator) trendsFromRollup(ctx context.Context, filter models.ReportFilter, dt storage.DailyTotaler) ([]models.TrendPoint, error) {
	totals, err := dt.DailyTotals(ctx, storage.RedemptionFilter{
		Period:       filter.Period,
		CampaignID:   filter.CampaignID,
		Channel:      filter.Channel,
		DiscountType: filter.DiscountType,
		Country:      filter.Country,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: daily rollup failed: %v", ErrDataUnavailable, err)
	}

	var points []models.TrendPoint
	start := filter.Period.Start.Truncate(24 * time.Hour)
	for day := start; day.Before(filter.Period.End); day = day.AddDate(0, 0, 1) {
		m := totals[day.Format("2006-01-02")]
		if m == nil {
			m = &models.OverviewMetrics{}
		}
		points = append(points, models.TrendPoint{Date: day, Metrics: *m})
	}
	return points, nil
}

// fullDay reports whether the calendar-day bucket lies entirely inside the
// window.
func fullDay(day, dayEnd time.Time, period models.DateRange) bool {
	return !day.Before(period.Start) && !dayEnd.After(period.End)
}

// clampDay narrows a day bucket to the window bounds.
func clampDay(day, dayEnd time.Time, period models.DateRange) models.DateRange {
	if day.Before(period.Start) {
		day = period.Start
	}
	if dayEnd.After(period.End) {
		dayEnd = period.End
	}
	return models.DateRange{Start: day, End: dayEnd}
}

// cacheableDay reports whether a day bucket may be written to the trend
// cache: only whole buckets inside the window that have fully elapsed.
func cacheableDay(day, dayEnd time.Time, period models.DateRange, now time.Time) bool {
	return fullDay(day, dayEnd, period) && dayEnd.Before(now)
}

func trendCacheKey(filter models.ReportFilter, day time.Time) string {
	campaign := filter.CampaignID
	if campaign == "" {
		campaign = "all"
	}
	return fmt.Sprintf("trends:%s:%s:%s:%s:%s",
		campaign, filter.Channel, filter.DiscountType, filter.Country, day.Format("2006-01-02"))
}

func (a *RedemptionAggregator) cachedDay(ctx context.Context, filter models.ReportFilter, day time.Time) *models.OverviewMetrics {
	if a.cache == nil {
		return nil
	}
	raw, err := a.cache.Get(ctx, trendCacheKey(filter, day)).Bytes()
	if err != nil {
		if err != redis.Nil {
			a.logger.Debug("trend cache read failed", zap.Error(err))
		}
		return nil
	}
	var m models.OverviewMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return &m
}

func (a *RedemptionAggregator) cacheDay(ctx context.Context, filter models.ReportFilter, day time.Time, m *models.OverviewMetrics) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, trendCacheKey(filter, day), raw, 7*24*time.Hour).Err(); err != nil {
		a.logger.Debug("trend cache write failed", zap.Error(err))
	}
}
