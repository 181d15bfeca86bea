package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/models"
	"github.com/promopulse/promopulse/internal/storage"
)

// FraudPolicy holds the tunable scoring constants. Thresholds are total-
// ordered and exhaustive over the score range [0, 1].
type FraudPolicy struct {
	MediumThreshold   float64 // score at or above -> medium
	HighThreshold     float64 // score at or above -> high, review required
	CriticalThreshold float64 // score at or above -> critical

	// Velocity limits that start contributing to the score when exceeded.
	UserDailyLimit  int64
	DeviceHourLimit int64

	// Discount-rate outlier boundary: discount/(discount+final) above this
	// looks like code abuse.
	DiscountRateOutlier float64

	// Order value above which a brand-new customer gets extra scrutiny.
	NewCustomerHighValue float64
}

// DefaultFraudPolicy returns the production scoring constants.
func DefaultFraudPolicy() FraudPolicy {
	return FraudPolicy{
		MediumThreshold:      0.3,
		HighThreshold:        0.6,
		CriticalThreshold:    0.85,
		UserDailyLimit:       3,
		DeviceHourLimit:      5,
		DiscountRateOutlier:  0.6,
		NewCustomerHighValue: 500,
	}
}

// Signal weights. They sum to 1 so the score stays inside [0, 1].
const (
	weightUserVelocity   = 0.35
	weightDeviceVelocity = 0.25
	weightDiscountRate   = 0.25
	weightNewHighValue   = 0.15
)

// FraudRiskScorer classifies redemptions into risk tiers from behavioral
// and velocity signals, and surfaces recurring abuse patterns.
type FraudRiskScorer struct {
	store  storage.RedemptionStore
	redis  *redis.Client
	policy FraudPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewFraudRiskScorer constructs a FraudRiskScorer. redis may be nil; device
// velocity then falls back to the store's per-user counts only.
func NewFraudRiskScorer(store storage.RedemptionStore, rdb *redis.Client, policy FraudPolicy, logger *zap.Logger) *FraudRiskScorer {
	return &FraudRiskScorer{store: store, redis: rdb, policy: policy, logger: logger, now: time.Now}
}

// Score evaluates a single redemption and returns its risk assessment. The
// caller attaches the assessment to the redemption before it settles.
func (s *FraudRiskScorer) Score(ctx context.Context, r *models.Redemption) (*models.FraudAssessment, error) {
	signals := make(map[string]float64, 4)

	userCount, err := s.store.CountByUser(ctx, r.UserID, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("%w: user velocity query failed: %v", ErrDataUnavailable, err)
	}
	signals["user_velocity"] = overageRatio(userCount, s.policy.UserDailyLimit)

	signals["device_velocity"] = s.deviceVelocity(ctx, r)

	if r.DiscountAmount+r.FinalAmount > 0 {
		rate := r.DiscountAmount / (r.DiscountAmount + r.FinalAmount)
		if rate > s.policy.DiscountRateOutlier {
			signals["discount_outlier"] = (rate - s.policy.DiscountRateOutlier) / (1 - s.policy.DiscountRateOutlier)
		}
	}

	if r.IsNewCustomer && r.GrossAmount >= s.policy.NewCustomerHighValue {
		signals["new_customer_high_value"] = 1
	}

	score := weightUserVelocity*signals["user_velocity"] +
		weightDeviceVelocity*signals["device_velocity"] +
		weightDiscountRate*signals["discount_outlier"] +
		weightNewHighValue*signals["new_customer_high_value"]
	if score > 1 {
		score = 1
	}

	level := s.ClassifyScore(score)
	return &models.FraudAssessment{
		RedemptionID:   r.ID,
		RiskScore:      score,
		RiskLevel:      level,
		ReviewRequired: level.AtLeast(models.RiskHigh),
		Signals:        signals,
		AssessedAt:     s.now().UTC(),
	}, nil
}

// ClassifyScore buckets a risk score into a level. The bucketing covers the
// whole score range and is monotonic in the score.
func (s *FraudRiskScorer) ClassifyScore(score float64) models.FraudRiskLevel {
	switch {
	case score >= s.policy.CriticalThreshold:
		return models.RiskCritical
	case score >= s.policy.HighThreshold:
		return models.RiskHigh
	case score >= s.policy.MediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// deviceVelocity reads the sliding per-device redemption counter. Counters
// are incremented on ingest via RecordRedemption.
func (s *FraudRiskScorer) deviceVelocity(ctx context.Context, r *models.Redemption) float64 {
	if s.redis == nil || r.IP == "" {
		return 0
	}
	key := deviceCounterKey(r.IP, s.now())
	count, err := s.redis.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		s.logger.Debug("device velocity read failed", zap.Error(err))
		return 0
	}
	return overageRatio(count, s.policy.DeviceHourLimit)
}

// RecordRedemption bumps the per-device velocity counter. Call on ingest,
// before scoring, so the current redemption counts against itself.
func (s *FraudRiskScorer) RecordRedemption(ctx context.Context, r *models.Redemption) {
	if s.redis == nil || r.IP == "" {
		return
	}
	key := deviceCounterKey(r.IP, s.now())
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Debug("device velocity increment failed", zap.Error(err))
	}
}

func deviceCounterKey(ip string, now time.Time) string {
	return fmt.Sprintf("fraud:device:%s:%s", ip, now.UTC().Format("2006010215"))
}

// overageRatio maps a count against its limit into [0, 1]: zero at or below
// the limit, saturating at twice the limit.
func overageRatio(count, limit int64) float64 {
	if limit <= 0 || count <= limit {
		return 0
	}
	ratio := float64(count-limit) / float64(limit)
	if ratio > 1 {
		return 1
	}
	return ratio
}

// DetectPatterns aggregates the pattern annotations attached upstream into
// a list ranked by occurrence count descending. Absence of annotations
// yields an empty list, not an error.
func (s *FraudRiskScorer) DetectPatterns(ctx context.Context, period models.DateRange) ([]models.FraudPattern, error) {
	if err := period.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	redemptions, err := s.store.Query(ctx, storage.RedemptionFilter{Period: period})
	if err != nil {
		return nil, fmt.Errorf("%w: redemption query failed: %v", ErrDataUnavailable, err)
	}

	type patternAgg struct {
		occurrences   int64
		confidenceSum float64
		revenue       float64
		countries     map[string]struct{}
	}
	aggs := make(map[string]*patternAgg)

	for _, r := range redemptions {
		for _, p := range r.DetectedPatterns {
			agg, ok := aggs[p]
			if !ok {
				agg = &patternAgg{countries: make(map[string]struct{})}
				aggs[p] = agg
			}
			agg.occurrences++
			agg.revenue += r.FinalAmount
			agg.confidenceSum += r.PatternConfidence[p]
			if r.Country != "" {
				agg.countries[r.Country] = struct{}{}
			}
		}
	}

	patterns := make([]models.FraudPattern, 0, len(aggs))
	for name, agg := range aggs {
		countries := make([]string, 0, len(agg.countries))
		for c := range agg.countries {
			countries = append(countries, c)
		}
		sort.Strings(countries)

		patterns = append(patterns, models.FraudPattern{
			Pattern:           name,
			Occurrences:       agg.occurrences,
			AvgConfidence:     agg.confidenceSum / float64(agg.occurrences),
			RevenueImpact:     agg.revenue,
			AffectedCountries: countries,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].Pattern < patterns[j].Pattern
	})
	return patterns, nil
}

// Section builds the fraud portion of a performance report.
func (s *FraudRiskScorer) Section(ctx context.Context, filter models.ReportFilter) (*models.FraudSection, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	redemptions, err := s.store.Query(ctx, storage.RedemptionFilter{
		Period:     filter.Period,
		CampaignID: filter.CampaignID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: redemption query failed: %v", ErrDataUnavailable, err)
	}

	section := &models.FraudSection{}
	for _, r := range redemptions {
		if r.FraudRiskLevel != "" {
			section.ScoredRedemptions++
		}
		if r.ReviewRequired {
			section.FlaggedForReview++
		}
	}
	if section.ScoredRedemptions > 0 {
		section.FlaggedRate = float64(section.FlaggedForReview) / float64(section.ScoredRedemptions)
	}

	patterns, err := s.DetectPatterns(ctx, filter.Period)
	if err != nil {
		return nil, err
	}
	section.Patterns = patterns
	return section, nil
}
