package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/models"
	"github.com/promopulse/promopulse/internal/storage"
)

// CohortGranularity sets the width of acquisition period buckets.
type CohortGranularity string

const (
	GranularityWeekly  CohortGranularity = "weekly"
	GranularityMonthly CohortGranularity = "monthly"
)

// CohortAnalyzer buckets users by acquisition period and computes retention
// and lifetime value per cohort. Cohorts are recomputed from redemption
// history on every run; nothing is persisted.
type CohortAnalyzer struct {
	store  storage.RedemptionStore
	logger *zap.Logger

	// now is injected for tests; defaults to time.Now.
	now func() time.Time
}

// NewCohortAnalyzer constructs a CohortAnalyzer.
func NewCohortAnalyzer(store storage.RedemptionStore, logger *zap.Logger) *CohortAnalyzer {
	return &CohortAnalyzer{store: store, logger: logger, now: time.Now}
}

// userHistory collects one user's redemptions, ordered ascending.
type userHistory struct {
	first   time.Time
	revenue float64
	later   []time.Time // redemptions after the first
}

// Cohorts analyzes acquisition cohorts whose first redemption falls in the
// period. A user belongs to exactly one cohort: the bucket of their
// earliest redemption on record. Retention horizons the cohort has not yet
// lived through are reported as unavailable (nil), never as zero, since
// zero would be misread as churn.
func (a *CohortAnalyzer) Cohorts(ctx context.Context, period models.DateRange, granularity CohortGranularity) ([]models.CohortSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	switch granularity {
	case GranularityWeekly, GranularityMonthly:
	default:
		return nil, fmt.Errorf("%w: unsupported cohort granularity %q", ErrInvalidFilter, granularity)
	}

	// Query the full history up to now: a redemption before the period means
	// the user was acquired earlier and belongs to an older cohort, and
	// retention and LTV keep accruing after the acquisition period ends.
	redemptions, err := a.store.Query(ctx, storage.RedemptionFilter{
		Period: models.DateRange{End: a.now()},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: redemption query failed: %v", ErrDataUnavailable, err)
	}

	// First pass: earliest redemption per user. The store returns ascending
	// order, so the first occurrence is the acquisition event.
	histories := make(map[string]*userHistory)
	for _, r := range redemptions {
		if r.UserID == "" {
			continue
		}
		h, ok := histories[r.UserID]
		if !ok {
			h = &userHistory{first: r.Timestamp}
			histories[r.UserID] = h
		} else {
			h.later = append(h.later, r.Timestamp)
		}
		h.revenue += r.FinalAmount
	}

	// Second pass: bucket users acquired inside the requested period.
	cohorts := make(map[string]*models.CohortSummary)
	members := make(map[string][]*userHistory)
	for _, h := range histories {
		if !period.Contains(h.first) {
			continue
		}
		bucket := bucketStart(h.first, granularity)
		key := cohortKey(bucket, granularity)
		c, ok := cohorts[key]
		if !ok {
			c = &models.CohortSummary{CohortKey: key, PeriodStart: bucket}
			cohorts[key] = c
		}
		c.Size++
		c.TotalRevenue += h.revenue
		members[key] = append(members[key], h)
	}

	now := a.now()
	result := make([]models.CohortSummary, 0, len(cohorts))
	for key, c := range cohorts {
		if c.Size > 0 {
			c.LTV = c.TotalRevenue / float64(c.Size)
		}
		for _, horizon := range models.RetentionHorizons {
			window := time.Duration(horizon) * 7 * 24 * time.Hour
			// The whole cohort must have lived through the horizon before it
			// can be reported; the youngest possible member acquired at the
			// end of the bucket bounds that.
			if bucketEnd(c.PeriodStart, granularity).Add(window).After(now) {
				continue
			}
			var retained int64
			for _, h := range members[key] {
				if retainedWithin(h, window) {
					retained++
				}
			}
			c.SetRetention(horizon, float64(retained)/float64(c.Size))
		}
		result = append(result, *c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PeriodStart.Before(result[j].PeriodStart)
	})
	return result, nil
}

// retainedWithin reports whether the user made at least one redemption
// after acquisition but within the horizon window.
func retainedWithin(h *userHistory, window time.Duration) bool {
	deadline := h.first.Add(window)
	for _, ts := range h.later {
		if !ts.After(deadline) {
			return true
		}
	}
	return false
}

func bucketStart(t time.Time, granularity CohortGranularity) time.Time {
	t = t.UTC()
	if granularity == GranularityMonthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	// Weekly buckets start on Monday.
	day := t.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func bucketEnd(start time.Time, granularity CohortGranularity) time.Time {
	if granularity == GranularityMonthly {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 7)
}

func cohortKey(start time.Time, granularity CohortGranularity) string {
	if granularity == GranularityMonthly {
		return start.Format("2006-01")
	}
	year, week := start.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
