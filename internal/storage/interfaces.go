package storage

import (
	"context"
	"time"

	"github.com/promopulse/promopulse/internal/models"
)

// =============================================
// TOUCHPOINT STORE
// =============================================

// TouchpointStore defines operations for touchpoint storage. Touchpoints
// are append-only; the analytics engine only reads them.
type TouchpointStore interface {
	Save(ctx context.Context, tp *models.Touchpoint) error
	GetByID(ctx context.Context, id string) (*models.Touchpoint, error)

	// Journey returns all touchpoints for a user or session within the
	// range, ordered ascending by timestamp.
	Journey(ctx context.Context, userOrSessionID string, period models.DateRange) ([]*models.Touchpoint, error)

	CountByCampaign(ctx context.Context, campaignID string, since time.Time) (int64, error)
}

// =============================================
// REDEMPTION STORE
// =============================================

// RedemptionFilter narrows redemption queries. Zero-valued fields are
// ignored.
type RedemptionFilter struct {
	Period       models.DateRange
	CampaignID   string
	UserID       string
	Channel      string
	DiscountType string
	Country      string
}

// RedemptionStore defines operations for redemption storage. Redemptions
// are append-only except for the one-time fraud assessment attachment.
type RedemptionStore interface {
	Save(ctx context.Context, r *models.Redemption) error
	GetByID(ctx context.Context, id string) (*models.Redemption, error)

	// Query returns redemptions matching the filter, ordered ascending by
	// timestamp. An empty result set is not an error.
	Query(ctx context.Context, filter RedemptionFilter) ([]*models.Redemption, error)

	AttachFraudAssessment(ctx context.Context, redemptionID string, a *models.FraudAssessment) error

	// CountByUser returns how many redemptions the user made since the
	// given time, a velocity signal for fraud scoring.
	CountByUser(ctx context.Context, userID string, since time.Time) (int64, error)
}

// DailyTotaler is an optional RedemptionStore extension for stores that can
// roll redemptions up per calendar day server-side. Keys are days formatted
// as 2006-01-02; the filter's timestamp bounds clamp edge buckets, so a day
// the window cuts mid-day only counts redemptions inside the window.
type DailyTotaler interface {
	DailyTotals(ctx context.Context, filter RedemptionFilter) (map[string]*models.OverviewMetrics, error)
}

// =============================================
// CAMPAIGN REPOSITORY
// =============================================

// CampaignRepo defines operations for campaign metadata storage.
type CampaignRepo interface {
	ListAll(ctx context.Context) ([]*models.Campaign, error)
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	Upsert(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, id string) error
	GetActive(ctx context.Context) ([]*models.Campaign, error)
}
