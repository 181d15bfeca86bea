package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/promopulse/promopulse/internal/models"
	"github.com/promopulse/promopulse/internal/storage"
)

// stubRedemptionStore is an in-test RedemptionStore seeded with a fixed
// redemption slice. Set queryErr or countErr to exercise failure paths.
type stubRedemptionStore struct {
	redemptions []*models.Redemption
	queryErr    error
	countErr    error
}

func (s *stubRedemptionStore) Save(ctx context.Context, r *models.Redemption) error {
	s.redemptions = append(s.redemptions, r)
	return nil
}

func (s *stubRedemptionStore) GetByID(ctx context.Context, id string) (*models.Redemption, error) {
	for _, r := range s.redemptions {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubRedemptionStore) Query(ctx context.Context, filter storage.RedemptionFilter) ([]*models.Redemption, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []*models.Redemption
	for _, r := range s.redemptions {
		if !filter.Period.Start.IsZero() && r.Timestamp.Before(filter.Period.Start) {
			continue
		}
		if !filter.Period.End.IsZero() && !r.Timestamp.Before(filter.Period.End) {
			continue
		}
		if filter.CampaignID != "" && r.CampaignID != filter.CampaignID {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Channel != "" && r.Channel != filter.Channel {
			continue
		}
		if filter.DiscountType != "" && r.DiscountType != filter.DiscountType {
			continue
		}
		if filter.Country != "" && r.Country != filter.Country {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *stubRedemptionStore) AttachFraudAssessment(ctx context.Context, redemptionID string, a *models.FraudAssessment) error {
	for _, r := range s.redemptions {
		if r.ID == redemptionID {
			r.FraudRiskScore = a.RiskScore
			r.FraudRiskLevel = a.RiskLevel
			r.ReviewRequired = a.ReviewRequired
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *stubRedemptionStore) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, r := range s.redemptions {
		if r.UserID == userID && !r.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}
