package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/promopulse/promopulse/internal/models"
)

// InMemoryTouchpointStore provides in-memory storage for touchpoints.
type InMemoryTouchpointStore struct {
	mu          sync.RWMutex
	touchpoints map[string]*models.Touchpoint

	// Index: user/session -> []touchpoint_id
	byActor map[string][]string
}

// NewInMemoryTouchpointStore creates a new in-memory touchpoint store.
func NewInMemoryTouchpointStore() *InMemoryTouchpointStore {
	return &InMemoryTouchpointStore{
		touchpoints: make(map[string]*models.Touchpoint),
		byActor:     make(map[string][]string),
	}
}

func (s *InMemoryTouchpointStore) Save(ctx context.Context, tp *models.Touchpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchpoints[tp.ID] = tp

	if tp.UserID != "" {
		s.byActor[tp.UserID] = append(s.byActor[tp.UserID], tp.ID)
	}
	if tp.SessionID != "" && tp.SessionID != tp.UserID {
		s.byActor[tp.SessionID] = append(s.byActor[tp.SessionID], tp.ID)
	}
	return nil
}

func (s *InMemoryTouchpointStore) GetByID(ctx context.Context, id string) (*models.Touchpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tp, ok := s.touchpoints[id]
	if !ok {
		return nil, nil
	}
	return tp, nil
}

func (s *InMemoryTouchpointStore) Journey(ctx context.Context, userOrSessionID string, period models.DateRange) ([]*models.Touchpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.byActor[userOrSessionID]
	if !ok {
		return nil, nil
	}

	result := make([]*models.Touchpoint, 0, len(ids))
	for _, id := range ids {
		tp := s.touchpoints[id]
		if tp != nil && period.Contains(tp.Timestamp) {
			result = append(result, tp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *InMemoryTouchpointStore) CountByCampaign(ctx context.Context, campaignID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, tp := range s.touchpoints {
		if tp.CampaignID == campaignID && tp.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

// InMemoryRedemptionStore provides in-memory storage for redemptions.
type InMemoryRedemptionStore struct {
	mu          sync.RWMutex
	redemptions map[string]*models.Redemption

	// Index: user_id -> []redemption_id
	byUser map[string][]string
}

// NewInMemoryRedemptionStore creates a new in-memory redemption store.
func NewInMemoryRedemptionStore() *InMemoryRedemptionStore {
	return &InMemoryRedemptionStore{
		redemptions: make(map[string]*models.Redemption),
		byUser:      make(map[string][]string),
	}
}

func (s *InMemoryRedemptionStore) Save(ctx context.Context, r *models.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.redemptions[r.ID] = r
	if r.UserID != "" {
		s.byUser[r.UserID] = append(s.byUser[r.UserID], r.ID)
	}
	return nil
}

func (s *InMemoryRedemptionStore) GetByID(ctx context.Context, id string) (*models.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.redemptions[id]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (s *InMemoryRedemptionStore) Query(ctx context.Context, filter RedemptionFilter) ([]*models.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Redemption, 0)
	for _, r := range s.redemptions {
		if !matchesRedemptionFilter(r, filter) {
			continue
		}
		result = append(result, r)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *InMemoryRedemptionStore) AttachFraudAssessment(ctx context.Context, redemptionID string, a *models.FraudAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.redemptions[redemptionID]
	if !ok {
		return ErrNotFound
	}
	r.FraudRiskScore = a.RiskScore
	r.FraudRiskLevel = a.RiskLevel
	r.ReviewRequired = a.ReviewRequired
	return nil
}

func (s *InMemoryRedemptionStore) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, id := range s.byUser[userID] {
		if r := s.redemptions[id]; r != nil && r.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

func matchesRedemptionFilter(r *models.Redemption, f RedemptionFilter) bool {
	if !f.Period.Start.IsZero() && r.Timestamp.Before(f.Period.Start) {
		return false
	}
	if !f.Period.End.IsZero() && !r.Timestamp.Before(f.Period.End) {
		return false
	}
	if f.CampaignID != "" && r.CampaignID != f.CampaignID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
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

// InMemoryCampaignRepo provides in-memory campaign storage.
type InMemoryCampaignRepo struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

// NewInMemoryCampaignRepo creates a new in-memory campaign repo.
func NewInMemoryCampaignRepo() *InMemoryCampaignRepo {
	return &InMemoryCampaignRepo{campaigns: make(map[string]*models.Campaign)}
}

func (r *InMemoryCampaignRepo) ListAll(ctx context.Context) ([]*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *InMemoryCampaignRepo) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (r *InMemoryCampaignRepo) Upsert(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaigns[c.ID] = c
	return nil
}

func (r *InMemoryCampaignRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.campaigns, id)
	return nil
}

func (r *InMemoryCampaignRepo) GetActive(ctx context.Context) ([]*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Campaign, 0)
	for _, c := range r.campaigns {
		if c.Status == models.CampaignActive {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
