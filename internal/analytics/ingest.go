package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/geo"
	"github.com/promopulse/promopulse/internal/metrics"
	"github.com/promopulse/promopulse/internal/models"
	"github.com/promopulse/promopulse/internal/storage"
)

// IngestService records touchpoints and redemptions. Redemptions are geo
// enriched and fraud scored before they settle; touchpoints are stored
// as-is.
type IngestService struct {
	touchpoints storage.TouchpointStore
	redemptions storage.RedemptionStore
	scorer      *FraudRiskScorer
	resolver    *geo.Resolver
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewIngestService constructs an IngestService. resolver and metrics may be
// nil.
func NewIngestService(
	touchpoints storage.TouchpointStore,
	redemptions storage.RedemptionStore,
	scorer *FraudRiskScorer,
	resolver *geo.Resolver,
	logger *zap.Logger,
	m *metrics.Metrics,
) *IngestService {
	return &IngestService{
		touchpoints: touchpoints,
		redemptions: redemptions,
		scorer:      scorer,
		resolver:    resolver,
		logger:      logger,
		metrics:     m,
	}
}

// RecordTouchpoint validates and stores a marketing interaction.
func (s *IngestService) RecordTouchpoint(ctx context.Context, tp *models.Touchpoint) error {
	if tp.CampaignID == "" {
		return errors.New("touchpoint campaign_id is required")
	}
	if tp.UserID == "" && tp.SessionID == "" {
		return errors.New("touchpoint user_id or session_id is required")
	}
	if tp.ID == "" {
		tp.ID = uuid.New().String()
	}
	if tp.Timestamp.IsZero() {
		tp.Timestamp = time.Now().UTC()
	}
	if tp.Country == "" && s.resolver != nil {
		if info := s.resolver.Resolve(tp.IP); info != nil {
			tp.Country = info.CountryCode
		}
	}

	if err := s.touchpoints.Save(ctx, tp); err != nil {
		return fmt.Errorf("failed to save touchpoint: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTouchpoint(tp.CampaignID, string(tp.Type))
	}
	return nil
}

// RecordRedemption stores a redemption, enriches its country from the
// client IP, scores it for fraud and attaches the assessment. The
// redemption is persisted even when scoring fails; it is then left
// unscored for a later pass rather than lost.
func (s *IngestService) RecordRedemption(ctx context.Context, r *models.Redemption) (*models.FraudAssessment, error) {
	if r.UserID == "" || r.CampaignID == "" || r.DiscountCode == "" {
		return nil, errors.New("redemption user_id, campaign_id and discount_code are required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.FinalAmount == 0 && r.GrossAmount > 0 {
		r.FinalAmount = r.GrossAmount - r.DiscountAmount
	}
	if r.Country == "" && s.resolver != nil {
		if info := s.resolver.Resolve(r.IP); info != nil {
			r.Country = info.CountryCode
		}
	}

	if err := s.redemptions.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save redemption: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordRedemption(r.CampaignID, r.FinalAmount, r.DiscountAmount)
	}

	// Count this redemption against its own velocity window before scoring.
	s.scorer.RecordRedemption(ctx, r)

	assessment, err := s.scorer.Score(ctx, r)
	if err != nil {
		s.logger.Warn("fraud scoring failed, redemption stored unscored",
			zap.String("redemption_id", r.ID),
			zap.Error(err),
		)
		return nil, nil
	}

	if err := s.redemptions.AttachFraudAssessment(ctx, r.ID, assessment); err != nil {
		return nil, fmt.Errorf("failed to attach fraud assessment: %w", err)
	}
	r.FraudRiskScore = assessment.RiskScore
	r.FraudRiskLevel = assessment.RiskLevel
	r.ReviewRequired = assessment.ReviewRequired

	if s.metrics != nil {
		s.metrics.RecordFraudAssessment(string(assessment.RiskLevel))
	}
	return assessment, nil
}
