package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/models"
	"github.com/promopulse/promopulse/internal/storage"
)

func newTestIngest(redemptions *stubRedemptionStore) *IngestService {
	logger := zap.NewNop()
	scorer := NewFraudRiskScorer(redemptions, nil, DefaultFraudPolicy(), logger)
	return NewIngestService(storage.NewInMemoryTouchpointStore(), redemptions, scorer, nil, logger, nil)
}

func TestRecordTouchpointValidation(t *testing.T) {
	svc := newTestIngest(&stubRedemptionStore{})
	ctx := context.Background()

	tests := []struct {
		name    string
		tp      *models.Touchpoint
		wantErr bool
	}{
		{"valid with user", &models.Touchpoint{CampaignID: "c1", UserID: "u1", Type: models.TouchpointUTMVisit}, false},
		{"valid with session only", &models.Touchpoint{CampaignID: "c1", SessionID: "s1", Type: models.TouchpointEmailOpen}, false},
		{"missing campaign", &models.Touchpoint{UserID: "u1"}, true},
		{"missing actor", &models.Touchpoint{CampaignID: "c1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.RecordTouchpoint(ctx, tt.tp)
			if (err != nil) != tt.wantErr {
				t.Errorf("RecordTouchpoint error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (tt.tp.ID == "" || tt.tp.Timestamp.IsZero()) {
				t.Error("accepted touchpoint was not assigned an id and timestamp")
			}
		})
	}
}

func TestRecordRedemptionScoresAndAttaches(t *testing.T) {
	store := &stubRedemptionStore{}
	svc := newTestIngest(store)

	r := &models.Redemption{
		UserID:         "u1",
		CampaignID:     "c1",
		DiscountCode:   "SPRING20",
		GrossAmount:    100,
		DiscountAmount: 20,
		Timestamp:      time.Now().UTC(),
	}
	assessment, err := svc.RecordRedemption(context.Background(), r)
	if err != nil {
		t.Fatalf("RecordRedemption returned error: %v", err)
	}
	if assessment == nil {
		t.Fatal("assessment is nil, want a scored redemption")
	}
	if r.ID == "" {
		t.Error("redemption was not assigned an id")
	}
	if !approxEqual(r.FinalAmount, 80, 1e-9) {
		t.Errorf("FinalAmount = %f, want 80 backfilled from gross minus discount", r.FinalAmount)
	}

	stored, err := store.GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stored.FraudRiskLevel != assessment.RiskLevel {
		t.Errorf("stored risk level = %s, assessment says %s", stored.FraudRiskLevel, assessment.RiskLevel)
	}
}

func TestRecordRedemptionValidation(t *testing.T) {
	svc := newTestIngest(&stubRedemptionStore{})
	_, err := svc.RecordRedemption(context.Background(), &models.Redemption{UserID: "u1", CampaignID: "c1"})
	if err == nil {
		t.Error("accepted a redemption without a discount code")
	}
}

func TestRecordRedemptionSurvivesScoringFailure(t *testing.T) {
	// Velocity lookups fail, so scoring fails; the redemption must still be
	// persisted, just unscored.
	store := &stubRedemptionStore{countErr: errors.New("timeout")}
	svc := newTestIngest(store)

	r := &models.Redemption{
		UserID:       "u1",
		CampaignID:   "c1",
		DiscountCode: "SPRING20",
		GrossAmount:  100,
		FinalAmount:  100,
	}
	assessment, err := svc.RecordRedemption(context.Background(), r)
	if err != nil {
		t.Fatalf("RecordRedemption returned error: %v", err)
	}
	if assessment != nil {
		t.Error("got an assessment despite scoring failure")
	}

	stored, err := store.GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stored.FraudRiskLevel != "" {
		t.Errorf("stored risk level = %s, want unscored", stored.FraudRiskLevel)
	}
}
