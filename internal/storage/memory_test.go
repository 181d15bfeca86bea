package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/promopulse/promopulse/internal/models"
)

var testStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func TestTouchpointJourneyOrdering(t *testing.T) {
	store := NewInMemoryTouchpointStore()
	ctx := context.Background()

	// Saved out of order on purpose.
	for _, offset := range []int{3, 1, 2, 0} {
		err := store.Save(ctx, &models.Touchpoint{
			ID:         fmt.Sprintf("tp-%d", offset),
			UserID:     "u1",
			CampaignID: "camp-1",
			Type:       models.TouchpointUTMVisit,
			Timestamp:  testStart.Add(time.Duration(offset) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	journey, err := store.Journey(ctx, "u1", models.DateRange{
		Start: testStart,
		End:   testStart.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("Journey returned error: %v", err)
	}
	if len(journey) != 4 {
		t.Fatalf("got %d touchpoints, want 4", len(journey))
	}
	for i := 1; i < len(journey); i++ {
		if journey[i].Timestamp.Before(journey[i-1].Timestamp) {
			t.Fatal("journey is not sorted ascending by timestamp")
		}
	}
}

func TestTouchpointJourneyBySession(t *testing.T) {
	store := NewInMemoryTouchpointStore()
	ctx := context.Background()

	// Anonymous touchpoint carries only a session id.
	if err := store.Save(ctx, &models.Touchpoint{
		ID:        "tp-1",
		SessionID: "sess-1",
		Timestamp: testStart,
	}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	journey, err := store.Journey(ctx, "sess-1", models.DateRange{
		Start: testStart.Add(-time.Hour),
		End:   testStart.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Journey returned error: %v", err)
	}
	if len(journey) != 1 {
		t.Errorf("got %d touchpoints by session id, want 1", len(journey))
	}

	journey, err = store.Journey(ctx, "unknown", models.DateRange{
		Start: testStart.Add(-time.Hour),
		End:   testStart.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Journey returned error: %v", err)
	}
	if len(journey) != 0 {
		t.Errorf("got %d touchpoints for unknown actor, want 0", len(journey))
	}
}

func TestTouchpointCountByCampaign(t *testing.T) {
	store := NewInMemoryTouchpointStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		campaign := "camp-1"
		if i >= 3 {
			campaign = "camp-2"
		}
		store.Save(ctx, &models.Touchpoint{
			ID:         fmt.Sprintf("tp-%d", i),
			UserID:     "u1",
			CampaignID: campaign,
			Timestamp:  testStart.Add(time.Duration(i) * time.Hour),
		})
	}

	count, err := store.CountByCampaign(ctx, "camp-1", testStart.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountByCampaign returned error: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func seedRedemptions(t *testing.T, store *InMemoryRedemptionStore) {
	t.Helper()
	ctx := context.Background()
	seeds := []*models.Redemption{
		{ID: "r1", UserID: "u1", CampaignID: "camp-1", Channel: "email", DiscountType: "percentage", Country: "US", Timestamp: testStart.Add(1 * time.Hour)},
		{ID: "r2", UserID: "u2", CampaignID: "camp-1", Channel: "social", DiscountType: "fixed", Country: "DE", Timestamp: testStart.Add(2 * time.Hour)},
		{ID: "r3", UserID: "u1", CampaignID: "camp-2", Channel: "email", DiscountType: "percentage", Country: "US", Timestamp: testStart.Add(3 * time.Hour)},
	}
	for _, r := range seeds {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}
}

func TestRedemptionQueryFilters(t *testing.T) {
	store := NewInMemoryRedemptionStore()
	seedRedemptions(t, store)
	ctx := context.Background()
	period := models.DateRange{Start: testStart, End: testStart.AddDate(0, 0, 1)}

	tests := []struct {
		name   string
		filter RedemptionFilter
		want   []string
	}{
		{"period only", RedemptionFilter{Period: period}, []string{"r1", "r2", "r3"}},
		{"by campaign", RedemptionFilter{Period: period, CampaignID: "camp-1"}, []string{"r1", "r2"}},
		{"by channel", RedemptionFilter{Period: period, Channel: "email"}, []string{"r1", "r3"}},
		{"by user", RedemptionFilter{Period: period, UserID: "u2"}, []string{"r2"}},
		{"by country", RedemptionFilter{Period: period, Country: "DE"}, []string{"r2"}},
		{"by discount type", RedemptionFilter{Period: period, DiscountType: "fixed"}, []string{"r2"}},
		{"open-ended period", RedemptionFilter{}, []string{"r1", "r2", "r3"}},
		{"combined, no match", RedemptionFilter{Period: period, CampaignID: "camp-2", Channel: "social"}, nil},
		{"window excludes", RedemptionFilter{Period: models.DateRange{
			Start: testStart.Add(90 * time.Minute),
			End:   testStart.Add(150 * time.Minute),
		}}, []string{"r2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query returned error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d redemptions, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("result[%d] = %s, want %s", i, r.ID, tt.want[i])
				}
			}
		})
	}
}

func TestRedemptionAttachFraudAssessment(t *testing.T) {
	store := NewInMemoryRedemptionStore()
	seedRedemptions(t, store)
	ctx := context.Background()

	a := &models.FraudAssessment{
		RedemptionID:   "r1",
		RiskScore:      0.7,
		RiskLevel:      models.RiskHigh,
		ReviewRequired: true,
	}
	if err := store.AttachFraudAssessment(ctx, "r1", a); err != nil {
		t.Fatalf("AttachFraudAssessment returned error: %v", err)
	}

	r, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if r.FraudRiskScore != 0.7 || r.FraudRiskLevel != models.RiskHigh || !r.ReviewRequired {
		t.Errorf("assessment not applied: score=%f level=%s review=%v",
			r.FraudRiskScore, r.FraudRiskLevel, r.ReviewRequired)
	}

	err = store.AttachFraudAssessment(ctx, "missing", a)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound for unknown redemption", err)
	}
}

func TestRedemptionCountByUser(t *testing.T) {
	store := NewInMemoryRedemptionStore()
	seedRedemptions(t, store)
	ctx := context.Background()

	count, err := store.CountByUser(ctx, "u1", testStart)
	if err != nil {
		t.Fatalf("CountByUser returned error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	// Cutoff after the first redemption.
	count, err = store.CountByUser(ctx, "u1", testStart.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("CountByUser returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 with later cutoff", count)
	}
}

func TestRedemptionPatternFieldsRoundTrip(t *testing.T) {
	store := NewInMemoryRedemptionStore()
	ctx := context.Background()

	// Pattern names and their confidences feed the fraud pattern ranking;
	// both must survive a save/load cycle.
	saved := &models.Redemption{
		ID:               "r1",
		UserID:           "u1",
		CampaignID:       "camp-1",
		Timestamp:        testStart,
		DetectedPatterns: []string{"code_sharing", "serial_redemption"},
		PatternConfidence: map[string]float64{
			"code_sharing":      0.8,
			"serial_redemption": 0.4,
		},
	}
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	r, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if len(r.DetectedPatterns) != 2 {
		t.Fatalf("got %d detected patterns, want 2", len(r.DetectedPatterns))
	}
	if r.PatternConfidence["code_sharing"] != 0.8 || r.PatternConfidence["serial_redemption"] != 0.4 {
		t.Errorf("pattern confidence = %v, want code_sharing 0.8 and serial_redemption 0.4", r.PatternConfidence)
	}
}

func TestCampaignRepoLifecycle(t *testing.T) {
	repo := NewInMemoryCampaignRepo()
	ctx := context.Background()

	campaigns := []*models.Campaign{
		{ID: "c1", Name: "Spring Sale", Status: models.CampaignActive, CreatedAt: testStart},
		{ID: "c2", Name: "Summer Promo", Status: models.CampaignDraft, CreatedAt: testStart.Add(time.Hour)},
	}
	for _, c := range campaigns {
		if err := repo.Upsert(ctx, c); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(all) != 2 || all[0].ID != "c1" {
		t.Errorf("ListAll = %d campaigns starting with %s, want 2 starting with c1", len(all), all[0].ID)
	}

	active, err := repo.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive returned error: %v", err)
	}
	if len(active) != 1 || active[0].ID != "c1" {
		t.Errorf("GetActive returned %d campaigns, want just c1", len(active))
	}

	// Upsert replaces.
	campaigns[1].Status = models.CampaignActive
	if err := repo.Upsert(ctx, campaigns[1]); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	active, _ = repo.GetActive(ctx)
	if len(active) != 2 {
		t.Errorf("GetActive returned %d campaigns after activation, want 2", len(active))
	}

	if err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	c, err := repo.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if c != nil {
		t.Error("campaign still present after delete")
	}
}
