package models

import (
	"testing"
	"time"
)

func TestDateRangeValidate(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		rng     DateRange
		wantErr bool
	}{
		{"valid", DateRange{Start: start, End: start.AddDate(0, 0, 7)}, false},
		{"zero-length", DateRange{Start: start, End: start}, false},
		{"inverted", DateRange{Start: start.AddDate(0, 0, 7), End: start}, true},
		{"missing start", DateRange{End: start}, true},
		{"missing end", DateRange{Start: start}, true},
		{"zero value", DateRange{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rng.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDateRangeContains(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	rng := DateRange{Start: start, End: start.AddDate(0, 0, 1)}

	if !rng.Contains(start) {
		t.Error("start of range should be contained (half-open interval)")
	}
	if rng.Contains(rng.End) {
		t.Error("end of range should be excluded (half-open interval)")
	}
	if rng.Contains(start.Add(-time.Second)) {
		t.Error("instant before start should be excluded")
	}
}

func TestReportFilterMatches(t *testing.T) {
	r := &Redemption{CampaignID: "c1", Channel: "email", DiscountType: "percentage", Country: "US"}
	tests := []struct {
		name   string
		filter ReportFilter
		want   bool
	}{
		{"empty filter matches all", ReportFilter{}, true},
		{"matching campaign", ReportFilter{CampaignID: "c1"}, true},
		{"wrong campaign", ReportFilter{CampaignID: "c2"}, false},
		{"matching all dimensions", ReportFilter{CampaignID: "c1", Channel: "email", DiscountType: "percentage", Country: "US"}, true},
		{"one mismatch rejects", ReportFilter{CampaignID: "c1", Country: "DE"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(r); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFraudRiskLevelAtLeast(t *testing.T) {
	if !RiskCritical.AtLeast(RiskLow) || !RiskHigh.AtLeast(RiskHigh) {
		t.Error("severity ordering broken upward")
	}
	if RiskLow.AtLeast(RiskMedium) {
		t.Error("low must not rank at least medium")
	}
	ordered := []FraudRiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	for i := 1; i < len(ordered); i++ {
		if !ordered[i].AtLeast(ordered[i-1]) {
			t.Errorf("%s should be at least %s", ordered[i], ordered[i-1])
		}
		if ordered[i-1].AtLeast(ordered[i]) {
			t.Errorf("%s should not be at least %s", ordered[i-1], ordered[i])
		}
	}
}

func TestAttributionModelValid(t *testing.T) {
	for _, m := range AllAttributionModels {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if AttributionModel("markov_chain").Valid() {
		t.Error("unknown model should be invalid")
	}
	if AttributionModel("").Valid() {
		t.Error("empty model should be invalid")
	}
}

func TestCampaignValidate(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		campaign Campaign
		wantErr  bool
	}{
		{"valid", Campaign{ID: "c1", Name: "Spring Sale", Status: CampaignActive}, false},
		{"missing id", Campaign{Name: "Spring Sale"}, true},
		{"missing name", Campaign{ID: "c1"}, true},
		{"bad status", Campaign{ID: "c1", Name: "x", Status: "archived"}, true},
		{"end before start", Campaign{ID: "c1", Name: "x", StartDate: start, EndDate: start.AddDate(0, 0, -1)}, true},
		{"negative budget", Campaign{ID: "c1", Name: "x", Budget: -10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.campaign.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCampaignValidateDefaultsStatus(t *testing.T) {
	c := Campaign{ID: "c1", Name: "Spring Sale"}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if c.Status != CampaignDraft {
		t.Errorf("Status = %s, want draft default", c.Status)
	}
}

func TestCohortSummaryRetentionAccessors(t *testing.T) {
	c := &CohortSummary{}
	for _, h := range RetentionHorizons {
		if c.RetentionAt(h) != nil {
			t.Errorf("horizon %d should start unavailable", h)
		}
	}
	c.SetRetention(HorizonWeek4, 0.4)
	if v := c.RetentionAt(HorizonWeek4); v == nil || *v != 0.4 {
		t.Errorf("RetentionAt(week4) = %v, want 0.4", v)
	}
	if c.RetentionAt(HorizonWeek1) != nil {
		t.Error("setting week 4 must not touch week 1")
	}
}
