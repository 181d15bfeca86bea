package models

import (
	"time"
)

// FraudRiskLevel is the categorical bucket derived from a numeric risk score.
type FraudRiskLevel string

const (
	RiskLow      FraudRiskLevel = "low"
	RiskMedium   FraudRiskLevel = "medium"
	RiskHigh     FraudRiskLevel = "high"
	RiskCritical FraudRiskLevel = "critical"
)

// rank orders risk levels from least to most severe.
func (l FraudRiskLevel) rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// AtLeast reports whether l is as severe as other or more so.
func (l FraudRiskLevel) AtLeast(other FraudRiskLevel) bool {
	return l.rank() >= other.rank()
}

// Redemption records one successful discount application. Redemptions are
// append-only; the only mutation allowed is attaching a fraud assessment
// before the redemption is considered settled.
type Redemption struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	UserID       string `json:"user_id"`
	CampaignID   string `json:"campaign_id"`
	DiscountCode string `json:"discount_code"`
	DiscountType string `json:"discount_type,omitempty"` // percentage, fixed_amount, free_shipping
	Channel      string `json:"channel,omitempty"`

	// Order amounts. GrossAmount = DiscountAmount + FinalAmount.
	GrossAmount    float64 `json:"gross_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`

	IsNewCustomer bool `json:"is_new_customer"`

	// Device / geo context
	DeviceType string `json:"device_type,omitempty"` // mobile, desktop, tablet
	Country    string `json:"country,omitempty"`
	IP         string `json:"ip,omitempty"`

	// Fraud assessment, attached once after scoring.
	FraudRiskScore   float64        `json:"fraud_risk_score,omitempty"`
	FraudRiskLevel   FraudRiskLevel `json:"fraud_risk_level,omitempty"`
	ReviewRequired   bool           `json:"review_required,omitempty"`
	DetectedPatterns []string       `json:"detected_patterns,omitempty"`

	// Pattern confidence tagged upstream, keyed by pattern name.
	PatternConfidence map[string]float64 `json:"pattern_confidence,omitempty"`
}

// FraudAssessment is the result of scoring a single redemption.
type FraudAssessment struct {
	RedemptionID   string             `json:"redemption_id"`
	RiskScore      float64            `json:"risk_score"`
	RiskLevel      FraudRiskLevel     `json:"risk_level"`
	ReviewRequired bool               `json:"review_required"`
	Signals        map[string]float64 `json:"signals,omitempty"`
	AssessedAt     time.Time          `json:"assessed_at"`
}
