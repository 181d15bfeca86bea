package models

import (
	"time"
)

// TouchpointType classifies the marketing interaction that was recorded.
type TouchpointType string

const (
	TouchpointUTMVisit       TouchpointType = "utm_visit"
	TouchpointAffiliateClick TouchpointType = "affiliate_click"
	TouchpointEmailOpen      TouchpointType = "email_open"
	TouchpointEmailClick     TouchpointType = "email_click"
	TouchpointSocialShare    TouchpointType = "social_share"
	TouchpointReferralLink   TouchpointType = "referral_link"
	TouchpointPaidAd         TouchpointType = "paid_ad"
)

// AttributionModel selects how conversion credit is distributed across a journey.
type AttributionModel string

const (
	ModelFirstTouch AttributionModel = "first_touch"
	ModelLastTouch  AttributionModel = "last_touch"
	ModelLinear     AttributionModel = "linear"
	ModelTimeDecay  AttributionModel = "time_decay"
)

// AllAttributionModels lists every supported model, in comparison order.
var AllAttributionModels = []AttributionModel{
	ModelFirstTouch,
	ModelLastTouch,
	ModelLinear,
	ModelTimeDecay,
}

// Valid reports whether the model name is one of the supported models.
func (m AttributionModel) Valid() bool {
	switch m {
	case ModelFirstTouch, ModelLastTouch, ModelLinear, ModelTimeDecay:
		return true
	}
	return false
}

// Touchpoint is a single recorded marketing interaction. Touchpoints are
// immutable once recorded and are ordered by timestamp within a journey.
type Touchpoint struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	CampaignID string         `json:"campaign_id"`
	Channel    string         `json:"channel"`
	Type       TouchpointType `json:"type"`

	// Either a known user or an anonymous session.
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Optional request context captured at ingest.
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Country   string `json:"country,omitempty"`
}

// AttributionResult is the credit weight assigned to one touchpoint under
// one model. For a non-empty journey the weights of a model sum to 1.
type AttributionResult struct {
	TouchpointID string           `json:"touchpoint_id"`
	CampaignID   string           `json:"campaign_id"`
	Channel      string           `json:"channel"`
	Model        AttributionModel `json:"model"`
	Weight       float64          `json:"weight"`
}
