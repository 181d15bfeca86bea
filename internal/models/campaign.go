package models

import (
	"errors"
	"time"
)

// CampaignStatus is the lifecycle state of a promotional campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign holds promotional campaign metadata. The analytics engine reads
// campaigns only to enrich report labels; it never mutates them.
type Campaign struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Status     CampaignStatus `json:"status"`
	Budget     float64        `json:"budget,omitempty"`
	Objectives []string       `json:"objectives,omitempty"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required fields and timeline consistency.
func (c *Campaign) Validate() error {
	if c.ID == "" {
		return errors.New("campaign id is required")
	}
	if c.Name == "" {
		return errors.New("campaign name is required")
	}
	switch c.Status {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
	case "":
		c.Status = CampaignDraft
	default:
		return errors.New("invalid campaign status: " + string(c.Status))
	}
	if !c.EndDate.IsZero() && !c.StartDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return errors.New("campaign end date precedes start date")
	}
	if c.Budget < 0 {
		return errors.New("campaign budget must not be negative")
	}
	return nil
}
