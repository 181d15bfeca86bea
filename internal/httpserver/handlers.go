package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/analytics"
	"github.com/promopulse/promopulse/internal/middleware"
	"github.com/promopulse/promopulse/internal/models"
)

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Ingest ----

func (s *Server) handleTouchpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tp models.Touchpoint
	if err := json.NewDecoder(r.Body).Decode(&tp); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if tp.IP == "" {
		tp.IP = middleware.ClientIP(r)
	}

	if err := s.ingest.RecordTouchpoint(r.Context(), &tp); err != nil {
		s.errorResponse(w, "failed to record touchpoint: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(tp)
}

func (s *Server) handleRedemptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var red models.Redemption
	if err := json.NewDecoder(r.Body).Decode(&red); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if red.IP == "" {
		red.IP = middleware.ClientIP(r)
	}

	assessment, err := s.ingest.RecordRedemption(r.Context(), &red)
	if err != nil {
		s.errorResponse(w, "failed to record redemption: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"redemption": red,
		"assessment": assessment,
	})
}

// ---- Attribution ----

type attributionRequest struct {
	Touchpoints []*models.Touchpoint    `json:"touchpoints"`
	Model       models.AttributionModel `json:"model,omitempty"`

	// When UserID is set the journey is loaded from the store instead.
	UserID string           `json:"user_id,omitempty"`
	Period models.DateRange `json:"period,omitempty"`
}

func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req attributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	touchpoints := req.Touchpoints
	if req.UserID != "" {
		if err := req.Period.Validate(); err != nil {
			s.errorResponse(w, "invalid period: "+err.Error(), http.StatusBadRequest)
			return
		}
		journey, err := s.touchpoints.Journey(r.Context(), req.UserID, req.Period)
		if err != nil {
			s.logger.Error("journey query failed", zap.Error(err))
			s.errorResponse(w, "journey unavailable", http.StatusBadGateway)
			return
		}
		touchpoints = journey
	}

	if req.Model != "" {
		results, err := s.attribution.Attribute(touchpoints, req.Model)
		if err != nil {
			s.analyticsError(w, err)
			return
		}
		if s.metrics != nil {
			s.metrics.RecordAttribution(string(req.Model))
		}
		s.jsonResponse(w, results)
		return
	}

	winner, all, err := s.attribution.Compare(touchpoints, nil)
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordAttribution("all")
	}
	s.jsonResponse(w, map[string]interface{}{
		"winning_model": winner,
		"models":        all,
	})
}

// ---- Analytics ----

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filterFromQuery(w, r)
	if !ok {
		return
	}
	m, err := s.overview.Summarize(r.Context(), filter)
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	s.jsonResponse(w, m)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filterFromQuery(w, r)
	if !ok {
		return
	}
	points, err := s.overview.Trends(r.Context(), filter)
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	s.jsonResponse(w, points)
}

func (s *Server) handleCohorts(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filterFromQuery(w, r)
	if !ok {
		return
	}

	granularity := analytics.CohortGranularity(r.URL.Query().Get("granularity"))
	if granularity == "" {
		granularity = analytics.GranularityWeekly
	}

	cohorts, err := s.cohorts.Cohorts(r.Context(), filter.Period, granularity)
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	s.jsonResponse(w, cohorts)
}

func (s *Server) handleIncremental(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filterFromQuery(w, r)
	if !ok {
		return
	}
	res, err := s.incremental.Analyze(r.Context(), filter)
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	s.jsonResponse(w, res)
}

func (s *Server) handleFraudPatterns(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filterFromQuery(w, r)
	if !ok {
		return
	}
	patterns, err := s.fraud.DetectPatterns(r.Context(), filter.Period)
	if err != nil {
		s.analyticsError(w, err)
		return
	}
	s.jsonResponse(w, patterns)
}

// ---- Reports ----

func (s *Server) handlePerformanceReport(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filterFromQuery(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Report.GenerateTimeout)
	defer cancel()

	report, err := s.reports.Generate(ctx, filter)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.RecordReport("complete")
		}
		s.jsonResponse(w, report)

	case errors.Is(err, analytics.ErrPartialAggregation):
		// Degraded but usable: return the report with its Degraded list.
		if s.metrics != nil {
			s.metrics.RecordReport("degraded")
			for _, section := range report.Degraded {
				s.metrics.RecordDegradedSection(section)
			}
		}
		s.jsonResponse(w, report)

	default:
		if s.metrics != nil {
			s.metrics.RecordReport("failed")
		}
		s.analyticsError(w, err)
	}
}

// ---- Campaign metadata ----

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.campaigns.ListAll(r.Context())
		if err != nil {
			s.logger.Error("failed to list campaigns", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var c models.Campaign
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		now := time.Now().UTC()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		if err := c.Validate(); err != nil {
			s.errorResponse(w, "invalid campaign: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.campaigns.Upsert(r.Context(), &c); err != nil {
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, c)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCampaignByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/campaigns/")
	if id == "" || strings.Contains(id, "/") {
		s.errorResponse(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := s.campaigns.GetByID(r.Context(), id)
		if err != nil {
			s.logger.Error("failed to get campaign", zap.Error(err))
			s.errorResponse(w, "failed to get", http.StatusInternalServerError)
			return
		}
		if c == nil {
			s.errorResponse(w, "campaign not found", http.StatusNotFound)
			return
		}
		s.jsonResponse(w, c)

	case http.MethodDelete:
		if err := s.campaigns.Delete(r.Context(), id); err != nil {
			s.errorResponse(w, "failed to delete", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Helpers ----

// filterFromQuery parses the common report filter parameters. Dates accept
// RFC 3339 or plain YYYY-MM-DD.
func (s *Server) filterFromQuery(w http.ResponseWriter, r *http.Request) (models.ReportFilter, bool) {
	q := r.URL.Query()

	start, err := parseDate(q.Get("start"))
	if err != nil {
		s.errorResponse(w, "invalid start date", http.StatusBadRequest)
		return models.ReportFilter{}, false
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		s.errorResponse(w, "invalid end date", http.StatusBadRequest)
		return models.ReportFilter{}, false
	}

	filter := models.ReportFilter{
		Period:       models.DateRange{Start: start, End: end},
		CampaignID:   q.Get("campaign_id"),
		Channel:      q.Get("channel"),
		DiscountType: q.Get("discount_type"),
		Country:      q.Get("country"),
	}
	if err := filter.Validate(); err != nil {
		s.errorResponse(w, "invalid filter: "+err.Error(), http.StatusBadRequest)
		return models.ReportFilter{}, false
	}
	return filter, true
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// analyticsError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) analyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrInvalidFilter):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, analytics.ErrDataUnavailable):
		s.logger.Error("data unavailable", zap.Error(err))
		s.errorResponse(w, "data unavailable", http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		s.errorResponse(w, "report generation timed out", http.StatusGatewayTimeout)
	default:
		s.logger.Error("analytics error", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
