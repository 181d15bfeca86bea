package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics engine.
type Metrics struct {
	// Ingest metrics
	Touchpoints *prometheus.CounterVec
	Redemptions *prometheus.CounterVec
	Revenue     *prometheus.CounterVec
	Discount    *prometheus.CounterVec

	// Fraud metrics
	FraudAssessments *prometheus.CounterVec

	// Report metrics
	ReportsGenerated *prometheus.CounterVec
	SectionLatency   *prometheus.HistogramVec
	DegradedSections *prometheus.CounterVec
	AttributionRuns  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Touchpoints: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "touchpoints_total",
				Help:      "Total number of touchpoints ingested",
			},
			[]string{"campaign_id", "type"},
		),
		Redemptions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redemptions_total",
				Help:      "Total number of redemptions ingested",
			},
			[]string{"campaign_id"},
		),
		Revenue: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "revenue_total",
				Help:      "Total final-amount revenue ingested",
			},
			[]string{"campaign_id"},
		),
		Discount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discount_total",
				Help:      "Total discount amount given",
			},
			[]string{"campaign_id"},
		),
		FraudAssessments: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fraud_assessments_total",
				Help:      "Fraud assessments by risk level",
			},
			[]string{"risk_level"},
		),
		ReportsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_generated_total",
				Help:      "Performance reports generated",
			},
			[]string{"status"},
		),
		SectionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_section_duration_seconds",
				Help:      "Duration of report sub-analyses",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"section"},
		),
		DegradedSections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_degraded_sections_total",
				Help:      "Report sections that failed and were degraded",
			},
			[]string{"section"},
		),
		AttributionRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribution_runs_total",
				Help:      "Attribution computations by model",
			},
			[]string{"model"},
		),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordTouchpoint(campaignID, touchpointType string) {
	m.Touchpoints.WithLabelValues(campaignID, touchpointType).Inc()
}

func (m *Metrics) RecordRedemption(campaignID string, revenue, discount float64) {
	m.Redemptions.WithLabelValues(campaignID).Inc()
	m.Revenue.WithLabelValues(campaignID).Add(revenue)
	m.Discount.WithLabelValues(campaignID).Add(discount)
}

func (m *Metrics) RecordFraudAssessment(riskLevel string) {
	m.FraudAssessments.WithLabelValues(riskLevel).Inc()
}

func (m *Metrics) RecordReport(status string) {
	m.ReportsGenerated.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordSectionDuration(section string, d time.Duration) {
	m.SectionLatency.WithLabelValues(section).Observe(d.Seconds())
}

func (m *Metrics) RecordDegradedSection(section string) {
	m.DegradedSections.WithLabelValues(section).Inc()
}

func (m *Metrics) RecordAttribution(model string) {
	m.AttributionRuns.WithLabelValues(model).Inc()
}
