package httpserver

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promopulse/promopulse/internal/analytics"
	"github.com/promopulse/promopulse/internal/config"
	"github.com/promopulse/promopulse/internal/database"
	"github.com/promopulse/promopulse/internal/geo"
	"github.com/promopulse/promopulse/internal/metrics"
	"github.com/promopulse/promopulse/internal/middleware"
	"github.com/promopulse/promopulse/internal/storage"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *database.RedisDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and the analytics services.
type Server struct {
	attribution *analytics.AttributionEngine
	overview    *analytics.RedemptionAggregator
	cohorts     *analytics.CohortAnalyzer
	incremental *analytics.IncrementalRevenueAnalyzer
	fraud       *analytics.FraudRiskScorer
	reports     *analytics.ReportAggregator
	ingest      *analytics.IngestService
	touchpoints storage.TouchpointStore
	campaigns   storage.CampaignRepo
	logger      *zap.Logger
	config      *config.Config
	metrics     *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	// Initialize stores. ClickHouse is preferred for the redemption store
	// when available, then Postgres, then in-memory.
	var tpStore storage.TouchpointStore
	var redemptionStore storage.RedemptionStore
	var campaignRepo storage.CampaignRepo

	switch {
	case deps.ClickHouse != nil:
		redemptionStore = storage.NewClickHouseRedemptionStore(deps.ClickHouse.Conn)
	case deps.DB != nil:
		redemptionStore = storage.NewPostgresRedemptionStore(deps.DB.Pool)
	default:
		redemptionStore = storage.NewInMemoryRedemptionStore()
	}
	if deps.DB != nil {
		tpStore = storage.NewPostgresTouchpointStore(deps.DB.Pool)
		campaignRepo = storage.NewPostgresCampaignRepo(deps.DB.Pool)
	} else {
		tpStore = storage.NewInMemoryTouchpointStore()
		campaignRepo = storage.NewInMemoryCampaignRepo()
	}

	var redisClient *redis.Client
	if deps.Redis != nil {
		redisClient = deps.Redis.Client
	}

	// Geo enrichment
	var resolver *geo.Resolver
	if deps.Config.Geo.Enabled {
		provider, err := geo.NewMaxMindProvider(deps.Config.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to initialize geo provider, enrichment disabled", zap.Error(err))
		} else {
			resolver = geo.NewResolver(provider, deps.Config.Geo.CacheSize, deps.Config.Geo.CacheTTL)
		}
	}

	// Initialize services
	attribution := analytics.NewAttributionEngine()
	overview := analytics.NewRedemptionAggregator(redemptionStore, redisClient, deps.Logger)
	cohorts := analytics.NewCohortAnalyzer(redemptionStore, deps.Logger)
	incremental := analytics.NewIncrementalRevenueAnalyzer(redemptionStore, deps.Logger)
	fraud := analytics.NewFraudRiskScorer(redemptionStore, redisClient, analytics.DefaultFraudPolicy(), deps.Logger)
	reports := analytics.NewReportAggregator(overview, cohorts, incremental, fraud, campaignRepo, deps.Logger, deps.Metrics)
	ingest := analytics.NewIngestService(tpStore, redemptionStore, fraud, resolver, deps.Logger, deps.Metrics)

	s := &Server{
		attribution: attribution,
		overview:    overview,
		cohorts:     cohorts,
		incremental: incremental,
		fraud:       fraud,
		reports:     reports,
		ingest:      ingest,
		touchpoints: tpStore,
		campaigns:   campaignRepo,
		logger:      deps.Logger,
		config:      deps.Config,
		metrics:     deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Ingest
	mux.HandleFunc("/api/v1/touchpoints", s.handleTouchpoints)
	mux.HandleFunc("/api/v1/redemptions", s.handleRedemptions)

	// Analytics
	mux.HandleFunc("/api/v1/attribution", s.handleAttribution)
	mux.HandleFunc("/api/v1/analytics/overview", s.handleOverview)
	mux.HandleFunc("/api/v1/analytics/trends", s.handleTrends)
	mux.HandleFunc("/api/v1/analytics/cohorts", s.handleCohorts)
	mux.HandleFunc("/api/v1/analytics/incremental", s.handleIncremental)
	mux.HandleFunc("/api/v1/analytics/fraud/patterns", s.handleFraudPatterns)

	// Reports
	mux.HandleFunc("/api/v1/reports/performance", s.handlePerformanceReport)

	// Campaign metadata
	mux.HandleFunc("/api/v1/campaigns", s.handleCampaigns)
	mux.HandleFunc("/api/v1/campaigns/", s.handleCampaignByID)

	// Middleware chain, innermost first.
	var handler http.Handler = mux
	handler = middleware.NewAuthMiddleware(deps.Config.Auth, deps.Logger).Handler(handler)
	handler = middleware.NewRateLimitMiddleware(deps.Config.RateLimit, deps.Logger).Handler(handler)
	handler = middleware.NewLoggingMiddleware(deps.Logger).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(deps.Logger).Handler(handler)
	return handler
}
