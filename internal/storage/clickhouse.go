package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/promopulse/promopulse/internal/models"
)

// ClickHouseRedemptionStore implements RedemptionStore on ClickHouse. It is
// the analytical store: append-only inserts and large date-range scans for
// the aggregators. AttachFraudAssessment is modelled as an insert into a
// ReplacingMergeTree keyed by redemption id, so the latest row wins.
type ClickHouseRedemptionStore struct {
	conn driver.Conn
}

// NewClickHouseRedemptionStore creates a new ClickHouse-backed redemption store.
func NewClickHouseRedemptionStore(conn driver.Conn) *ClickHouseRedemptionStore {
	return &ClickHouseRedemptionStore{conn: conn}
}

const chRedemptionColumns = `id, user_id, campaign_id, discount_code, discount_type, channel,
	gross_amount, discount_amount, final_amount, is_new_customer,
	device_type, country, fraud_risk_score, fraud_risk_level, review_required,
	detected_patterns, pattern_confidence, timestamp`

func (s *ClickHouseRedemptionStore) Save(ctx context.Context, r *models.Redemption) error {
	err := s.conn.Exec(ctx, `
		INSERT INTO redemptions (`+chRedemptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.CampaignID, r.DiscountCode, r.DiscountType, r.Channel,
		r.GrossAmount, r.DiscountAmount, r.FinalAmount, r.IsNewCustomer,
		r.DeviceType, r.Country, r.FraudRiskScore, string(r.FraudRiskLevel), r.ReviewRequired,
		r.DetectedPatterns, r.PatternConfidence, r.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert redemption: %w", err)
	}
	return nil
}

func (s *ClickHouseRedemptionStore) GetByID(ctx context.Context, id string) (*models.Redemption, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+chRedemptionColumns+` FROM redemptions FINAL WHERE id = ?
	`, id)

	r, err := scanCHRedemption(row)
	if err != nil {
		if isCHNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}
	return r, nil
}

func (s *ClickHouseRedemptionStore) Query(ctx context.Context, filter RedemptionFilter) ([]*models.Redemption, error) {
	query := `SELECT ` + chRedemptionColumns + ` FROM redemptions FINAL WHERE 1=1`
	var args []interface{}

	if !filter.Period.Start.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Period.Start)
	}
	if !filter.Period.End.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, filter.Period.End)
	}

	addClause := func(column, value string) {
		if value == "" {
			return
		}
		query += " AND " + column + " = ?"
		args = append(args, value)
	}
	addClause("campaign_id", filter.CampaignID)
	addClause("user_id", filter.UserID)
	addClause("channel", filter.Channel)
	addClause("discount_type", filter.DiscountType)
	addClause("country", filter.Country)
	query += " ORDER BY timestamp ASC"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var result []*models.Redemption
	for rows.Next() {
		r, err := scanCHRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *ClickHouseRedemptionStore) AttachFraudAssessment(ctx context.Context, redemptionID string, a *models.FraudAssessment) error {
	existing, err := s.GetByID(ctx, redemptionID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}

	existing.FraudRiskScore = a.RiskScore
	existing.FraudRiskLevel = a.RiskLevel
	existing.ReviewRequired = a.ReviewRequired
	return s.Save(ctx, existing)
}

func (s *ClickHouseRedemptionStore) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM redemptions FINAL WHERE user_id = ? AND timestamp > ?
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return int64(count), nil
}

// DailyTotals runs the per-day rollup server-side, which keeps trend
// queries cheap on large ranges. The timestamp bounds clamp edge buckets,
// so a window that starts or ends mid-day only counts redemptions inside
// the window.
func (s *ClickHouseRedemptionStore) DailyTotals(ctx context.Context, filter RedemptionFilter) (map[string]*models.OverviewMetrics, error) {
	query := `
		SELECT toDate(timestamp) AS day,
			count() AS total,
			uniqExactIf(user_id, user_id != '') AS users,
			sum(final_amount) AS revenue,
			sum(discount_amount) AS discount,
			countIf(is_new_customer) AS new_customers,
			countIf(device_type = 'mobile') AS mobile,
			countIf(device_type = 'desktop') AS desktop
		FROM redemptions FINAL
		WHERE 1=1`
	var args []interface{}

	if !filter.Period.Start.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Period.Start)
	}
	if !filter.Period.End.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, filter.Period.End)
	}

	addClause := func(column, value string) {
		if value == "" {
			return
		}
		query += " AND " + column + " = ?"
		args = append(args, value)
	}
	addClause("campaign_id", filter.CampaignID)
	addClause("user_id", filter.UserID)
	addClause("channel", filter.Channel)
	addClause("discount_type", filter.DiscountType)
	addClause("country", filter.Country)
	query += " GROUP BY day ORDER BY day"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*models.OverviewMetrics)
	for rows.Next() {
		var day time.Time
		var total, users, newCustomers, mobile, desktop uint64
		var revenue, discount float64
		if err := rows.Scan(&day, &total, &users, &revenue, &discount, &newCustomers, &mobile, &desktop); err != nil {
			return nil, fmt.Errorf("failed to scan daily totals: %w", err)
		}
		m := &models.OverviewMetrics{
			TotalRedemptions:   int64(total),
			DistinctUsers:      int64(users),
			TotalRevenue:       revenue,
			TotalDiscount:      discount,
			NewCustomers:       int64(newCustomers),
			ExistingCustomers:  int64(total - newCustomers),
			MobileRedemptions:  int64(mobile),
			DesktopRedemptions: int64(desktop),
		}
		if total > 0 {
			m.AverageOrderValue = revenue / float64(total)
			m.NewCustomerRate = float64(newCustomers) / float64(total)
		}
		if revenue+discount > 0 {
			m.DiscountRate = discount / (revenue + discount)
		}
		result[day.Format("2006-01-02")] = m
	}
	return result, rows.Err()
}

func scanCHRedemption(row interface {
	Scan(dest ...interface{}) error
}) (*models.Redemption, error) {
	var r models.Redemption
	var riskLevel string
	err := row.Scan(&r.ID, &r.UserID, &r.CampaignID, &r.DiscountCode, &r.DiscountType, &r.Channel,
		&r.GrossAmount, &r.DiscountAmount, &r.FinalAmount, &r.IsNewCustomer,
		&r.DeviceType, &r.Country, &r.FraudRiskScore, &riskLevel, &r.ReviewRequired,
		&r.DetectedPatterns, &r.PatternConfidence, &r.Timestamp)
	if err != nil {
		return nil, err
	}
	r.FraudRiskLevel = models.FraudRiskLevel(riskLevel)
	return &r, nil
}

func isCHNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Schema returns the DDL for the redemptions table, used by deploy tooling.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS redemptions (
	id String,
	user_id String,
	campaign_id String,
	discount_code String,
	discount_type String,
	channel String,
	gross_amount Float64,
	discount_amount Float64,
	final_amount Float64,
	is_new_customer Bool,
	device_type String,
	country String,
	fraud_risk_score Float64,
	fraud_risk_level String,
	review_required Bool,
	detected_patterns Array(String),
	pattern_confidence Map(String, Float64),
	timestamp DateTime64(3)
) ENGINE = ReplacingMergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (id)
SETTINGS index_granularity = 8192
`
}
