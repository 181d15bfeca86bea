package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promopulse/promopulse/internal/models"
)

// PostgresRedemptionStore implements RedemptionStore using PostgreSQL.
type PostgresRedemptionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRedemptionStore creates a new PostgreSQL-backed redemption store.
func NewPostgresRedemptionStore(pool *pgxpool.Pool) *PostgresRedemptionStore {
	return &PostgresRedemptionStore{pool: pool}
}

const redemptionColumns = `id, user_id, campaign_id, discount_code, discount_type, channel,
	gross_amount, discount_amount, final_amount, is_new_customer,
	device_type, country, ip, fraud_risk_score, fraud_risk_level, review_required,
	detected_patterns, pattern_confidence, timestamp`

func (s *PostgresRedemptionStore) Save(ctx context.Context, r *models.Redemption) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO redemptions (`+redemptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING
	`, r.ID, r.UserID, r.CampaignID, r.DiscountCode, nullString(r.DiscountType), nullString(r.Channel),
		r.GrossAmount, r.DiscountAmount, r.FinalAmount, r.IsNewCustomer,
		nullString(r.DeviceType), nullString(r.Country), nullString(r.IP),
		r.FraudRiskScore, nullString(string(r.FraudRiskLevel)), r.ReviewRequired,
		r.DetectedPatterns, r.PatternConfidence, r.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save redemption: %w", err)
	}
	return nil
}

func (s *PostgresRedemptionStore) GetByID(ctx context.Context, id string) (*models.Redemption, error) {
	r, err := scanRedemption(s.pool.QueryRow(ctx, `
		SELECT `+redemptionColumns+` FROM redemptions WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}
	return r, nil
}

func (s *PostgresRedemptionStore) Query(ctx context.Context, filter RedemptionFilter) ([]*models.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions WHERE 1=1`
	var args []interface{}

	if !filter.Period.Start.IsZero() {
		args = append(args, filter.Period.Start)
		query += " AND timestamp >= $" + strconv.Itoa(len(args))
	}
	if !filter.Period.End.IsZero() {
		args = append(args, filter.Period.End)
		query += " AND timestamp < $" + strconv.Itoa(len(args))
	}

	addClause := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += " AND " + column + " = $" + strconv.Itoa(len(args))
	}
	addClause("campaign_id", filter.CampaignID)
	addClause("user_id", filter.UserID)
	addClause("channel", filter.Channel)
	addClause("discount_type", filter.DiscountType)
	addClause("country", filter.Country)
	query += " ORDER BY timestamp ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var result []*models.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *PostgresRedemptionStore) AttachFraudAssessment(ctx context.Context, redemptionID string, a *models.FraudAssessment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE redemptions
		SET fraud_risk_score = $2, fraud_risk_level = $3, review_required = $4
		WHERE id = $1
	`, redemptionID, a.RiskScore, string(a.RiskLevel), a.ReviewRequired)
	if err != nil {
		return fmt.Errorf("failed to attach fraud assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRedemptionStore) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM redemptions WHERE user_id = $1 AND timestamp > $2
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}

func scanRedemption(row pgx.Row) (*models.Redemption, error) {
	var r models.Redemption
	var discountType, channel, deviceType, country, ip, riskLevel *string
	err := row.Scan(&r.ID, &r.UserID, &r.CampaignID, &r.DiscountCode, &discountType, &channel,
		&r.GrossAmount, &r.DiscountAmount, &r.FinalAmount, &r.IsNewCustomer,
		&deviceType, &country, &ip, &r.FraudRiskScore, &riskLevel, &r.ReviewRequired,
		&r.DetectedPatterns, &r.PatternConfidence, &r.Timestamp)
	if err != nil {
		return nil, err
	}
	r.DiscountType = deref(discountType)
	r.Channel = deref(channel)
	r.DeviceType = deref(deviceType)
	r.Country = deref(country)
	r.IP = deref(ip)
	r.FraudRiskLevel = models.FraudRiskLevel(deref(riskLevel))
	return &r, nil
}
