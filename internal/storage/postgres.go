package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promopulse/promopulse/internal/models"
)

// PostgresCampaignRepo implements CampaignRepo using PostgreSQL.
type PostgresCampaignRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresCampaignRepo creates a new PostgreSQL-backed campaign repo.
func NewPostgresCampaignRepo(pool *pgxpool.Pool) *PostgresCampaignRepo {
	return &PostgresCampaignRepo{pool: pool}
}

const campaignColumns = `id, name, status, budget, objectives, start_date, end_date, created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.Budget, &c.Objectives,
		&c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCampaignRepo) ListAll(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *PostgresCampaignRepo) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

func (r *PostgresCampaignRepo) Upsert(ctx context.Context, c *models.Campaign) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO campaigns (id, name, status, budget, objectives, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			budget = EXCLUDED.budget,
			objectives = EXCLUDED.objectives,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Name, c.Status, c.Budget, c.Objectives, c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert campaign: %w", err)
	}
	return nil
}

func (r *PostgresCampaignRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

func (r *PostgresCampaignRepo) GetActive(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns WHERE status = $1 ORDER BY created_at DESC
	`, models.CampaignActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// PostgresTouchpointStore implements TouchpointStore using PostgreSQL.
type PostgresTouchpointStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTouchpointStore creates a new PostgreSQL-backed touchpoint store.
func NewPostgresTouchpointStore(pool *pgxpool.Pool) *PostgresTouchpointStore {
	return &PostgresTouchpointStore{pool: pool}
}

func (s *PostgresTouchpointStore) Save(ctx context.Context, tp *models.Touchpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO touchpoints (id, campaign_id, channel, type, user_id, session_id, ip, user_agent, country, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, tp.ID, tp.CampaignID, tp.Channel, tp.Type, nullString(tp.UserID), nullString(tp.SessionID),
		nullString(tp.IP), nullString(tp.UserAgent), nullString(tp.Country), tp.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save touchpoint: %w", err)
	}
	return nil
}

func (s *PostgresTouchpointStore) GetByID(ctx context.Context, id string) (*models.Touchpoint, error) {
	tp, err := scanTouchpoint(s.pool.QueryRow(ctx, `
		SELECT id, campaign_id, channel, type, user_id, session_id, ip, user_agent, country, timestamp
		FROM touchpoints WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get touchpoint: %w", err)
	}
	return tp, nil
}

func (s *PostgresTouchpointStore) Journey(ctx context.Context, userOrSessionID string, period models.DateRange) ([]*models.Touchpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, campaign_id, channel, type, user_id, session_id, ip, user_agent, country, timestamp
		FROM touchpoints
		WHERE (user_id = $1 OR session_id = $1)
		  AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC
	`, userOrSessionID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query journey: %w", err)
	}
	defer rows.Close()

	var result []*models.Touchpoint
	for rows.Next() {
		tp, err := scanTouchpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan touchpoint: %w", err)
		}
		result = append(result, tp)
	}
	return result, rows.Err()
}

func (s *PostgresTouchpointStore) CountByCampaign(ctx context.Context, campaignID string, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM touchpoints WHERE campaign_id = $1 AND timestamp > $2
	`, campaignID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count touchpoints: %w", err)
	}
	return count, nil
}

func scanTouchpoint(row pgx.Row) (*models.Touchpoint, error) {
	var tp models.Touchpoint
	var userID, sessionID, ip, ua, country *string
	err := row.Scan(&tp.ID, &tp.CampaignID, &tp.Channel, &tp.Type,
		&userID, &sessionID, &ip, &ua, &country, &tp.Timestamp)
	if err != nil {
		return nil, err
	}
	tp.UserID = deref(userID)
	tp.SessionID = deref(sessionID)
	tp.IP = deref(ip)
	tp.UserAgent = deref(ua)
	tp.Country = deref(country)
	return &tp, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
