package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jack/golang-campaign-redirect-service/internal/config"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	campaignColumns = `id, name, redirect_method, custom_path, multiplier, price_per_thousand, trafficstar_campaign_id, created_at, updated_at`
	urlColumns      = `id, campaign_id, name, target_url, clicks, click_limit, original_click_limit, status, created_at, updated_at`
	originalColumns = `id, name, target_url, original_click_limit, status, created_at, updated_at`

	pgUniqueViolation = "23505"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresRepository)(nil)

func NewPostgresRepository(cfg *config.PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// NewPostgresRepositoryFromPool wraps an existing pool.
func NewPostgresRepositoryFromPool(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.RedirectMethod,
		&c.CustomPath,
		&c.Multiplier,
		&c.PricePerThousand,
		&c.TrafficstarCampaignID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanURL(row pgx.Row) (*model.URL, error) {
	var u model.URL
	err := row.Scan(
		&u.ID,
		&u.CampaignID,
		&u.Name,
		&u.TargetURL,
		&u.Clicks,
		&u.ClickLimit,
		&u.OriginalClickLimit,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanOriginal(row pgx.Row) (*model.OriginalURLRecord, error) {
	var o model.OriginalURLRecord
	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.TargetURL,
		&o.OriginalClickLimit,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateCampaign inserts a campaign and fills in its generated fields
func (r *PostgresRepository) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	query := `
		INSERT INTO campaigns (name, redirect_method, custom_path, multiplier, price_per_thousand, trafficstar_campaign_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		c.Name, c.RedirectMethod, c.CustomPath, c.Multiplier, c.PricePerThousand, c.TrafficstarCampaignID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCustomPathTaken
		}
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return c, nil
}

// GetCampaignByPath resolves a public custom path to its campaign
func (r *PostgresRepository) GetCampaignByPath(ctx context.Context, path string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE custom_path = $1`

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, path))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign by path: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

func (r *PostgresRepository) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $2, redirect_method = $3, custom_path = $4, multiplier = $5,
		    price_per_thousand = $6, trafficstar_campaign_id = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		c.ID, c.Name, c.RedirectMethod, c.CustomPath, c.Multiplier, c.PricePerThousand, c.TrafficstarCampaignID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCampaignNotFound
		}
		if isUniqueViolation(err) {
			return ErrCustomPathTaken
		}
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return nil
}

// DeleteCampaign soft-deletes child URLs and removes the campaign in one transaction
func (r *PostgresRepository) DeleteCampaign(ctx context.Context, id int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE urls SET status = 'deleted', updated_at = NOW() WHERE campaign_id = $1`, id,
		); err != nil {
			return fmt.Errorf("failed to soft-delete campaign urls: %w", err)
		}

		result, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete campaign: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrCampaignNotFound
		}
		return nil
	})
}

// CreateURL inserts a URL record and fills in its generated fields
func (r *PostgresRepository) CreateURL(ctx context.Context, u *model.URL) error {
	query := `
		INSERT INTO urls (campaign_id, name, target_url, clicks, click_limit, original_click_limit, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		u.CampaignID, u.Name, u.TargetURL, u.Clicks, u.ClickLimit, u.OriginalClickLimit, u.Status,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create url: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetURL(ctx context.Context, id int64) (*model.URL, error) {
	query := `SELECT ` + urlColumns + ` FROM urls WHERE id = $1`

	u, err := scanURL(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, fmt.Errorf("failed to get url: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) queryURLs(ctx context.Context, query string, args ...any) ([]*model.URL, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query urls: %w", err)
	}
	defer rows.Close()

	var urls []*model.URL
	for rows.Next() {
		u, err := scanURL(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}

	return urls, rows.Err()
}

func (r *PostgresRepository) ListURLsByCampaign(ctx context.Context, campaignID int64) ([]*model.URL, error) {
	return r.queryURLs(ctx, `SELECT `+urlColumns+` FROM urls WHERE campaign_id = $1 ORDER BY id`, campaignID)
}

func (r *PostgresRepository) ListURLsByName(ctx context.Context, name string) ([]*model.URL, error) {
	return r.queryURLs(ctx, `SELECT `+urlColumns+` FROM urls WHERE name = $1 ORDER BY id`, name)
}

// URLNameUsage counts URLs using a name, including numbered duplicates ("name #N")
func (r *PostgresRepository) URLNameUsage(ctx context.Context, name string) (NameUsage, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE name = $1 AND status <> 'rejected')
		FROM urls
		WHERE name = $1 OR name LIKE $2 ESCAPE '\'
	`

	var usage NameUsage
	if err := r.pool.QueryRow(ctx, query, name, escapeLike(name)+` #%`).Scan(&usage.Total, &usage.NonRejected); err != nil {
		return NameUsage{}, fmt.Errorf("failed to count url name usage: %w", err)
	}

	return usage, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateURL writes operator-editable columns; clicks and original_click_limit are not touched
func (r *PostgresRepository) UpdateURL(ctx context.Context, u *model.URL) error {
	query := `
		UPDATE urls
		SET campaign_id = $2, name = $3, target_url = $4, click_limit = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + urlColumns

	updated, err := scanURL(r.pool.QueryRow(ctx, query,
		u.ID, u.CampaignID, u.Name, u.TargetURL, u.ClickLimit, u.Status,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrURLNotFound
		}
		return fmt.Errorf("failed to update url: %w", err)
	}

	*u = *updated
	return nil
}

func (r *PostgresRepository) SetURLStatus(ctx context.Context, ids []int64, status model.URLStatus) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.pool.Exec(ctx,
		`UPDATE urls SET status = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to set url status: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// DeleteURLPermanently removes the row; click events are kept
func (r *PostgresRepository) DeleteURLPermanently(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM urls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}
	return nil
}

const addClicksQuery = `
	WITH prev AS (
		SELECT id AS prev_id, campaign_id AS prev_campaign_id FROM urls WHERE id = $1 FOR UPDATE
	)
	UPDATE urls
	SET clicks = clicks + $2,
	    status = CASE
	        WHEN clicks + $2 >= click_limit AND status NOT IN ('rejected', 'deleted') THEN 'completed'
	        ELSE status END,
	    campaign_id = CASE
	        WHEN clicks + $2 >= click_limit AND status NOT IN ('rejected', 'deleted') THEN NULL
	        ELSE campaign_id END,
	    updated_at = NOW()
	FROM prev
	WHERE id = prev.prev_id
	RETURNING ` + urlColumns + `, prev.prev_campaign_id`

// AddClicks increments the committed click counter by n (used for batch flush).
// It also returns the campaign the URL belonged to before the write. The flush token
// is stored in the same transaction, so a retried flush is applied once.
func (r *PostgresRepository) AddClicks(ctx context.Context, id int64, n int64, flushToken string) (*model.URL, *int64, error) {
	var (
		u              *model.URL
		prevCampaignID *int64
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if flushToken != "" {
			err := tx.QueryRow(ctx,
				`SELECT prev_campaign_id FROM click_flushes WHERE token = $1`, flushToken,
			).Scan(&prevCampaignID)
			if err == nil {
				// 這批點擊已寫入過，只回傳目前狀態
				u, err = scanURL(tx.QueryRow(ctx, `SELECT `+urlColumns+` FROM urls WHERE id = $1`, id))
				return err
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to look up click flush: %w", err)
			}
		}

		var row model.URL
		err := tx.QueryRow(ctx, addClicksQuery, id, n).Scan(
			&row.ID,
			&row.CampaignID,
			&row.Name,
			&row.TargetURL,
			&row.Clicks,
			&row.ClickLimit,
			&row.OriginalClickLimit,
			&row.Status,
			&row.CreatedAt,
			&row.UpdatedAt,
			&prevCampaignID,
		)
		if err != nil {
			return err
		}
		u = &row

		if flushToken == "" {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO click_flushes (token, url_id, clicks, prev_campaign_id) VALUES ($1, $2, $3, $4)`,
			flushToken, id, n, prevCampaignID,
		); err != nil {
			return fmt.Errorf("failed to record click flush: %w", err)
		}
		// 已套用的 token 保留七天
		if _, err := tx.Exec(ctx,
			`DELETE FROM click_flushes WHERE applied_at < NOW() - INTERVAL '7 days'`,
		); err != nil {
			return fmt.Errorf("failed to prune click flushes: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrURLNotFound
		}
		return nil, nil, fmt.Errorf("failed to add %d clicks: %w", n, err)
	}

	return u, prevCampaignID, nil
}

// ApplyOriginalSync is the privileged write path for master record propagation
func (r *PostgresRepository) ApplyOriginalSync(ctx context.Context, id int64, clickLimit, originalClickLimit int64, status model.URLStatus) (*model.URL, error) {
	query := `
		UPDATE urls
		SET click_limit = $2, original_click_limit = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + urlColumns

	u, err := scanURL(r.pool.QueryRow(ctx, query, id, clickLimit, originalClickLimit, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, fmt.Errorf("failed to apply original sync: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) CreateOriginal(ctx context.Context, o *model.OriginalURLRecord) error {
	query := `
		INSERT INTO original_url_records (name, target_url, original_click_limit, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query, o.Name, o.TargetURL, o.OriginalClickLimit, o.Status).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create original url record: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetOriginal(ctx context.Context, id int64) (*model.OriginalURLRecord, error) {
	o, err := scanOriginal(r.pool.QueryRow(ctx,
		`SELECT `+originalColumns+` FROM original_url_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOriginalNotFound
		}
		return nil, fmt.Errorf("failed to get original url record: %w", err)
	}

	return o, nil
}

func (r *PostgresRepository) GetOriginalByName(ctx context.Context, name string) (*model.OriginalURLRecord, error) {
	o, err := scanOriginal(r.pool.QueryRow(ctx,
		`SELECT `+originalColumns+` FROM original_url_records WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOriginalNotFound
		}
		return nil, fmt.Errorf("failed to get original url record by name: %w", err)
	}

	return o, nil
}

func (r *PostgresRepository) ListOriginals(ctx context.Context) ([]*model.OriginalURLRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+originalColumns+` FROM original_url_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list original url records: %w", err)
	}
	defer rows.Close()

	var records []*model.OriginalURLRecord
	for rows.Next() {
		o, err := scanOriginal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan original url record: %w", err)
		}
		records = append(records, o)
	}

	return records, rows.Err()
}

func (r *PostgresRepository) UpdateOriginal(ctx context.Context, o *model.OriginalURLRecord) error {
	query := `
		UPDATE original_url_records
		SET target_url = $2, original_click_limit = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query, o.ID, o.TargetURL, o.OriginalClickLimit, o.Status).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOriginalNotFound
		}
		return fmt.Errorf("failed to update original url record: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListBlacklist(ctx context.Context) ([]*model.BlacklistedURL, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, target_url, created_at FROM blacklisted_urls ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	defer rows.Close()

	var entries []*model.BlacklistedURL
	for rows.Next() {
		var b model.BlacklistedURL
		if err := rows.Scan(&b.ID, &b.Name, &b.TargetURL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		entries = append(entries, &b)
	}

	return entries, rows.Err()
}

func (r *PostgresRepository) CreateBlacklist(ctx context.Context, b *model.BlacklistedURL) error {
	query := `
		INSERT INTO blacklisted_urls (name, target_url)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	b.TargetURL = strings.TrimSpace(b.TargetURL)
	if err := r.pool.QueryRow(ctx, query, b.Name, b.TargetURL).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("failed to create blacklist entry: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteBlacklist(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM blacklisted_urls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blacklist entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrBlacklistNotFound
	}
	return nil
}

func (r *PostgresRepository) IsBlacklisted(ctx context.Context, targetURL string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM blacklisted_urls WHERE btrim(target_url, E' \t\r\n') = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, strings.TrimSpace(targetURL)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return exists, nil
}

// LogClick records one redirect for analytics
func (r *PostgresRepository) LogClick(ctx context.Context, e *model.ClickEvent) error {
	query := `
		INSERT INTO click_events (id, campaign_id, url_id, ip_address, user_agent, referer)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("invalid click event id %q: %w", e.ID, err)
	}

	_, err = r.pool.Exec(ctx, query, id, e.CampaignID, e.URLID, e.IPAddress, e.UserAgent, e.Referer)
	if err != nil {
		return fmt.Errorf("failed to log click: %w", err)
	}

	return nil
}

// Health checks the database connection
func (r *PostgresRepository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
