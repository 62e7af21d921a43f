package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"review-reply-automation/internal/domain"
)

// PostgresRepository stores records in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects, pings and migrates.
func NewPostgresRepository(ctx context.Context, opts Options) (*PostgresRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if opts.MinConns > 0 {
		poolCfg.MinConns = opts.MinConns
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &PostgresRepository{pool: pool}
	if err := repo.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS reviews (
        identity      TEXT PRIMARY KEY,
        store_code    TEXT NOT NULL,
        platform_code TEXT NOT NULL DEFAULT '',
        store_name    TEXT NOT NULL DEFAULT '',
        author        TEXT NOT NULL DEFAULT '',
        rating        INTEGER NOT NULL DEFAULT 0,
        review_text   TEXT NOT NULL DEFAULT '',
        order_menu    TEXT NOT NULL DEFAULT '',
        delivery_note TEXT NOT NULL DEFAULT '',
        review_date   DATE NOT NULL,
        status        TEXT NOT NULL,
        ai_reply      TEXT NOT NULL DEFAULT '',
        retry_count   INTEGER NOT NULL DEFAULT 0,
        category      TEXT NOT NULL DEFAULT '',
        reason        TEXT NOT NULL DEFAULT '',
        updated_at    TIMESTAMPTZ NOT NULL,
        answered_at   TIMESTAMPTZ
    );
    CREATE INDEX IF NOT EXISTS idx_reviews_store_status ON reviews(store_code, status);

    CREATE TABLE IF NOT EXISTS error_logs (
        id          TEXT PRIMARY KEY,
        category    TEXT NOT NULL,
        platform    TEXT NOT NULL DEFAULT '',
        store_code  TEXT NOT NULL DEFAULT '',
        identity    TEXT NOT NULL DEFAULT '',
        error_type  TEXT NOT NULL,
        message     TEXT NOT NULL DEFAULT '',
        detail      JSONB NOT NULL DEFAULT '{}',
        created_at  TIMESTAMPTZ NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_error_logs_created ON error_logs(created_at);
    `
	_, err := r.pool.Exec(ctx, schema)
	return err
}

const pgColumns = `identity, store_code, platform_code, store_name, author, rating, review_text,
        order_menu, delivery_note, review_date, status, ai_reply, retry_count, category, reason,
        updated_at, answered_at`

func (r *PostgresRepository) Get(ctx context.Context, identity string) (*domain.ReviewRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM reviews WHERE identity = $1`, identity)
	rec, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *domain.ReviewRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO reviews (`+pgColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        ON CONFLICT (identity) DO UPDATE SET
            store_code    = EXCLUDED.store_code,
            platform_code = EXCLUDED.platform_code,
            store_name    = EXCLUDED.store_name,
            author        = EXCLUDED.author,
            rating        = EXCLUDED.rating,
            review_text   = EXCLUDED.review_text,
            order_menu    = EXCLUDED.order_menu,
            delivery_note = EXCLUDED.delivery_note,
            review_date   = reviews.review_date,
            status        = CASE WHEN reviews.status = 'ANSWERED' THEN reviews.status ELSE EXCLUDED.status END,
            ai_reply      = CASE WHEN reviews.status = 'ANSWERED' AND EXCLUDED.status <> 'ANSWERED'
                                 THEN reviews.ai_reply ELSE EXCLUDED.ai_reply END,
            retry_count   = GREATEST(reviews.retry_count, EXCLUDED.retry_count),
            category      = EXCLUDED.category,
            reason        = EXCLUDED.reason,
            updated_at    = EXCLUDED.updated_at,
            answered_at   = COALESCE(reviews.answered_at, EXCLUDED.answered_at)
    `, rec.Identity, rec.StoreCode, rec.PlatformCode, rec.StoreName, rec.Author, rec.Rating,
		rec.ReviewText, rec.OrderMenu, rec.DeliveryNote, rec.ReviewDate, string(rec.Status),
		rec.AIReply, rec.RetryCount, rec.Category, rec.Reason, updatedAt, rec.AnsweredAt)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, storeCode string, status domain.Status, limit int) ([]*domain.ReviewRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
        SELECT `+pgColumns+`
        FROM reviews
        WHERE store_code = $1 AND status = $2
        ORDER BY updated_at DESC
        LIMIT $3
    `, storeCode, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ReviewRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			slog.Warn("scan record failed", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) ClearRetries(ctx context.Context, identity string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reviews SET retry_count = 0, updated_at = $1 WHERE identity = $2`,
		time.Now(), identity)
	if err != nil {
		return fmt.Errorf("clear retries: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AppendError(ctx context.Context, e *ErrorEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	detail := e.Detail
	if detail == "" {
		detail = "{}"
	}
	_, err := r.pool.Exec(ctx, `
        INSERT INTO error_logs (id, category, platform, store_code, identity, error_type, message, detail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
    `, e.ID, e.Category, e.Platform, e.StoreCode, e.Identity, e.ErrorType, e.Message, detail, createdAt)
	if err != nil {
		return fmt.Errorf("append error log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRecentErrors(ctx context.Context, limit int) ([]*ErrorEntry, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, category, platform, store_code, identity, error_type, message, detail::text, created_at
        FROM error_logs
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ErrorEntry
	for rows.Next() {
		var e ErrorEntry
		if err := rows.Scan(&e.ID, &e.Category, &e.Platform, &e.StoreCode, &e.Identity,
			&e.ErrorType, &e.Message, &e.Detail, &e.CreatedAt); err != nil {
			slog.Warn("scan error log failed", "error", err)
			continue
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanPostgresRecord(s Scanner) (*domain.ReviewRecord, error) {
	var rec domain.ReviewRecord
	var status string

	if err := s.Scan(&rec.Identity, &rec.StoreCode, &rec.PlatformCode, &rec.StoreName, &rec.Author,
		&rec.Rating, &rec.ReviewText, &rec.OrderMenu, &rec.DeliveryNote, &rec.ReviewDate, &status,
		&rec.AIReply, &rec.RetryCount, &rec.Category, &rec.Reason, &rec.UpdatedAt, &rec.AnsweredAt); err != nil {
		return nil, err
	}

	var err error
	if rec.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	return &rec, nil
}
