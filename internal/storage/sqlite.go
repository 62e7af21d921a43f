package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver, CGO-free, compatible with CGO_ENABLED=0

	"review-reply-automation/internal/domain"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	if dsn == "" {
		dsn = "replies.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
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
        review_date   TEXT NOT NULL,
        status        TEXT NOT NULL,
        ai_reply      TEXT NOT NULL DEFAULT '',
        retry_count   INTEGER NOT NULL DEFAULT 0,
        category      TEXT NOT NULL DEFAULT '',
        reason        TEXT NOT NULL DEFAULT '',
        updated_at    TEXT NOT NULL,
        answered_at   TEXT
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
        detail      TEXT NOT NULL DEFAULT '{}',
        created_at  TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_error_logs_created ON error_logs(created_at);
    `
	_, err := db.Exec(schema)
	return err
}

const sqliteColumns = `identity, store_code, platform_code, store_name, author, rating, review_text,
        order_menu, delivery_note, review_date, status, ai_reply, retry_count, category, reason,
        updated_at, answered_at`

func (r *SQLiteRepository) Get(ctx context.Context, identity string) (*domain.ReviewRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM reviews WHERE identity = ?`, identity)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *domain.ReviewRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	var answeredAt sql.NullString
	if rec.AnsweredAt != nil {
		answeredAt = sql.NullString{String: rec.AnsweredAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO reviews (`+sqliteColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(identity) DO UPDATE SET
            store_code    = excluded.store_code,
            platform_code = excluded.platform_code,
            store_name    = excluded.store_name,
            author        = excluded.author,
            rating        = excluded.rating,
            review_text   = excluded.review_text,
            order_menu    = excluded.order_menu,
            delivery_note = excluded.delivery_note,
            review_date   = reviews.review_date,
            status        = CASE WHEN reviews.status = 'ANSWERED' THEN reviews.status ELSE excluded.status END,
            ai_reply      = CASE WHEN reviews.status = 'ANSWERED' AND excluded.status <> 'ANSWERED'
                                 THEN reviews.ai_reply ELSE excluded.ai_reply END,
            retry_count   = MAX(reviews.retry_count, excluded.retry_count),
            category      = excluded.category,
            reason        = excluded.reason,
            updated_at    = excluded.updated_at,
            answered_at   = COALESCE(reviews.answered_at, excluded.answered_at)
    `, rec.Identity, rec.StoreCode, rec.PlatformCode, rec.StoreName, rec.Author, rec.Rating,
		rec.ReviewText, rec.OrderMenu, rec.DeliveryNote, rec.ReviewDate.Format(dateLayout),
		string(rec.Status), rec.AIReply, rec.RetryCount, rec.Category, rec.Reason,
		updatedAt.UTC().Format(time.RFC3339Nano), answeredAt)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, storeCode string, status domain.Status, limit int) ([]*domain.ReviewRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+sqliteColumns+`
        FROM reviews
        WHERE store_code = ? AND status = ?
        ORDER BY updated_at DESC
        LIMIT ?
    `, storeCode, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ReviewRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			slog.Warn("scan record failed", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) ClearRetries(ctx context.Context, identity string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reviews SET retry_count = 0, updated_at = ? WHERE identity = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), identity)
	if err != nil {
		return fmt.Errorf("clear retries: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) AppendError(ctx context.Context, e *ErrorEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	detail := e.Detail
	if detail == "" {
		detail = "{}"
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO error_logs (id, category, platform, store_code, identity, error_type, message, detail, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, e.ID, e.Category, e.Platform, e.StoreCode, e.Identity, e.ErrorType, e.Message, detail,
		createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append error log: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListRecentErrors(ctx context.Context, limit int) ([]*ErrorEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, category, platform, store_code, identity, error_type, message, detail, created_at
        FROM error_logs
        ORDER BY created_at DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ErrorEntry
	for rows.Next() {
		var e ErrorEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Category, &e.Platform, &e.StoreCode, &e.Identity,
			&e.ErrorType, &e.Message, &e.Detail, &createdAt); err != nil {
			slog.Warn("scan error log failed", "error", err)
			continue
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanSQLiteRecord(s Scanner) (*domain.ReviewRecord, error) {
	var rec domain.ReviewRecord
	var reviewDate, status, updatedAt string
	var answeredAt sql.NullString

	if err := s.Scan(&rec.Identity, &rec.StoreCode, &rec.PlatformCode, &rec.StoreName, &rec.Author,
		&rec.Rating, &rec.ReviewText, &rec.OrderMenu, &rec.DeliveryNote, &reviewDate, &status,
		&rec.AIReply, &rec.RetryCount, &rec.Category, &rec.Reason, &updatedAt, &answeredAt); err != nil {
		return nil, err
	}

	var err error
	if rec.ReviewDate, err = time.Parse(dateLayout, reviewDate); err != nil {
		return nil, fmt.Errorf("parse review date: %w", err)
	}
	if rec.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if answeredAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, answeredAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse answered_at: %w", err)
		}
		rec.AnsweredAt = &t
	}
	return &rec, nil
}
