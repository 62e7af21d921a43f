package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review-reply-automation/internal/domain"
)

// ErrNotFound is returned when no record exists for an identity.
var ErrNotFound = errors.New("record not found")

// ErrorEntry is one row of the audit error log.
type ErrorEntry struct {
	ID        string
	Category  string
	Platform  string
	StoreCode string
	Identity  string
	ErrorType string
	Message   string
	Detail    string // JSON document
	CreatedAt time.Time
}

// Repository persists review records keyed by identity.
//
// Upsert enforces the record invariants at write time: an ANSWERED record
// keeps its status and reply, retry_count never decreases, review_date is
// kept from the first write and answered_at is never cleared.
type Repository interface {
	Get(ctx context.Context, identity string) (*domain.ReviewRecord, error)
	Upsert(ctx context.Context, rec *domain.ReviewRecord) error
	ListByStatus(ctx context.Context, storeCode string, status domain.Status, limit int) ([]*domain.ReviewRecord, error)
	// ClearRetries resets retry_count so the record becomes eligible again.
	ClearRetries(ctx context.Context, identity string) error
	AppendError(ctx context.Context, entry *ErrorEntry) error
	ListRecentErrors(ctx context.Context, limit int) ([]*ErrorEntry, error)
	Close() error
}

// Drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and tunes a Repository implementation.
type Options struct {
	Driver   string
	DSN      string
	MaxConns int32
	MinConns int32
}

// Open creates the Repository for the configured driver.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLiteRepository(opts.DSN)
	case DriverPostgres:
		return NewPostgresRepository(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", opts.Driver)
	}
}

// Scanner interface to support both Row and Rows
type Scanner interface {
	Scan(dest ...any) error
}

func validateRecord(rec *domain.ReviewRecord) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if rec.Identity == "" {
		return errors.New("record identity is empty")
	}
	if rec.Status == "" {
		return errors.New("record status is empty")
	}
	if rec.ReviewDate.IsZero() {
		return errors.New("record review date is empty")
	}
	return nil
}
