// Package journal is an append-only log of loan lifecycle events. Each loan
// is an aggregate whose events carry consecutive versions; appends use
// optimistic concurrency so a loan can never be returned twice in the log.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event types recorded by the lifecycle engine.
const (
	LoanCreated  = "LoanCreated"
	LoanReturned = "LoanReturned"
)

// Schema creates the journal table. It is valid for both PostgreSQL and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS loan_events (
	id         TEXT PRIMARY KEY,
	loan_id    BIGINT NOT NULL,
	event_type TEXT NOT NULL,
	event_data TEXT NOT NULL,
	version    INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (loan_id, version)
)`

// Event is one recorded fact about a loan.
type Event struct {
	ID        uuid.UUID           `json:"id"`
	LoanID    int64               `json:"loan_id"`
	EventType string              `json:"event_type"`
	EventData jsoniter.RawMessage `json:"event_data"`
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
}

type eventRow struct {
	ID        uuid.UUID `db:"id"`
	LoanID    int64     `db:"loan_id"`
	EventType string    `db:"event_type"`
	EventData string    `db:"event_data"`
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
}

// Journal stores loan events.
type Journal struct {
	db     *sqlx.DB
	tracer trace.Tracer
	now    func() time.Time
}

// New creates a journal on db. The caller owns db.
func New(db *sqlx.DB) *Journal {
	return &Journal{
		db:     db,
		tracer: otel.Tracer("lendingdesk/journal"),
		now:    time.Now,
	}
}

// EnsureSchema creates the journal table when it does not exist yet.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create loan_events: %w", err)
	}
	return nil
}

// Append atomically records one event for loanID. expectedVersion is the
// version the caller last saw; the new event gets expectedVersion+1.
func (j *Journal) Append(ctx context.Context, loanID int64, expectedVersion int, eventType string, payload interface{}) error {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.Int64("loan.id", loanID),
			attribute.String("event.type", eventType),
			attribute.Int("expected.version", expectedVersion),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	data, err := codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	var opts *sql.TxOptions
	if j.db.DriverName() == "postgres" {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	tx, err := j.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.GetContext(ctx, &currentVersion, tx.Rebind(`
		SELECT COALESCE(MAX(version), 0)
		FROM loan_events
		WHERE loan_id = ?
	`), loanID)
	if err != nil {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	version := expectedVersion + 1
	id := uuid.New()
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO loan_events (id, loan_id, event_type, event_data, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), id, loanID, eventType, string(data), version, j.now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrConcurrencyConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	span.AddEvent("event.appended", trace.WithAttributes(
		attribute.String("event.id", id.String()),
		attribute.Int("event.version", version),
	))
	return nil
}

// Load returns every event of loanID ordered by version.
func (j *Journal) Load(ctx context.Context, loanID int64) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(attribute.Int64("loan.id", loanID)),
	)
	defer span.End()

	var rows []eventRow
	err := j.db.SelectContext(ctx, &rows, j.db.Rebind(`
		SELECT id, loan_id, event_type, event_data, version, created_at
		FROM loan_events
		WHERE loan_id = ?
		ORDER BY version ASC
	`), loanID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, Event{
			ID:        row.ID,
			LoanID:    row.LoanID,
			EventType: row.EventType,
			EventData: jsoniter.RawMessage(row.EventData),
			Version:   row.Version,
			CreatedAt: row.CreatedAt,
		})
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// CurrentVersion returns the latest version recorded for loanID, 0 if none.
func (j *Journal) CurrentVersion(ctx context.Context, loanID int64) (int, error) {
	ctx, span := j.tracer.Start(ctx, "journal.current_version",
		trace.WithAttributes(attribute.Int64("loan.id", loanID)),
	)
	defer span.End()

	var version int
	err := j.db.GetContext(ctx, &version, j.db.Rebind(`
		SELECT COALESCE(MAX(version), 0)
		FROM loan_events
		WHERE loan_id = ?
	`), loanID)
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}
