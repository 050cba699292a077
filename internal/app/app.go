// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/config"
	"lendingdesk/internal/journal"
	"lendingdesk/internal/membership"
	"lendingdesk/internal/stats"
	"lendingdesk/internal/storage/postgres"
	"lendingdesk/internal/storage/sqlite"
)

// Options tune the services built by the composition root.
type Options struct {
	MaxActiveLoans        int
	RegisterRatePerMinute int
	Logger                *slog.Logger
	Clock                 func() time.Time
}

// Library holds one instance of every service. Callers share these
// references; nothing is global.
type Library struct {
	Catalog     catalog.Service
	Ledger      catalog.Ledger
	Members     membership.Service
	Circulation circulation.Service
	Stats       stats.Service
	Journal     *journal.Journal

	db *sqlx.DB
}

// Open connects to the configured backend and builds the services.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Library, error) {
	opts := Options{
		MaxActiveLoans:        cfg.MaxActiveLoans,
		RegisterRatePerMinute: cfg.RegisterRatePerMinute,
		Logger:                logger,
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := config.OpenPostgres(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		lib, err := NewPostgres(ctx, db, opts)
		if err != nil {
			db.Close()
			return nil, err
		}
		return lib, nil
	default:
		db, err := config.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		lib, err := NewSQLite(ctx, db, opts)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, err
		}
		return lib, nil
	}
}

// NewPostgres builds the services on a migrated PostgreSQL database.
func NewPostgres(ctx context.Context, db *sqlx.DB, opts Options) (*Library, error) {
	return build(ctx, db,
		postgres.NewBookRepository(db),
		postgres.NewUserRepository(db),
		postgres.NewLoanRepository(db),
		opts,
	)
}

// NewSQLite builds the services on a migrated SQLite database.
func NewSQLite(ctx context.Context, db *gorm.DB, opts Options) (*Library, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return build(ctx, sqlx.NewDb(sqlDB, "sqlite3"),
		sqlite.NewBookRepository(db),
		sqlite.NewUserRepository(db),
		sqlite.NewLoanRepository(db),
		opts,
	)
}

func build(
	ctx context.Context,
	db *sqlx.DB,
	books catalog.Repository,
	users membership.Repository,
	loans circulation.Repository,
	opts Options,
) (*Library, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	j := journal.New(db)
	if err := j.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	circulationOpts := []circulation.Option{
		circulation.WithMaxActiveLoans(opts.MaxActiveLoans),
		circulation.WithJournal(j),
		circulation.WithLogger(logger.With("component", "circulation")),
	}
	if opts.Clock != nil {
		circulationOpts = append(circulationOpts, circulation.WithClock(opts.Clock))
	}

	catalogSvc := catalog.NewService(books)
	ledger := catalog.NewLedger(books)
	members := membership.NewService(users, opts.RegisterRatePerMinute)
	circ := circulation.NewService(loans, users, ledger, circulationOpts...)

	return &Library{
		Catalog:     catalogSvc,
		Ledger:      ledger,
		Members:     members,
		Circulation: circ,
		Stats:       stats.NewService(catalogSvc, members, circ),
		Journal:     j,
		db:          db,
	}, nil
}

// Ping checks that the database is reachable.
func (l *Library) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close releases the database connection.
func (l *Library) Close() error {
	return l.db.Close()
}
