// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/journal"
	"lendingdesk/internal/keylock"
	"lendingdesk/internal/membership"
	"lendingdesk/internal/storage"
)

// Option configures the circulation service.
type Option func(*service)

// WithMaxActiveLoans sets the number of simultaneous active loans a user may hold.
func WithMaxActiveLoans(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.maxActive = n
		}
	}
}

// WithJournal records every lifecycle transition in j.
func WithJournal(j Journal) Option {
	return func(s *service) { s.journal = j }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithMeterProvider replaces the global meter provider for the loan counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.meters = mp }
}

// WithLogger sets the logger used for compensation and journal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// service implements the Service interface.
type service struct {
	loans     Repository
	users     membership.Repository
	ledger    catalog.Ledger
	journal   Journal
	maxActive int
	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
	meters    metric.MeterProvider

	userLocks keylock.Locker
	loanLocks keylock.Locker

	created  metric.Int64Counter
	returned metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates a new circulation service instance.
func NewService(loans Repository, users membership.Repository, ledger catalog.Ledger, opts ...Option) Service {
	s := &service{
		loans:     loans,
		users:     users,
		ledger:    ledger,
		maxActive: DefaultMaxActiveLoans,
		now:       time.Now,
		logger:    slog.Default(),
		tracer:    otel.Tracer("lendingdesk/circulation"),
		meters:    otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := s.meters.Meter("lendingdesk/circulation")
	var err error
	if s.created, err = meter.Int64Counter("loans.created"); err != nil {
		otel.Handle(err)
	}
	if s.returned, err = meter.Int64Counter("loans.returned"); err != nil {
		otel.Handle(err)
	}
	if s.rejected, err = meter.Int64Counter("loans.rejected"); err != nil {
		otel.Handle(err)
	}

	return s
}

// CreateLoan orchestrates the loan saga. Either the unit is reserved and the
// loan is stored, or neither happens.
func (s *service) CreateLoan(ctx context.Context, userID, bookID int64) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.create_loan",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("book.id", bookID),
		),
	)
	defer span.End()

	unlock := s.userLocks.Lock(strconv.FormatInt(userID, 10))
	defer unlock()

	// Step 1: Validate the user
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.reject(ctx, "user_not_found")
			return nil, membership.ErrUserNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Step 2: Enforce the loan cap
	active, err := s.loans.FindActiveByUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}
	if len(active) >= s.maxActive {
		s.reject(ctx, "loan_limit_exceeded")
		return nil, ErrLoanLimitExceeded
	}

	// Step 3: Reserve a unit (with compensation)
	if _, err := s.ledger.Reserve(ctx, bookID); err != nil {
		switch {
		case errors.Is(err, catalog.ErrOutOfStock):
			s.reject(ctx, "out_of_stock")
		case errors.Is(err, catalog.ErrBookNotFound):
			s.reject(ctx, "book_not_found")
		default:
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	compensation := func() {
		s.logger.WarnContext(ctx, "compensating for failed loan: releasing reserved unit", "book_id", bookID)
		if _, err := s.ledger.Release(context.WithoutCancel(ctx), bookID); err != nil {
			s.logger.ErrorContext(ctx, "failed to compensate reserved unit", "book_id", bookID, "error", err)
		}
	}

	// Step 4: Create the loan record
	loan := &Loan{
		UserID:   userID,
		BookID:   bookID,
		LoanDate: s.today(),
	}
	if err := s.loans.Save(ctx, loan); err != nil {
		compensation()
		if errors.Is(err, storage.ErrReferenced) {
			// The book or the user was deleted after it was checked.
			s.reject(ctx, "reference_removed")
			return nil, s.missingReference(ctx, userID)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save loan: %w", err)
	}

	// Step 5: Journal the transition
	s.record(ctx, loan.ID, journal.LoanCreated, LoanCreatedEvent{
		LoanID:   loan.ID,
		UserID:   loan.UserID,
		BookID:   loan.BookID,
		LoanDate: loan.LoanDate,
	})

	s.created.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("loan.id", loan.ID))
	return loan, nil
}

// ReturnLoan closes an active loan and puts its unit back on the shelf.
func (s *service) ReturnLoan(ctx context.Context, loanID int64) error {
	ctx, span := s.tracer.Start(ctx, "circulation.return_loan",
		trace.WithAttributes(attribute.Int64("loan.id", loanID)),
	)
	defer span.End()

	unlock := s.loanLocks.Lock(strconv.FormatInt(loanID, 10))
	defer unlock()

	// Step 1: Find the loan and make sure it is still active
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if !loan.IsActive() {
		return ErrAlreadyReturned
	}

	// Step 2: Release the unit (with compensation)
	if _, err := s.ledger.Release(ctx, loan.BookID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to release unit: %w", err)
	}

	compensation := func() {
		s.logger.WarnContext(ctx, "compensating for failed return: reserving released unit", "book_id", loan.BookID)
		if _, err := s.ledger.Reserve(context.WithoutCancel(ctx), loan.BookID); err != nil {
			s.logger.ErrorContext(ctx, "failed to compensate released unit", "book_id", loan.BookID, "error", err)
		}
	}

	// Step 3: Mark the loan returned
	returnDate := s.today()
	if err := s.loans.MarkReturned(ctx, loan.ID, returnDate); err != nil {
		compensation()
		switch {
		case errors.Is(err, storage.ErrConflict):
			return ErrAlreadyReturned
		case errors.Is(err, storage.ErrNotFound):
			return ErrLoanNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mark loan returned: %w", err)
	}

	// Step 4: Journal the transition
	s.record(ctx, loan.ID, journal.LoanReturned, LoanReturnedEvent{
		LoanID:     loan.ID,
		UserID:     loan.UserID,
		BookID:     loan.BookID,
		ReturnDate: returnDate,
	})

	s.returned.Add(ctx, 1)
	return nil
}

// missingReference names the side of a loan that no longer exists.
func (s *service) missingReference(ctx context.Context, userID int64) error {
	if _, err := s.users.FindByID(ctx, userID); errors.Is(err, storage.ErrNotFound) {
		return membership.ErrUserNotFound
	}
	return catalog.ErrBookNotFound
}

// GetLoan retrieves a loan by its ID.
func (s *service) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// ListLoans returns every loan, active and returned.
func (s *service) ListLoans(ctx context.Context) ([]*Loan, error) {
	return s.loans.FindAll(ctx)
}

// ListActiveLoans returns every loan without a return date.
func (s *service) ListActiveLoans(ctx context.Context) ([]*Loan, error) {
	loans, err := s.loans.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*Loan, 0, len(loans))
	for _, loan := range loans {
		if loan.IsActive() {
			active = append(active, loan)
		}
	}
	return active, nil
}

// FindActiveLoansForUser returns the user's loans without a return date.
func (s *service) FindActiveLoansForUser(ctx context.Context, userID int64) ([]*Loan, error) {
	return s.loans.FindActiveByUser(ctx, userID)
}

// DeleteLoan removes a returned loan. Active loans hold a reserved unit and
// must be returned first.
func (s *service) DeleteLoan(ctx context.Context, id int64) error {
	unlock := s.loanLocks.Lock(strconv.FormatInt(id, 10))
	defer unlock()

	loan, err := s.GetLoan(ctx, id)
	if err != nil {
		return err
	}
	if loan.IsActive() {
		return ErrLoanActive
	}

	if err := s.loans.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrLoanNotFound
		}
		return err
	}
	return nil
}

// History returns the journaled events of a loan.
func (s *service) History(ctx context.Context, loanID int64) ([]journal.Event, error) {
	if _, err := s.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []journal.Event{}, nil
	}
	return s.journal.Load(ctx, loanID)
}

// record appends a lifecycle event. The loans table stays the source of
// truth, so a journal failure is logged and not returned.
func (s *service) record(ctx context.Context, loanID int64, eventType string, payload interface{}) {
	if s.journal == nil {
		return
	}

	version, err := s.journal.CurrentVersion(ctx, loanID)
	if err == nil {
		err = s.journal.Append(ctx, loanID, version, eventType, payload)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to journal loan event",
			"loan_id", loanID,
			"event_type", eventType,
			"error", err,
		)
	}
}

func (s *service) reject(ctx context.Context, reason string) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// today returns the current calendar date at midnight UTC.
func (s *service) today() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
