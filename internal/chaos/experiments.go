// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/config"
	"lendingdesk/internal/storage/sqlite"
)

// DefaultWindow is how long each built-in experiment observes the library.
const DefaultWindow = 2 * time.Second

// ScratchStorage is where a game day runs unless told otherwise. The
// experiments leave books and users with loans behind, and those rows cannot
// be deleted afterwards.
func ScratchStorage() config.StorageConfig {
	return config.StorageConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: sqlite.MemoryDSN,
	}
}

// RegisterExperiments registers all predefined experiments with the engine.
func (e *Engine) RegisterExperiments(window time.Duration) {
	e.RegisterExperiment(e.ConcurrentLoansOnOneBook(3, 20, window))
	e.RegisterExperiment(e.ConcurrentLoansBeyondCap(window))
	e.RegisterExperiment(e.ConcurrentDoubleReturn(10, window))
}

// fixture is the book and loans an experiment created.
type fixture struct {
	mu      sync.Mutex
	bookID  int64
	initial int
	loans   []int64
}

func (f *fixture) setBook(book *catalog.Book) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookID = book.ID
	f.initial = book.AvailableUnits
}

func (f *fixture) book() (int64, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookID, f.initial
}

func (f *fixture) addLoan(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loans = append(f.loans, id)
}

func (f *fixture) loanIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.loans...)
}

// ConcurrentLoansOnOneBook lends one book with few units to many readers at once
func (e *Engine) ConcurrentLoansOnOneBook(units, readers int, window time.Duration) Experiment {
	fx := &fixture{}
	var succeeded atomic.Int64

	return Experiment{
		Name:       "concurrent-loans-single-book",
		Hypothesis: "Concurrent loans never lend more units than a book has on the shelf",
		SteadyState: []Metric{
			e.negativeStock(),
			e.stockConservation(fx),
			{
				Name: "overbooked_units",
				Query: func(ctx context.Context) (float64, error) {
					if _, initial := fx.book(); initial > 0 {
						return float64(succeeded.Load() - int64(initial)), nil
					}
					return 0, nil
				},
				Threshold: Threshold{Operator: "<=", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "circulation",
				Parameters: map[string]interface{}{
					"concurrency": readers,
					"units":       units,
				},
				Execute: func(ctx context.Context) error {
					book, err := e.lib.Catalog.AddBook(ctx, uniqueName("single-book"), "chaos", nil, units)
					if err != nil {
						return err
					}
					fx.setBook(book)

					userIDs, err := e.registerUsers(ctx, readers)
					if err != nil {
						return err
					}

					return e.concurrently(len(userIDs), func(i int) error {
						loan, err := e.lib.Circulation.CreateLoan(ctx, userIDs[i], book.ID)
						if err != nil {
							if errors.Is(err, catalog.ErrOutOfStock) {
								return nil
							}
							return err
						}
						succeeded.Add(1)
						fx.addLoan(loan.ID)
						return nil
					})
				},
			},
		},
		Rollback: []Action{e.returnLoans(fx)},
		Validation: []Assertion{
			{
				Metric:    "stock_conservation",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Available units plus active loans should equal the initial stock",
			},
			{
				Metric:    "overbooked_units",
				Condition: func(v float64) bool { return v <= 0 },
				Message:   "No more loans than units should succeed",
			},
		},
		Duration: window,
	}
}

// ConcurrentLoansBeyondCap fires more loans for one user than the cap allows
func (e *Engine) ConcurrentLoansBeyondCap(window time.Duration) Experiment {
	fx := &fixture{}
	var userID atomic.Int64
	attempts := e.maxActive * 3

	return Experiment{
		Name:       "concurrent-loans-beyond-cap",
		Hypothesis: "Concurrent loans for one user never exceed the active loan limit",
		SteadyState: []Metric{
			e.negativeStock(),
			e.stockConservation(fx),
			{
				Name: "user_active_loans",
				Query: func(ctx context.Context) (float64, error) {
					id := userID.Load()
					if id == 0 {
						return 0, nil
					}
					loans, err := e.lib.Circulation.FindActiveLoansForUser(ctx, id)
					return float64(len(loans)), err
				},
				Threshold: Threshold{Operator: "<=", Value: float64(e.maxActive)},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "circulation",
				Parameters: map[string]interface{}{
					"concurrency": attempts,
				},
				Execute: func(ctx context.Context) error {
					book, err := e.lib.Catalog.AddBook(ctx, uniqueName("loan-cap"), "chaos", nil, attempts)
					if err != nil {
						return err
					}
					fx.setBook(book)

					userIDs, err := e.registerUsers(ctx, 1)
					if err != nil {
						return err
					}
					userID.Store(userIDs[0])

					return e.concurrently(attempts, func(int) error {
						loan, err := e.lib.Circulation.CreateLoan(ctx, userIDs[0], book.ID)
						if err != nil {
							if errors.Is(err, circulation.ErrLoanLimitExceeded) {
								return nil
							}
							return err
						}
						fx.addLoan(loan.ID)
						return nil
					})
				},
			},
		},
		Rollback: []Action{e.returnLoans(fx)},
		Validation: []Assertion{
			{
				Metric:    "user_active_loans",
				Condition: func(v float64) bool { return v == float64(e.maxActive) },
				Message:   "The user should hold exactly the maximum number of active loans",
			},
			{
				Metric:    "stock_conservation",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Available units plus active loans should equal the initial stock",
			},
		},
		Duration: window,
	}
}

// ConcurrentDoubleReturn returns the same loan from many callers at once
func (e *Engine) ConcurrentDoubleReturn(callers int, window time.Duration) Experiment {
	fx := &fixture{}
	var (
		started   atomic.Bool
		succeeded atomic.Int64
	)

	return Experiment{
		Name:       "concurrent-double-return",
		Hypothesis: "Exactly one of many concurrent returns of a loan succeeds",
		SteadyState: []Metric{
			e.negativeStock(),
			e.stockConservation(fx),
			{
				Name: "return_anomalies",
				Query: func(ctx context.Context) (float64, error) {
					if !started.Load() {
						return 0, nil
					}
					return math.Abs(float64(succeeded.Load() - 1)), nil
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "circulation",
				Parameters: map[string]interface{}{
					"concurrency": callers,
				},
				Execute: func(ctx context.Context) error {
					book, err := e.lib.Catalog.AddBook(ctx, uniqueName("double-return"), "chaos", nil, 1)
					if err != nil {
						return err
					}
					fx.setBook(book)

					userIDs, err := e.registerUsers(ctx, 1)
					if err != nil {
						return err
					}
					loan, err := e.lib.Circulation.CreateLoan(ctx, userIDs[0], book.ID)
					if err != nil {
						return err
					}
					fx.addLoan(loan.ID)
					started.Store(true)

					return e.concurrently(callers, func(int) error {
						err := e.lib.Circulation.ReturnLoan(ctx, loan.ID)
						switch {
						case err == nil:
							succeeded.Add(1)
							return nil
						case errors.Is(err, circulation.ErrAlreadyReturned):
							return nil
						default:
							return err
						}
					})
				},
			},
		},
		Rollback: []Action{e.returnLoans(fx)},
		Validation: []Assertion{
			{
				Metric:    "return_anomalies",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Exactly one return should succeed",
			},
			{
				Metric:    "stock_conservation",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "The unit should be back on the shelf exactly once",
			},
		},
		Duration: window,
	}
}

func (e *Engine) negativeStock() Metric {
	return Metric{
		Name: "negative_stock",
		Query: func(ctx context.Context) (float64, error) {
			books, err := e.lib.Catalog.ListBooks(ctx)
			if err != nil {
				return 0, err
			}
			negative := 0
			for _, book := range books {
				if book.AvailableUnits < 0 {
					negative++
				}
			}
			return float64(negative), nil
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// stockConservation measures how far the fixture book's units plus its
// active loans drift from the initial stock.
func (e *Engine) stockConservation(fx *fixture) Metric {
	return Metric{
		Name: "stock_conservation",
		Query: func(ctx context.Context) (float64, error) {
			bookID, initial := fx.book()
			if bookID == 0 {
				return 0, nil
			}

			book, err := e.lib.Catalog.GetBook(ctx, bookID)
			if err != nil {
				return 0, err
			}
			loans, err := e.lib.Circulation.ListActiveLoans(ctx)
			if err != nil {
				return 0, err
			}

			lent := 0
			for _, loan := range loans {
				if loan.BookID == bookID {
					lent++
				}
			}
			return math.Abs(float64(book.AvailableUnits + lent - initial)), nil
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// returnLoans puts every unit the experiment lent back on the shelf.
func (e *Engine) returnLoans(fx *fixture) Action {
	return Action{
		Type:   "return-loans",
		Target: "circulation",
		Execute: func(ctx context.Context) error {
			var errs []error
			for _, id := range fx.loanIDs() {
				err := e.lib.Circulation.ReturnLoan(ctx, id)
				if err != nil && !errors.Is(err, circulation.ErrAlreadyReturned) {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func (e *Engine) registerUsers(ctx context.Context, n int) ([]int64, error) {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		name := uniqueName(fmt.Sprintf("reader-%d", i))
		user, err := e.lib.Members.RegisterUser(ctx, name, name+"@chaos.invalid")
		if err != nil {
			return nil, err
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

// concurrently runs fn n times in parallel and joins the errors.
func (e *Engine) concurrently(n int, fn func(i int) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if err := fn(i); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()
	return errors.Join(errs...)
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("chaos-%s-%d", prefix, time.Now().UnixNano())
}
