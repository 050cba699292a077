// internal/server/server.go
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lendingdesk/internal/app"
	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/membership"
	"lendingdesk/internal/pkg/response"
	"lendingdesk/internal/stats"
)

// NewRouter exposes every library operation over HTTP.
func NewRouter(lib *app.Library, logger *slog.Logger) http.Handler {
	books := catalog.NewHandler(lib.Catalog)
	users := membership.NewHandler(lib.Members)
	loans := circulation.NewHandler(lib.Circulation)
	reports := stats.NewHandler(lib.Stats)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := lib.Ping(ctx); err != nil {
			logger.ErrorContext(ctx, "health check failed", "error", err)
			response.Error(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		response.Success(w, "ok", nil)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", users.HandleListUsers)
		r.Post("/", users.HandleRegisterUser)
		r.Get("/active-loans", reports.HandleUsersWithActiveLoans)
		r.Get("/{id}", users.HandleGetUser)
		r.Delete("/{id}", users.HandleDeleteUser)
		r.Get("/{id}/loans/active", loans.HandleActiveForUser)
	})

	r.Route("/books", func(r chi.Router) {
		r.Get("/", books.HandleListBooks)
		r.Post("/", books.HandleAddBook)
		r.Get("/available", books.HandleListAvailable)
		r.Get("/{id}", books.HandleGetBook)
		r.Delete("/{id}", books.HandleDeleteBook)
	})

	r.Route("/loans", func(r chi.Router) {
		r.Get("/", loans.HandleListLoans)
		r.Post("/", loans.HandleCreateLoan)
		r.Get("/active", loans.HandleListActive)
		r.Get("/{id}", loans.HandleGetLoan)
		r.Delete("/{id}", loans.HandleDeleteLoan)
		r.Post("/{id}/return", loans.HandleReturnLoan)
		r.Get("/{id}/history", loans.HandleHistory)
	})

	r.Route("/stats", func(r chi.Router) {
		r.Get("/most-borrowed-book", reports.HandleMostBorrowedBook)
		r.Get("/top-borrower", reports.HandleTopBorrower)
		r.Get("/available-units", reports.HandleAvailableUnits)
		r.Get("/average-loans", reports.HandleAverageLoans)
	})

	return r
}

// New returns an http.Server for the router with conservative timeouts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
