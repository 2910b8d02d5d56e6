package audit

import (
	"context"
	"time"

	"log/slog"

	"github.com/google/uuid"
)

// RepositoryPort defines persistence for activity-log entries. The public
// contract is append-only: no update or delete exists here. PruneOlderThan is
// a retention hook for the out-of-core worker, not part of the log contract.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Observer receives append failures. A failed append must never block the
// action that triggered it, so failures are routed here instead of returned.
type Observer interface {
	AppendFailed(entry Entry, err error)
}

// LogObserver reports append failures through slog.
type LogObserver struct {
	Logger *slog.Logger
}

// AppendFailed logs the dropped entry.
func (o LogObserver) AppendFailed(entry Entry, err error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("audit append failed",
		slog.String("action", entry.Action),
		slog.String("user_id", entry.UserID),
		slog.Any("error", err))
}

// Service coordinates the append-only activity log.
type Service struct {
	repo RepositoryPort
	obs  Observer
	now  func() time.Time
}

// NewService constructs the audit service.
func NewService(repo RepositoryPort, obs Observer) *Service {
	if obs == nil {
		obs = LogObserver{}
	}
	return &Service{
		repo: repo,
		obs:  obs,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Append records an entry, filling ID and timestamp when absent. It never
// fails the caller: persistence errors go to the observer.
func (s *Service) Append(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = s.now()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.obs.AppendFailed(entry, err)
	}
}

// Recent returns up to n entries, newest first. n is clamped to a sane window.
func (s *Service) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	if n > 100 {
		n = 100
	}
	return s.repo.Recent(ctx, n)
}
