// Package saga provides an explicit compensating-action log for operations
// that span several single-record writes without a shared transaction.
//
// Each forward write is registered together with its inverse before it runs.
// When the operation fails, the inverses run in reverse order, best effort:
// a failing inverse is logged and the remaining ones still run.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// compensateTimeout bounds the whole unwind. Compensation runs detached from
// the caller's cancellation so a dropped request still restores state.
const compensateTimeout = 15 * time.Second

// Action is a forward write or its inverse.
type Action func(ctx context.Context) error

type step struct {
	name string
	undo Action
}

// Log accumulates inverses for one operation.
type Log struct {
	op     string
	steps  []step
	logger *slog.Logger
}

// New creates an empty log for the named operation.
func New(op string, logger *slog.Logger) *Log {
	return &Log{
		op:     op,
		logger: logger.With(slog.String("component", "saga"), slog.String("op", op)),
	}
}

// Do registers undo and then runs forward. The inverse stays registered even
// when forward fails, since a failed single-record write may still have
// landed; inverses must therefore tolerate a missing record.
func (l *Log) Do(ctx context.Context, name string, forward, undo Action) error {
	if undo != nil {
		l.steps = append(l.steps, step{name: name, undo: undo})
	}
	if err := forward(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Len is the number of registered inverses.
func (l *Log) Len() int { return len(l.steps) }

// Compensate runs every registered inverse in reverse order and clears the
// log. Errors are logged, never returned.
func (l *Log) Compensate(ctx context.Context) {
	if len(l.steps) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	failed := 0
	for i := len(l.steps) - 1; i >= 0; i-- {
		s := l.steps[i]
		err := s.undo(cctx)
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			continue
		}
		failed++
		l.logger.ErrorContext(ctx, "saga: compensation step failed",
			slog.String("step", s.name),
			slog.String("error", err.Error()),
		)
	}
	l.logger.WarnContext(ctx, "saga: compensated",
		slog.Int("steps", len(l.steps)),
		slog.Int("failed", failed),
	)
	l.steps = nil
}

// Commit forgets every registered inverse once the operation has succeeded.
func (l *Log) Commit() { l.steps = nil }

// Run executes fn with a fresh log. If fn returns an error the log is
// compensated before the error is returned; otherwise it is committed.
func Run(ctx context.Context, op string, logger *slog.Logger, fn func(l *Log) error) error {
	l := New(op, logger)
	if err := fn(l); err != nil {
		l.Compensate(ctx)
		return err
	}
	l.Commit()
	return nil
}
