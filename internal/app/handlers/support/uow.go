package support

import (
	"context"
	"errors"
	"time"

	"recipehub/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit in ctx or starts a read-only one. The
// returned cleanup is nil when the unit was borrowed.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Inject(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// RunInUnit calls fn inside a unit of work. A unit already in ctx is reused
// and left for its owner to commit; otherwise a fresh unit is begun and
// committed when fn succeeds.
func RunInUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	execCtx := uow.Inject(ctx, unit)
	if err := fn(execCtx, unit); err != nil {
		_ = unit.Rollback(execCtx)
		return err
	}
	return unit.Commit(execCtx)
}

// Retry re-runs fn while it fails with conflict, up to attempts times,
// sleeping backoff times the attempt number in between. Retrying is only
// possible when the handler owns its unit, so a unit in ctx gets one attempt.
func Retry(ctx context.Context, attempts int, backoff time.Duration, conflict error, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	if _, borrowed := uow.FromContext(ctx); borrowed {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !errors.Is(err, conflict) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(i+1)):
		}
	}
	return err
}
