package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"manobal/src-server/model"
)

type SweepResult struct {
	Warnings    int
	Expirations int
	// sessions within WARNING_WINDOW of their timeout, for the caller to notify
	NearExpiry []model.CheckIn
}

// Housekeeping pass over idle sessions. It neither sends messages nor reads the
// clock; both belong to the caller.
type Sweeper struct {
	store  Store
	Logger *slog.Logger
}

func NewSweeper(store Store) *Sweeper {
	return &Sweeper{store: store, Logger: slog.Default()}
}

// An error means the store could not be scanned and nothing was swept. Failing
// to expire a single session is logged and left for the next sweep.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	nearExpiry, err := s.store.ScanNearExpiry(ctx, WARNING_WINDOW, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("(*Sweeper).Sweep: %w", err)
	}
	expired, err := s.store.ScanExpired(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("(*Sweeper).Sweep: %w", err)
	}

	result := SweepResult{
		Warnings:   len(nearExpiry),
		NearExpiry: nearExpiry,
	}
	for _, session := range expired {
		if err := s.store.MarkExpired(ctx, session.ID); err != nil {
			s.Logger.Warn("can't expire check-in", "check_in", session.ID, "error", err)
			continue
		}
		result.Expirations++
	}
	return result, nil
}
