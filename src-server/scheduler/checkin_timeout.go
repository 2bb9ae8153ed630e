package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"manobal/src-server/checkin"
	"manobal/src-server/model"
	"manobal/src-server/utils"
)

const (
	WORKER_COUNT = 4
)

// Sweeps idle check-ins every SWEEP_INTERVAL until shutdown.
func CheckInTimeout(as *utils.AppState) {
	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	interval := as.Config.GetSweepInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-*gracefulShutdownCh:
			slog.Debug("CheckInTimeout: stopped")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := SweepCheckIns(ctx, as, time.Now()); err != nil {
				slog.Error("CheckInTimeout: can't sweep", "error", err)
			}
			cancel()
		}
	}
}

// One sweep: expires stale sessions and warns the users of sessions about to
// time out, once per inactivity window. Returns the number of warnings
// delivered.
func SweepCheckIns(ctx context.Context, as *utils.AppState, now time.Time) (int, error) {
	result, err := as.Sweeper.Sweep(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("SweepCheckIns: %w", err)
	}
	utils.Observe(as.MetricChans.SweepExpirations, result.Expirations)
	if result.Expirations > 0 {
		slog.Info("check-ins expired", "count", result.Expirations)
	}

	jobs := make(chan model.CheckIn, len(result.NearExpiry))
	for _, session := range result.NearExpiry {
		if !session.WarningSent() {
			jobs <- session
		}
	}
	close(jobs)

	var delivered atomic.Int64
	var wg sync.WaitGroup
	for range WORKER_COUNT {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for session := range jobs {
				if err := warn(ctx, as, session, now); err != nil {
					slog.Warn("SweepCheckIns: can't warn", "check_in", session.ID, "error", err)
					continue
				}
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()

	utils.Observe(as.MetricChans.SweepWarnings, int(delivered.Load()))
	return int(delivered.Load()), nil
}

func warn(ctx context.Context, as *utils.AppState, session model.CheckIn, now time.Time) error {
	userModel := new(model.User)
	if err := as.BunDB.
		NewSelect().
		Model(userModel).
		Where("id = ?", session.UserID).
		Scan(ctx); err != nil {
		return fmt.Errorf("can't get user: %w", err)
	}
	if err := as.SendToUser(ctx, userModel, checkin.PROMPT_TIMEOUT_WARNING); err != nil {
		return err
	}
	if err := as.CheckInStore.MarkWarned(ctx, session.ID, now); err != nil {
		return fmt.Errorf("can't record warning: %w", err)
	}
	return nil
}
