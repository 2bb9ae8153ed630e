package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/xyedo/rrule"
)

const NUDGE_MESSAGE = "Hi! It's time for your wellbeing check-in. " +
	"Reply \"start check-in\" whenever you're ready, it only takes a couple of minutes."

// Invites users to a check-in on every occurrence of CHECKIN_NUDGE_RRULE. Does
// nothing when the rule is not set.
func CheckInNudge(as *utils.AppState) {
	raw := as.Config.GetCheckInNudgeRRule()
	if raw == "" {
		return
	}
	rule, err := rrule.StrToRRule(raw)
	if err != nil {
		slog.Error("CheckInNudge: invalid rrule", "rrule", raw, "error", err)
		return
	}
	rule.DTStart(time.Now().In(as.Config.GetLocation()).Truncate(time.Second))

	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	for {
		next := rule.After(time.Now(), false)
		if next.IsZero() {
			slog.Info("CheckInNudge: no more occurrences")
			return
		}
		slog.Debug("CheckInNudge: next nudge", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-*gracefulShutdownCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		count, err := NudgeUsers(ctx, as)
		cancel()
		if err != nil {
			slog.Error("CheckInNudge: can't nudge", "error", err)
			continue
		}
		slog.Info("CheckInNudge: users nudged", "count", count)
	}
}

// Messages every onboarded user without an open check-in. Returns how many got
// the invitation.
func NudgeUsers(ctx context.Context, as *utils.AppState) (int, error) {
	userModels := make([]model.User, 0)
	if err := as.BunDB.
		NewSelect().
		Model(&userModels).
		Where("is_authenticated = ?", true).
		Where("consent_given = ?", true).
		Where("department != ''").
		Where("location != ''").
		Where("NOT EXISTS (SELECT 1 FROM check_ins AS c WHERE c.user_id = u.id AND c.is_completed = ? AND c.is_expired = ?)", false, false).
		Scan(ctx); err != nil {
		return 0, fmt.Errorf("NudgeUsers: %w", err)
	}

	sent := 0
	for i := range userModels {
		if err := as.SendToUser(ctx, &userModels[i], NUDGE_MESSAGE); err != nil {
			slog.Warn("NudgeUsers: can't send", "user", userModels[i].ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
