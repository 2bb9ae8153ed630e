package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"manobal/src-server/model"
)

// Outcome of one inbound message. An empty ResponseText means the message is not
// part of a check-in and belongs to the general conversation.
type Result struct {
	ResponseText string
	Session      *model.CheckIn
}

func (r Result) Handled() bool {
	return r.ResponseText != ""
}

type Engine struct {
	store    Store
	resolver EmployeeResolver
	locks    *KeyedMutex
	now      func() time.Time

	// Called after every committed state change. Optional.
	OnTransition func(state model.CheckInState)
	Logger       *slog.Logger
}

// resolver and now may be nil.
func NewEngine(store Store, resolver EmployeeResolver, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		locks:    NewKeyedMutex(),
		now:      now,
		Logger:   slog.Default(),
	}
}

// Runs one inbound message through the check-in state machine. Messages of the
// same user are processed one at a time.
//
// ErrSessionNotFound means the session vanished between read and write; the
// caller should treat the message as general conversation.
func (e *Engine) HandleResponse(ctx context.Context, userID string, messageText string) (Result, error) {
	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	session, err := e.store.FindActiveSession(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("(*Engine).HandleResponse: %w", err)
	}

	if session == nil {
		if !IsStartPhrase(messageText) {
			return Result{}, nil
		}
		return e.start(ctx, userID)
	}

	if e.now().UTC().Unix() > session.ExpiresAtUnixUTC {
		if err := e.store.MarkExpired(ctx, session.ID); err != nil {
			return Result{}, fmt.Errorf("(*Engine).HandleResponse: %w", err)
		}
		e.Logger.Debug("check-in expired on arrival", "check_in", session.ID, "state", session.State)
		if IsStartPhrase(messageText) {
			return e.start(ctx, userID)
		}
		return Result{ResponseText: PROMPT_TIMEOUT}, nil
	}

	return e.advance(ctx, session, messageText)
}

func (e *Engine) start(ctx context.Context, userID string) (Result, error) {
	session, err := e.store.CreateSession(ctx, userID, e.resolveEmployee(ctx, userID))
	switch {
	case errors.Is(err, ErrActiveSessionExists):
		// lost a race against another writer for this user, resume theirs
		existing, findErr := e.store.FindActiveSession(ctx, userID)
		if findErr != nil {
			return Result{}, fmt.Errorf("(*Engine).start: %w", findErr)
		}
		if existing == nil {
			return Result{}, fmt.Errorf("(*Engine).start: %w", err)
		}
		return Result{ResponseText: PromptFor(existing.State), Session: existing}, nil
	case err != nil:
		return Result{}, fmt.Errorf("(*Engine).start: %w", err)
	}

	e.transitioned(session)
	return Result{ResponseText: PROMPT_INITIATE, Session: session}, nil
}

func (e *Engine) resolveEmployee(ctx context.Context, userID string) *string {
	if e.resolver == nil {
		return nil
	}
	employeeID, err := e.resolver.FindEmployeeByUser(ctx, userID)
	if err != nil {
		e.Logger.Warn("can't resolve employee for check-in", "user", userID, "error", err)
		return nil
	}
	return employeeID
}

func (e *Engine) advance(ctx context.Context, session *model.CheckIn, text string) (Result, error) {
	switch session.State {
	case model.CHECK_IN_STATE_INITIATED:
		score, reprompt := parseRating(text, PROMPT_MOOD_NOT_A_NUMBER, PROMPT_MOOD_OUT_OF_RANGE)
		if reprompt != "" {
			return Result{ResponseText: reprompt, Session: session}, nil
		}
		return e.update(ctx, session, model.CHECK_IN_STATE_MOOD_CAPTURED,
			Fields{MoodScore: &score}, PROMPT_MOOD_FOLLOWUP)

	case model.CHECK_IN_STATE_MOOD_CAPTURED:
		return e.update(ctx, session, model.CHECK_IN_STATE_STRESS_CAPTURED,
			Fields{MoodDescription: &text}, PROMPT_STRESS_QUESTION)

	case model.CHECK_IN_STATE_STRESS_CAPTURED:
		level, reprompt := parseRating(text, PROMPT_STRESS_NOT_A_NUMBER, PROMPT_STRESS_OUT_OF_RANGE)
		if reprompt != "" {
			return Result{ResponseText: reprompt, Session: session}, nil
		}
		return e.update(ctx, session, model.CHECK_IN_STATE_FEEDBACK_CAPTURED,
			Fields{StressLevel: &level}, PROMPT_STRESS_FOLLOWUP)

	case model.CHECK_IN_STATE_FEEDBACK_CAPTURED:
		return e.update(ctx, session, model.CHECK_IN_STATE_QUALITATIVE_FEEDBACK,
			Fields{StressFactors: &text}, PROMPT_QUALITATIVE_FEEDBACK)

	case model.CHECK_IN_STATE_QUALITATIVE_FEEDBACK:
		return e.update(ctx, session, model.CHECK_IN_STATE_COMPLETED,
			Fields{QualitativeFeedback: &text}, PROMPT_COMPLETION)
	}

	e.Logger.Warn("check-in in unexpected state", "check_in", session.ID, "state", session.State)
	return Result{ResponseText: PROMPT_FALLBACK, Session: session}, nil
}

func (e *Engine) update(ctx context.Context, session *model.CheckIn, newState model.CheckInState, fields Fields, reply string) (Result, error) {
	updated, err := e.store.UpdateSession(ctx, session.ID, newState, fields)
	if err != nil {
		return Result{}, fmt.Errorf("(*Engine).update: %w", err)
	}
	e.transitioned(updated)
	return Result{ResponseText: reply, Session: updated}, nil
}

func (e *Engine) transitioned(session *model.CheckIn) {
	e.Logger.Debug("check-in transition", "check_in", session.ID, "state", session.State)
	if e.OnTransition != nil {
		e.OnTransition(session.State)
	}
}

// Integers only, 1 to 5 inclusive. On rejection the second return value is the
// re-prompt to send.
func parseRating(text string, notANumber string, outOfRange string) (int, string) {
	rating, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, notANumber
	}
	if rating < 1 || rating > 5 {
		return 0, outOfRange
	}
	return rating, ""
}
