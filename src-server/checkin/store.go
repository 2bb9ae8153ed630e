// Package checkin holds the structured check-in conversation: the session store,
// the flow engine that walks a user through the questions, and the sweeper that
// expires sessions gone quiet.
package checkin

import (
	"context"
	"errors"
	"time"

	"manobal/src-server/model"
)

const (
	// inactivity after which a session is abandoned
	SESSION_TIMEOUT = 30 * time.Minute
	// how long before SESSION_TIMEOUT the user gets a warning
	WARNING_WINDOW = 5 * time.Minute
)

var (
	// no active session with that id, or it is not in the state the transition starts from
	ErrSessionNotFound = errors.New("check-in session not found")
	// another non-terminal session already exists for the user
	ErrActiveSessionExists = errors.New("active check-in session already exists")
	// target state has no predecessor (initiated) or is unknown
	ErrInvalidTransition = errors.New("invalid check-in state transition")
)

// Answers captured by a single transition. Nil fields are left untouched.
type Fields struct {
	MoodScore           *int
	MoodDescription     *string
	StressLevel         *int
	StressFactors       *string
	QualitativeFeedback *string
}

type Store interface {
	// Nil, nil when the user has no session that is neither completed nor expired.
	FindActiveSession(ctx context.Context, userID string) (*model.CheckIn, error)
	CreateSession(ctx context.Context, userID string, employeeID *string) (*model.CheckIn, error)
	// Moves the session into newState, merges fields and slides the expiry window.
	UpdateSession(ctx context.Context, id string, newState model.CheckInState, fields Fields) (*model.CheckIn, error)
	MarkExpired(ctx context.Context, id string) error
	ScanNearExpiry(ctx context.Context, warningWindow time.Duration, now time.Time) ([]model.CheckIn, error)
	ScanExpired(ctx context.Context, now time.Time) ([]model.CheckIn, error)
}

type EmployeeResolver interface {
	// Nil, nil when the user is not linked to an employee.
	FindEmployeeByUser(ctx context.Context, userID string) (*string, error)
}
