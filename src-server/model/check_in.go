package model

import (
	"time"

	"github.com/uptrace/bun"
)

type CheckInState string

const (
	CHECK_IN_STATE_INITIATED            = CheckInState("initiated")
	CHECK_IN_STATE_MOOD_CAPTURED        = CheckInState("mood_captured")
	CHECK_IN_STATE_STRESS_CAPTURED      = CheckInState("stress_captured")
	CHECK_IN_STATE_FEEDBACK_CAPTURED    = CheckInState("feedback_captured")
	CHECK_IN_STATE_QUALITATIVE_FEEDBACK = CheckInState("qualitative_feedback")
	CHECK_IN_STATE_COMPLETED            = CheckInState("completed")
)

// Forward-only order of a check-in. A session never moves backward in this list
// and never skips an entry.
var CheckInStates = []CheckInState{
	CHECK_IN_STATE_INITIATED,
	CHECK_IN_STATE_MOOD_CAPTURED,
	CHECK_IN_STATE_STRESS_CAPTURED,
	CHECK_IN_STATE_FEEDBACK_CAPTURED,
	CHECK_IN_STATE_QUALITATIVE_FEEDBACK,
	CHECK_IN_STATE_COMPLETED,
}

// Index of the state in CheckInStates, -1 if unknown.
func (s CheckInState) Index() int {
	for i, state := range CheckInStates {
		if state == s {
			return i
		}
	}
	return -1
}

// The state directly before s, false for the first state or an unknown one.
func (s CheckInState) Previous() (CheckInState, bool) {
	idx := s.Index()
	if idx <= 0 {
		return "", false
	}
	return CheckInStates[idx-1], true
}

// One structured check-in of one user.
type CheckIn struct {
	bun.BaseModel `bun:"table:check_ins"`

	ID          string       `bun:"id,pk" json:"id"`                          // required
	UserID      string       `bun:"user_id,notnull" json:"user_id"`           // required
	EmployeeID  *string      `bun:"employee_id" json:"employee_id,omitempty"` // best-effort
	State       CheckInState `bun:"state,notnull,type:varchar" json:"state"`  // required
	IsCompleted bool         `bun:"is_completed,notnull,default:false" json:"is_completed"`
	IsExpired   bool         `bun:"is_expired,notnull,default:false" json:"is_expired"`

	MoodScore           *int    `bun:"mood_score" json:"mood_score,omitempty"`
	MoodDescription     *string `bun:"mood_description" json:"mood_description,omitempty"`
	StressLevel         *int    `bun:"stress_level" json:"stress_level,omitempty"`
	StressFactors       *string `bun:"stress_factors" json:"stress_factors,omitempty"`
	QualitativeFeedback *string `bun:"qualitative_feedback" json:"qualitative_feedback,omitempty"`

	FollowUpRequired bool   `bun:"follow_up_required,notnull,default:false" json:"follow_up_required"`
	FollowUpNotes    string `bun:"follow_up_notes" json:"follow_up_notes,omitempty"`

	LastInteractionUnixUTC int64 `bun:"last_interaction_unix_utc,notnull" json:"last_interaction_unix_utc"`
	ExpiresAtUnixUTC       int64 `bun:"expires_at_unix_utc,notnull" json:"expires_at_unix_utc"`
	WarningSentUnixUTC     int64 `bun:"warning_sent_unix_utc,notnull,default:0" json:"-"`
	CreatedAtUnixUTC       int64 `bun:"created_at_unix_utc,notnull" json:"created_at_unix_utc"`
	CompletedAtUnixUTC     int64 `bun:"completed_at_unix_utc,notnull,default:0" json:"completed_at_unix_utc,omitempty"`

	Employee *Employee `bun:"rel:belongs-to,join:employee_id=id" json:"employee,omitempty"`
}

// Neither completed nor expired.
func (c *CheckIn) IsActive() bool {
	return !c.IsCompleted && !c.IsExpired
}

func (c *CheckIn) ExpiresAt() time.Time {
	return time.Unix(c.ExpiresAtUnixUTC, 0).UTC()
}

func (c *CheckIn) LastInteraction() time.Time {
	return time.Unix(c.LastInteractionUnixUTC, 0).UTC()
}

// A warning was already pushed for the current inactivity window.
func (c *CheckIn) WarningSent() bool {
	return c.WarningSentUnixUTC != 0 && c.WarningSentUnixUTC >= c.LastInteractionUnixUTC
}
