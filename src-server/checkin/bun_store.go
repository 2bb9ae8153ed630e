package checkin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"manobal/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store on top of bun. Uniqueness of the active session per user comes from the
// partial index created by model.CreateSchema.
type BunStore struct {
	db  bun.IDB
	now func() time.Time
}

// now may be nil, in which case time.Now is used.
func NewBunStore(db bun.IDB, now func() time.Time) *BunStore {
	if now == nil {
		now = time.Now
	}
	return &BunStore{db: db, now: now}
}

func (s *BunStore) FindActiveSession(ctx context.Context, userID string) (*model.CheckIn, error) {
	checkInModel := new(model.CheckIn)
	if err := s.db.NewSelect().
		Model(checkInModel).
		Where("user_id = ?", userID).
		Where("is_completed = ?", false).
		Where("is_expired = ?", false).
		OrderExpr("created_at_unix_utc DESC, rowid DESC").
		Limit(1).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("(*BunStore).FindActiveSession: %w", err)
	}
	return checkInModel, nil
}

func (s *BunStore) FindByID(ctx context.Context, id string) (*model.CheckIn, error) {
	checkInModel := new(model.CheckIn)
	if err := s.db.NewSelect().
		Model(checkInModel).
		Relation("Employee").
		Where("check_in.id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("(*BunStore).FindByID: %w", err)
	}
	return checkInModel, nil
}

func (s *BunStore) CreateSession(ctx context.Context, userID string, employeeID *string) (*model.CheckIn, error) {
	if userID == "" {
		return nil, fmt.Errorf("(*BunStore).CreateSession: user id is empty")
	}
	now := s.now().UTC()
	checkInModel := &model.CheckIn{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		EmployeeID:             employeeID,
		State:                  model.CHECK_IN_STATE_INITIATED,
		LastInteractionUnixUTC: now.Unix(),
		ExpiresAtUnixUTC:       now.Add(SESSION_TIMEOUT).Unix(),
		CreatedAtUnixUTC:       now.Unix(),
	}
	if _, err := s.db.NewInsert().
		Model(checkInModel).
		Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrActiveSessionExists
		}
		return nil, fmt.Errorf("(*BunStore).CreateSession: %w", err)
	}
	return checkInModel, nil
}

func (s *BunStore) UpdateSession(ctx context.Context, id string, newState model.CheckInState, fields Fields) (*model.CheckIn, error) {
	fromState, ok := newState.Previous()
	if !ok {
		return nil, fmt.Errorf("(*BunStore).UpdateSession: %w: %q", ErrInvalidTransition, newState)
	}

	now := s.now().UTC()
	query := s.db.NewUpdate().
		Model((*model.CheckIn)(nil)).
		Set("state = ?", newState).
		Set("last_interaction_unix_utc = ?", now.Unix()).
		Set("expires_at_unix_utc = ?", now.Add(SESSION_TIMEOUT).Unix())
	if fields.MoodScore != nil {
		query = query.Set("mood_score = ?", *fields.MoodScore)
	}
	if fields.MoodDescription != nil {
		query = query.Set("mood_description = ?", *fields.MoodDescription)
	}
	if fields.StressLevel != nil {
		query = query.Set("stress_level = ?", *fields.StressLevel)
	}
	if fields.StressFactors != nil {
		query = query.Set("stress_factors = ?", *fields.StressFactors)
	}
	if fields.QualitativeFeedback != nil {
		query = query.Set("qualitative_feedback = ?", *fields.QualitativeFeedback)
	}
	if newState == model.CHECK_IN_STATE_COMPLETED {
		query = query.
			Set("is_completed = ?", true).
			Set("completed_at_unix_utc = ?", now.Unix())
	}

	result, err := query.
		Where("id = ?", id).
		Where("state = ?", fromState).
		Where("is_completed = ?", false).
		Where("is_expired = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("(*BunStore).UpdateSession: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("(*BunStore).UpdateSession: %w", err)
	}
	if affected == 0 {
		return nil, ErrSessionNotFound
	}

	checkInModel := new(model.CheckIn)
	if err := s.db.NewSelect().
		Model(checkInModel).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*BunStore).UpdateSession: can't read back session: %w", err)
	}
	return checkInModel, nil
}

// Completed sessions are left alone; calling it again on an expired one is a no-op.
func (s *BunStore) MarkExpired(ctx context.Context, id string) error {
	if _, err := s.db.NewUpdate().
		Model((*model.CheckIn)(nil)).
		Set("is_expired = ?", true).
		Where("id = ?", id).
		Where("is_completed = ?", false).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*BunStore).MarkExpired: %w", err)
	}
	return nil
}

// Records that the timeout warning went out for the current inactivity window.
func (s *BunStore) MarkWarned(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.NewUpdate().
		Model((*model.CheckIn)(nil)).
		Set("warning_sent_unix_utc = ?", at.UTC().Unix()).
		Where("id = ?", id).
		Where("is_completed = ?", false).
		Where("is_expired = ?", false).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*BunStore).MarkWarned: %w", err)
	}
	return nil
}

func (s *BunStore) ScanNearExpiry(ctx context.Context, warningWindow time.Duration, now time.Time) ([]model.CheckIn, error) {
	warnAfter := now.Add(-(SESSION_TIMEOUT - warningWindow)).UTC().Unix()
	expireAfter := now.Add(-SESSION_TIMEOUT).UTC().Unix()

	checkInModels := make([]model.CheckIn, 0)
	if err := s.db.NewSelect().
		Model(&checkInModels).
		Where("is_completed = ?", false).
		Where("is_expired = ?", false).
		Where("last_interaction_unix_utc <= ?", warnAfter).
		Where("last_interaction_unix_utc > ?", expireAfter).
		Order("last_interaction_unix_utc ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*BunStore).ScanNearExpiry: %w", err)
	}
	return checkInModels, nil
}

func (s *BunStore) ScanExpired(ctx context.Context, now time.Time) ([]model.CheckIn, error) {
	checkInModels := make([]model.CheckIn, 0)
	if err := s.db.NewSelect().
		Model(&checkInModels).
		Where("is_completed = ?", false).
		Where("is_expired = ?", false).
		Where("last_interaction_unix_utc <= ?", now.Add(-SESSION_TIMEOUT).UTC().Unix()).
		Order("last_interaction_unix_utc ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*BunStore).ScanExpired: %w", err)
	}
	return checkInModels, nil
}

func (s *BunStore) FindEmployeeByUser(ctx context.Context, userID string) (*string, error) {
	employeeModel := new(model.Employee)
	if err := s.db.NewSelect().
		Model(employeeModel).
		Column("id").
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("(*BunStore).FindEmployeeByUser: %w", err)
	}
	return &employeeModel.ID, nil
}

// Both sqlite drivers behind sqliteshim report constraint violations with this text.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
