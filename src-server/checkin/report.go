package checkin

import (
	"context"
	"fmt"
	"time"

	"manobal/src-server/model"

	"github.com/uptrace/bun"
)

// Filters for the HR views. Zero values mean "no filter".
type Filter struct {
	EmployeeID       string
	Department       string
	Start            time.Time
	End              time.Time
	Completed        *bool
	FollowUpRequired *bool
}

func (f Filter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.Department != "" {
		q = q.Join("JOIN employees AS emp ON emp.id = check_in.employee_id").
			Where("emp.department = ?", f.Department)
	}
	if f.EmployeeID != "" {
		q = q.Where("check_in.employee_id = ?", f.EmployeeID)
	}
	if !f.Start.IsZero() {
		q = q.Where("check_in.created_at_unix_utc >= ?", f.Start.UTC().Unix())
	}
	if !f.End.IsZero() {
		q = q.Where("check_in.created_at_unix_utc < ?", f.End.UTC().Unix())
	}
	if f.Completed != nil {
		q = q.Where("check_in.is_completed = ?", *f.Completed)
	}
	if f.FollowUpRequired != nil {
		q = q.Where("check_in.follow_up_required = ?", *f.FollowUpRequired)
	}
	return q
}

// Newest first. Returns the page and the total number of matches.
func (s *BunStore) List(ctx context.Context, filter Filter, page int, perPage int) ([]model.CheckIn, int, error) {
	if page < 1 {
		page = 1
	}
	checkInModels := make([]model.CheckIn, 0)
	total, err := filter.apply(
		s.db.NewSelect().
			Model(&checkInModels).
			Relation("Employee"),
	).
		Order("check_in.created_at_unix_utc DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("(*BunStore).List: %w", err)
	}
	return checkInModels, total, nil
}

func (s *BunStore) SetFollowUp(ctx context.Context, id string, required *bool, notes *string) (*model.CheckIn, error) {
	if required == nil && notes == nil {
		return s.FindByID(ctx, id)
	}
	query := s.db.NewUpdate().Model((*model.CheckIn)(nil))
	if required != nil {
		query = query.Set("follow_up_required = ?", *required)
	}
	if notes != nil {
		query = query.Set("follow_up_notes = ?", *notes)
	}
	result, err := query.Where("id = ?", id).Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("(*BunStore).SetFollowUp: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrSessionNotFound
	}
	return s.FindByID(ctx, id)
}

type Statistics struct {
	TotalCheckIns      int         `json:"total_check_ins"`
	AvgMood            float64     `json:"avg_mood"`
	AvgStress          float64     `json:"avg_stress"`
	MoodDistribution   map[int]int `json:"mood_distribution"`
	StressDistribution map[int]int `json:"stress_distribution"`
}

// Aggregates over completed check-ins only.
func (s *BunStore) Statistics(ctx context.Context, filter Filter) (Statistics, error) {
	completed := true
	filter.Completed = &completed

	checkInModels := make([]model.CheckIn, 0)
	if err := filter.apply(
		s.db.NewSelect().
			Model(&checkInModels).
			ColumnExpr("check_in.mood_score, check_in.stress_level"),
	).Scan(ctx); err != nil {
		return Statistics{}, fmt.Errorf("(*BunStore).Statistics: %w", err)
	}

	stats := Statistics{
		TotalCheckIns:      len(checkInModels),
		MoodDistribution:   map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		StressDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	var moodSum, moodCount, stressSum, stressCount int
	for _, c := range checkInModels {
		if c.MoodScore != nil {
			moodSum += *c.MoodScore
			moodCount++
			stats.MoodDistribution[*c.MoodScore]++
		}
		if c.StressLevel != nil {
			stressSum += *c.StressLevel
			stressCount++
			stats.StressDistribution[*c.StressLevel]++
		}
	}
	if moodCount > 0 {
		stats.AvgMood = float64(moodSum) / float64(moodCount)
	}
	if stressCount > 0 {
		stats.AvgStress = float64(stressSum) / float64(stressCount)
	}
	return stats, nil
}
