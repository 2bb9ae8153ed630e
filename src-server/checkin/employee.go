package checkin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"manobal/src-server/model"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	// the bot user is already linked to another employee
	ErrEmployeeUserTaken = errors.New("user already linked to an employee")
)

// Filters for the employee list. Zero values mean "no filter".
type EmployeeFilter struct {
	Department string
	Status     model.EmployeeStatus
	Role       string
	// case-insensitive match on first name, last name or email
	Search string
}

func (f EmployeeFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.Department != "" {
		q = q.Where("employee.department = ?", f.Department)
	}
	if f.Status != "" {
		q = q.Where("employee.status = ?", f.Status)
	}
	if f.Role != "" {
		q = q.Where("employee.role = ?", f.Role)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(employee.first_name) LIKE ?", pattern).
				WhereOr("LOWER(employee.last_name) LIKE ?", pattern).
				WhereOr("LOWER(employee.email) LIKE ?", pattern)
		})
	}
	return q
}

// Ordered by last name. perPage < 1 returns every match.
func (s *BunStore) ListEmployees(ctx context.Context, filter EmployeeFilter, page int, perPage int) ([]model.Employee, int, error) {
	if page < 1 {
		page = 1
	}
	employeeModels := make([]model.Employee, 0)
	query := filter.apply(s.db.NewSelect().Model(&employeeModels)).
		Order("employee.last_name ASC", "employee.first_name ASC")
	if perPage > 0 {
		query = query.Limit(perPage).Offset((page - 1) * perPage)
	}
	total, err := query.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("(*BunStore).ListEmployees: %w", err)
	}
	return employeeModels, total, nil
}

func (s *BunStore) FindEmployee(ctx context.Context, id string) (*model.Employee, error) {
	employeeModel := new(model.Employee)
	if err := s.db.NewSelect().
		Model(employeeModel).
		Where("employee.id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("(*BunStore).FindEmployee: %w", err)
	}
	return employeeModel, nil
}

// Fills in the id, creation time and status when they are empty.
func (s *BunStore) CreateEmployee(ctx context.Context, employee *model.Employee) error {
	if strings.TrimSpace(employee.FirstName) == "" {
		return fmt.Errorf("(*BunStore).CreateEmployee: first name is empty")
	}
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	if employee.Status == "" {
		employee.Status = model.EMPLOYEE_STATUS_ACTIVE
	}
	employee.CreatedAtUnixUTC = s.now().UTC().Unix()

	if _, err := s.db.NewInsert().Model(employee).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrEmployeeUserTaken
		}
		return fmt.Errorf("(*BunStore).CreateEmployee: %w", err)
	}
	return nil
}

// Writes every editable column of the row with employee.ID.
func (s *BunStore) UpdateEmployee(ctx context.Context, employee *model.Employee) error {
	result, err := s.db.NewUpdate().
		Model(employee).
		Column("user_id", "first_name", "last_name", "department", "role", "email", "status").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmployeeUserTaken
		}
		return fmt.Errorf("(*BunStore).UpdateEmployee: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

// Check-ins of the employee are kept and lose their employee link.
func (s *BunStore) DeleteEmployee(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*model.CheckIn)(nil)).
			Set("employee_id = NULL").
			Where("employee_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("(*BunStore).DeleteEmployee: %w", err)
		}
		result, err := tx.NewDelete().
			Model((*model.Employee)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("(*BunStore).DeleteEmployee: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return ErrEmployeeNotFound
		}
		return nil
	})
}

// Known departments, from HR records and from what users told the bot.
func (s *BunStore) Departments(ctx context.Context) ([]string, error) {
	var fromEmployees, fromUsers []string
	if err := s.db.NewSelect().
		Model((*model.Employee)(nil)).
		Distinct().
		Column("department").
		Where("department <> ''").
		Scan(ctx, &fromEmployees); err != nil {
		return nil, fmt.Errorf("(*BunStore).Departments: %w", err)
	}
	if err := s.db.NewSelect().
		Model((*model.User)(nil)).
		Distinct().
		Column("department").
		Where("department <> ''").
		Scan(ctx, &fromUsers); err != nil {
		return nil, fmt.Errorf("(*BunStore).Departments: %w", err)
	}
	return sortedUnique(append(fromEmployees, fromUsers...)), nil
}

func (s *BunStore) Locations(ctx context.Context) ([]string, error) {
	var locations []string
	if err := s.db.NewSelect().
		Model((*model.User)(nil)).
		Distinct().
		Column("location").
		Where("location <> ''").
		Scan(ctx, &locations); err != nil {
		return nil, fmt.Errorf("(*BunStore).Locations: %w", err)
	}
	return sortedUnique(locations), nil
}

func sortedUnique(values []string) []string {
	out := make([]string, 0, len(values))
	out = append(out, values...)
	slices.Sort(out)
	return slices.Compact(out)
}
