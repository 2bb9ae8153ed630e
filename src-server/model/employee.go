package model

import "github.com/uptrace/bun"

type EmployeeStatus string

const (
	EMPLOYEE_STATUS_ACTIVE   = EmployeeStatus("active")
	EMPLOYEE_STATUS_INACTIVE = EmployeeStatus("inactive")
	EMPLOYEE_STATUS_ON_LEAVE = EmployeeStatus("on_leave")
)

func (s EmployeeStatus) Valid() bool {
	switch s {
	case EMPLOYEE_STATUS_ACTIVE, EMPLOYEE_STATUS_INACTIVE, EMPLOYEE_STATUS_ON_LEAVE:
		return true
	}
	return false
}

// HR record, optionally linked to the bot user the employee talks through. A
// user belongs to at most one employee.
type Employee struct {
	bun.BaseModel `bun:"table:employees"`

	ID               string         `bun:"id,pk,notnull,unique" json:"id"`
	UserID           string         `bun:"user_id" json:"user_id,omitempty"`
	FirstName        string         `bun:"first_name,notnull" json:"first_name"`
	LastName         string         `bun:"last_name" json:"last_name"`
	Department       string         `bun:"department" json:"department"`
	Role             string         `bun:"role" json:"role"`
	Email            string         `bun:"email" json:"email,omitempty"`
	Status           EmployeeStatus `bun:"status,notnull,type:varchar,default:'active'" json:"status"`
	CreatedAtUnixUTC int64          `bun:"created_at_unix_utc,notnull,default:0" json:"created_at_unix_utc"`
}
