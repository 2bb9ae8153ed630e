package checkin_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"manobal/src-server/checkin"
	"manobal/src-server/model"
)

func TestBunStoreEmployees(t *testing.T) {
	ctx := context.Background()
	engine, store, db, _ := newTestEngine(t)

	if err := store.CreateEmployee(ctx, &model.Employee{FirstName: " "}); err == nil {
		t.Fatal("created an employee without a first name")
	}

	ada := &model.Employee{FirstName: "Ada", LastName: "Lovelace", Department: "Engineering", UserID: "u1"}
	if err := store.CreateEmployee(ctx, ada); err != nil {
		t.Fatal(err)
	}
	if ada.ID == "" || ada.Status != model.EMPLOYEE_STATUS_ACTIVE || ada.CreatedAtUnixUTC != t0.Unix() {
		t.Fatalf("created = %+v", ada)
	}
	grace := &model.Employee{FirstName: "Grace", LastName: "Hopper", Department: "Sales", Email: "grace@example.com"}
	if err := store.CreateEmployee(ctx, grace); err != nil {
		t.Fatal(err)
	}
	// unlinked employees don't collide on the empty user id
	if err := store.CreateEmployee(ctx, &model.Employee{FirstName: "Alan", LastName: "Turing"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateEmployee(ctx, &model.Employee{FirstName: "Eve", UserID: "u1"}); !errors.Is(err, checkin.ErrEmployeeUserTaken) {
		t.Fatalf("second employee on u1: %v", err)
	}

	// new check-ins pick up the link
	started := send(t, engine, "u1", "start check-in")
	if started.Session.EmployeeID == nil || *started.Session.EmployeeID != ada.ID {
		t.Fatalf("check-in employee = %v, want %s", started.Session.EmployeeID, ada.ID)
	}

	for filter, want := range map[checkin.EmployeeFilter]int{
		{}:                        3,
		{Department: "Sales"}:     1,
		{Search: "HOP"}:           1,
		{Search: "example.com"}:   1,
		{Status: "on_leave"}:      0,
		{Department: "Marketing"}: 0,
	} {
		employeeModels, total, err := store.ListEmployees(ctx, filter, 1, 10)
		if err != nil {
			t.Fatal(err)
		}
		if total != want || len(employeeModels) != want {
			t.Errorf("%+v: total %d, got %d rows, want %d", filter, total, len(employeeModels), want)
		}
	}
	page, total, err := store.ListEmployees(ctx, checkin.EmployeeFilter{}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 1 || page[0].LastName != "Turing" {
		t.Fatalf("second page = %+v (total %d)", page, total)
	}

	grace.Status = model.EMPLOYEE_STATUS_ON_LEAVE
	grace.UserID = "u1"
	if err := store.UpdateEmployee(ctx, grace); !errors.Is(err, checkin.ErrEmployeeUserTaken) {
		t.Fatalf("update onto a taken user: %v", err)
	}
	grace.UserID = "u2"
	if err := store.UpdateEmployee(ctx, grace); err != nil {
		t.Fatal(err)
	}
	reloaded, err := store.FindEmployee(ctx, grace.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != model.EMPLOYEE_STATUS_ON_LEAVE || reloaded.UserID != "u2" {
		t.Fatalf("reloaded = %+v", reloaded)
	}
	if err := store.UpdateEmployee(ctx, &model.Employee{ID: "missing", FirstName: "X"}); !errors.Is(err, checkin.ErrEmployeeNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if _, err := store.FindEmployee(ctx, "missing"); !errors.Is(err, checkin.ErrEmployeeNotFound) {
		t.Fatalf("find missing: %v", err)
	}

	if _, err := db.NewInsert().Model(&model.User{
		ID: "u1", Channel: model.USER_CHANNEL_WHATSAPP, Address: "+911", Department: "Research", Location: "Remote",
	}).Exec(ctx); err != nil {
		t.Fatal(err)
	}
	departments, err := store.Departments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(departments, ","); got != "Engineering,Research,Sales" {
		t.Errorf("departments = %s", got)
	}
	locations, err := store.Locations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(locations, ","); got != "Remote" {
		t.Errorf("locations = %s", got)
	}

	if err := store.DeleteEmployee(ctx, ada.ID); err != nil {
		t.Fatal(err)
	}
	if checkInModel := reload(t, db, started.Session.ID); checkInModel.EmployeeID != nil {
		t.Errorf("check-in still links %s", *checkInModel.EmployeeID)
	}
	if err := store.DeleteEmployee(ctx, ada.ID); !errors.Is(err, checkin.ErrEmployeeNotFound) {
		t.Errorf("delete twice: %v", err)
	}
	employeeID, err := store.FindEmployeeByUser(ctx, "u1")
	if err != nil || employeeID != nil {
		t.Errorf("u1 still resolves to %v (%v)", employeeID, err)
	}
}
