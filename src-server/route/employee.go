package route

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"manobal/src-server/bot"
	"manobal/src-server/checkin"
	"manobal/src-server/model"
	"manobal/src-server/utils"
)

// Columns of the CSV export, and the ones the import understands besides
// phone_number and discord_user_id.
var employeeCSVHeader = []string{"id", "first_name", "last_name", "email", "department", "role", "status", "user_id"}

var errUnknownUser = errors.New("user not found")

// Nil fields are left untouched on update. user_id, phone_number and
// discord_user_id link the employee to a bot user; an empty user_id unlinks.
type employeeReqBody struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Email         *string `json:"email"`
	Department    *string `json:"department"`
	Role          *string `json:"role"`
	Status        *string `json:"status"`
	UserID        *string `json:"user_id"`
	PhoneNumber   *string `json:"phone_number"`
	DiscordUserID *string `json:"discord_user_id"`
}

// HR management of employee records and their link to bot users.
func Employee(muxer *http.ServeMux, as *utils.AppState, b *bot.Bot) {
	type EmployeeListRespBody struct {
		Employees []model.Employee `json:"employees"`
		Total     int              `json:"total"`
		Page      int              `json:"page"`
		PerPage   int              `json:"per_page"`
		Pages     int              `json:"pages"`
	}

	type ImportError struct {
		Line  int    `json:"line"`
		Error string `json:"error"`
	}

	type ImportRespBody struct {
		Imported int           `json:"imported"`
		Errors   []ImportError `json:"errors"`
	}

	muxer.HandleFunc("GET /employees", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseEmployeeFilter(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(err.Error()))
			return
		}
		page, err := intParam(r, "page", 1)
		if err != nil || page < 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid page"))
			return
		}
		perPage, err := intParam(r, "per_page", DEFAULT_PER_PAGE)
		if err != nil || perPage < 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid per_page"))
			return
		}
		perPage = min(perPage, MAX_PER_PAGE)

		startTimer := time.Now()
		employeeModels, total, err := as.CheckInStore.ListEmployees(r.Context(), filter, page, perPage)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't list employees: %s", err.Error())))
			return
		}
		utils.Observe(as.MetricChans.DatabaseRead, float64(time.Since(startTimer).Microseconds()))

		writeJSON(w, EmployeeListRespBody{
			Employees: employeeModels,
			Total:     total,
			Page:      page,
			PerPage:   perPage,
			Pages:     (total + perPage - 1) / perPage,
		})
	}))

	muxer.HandleFunc("GET /employees/departments", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		departments, err := as.CheckInStore.Departments(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't list departments: %s", err.Error())))
			return
		}
		writeJSON(w, map[string][]string{"departments": departments})
	}))

	muxer.HandleFunc("GET /employees/locations", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		locations, err := as.CheckInStore.Locations(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't list locations: %s", err.Error())))
			return
		}
		writeJSON(w, map[string][]string{"locations": locations})
	}))

	muxer.HandleFunc("GET /employees/export", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		if format != "csv" && format != "json" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid format, must be csv or json"))
			return
		}
		filter, err := parseEmployeeFilter(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(err.Error()))
			return
		}
		employeeModels, _, err := as.CheckInStore.ListEmployees(r.Context(), filter, 1, 0)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't export employees: %s", err.Error())))
			return
		}

		if format == "json" {
			writeJSON(w, map[string][]model.Employee{"employees": employeeModels})
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=employees.csv")
		csvWriter := csv.NewWriter(w)
		csvWriter.Write(employeeCSVHeader)
		for _, e := range employeeModels {
			csvWriter.Write([]string{e.ID, e.FirstName, e.LastName, e.Email, e.Department, e.Role, string(e.Status), e.UserID})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			slog.Warn("can't write employee export", "error", err)
		}
	}))

	muxer.HandleFunc("POST /employees/import", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		csvReader := csv.NewReader(r.Body)
		csvReader.TrimLeadingSpace = true
		csvReader.FieldsPerRecord = -1
		header, err := csvReader.Read()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid CSV header"))
			return
		}
		columns := make(map[string]int, len(header))
		for i, name := range header {
			columns[strings.ToLower(strings.TrimSpace(name))] = i
		}
		if _, ok := columns["first_name"]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("CSV needs a first_name column"))
			return
		}

		respBody := ImportRespBody{Errors: make([]ImportError, 0)}
		for line := 2; ; line++ {
			record, err := csvReader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				respBody.Errors = append(respBody.Errors, ImportError{Line: line, Error: err.Error()})
				continue
			}
			field := func(name string) *string {
				i, ok := columns[name]
				if !ok || i >= len(record) || strings.TrimSpace(record[i]) == "" {
					return nil
				}
				v := strings.TrimSpace(record[i])
				return &v
			}
			reqBody := employeeReqBody{
				FirstName:     field("first_name"),
				LastName:      field("last_name"),
				Email:         field("email"),
				Department:    field("department"),
				Role:          field("role"),
				Status:        field("status"),
				UserID:        field("user_id"),
				PhoneNumber:   field("phone_number"),
				DiscordUserID: field("discord_user_id"),
			}
			if _, err := createEmployee(r.Context(), as, b, reqBody); err != nil {
				respBody.Errors = append(respBody.Errors, ImportError{Line: line, Error: err.Error()})
				continue
			}
			respBody.Imported++
		}
		writeJSON(w, respBody)
	}))

	muxer.HandleFunc("GET /employees/{id}", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		employeeModel, err := as.CheckInStore.FindEmployee(r.Context(), r.PathValue("id"))
		if err != nil {
			writeEmployeeErr(w, err)
			return
		}
		writeJSON(w, employeeModel)
	}))

	muxer.HandleFunc("POST /employees", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		var reqBody employeeReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid request body"))
			return
		}

		startTimer := time.Now()
		employeeModel, err := createEmployee(r.Context(), as, b, reqBody)
		if err != nil {
			writeEmployeeErr(w, err)
			return
		}
		utils.Observe(as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(employeeModel); err != nil {
			slog.Warn("can't encode employee", "error", err)
		}
	}))

	muxer.HandleFunc("PUT /employees/{id}", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		var reqBody employeeReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid request body"))
			return
		}

		startTimer := time.Now()
		employeeModel, err := as.CheckInStore.FindEmployee(r.Context(), r.PathValue("id"))
		if err != nil {
			writeEmployeeErr(w, err)
			return
		}
		if err := applyEmployeeReq(r.Context(), b, employeeModel, reqBody); err != nil {
			writeEmployeeErr(w, err)
			return
		}
		if err := as.CheckInStore.UpdateEmployee(r.Context(), employeeModel); err != nil {
			writeEmployeeErr(w, err)
			return
		}
		utils.Observe(as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))
		writeJSON(w, employeeModel)
	}))

	muxer.HandleFunc("DELETE /employees/{id}", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		startTimer := time.Now()
		if err := as.CheckInStore.DeleteEmployee(r.Context(), r.PathValue("id")); err != nil {
			writeEmployeeErr(w, err)
			return
		}
		utils.Observe(as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))
		w.WriteHeader(http.StatusNoContent)
	}))
}

type badEmployeeReqError struct{ msg string }

func (e badEmployeeReqError) Error() string { return e.msg }

func writeEmployeeErr(w http.ResponseWriter, err error) {
	var badReq badEmployeeReqError
	switch {
	case errors.As(err, &badReq):
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(badReq.msg))
	case errors.Is(err, errUnknownUser):
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("User not found"))
	case errors.Is(err, checkin.ErrEmployeeNotFound):
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Employee not found"))
	case errors.Is(err, checkin.ErrEmployeeUserTaken):
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("User is already linked to another employee"))
	default:
		slog.Error("employee request failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(fmt.Sprintf("Can't save employee: %s", err.Error())))
	}
}

func createEmployee(ctx context.Context, as *utils.AppState, b *bot.Bot, reqBody employeeReqBody) (*model.Employee, error) {
	if reqBody.FirstName == nil || strings.TrimSpace(*reqBody.FirstName) == "" {
		return nil, badEmployeeReqError{"first_name is required"}
	}
	employeeModel := new(model.Employee)
	if err := applyEmployeeReq(ctx, b, employeeModel, reqBody); err != nil {
		return nil, err
	}
	if err := as.CheckInStore.CreateEmployee(ctx, employeeModel); err != nil {
		return nil, err
	}
	return employeeModel, nil
}

func applyEmployeeReq(ctx context.Context, b *bot.Bot, employeeModel *model.Employee, reqBody employeeReqBody) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	if reqBody.FirstName != nil && strings.TrimSpace(*reqBody.FirstName) == "" {
		return badEmployeeReqError{"first_name can't be empty"}
	}
	set(&employeeModel.FirstName, reqBody.FirstName)
	set(&employeeModel.LastName, reqBody.LastName)
	set(&employeeModel.Email, reqBody.Email)
	set(&employeeModel.Role, reqBody.Role)
	if reqBody.Department != nil {
		employeeModel.Department = utils.CleanupString(*reqBody.Department)
	}
	if reqBody.Status != nil {
		status := model.EmployeeStatus(strings.ToLower(strings.TrimSpace(*reqBody.Status)))
		if !status.Valid() {
			return badEmployeeReqError{"status must be active, inactive or on_leave"}
		}
		employeeModel.Status = status
	}

	userID, ok, err := linkedUserID(ctx, b, reqBody)
	if err != nil {
		return err
	}
	if ok {
		employeeModel.UserID = userID
	}
	return nil
}

// The bot user the request links to. The bool is false when the request says
// nothing about the link.
func linkedUserID(ctx context.Context, b *bot.Bot, reqBody employeeReqBody) (string, bool, error) {
	switch {
	case reqBody.UserID != nil:
		userID := strings.TrimSpace(*reqBody.UserID)
		if userID == "" {
			return "", true, nil
		}
		user, err := b.FindUserByID(ctx, userID)
		if err != nil {
			return "", false, err
		}
		if user == nil {
			return "", false, errUnknownUser
		}
		return user.ID, true, nil

	case reqBody.PhoneNumber != nil && strings.TrimSpace(*reqBody.PhoneNumber) != "":
		user, err := b.Register(ctx, model.USER_CHANNEL_WHATSAPP, normalizePhone(*reqBody.PhoneNumber))
		if err != nil {
			return "", false, err
		}
		return user.ID, true, nil

	case reqBody.DiscordUserID != nil && strings.TrimSpace(*reqBody.DiscordUserID) != "":
		user, err := b.Register(ctx, model.USER_CHANNEL_DISCORD, strings.TrimSpace(*reqBody.DiscordUserID))
		if err != nil {
			return "", false, err
		}
		return user.ID, true, nil
	}
	return "", false, nil
}

// Same shape as the From field of the webhook after the prefix is gone.
func normalizePhone(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
}

func parseEmployeeFilter(r *http.Request) (checkin.EmployeeFilter, error) {
	query := r.URL.Query()
	filter := checkin.EmployeeFilter{
		Department: query.Get("department"),
		Role:       query.Get("role"),
		Search:     strings.TrimSpace(query.Get("search")),
	}
	if raw := query.Get("status"); raw != "" {
		filter.Status = model.EmployeeStatus(strings.ToLower(raw))
		if !filter.Status.Valid() {
			return checkin.EmployeeFilter{}, errors.New("Invalid status")
		}
	}
	return filter, nil
}
