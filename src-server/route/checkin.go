package route

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"manobal/src-server/checkin"
	"manobal/src-server/model"
	"manobal/src-server/utils"
)

const (
	DEFAULT_PER_PAGE = 20
	MAX_PER_PAGE     = 100
)

// HR views over the recorded check-ins.
func CheckIn(muxer *http.ServeMux, as *utils.AppState) {
	type CheckInListRespBody struct {
		CheckIns []model.CheckIn `json:"check_ins"`
		Total    int             `json:"total"`
		Page     int             `json:"page"`
		PerPage  int             `json:"per_page"`
		Pages    int             `json:"pages"`
	}

	type FollowUpReqBody struct {
		FollowUpRequired *bool   `json:"follow_up_required"`
		FollowUpNotes    *string `json:"follow_up_notes"`
	}

	muxer.HandleFunc("GET /check-ins", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(as, r)
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
		checkInModels, total, err := as.CheckInStore.List(r.Context(), filter, page, perPage)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't list check-ins: %s", err.Error())))
			return
		}
		utils.Observe(as.MetricChans.DatabaseRead, float64(time.Since(startTimer).Microseconds()))

		writeJSON(w, CheckInListRespBody{
			CheckIns: checkInModels,
			Total:    total,
			Page:     page,
			PerPage:  perPage,
			Pages:    (total + perPage - 1) / perPage,
		})
	}))

	muxer.HandleFunc("GET /check-ins/statistics", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(as, r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(err.Error()))
			return
		}
		stats, err := as.CheckInStore.Statistics(r.Context(), filter)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't compute statistics: %s", err.Error())))
			return
		}
		writeJSON(w, stats)
	}))

	muxer.HandleFunc("GET /check-ins/{id}", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		checkInModel, err := as.CheckInStore.FindByID(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, checkin.ErrSessionNotFound):
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Check-in not found"))
			return
		case err != nil:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't get check-in: %s", err.Error())))
			return
		}
		writeJSON(w, checkInModel)
	}))

	muxer.HandleFunc("PUT /check-ins/{id}/follow-up", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		var reqBody FollowUpReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid request body"))
			return
		}

		startTimer := time.Now()
		checkInModel, err := as.CheckInStore.SetFollowUp(r.Context(), r.PathValue("id"), reqBody.FollowUpRequired, reqBody.FollowUpNotes)
		switch {
		case errors.Is(err, checkin.ErrSessionNotFound):
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Check-in not found"))
			return
		case err != nil:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf("Can't update follow-up: %s", err.Error())))
			return
		}
		utils.Observe(as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))
		writeJSON(w, checkInModel)
	}))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(fmt.Sprintf("Can't encode response: %s", err.Error())))
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func boolParam(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("Invalid %s", name)
	}
	return &v, nil
}

func parseFilter(as *utils.AppState, r *http.Request) (checkin.Filter, error) {
	query := r.URL.Query()
	filter := checkin.Filter{
		EmployeeID: query.Get("employee_id"),
		Department: query.Get("department"),
	}

	var err error
	if raw := query.Get("start"); raw != "" {
		if filter.Start, _, err = parseDate(as, raw); err != nil {
			return checkin.Filter{}, fmt.Errorf("Invalid start: %w", err)
		}
	}
	if raw := query.Get("end"); raw != "" {
		var wholeDay bool
		if filter.End, wholeDay, err = parseDate(as, raw); err != nil {
			return checkin.Filter{}, fmt.Errorf("Invalid end: %w", err)
		}
		// a bare date includes that day
		if wholeDay {
			filter.End = filter.End.AddDate(0, 0, 1)
		}
	}
	if filter.Completed, err = boolParam(r, "completed"); err != nil {
		return checkin.Filter{}, err
	}
	if filter.FollowUpRequired, err = boolParam(r, "follow_up_required"); err != nil {
		return checkin.Filter{}, err
	}
	return filter, nil
}

// YYYY-MM-DD in the configured timezone, or natural text like "last monday".
// The bool reports a bare date.
func parseDate(as *utils.AppState, raw string) (time.Time, bool, error) {
	loc := as.Config.GetLocation()
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, true, nil
	}
	result, err := as.When.Parse(raw, time.Now().In(loc))
	if err != nil {
		return time.Time{}, false, err
	}
	if result == nil {
		return time.Time{}, false, fmt.Errorf("can't understand %q", raw)
	}
	return result.Time, false, nil
}
