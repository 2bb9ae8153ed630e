package route_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"
)

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("can't decode %q: %v", w.Body.String(), err)
	}
}

// Runs a check-in through the engine. Stops after the mood answer when
// complete is false.
func addCheckIn(t *testing.T, as *utils.AppState, userID string, mood string, stress string, complete bool) {
	t.Helper()
	answers := []string{"start check-in", mood}
	if complete {
		answers = append(answers, "fine", stress, "deadlines", "nothing else")
	}
	for _, answer := range answers {
		if _, err := as.Engine.HandleResponse(context.Background(), userID, answer); err != nil {
			t.Fatal(err)
		}
	}
}

type checkInList struct {
	CheckIns []model.CheckIn `json:"check_ins"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	Pages    int             `json:"pages"`
}

func listCheckIns(t *testing.T, do func(string, string, string) *httptest.ResponseRecorder, target string) checkInList {
	t.Helper()
	w := do(http.MethodGet, target, "")
	if w.Code != http.StatusOK {
		t.Fatalf("%s: status %d: %s", target, w.Code, w.Body.String())
	}
	var list checkInList
	decodeJSON(t, w, &list)
	return list
}

func authed(t *testing.T, muxer *http.ServeMux, as *utils.AppState) func(method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	addTempKey(t, as, "temp-hr", time.Now())
	cookie := sessionCookie(t, login(muxer, "temp-hr"))
	return func(method string, target string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		muxer.ServeHTTP(w, req)
		return w
	}
}

func TestCheckInAPI(t *testing.T) {
	muxer, as, _ := newTestServer(t, nil)
	do := authed(t, muxer, as)

	if _, err := as.BunDB.NewInsert().Model(&model.Employee{
		ID: "emp-1", UserID: "user-1", FirstName: "Asha", Department: "Sales",
	}).Exec(context.Background()); err != nil {
		t.Fatal(err)
	}
	addCheckIn(t, as, "user-1", "4", "2", true)
	addCheckIn(t, as, "user-2", "2", "5", true)
	addCheckIn(t, as, "user-3", "3", "", false)

	list := listCheckIns(t, do, "/check-ins?per_page=2")
	if list.Total != 3 || len(list.CheckIns) != 2 || list.Pages != 2 || list.PerPage != 2 {
		t.Fatalf("list = %+v", list)
	}

	list = listCheckIns(t, do, "/check-ins?department=Sales")
	if list.Total != 1 || list.CheckIns[0].Employee == nil || list.CheckIns[0].Employee.ID != "emp-1" {
		t.Fatalf("department filter = %+v", list)
	}
	checkInID := list.CheckIns[0].ID

	list = listCheckIns(t, do, "/check-ins?completed=false")
	if list.Total != 1 || list.CheckIns[0].UserID != "user-3" {
		t.Fatalf("completed filter = %+v", list)
	}

	if w := do(http.MethodGet, "/check-ins?completed=maybe", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad bool: status %d", w.Code)
	}
	if w := do(http.MethodGet, "/check-ins?page=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad page: status %d", w.Code)
	}

	today := time.Now().UTC().Format(time.DateOnly)
	list = listCheckIns(t, do, "/check-ins?start="+today+"&end="+today)
	if list.Total != 3 {
		t.Errorf("today's check-ins = %d", list.Total)
	}

	var stats struct {
		TotalCheckIns      int            `json:"total_check_ins"`
		AvgMood            float64        `json:"avg_mood"`
		AvgStress          float64        `json:"avg_stress"`
		MoodDistribution   map[string]int `json:"mood_distribution"`
		StressDistribution map[string]int `json:"stress_distribution"`
	}
	w := do(http.MethodGet, "/check-ins/statistics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("statistics: status %d", w.Code)
	}
	decodeJSON(t, w, &stats)
	if stats.TotalCheckIns != 2 || stats.AvgMood != 3 || stats.AvgStress != 3.5 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.MoodDistribution["4"] != 1 || stats.MoodDistribution["2"] != 1 || stats.StressDistribution["5"] != 1 {
		t.Errorf("distributions = %+v", stats)
	}

	var checkInModel model.CheckIn
	w = do(http.MethodPut, "/check-ins/"+checkInID+"/follow-up", `{"follow_up_required":true,"follow_up_notes":"call on monday"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("follow-up: status %d: %s", w.Code, w.Body.String())
	}
	decodeJSON(t, w, &checkInModel)
	if !checkInModel.FollowUpRequired || checkInModel.FollowUpNotes != "call on monday" {
		t.Fatalf("follow-up = %+v", checkInModel)
	}

	w = do(http.MethodGet, "/check-ins/"+checkInID, "")
	decodeJSON(t, w, &checkInModel)
	if checkInModel.ID != checkInID || !checkInModel.FollowUpRequired || !checkInModel.IsCompleted {
		t.Fatalf("get = %+v", checkInModel)
	}

	list = listCheckIns(t, do, "/check-ins?follow_up_required=true")
	if list.Total != 1 {
		t.Errorf("follow-up filter = %d", list.Total)
	}

	if w := do(http.MethodGet, "/check-ins/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("get missing: status %d", w.Code)
	}
	if w := do(http.MethodPut, "/check-ins/missing/follow-up", `{"follow_up_required":true}`); w.Code != http.StatusNotFound {
		t.Errorf("follow-up missing: status %d", w.Code)
	}
	if w := do(http.MethodPut, "/check-ins/"+checkInID+"/follow-up", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status %d", w.Code)
	}
}
