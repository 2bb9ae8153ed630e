package route_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/route"
	"manobal/src-server/utils"
)

func addTempKey(t *testing.T, as *utils.AppState, key string, createdAt time.Time) {
	t.Helper()
	if _, err := as.BunDB.NewInsert().Model(&model.Session{
		Secret:           key,
		Purpose:          model.SESSION_MODEL_PURPOSE_TEMP,
		DiscordUserID:    "hr-1",
		CreatedAtUnixUTC: createdAt.UTC().Unix(),
	}).Exec(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func login(muxer *http.ServeMux, tempKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"tempKey":"`+tempKey+`"}`))
	w := httptest.NewRecorder()
	muxer.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == route.SessionSecretCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in %v", route.SessionSecretCookieName, w.Result().Cookies())
	return nil
}

func TestAuth(t *testing.T) {
	muxer, as, _ := newTestServer(t, nil)
	addTempKey(t, as, "temp-1", time.Now())

	w := login(muxer, "temp-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	cookie := sessionCookie(t, w)

	req := httptest.NewRequest(http.MethodGet, "/check-ins", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	muxer.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated list: status %d", w.Code)
	}

	// temp keys are one-time
	if w := login(muxer, "temp-1"); w.Code != http.StatusUnauthorized {
		t.Fatalf("reused temp key: status %d", w.Code)
	}

	// logout
	req = httptest.NewRequest(http.MethodDelete, "/auth", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	muxer.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/check-ins", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	muxer.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: status %d", w.Code)
	}
}

func TestAuthRejected(t *testing.T) {
	muxer, as, _ := newTestServer(t, nil)
	addTempKey(t, as, "stale", time.Now().Add(-model.TEMP_KEY_TTL-time.Minute))

	for key, want := range map[string]int{
		"stale":   http.StatusUnauthorized,
		"unknown": http.StatusUnauthorized,
		"":        http.StatusBadRequest,
	} {
		if w := login(muxer, key); w.Code != want {
			t.Errorf("%q: status %d, want %d", key, w.Code, want)
		}
	}

	w := httptest.NewRecorder()
	muxer.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/check-ins/statistics", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no session: status %d", w.Code)
	}
}

func TestAuthDevBearer(t *testing.T) {
	muxer, as, _ := newTestServer(t, map[string]string{"DEV": "true"})
	addTempKey(t, as, "temp-dev", time.Now())

	w := login(muxer, "temp-dev")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		SessionSecret string `json:"sessionSecret"`
	}
	decodeJSON(t, w, &body)
	if body.SessionSecret == "" {
		t.Fatal("no session secret in dev login response")
	}

	req := httptest.NewRequest(http.MethodGet, "/check-ins", nil)
	req.Header.Set("Authorization", "Bearer "+body.SessionSecret)
	w = httptest.NewRecorder()
	muxer.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer: status %d", w.Code)
	}
}
