package route

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"
)

type SessionCtxKeyType string

const (
	SessionCtxKey           SessionCtxKeyType = "session"
	SessionSecretCookieName string            = "session-secret"
)

// Lets the request through with a live dashboard session, stored in the context
// under SessionCtxKey.
func AuthMiddleware(as *utils.AppState, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// cookie first, bearer header for dev clients
		sessionSecret := func() string {
			sessionCookie, err := r.Cookie(SessionSecretCookieName)
			if err == nil {
				return strings.TrimSpace(sessionCookie.Value)
			}
			return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}()
		if sessionSecret == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Session secret cookie not found"))
			return
		}

		startTimer := time.Now()
		sessionModel := new(model.Session)
		if err := as.BunDB.
			NewSelect().
			Model(sessionModel).
			Where("secret = ?", sessionSecret).
			Where("purpose = ?", model.SESSION_MODEL_PURPOSE_SESSION).
			Scan(r.Context()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("Session secret not found"))
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't find session in DB"))
			slog.Error("can't find session in DB", "error", err)
			return
		}
		utils.Observe(as.MetricChans.DatabaseRead, float64(time.Since(startTimer).Microseconds()))

		if time.Unix(sessionModel.CreatedAtUnixUTC, 0).Add(SESSION_TTL).Before(time.Now()) {
			if _, err := as.BunDB.
				NewDelete().
				Model((*model.Session)(nil)).
				Where("secret = ?", sessionSecret).
				Exec(r.Context()); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Can't delete session in DB"))
				slog.Error("can't delete session in DB", "error", err)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Session expired"))
			return
		}

		ctx := context.WithValue(r.Context(), SessionCtxKey, sessionModel)
		next(w, r.WithContext(ctx))
	}
}
