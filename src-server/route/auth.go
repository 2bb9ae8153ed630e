package route

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// lifetime of a dashboard session
const SESSION_TTL = 7 * 24 * time.Hour

var errTempKeyRejected = errors.New("temp key rejected")

func Auth(muxer *http.ServeMux, as *utils.AppState) {
	// logout
	muxer.HandleFunc("DELETE /auth", func(w http.ResponseWriter, r *http.Request) {
		if sessionCookie, err := r.Cookie(SessionSecretCookieName); err == nil && sessionCookie.Value != "" {
			if _, err := as.BunDB.
				NewDelete().
				Model((*model.Session)(nil)).
				Where("secret = ?", sessionCookie.Value).
				Where("purpose = ?", model.SESSION_MODEL_PURPOSE_SESSION).
				Exec(r.Context()); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Can't delete session"))
				return
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionSecretCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusOK)
	})

	type AuthReqBody struct {
		TempKey string `json:"tempKey"`
	}

	// login
	muxer.HandleFunc("POST /auth", func(w http.ResponseWriter, r *http.Request) {
		var reqBody AuthReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil || reqBody.TempKey == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Invalid request body"))
			return
		}

		newSessionSecret := uuid.NewString()
		startTimer := time.Now()
		err := as.BunDB.RunInTx(r.Context(), &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			tempKeySessionModel := new(model.Session)
			if err := tx.
				NewSelect().
				Model(tempKeySessionModel).
				Where("secret = ?", reqBody.TempKey).
				Where("purpose = ?", model.SESSION_MODEL_PURPOSE_TEMP).
				Scan(ctx); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errTempKeyRejected
				}
				return fmt.Errorf("can't find temp key: %w", err)
			}

			// one-time use
			if _, err := tx.
				NewDelete().
				Model((*model.Session)(nil)).
				Where("secret = ?", reqBody.TempKey).
				Exec(ctx); err != nil {
				return fmt.Errorf("can't delete temp key: %w", err)
			}

			if time.Unix(tempKeySessionModel.CreatedAtUnixUTC, 0).Add(model.TEMP_KEY_TTL).Before(time.Now()) {
				return errTempKeyRejected
			}

			if _, err := tx.
				NewInsert().
				Model(&model.Session{
					Secret:           newSessionSecret,
					Purpose:          model.SESSION_MODEL_PURPOSE_SESSION,
					DiscordUserID:    tempKeySessionModel.DiscordUserID,
					CreatedAtUnixUTC: time.Now().UTC().Unix(),
				}).
				Exec(ctx); err != nil {
				return fmt.Errorf("can't insert session: %w", err)
			}
			return nil
		})
		switch {
		case errors.Is(err, errTempKeyRejected):
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Invalid or expired temp key"))
			return
		case err != nil:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
		utils.Observe(as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))

		if as.Config.GetDev() {
			writeJSON(w, map[string]string{"sessionSecret": newSessionSecret})
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionSecretCookieName,
			Value:    newSessionSecret,
			Path:     "/",
			MaxAge:   int(SESSION_TTL.Seconds()),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
		})
		w.WriteHeader(http.StatusOK)
	})
}
