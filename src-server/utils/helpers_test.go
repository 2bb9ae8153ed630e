package utils_test

import (
	"context"
	"database/sql"
	"testing"

	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"TIMEZONE":                  "UTC",
		"GROQ_API_KEY":              "gsk_test",
		"TWILIO_ACCOUNT_SID":        "AC123",
		"TWILIO_AUTH_TOKEN":         "token",
		"TWILIO_WHATSAPP_NUMBER":    "whatsapp:+14155238886",
		"TWILIO_VALIDATE_SIGNATURE": "false",
		"DISCORD_APP_TOKEN":         "",
		"CHECKIN_NUDGE_RRULE":       "",
	} {
		t.Setenv(k, v)
	}
}

func newTestAppState(t *testing.T) *utils.AppState {
	t.Helper()
	setTestEnv(t)

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	bundb := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })
	if err := model.CreateSchema(context.Background(), bundb); err != nil {
		t.Fatal(err)
	}
	return utils.NewAppStateWith(utils.NewConfig(), bundb)
}
