package route_test

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"testing"

	"manobal/src-server/bot"
	"manobal/src-server/model"
	"manobal/src-server/route"
	"manobal/src-server/utils"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (r *recordingSender) Send(ctx context.Context, to string, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[to] = append(r.sent[to], body)
	return nil
}

type echoResponder struct{}

func (echoResponder) GenerateReply(ctx context.Context, history string, input string) (string, error) {
	return "echo " + input, nil
}

// Full HTTP surface on an in-memory database. WhatsApp delivery is recorded.
func newTestServer(t *testing.T, env map[string]string) (*http.ServeMux, *utils.AppState, *recordingSender) {
	t.Helper()
	for k, v := range map[string]string{
		"TIMEZONE":                  "UTC",
		"GROQ_API_KEY":              "gsk_test",
		"TWILIO_ACCOUNT_SID":        "AC123",
		"TWILIO_AUTH_TOKEN":         "token",
		"TWILIO_WHATSAPP_NUMBER":    "+14155238886",
		"TWILIO_VALIDATE_SIGNATURE": "false",
		"PUBLIC_WEBHOOK_URL":        "",
		"DISCORD_APP_TOKEN":         "",
		"CHECKIN_NUDGE_RRULE":       "",
		"DEV":                       "",
	} {
		t.Setenv(k, v)
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

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

	as := utils.NewAppStateWith(utils.NewConfig(), bundb)
	recorder := &recordingSender{sent: make(map[string][]string)}
	as.Senders[model.USER_CHANNEL_WHATSAPP] = recorder

	b := bot.New(as)
	b.Responder = echoResponder{}

	muxer := http.NewServeMux()
	route.WhatsApp(muxer, as, b)
	route.Auth(muxer, as)
	route.CheckIn(muxer, as)
	route.Employee(muxer, as, b)
	return muxer, as, recorder
}
