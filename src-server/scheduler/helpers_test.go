package scheduler_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"manobal/src-server/checkin"
	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var t0 = time.Date(2024, time.May, 25, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

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

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, bodies := range r.sent {
		n += len(bodies)
	}
	return n
}

// AppState on an in-memory database, with the check-in store on clock and
// WhatsApp delivery recorded.
func newTestAppState(t *testing.T, clock *fakeClock) (*utils.AppState, *recordingSender) {
	t.Helper()
	for k, v := range map[string]string{
		"TIMEZONE":                  "UTC",
		"GROQ_API_KEY":              "gsk_test",
		"TWILIO_ACCOUNT_SID":        "AC123",
		"TWILIO_AUTH_TOKEN":         "token",
		"TWILIO_WHATSAPP_NUMBER":    "+14155238886",
		"TWILIO_VALIDATE_SIGNATURE": "false",
		"DISCORD_APP_TOKEN":         "",
		"CHECKIN_NUDGE_RRULE":       "",
	} {
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
	as.CheckInStore = checkin.NewBunStore(bundb, clock.Now)
	as.Engine = checkin.NewEngine(as.CheckInStore, as.CheckInStore, clock.Now)
	as.Sweeper = checkin.NewSweeper(as.CheckInStore)

	recorder := &recordingSender{sent: make(map[string][]string)}
	as.Senders[model.USER_CHANNEL_WHATSAPP] = recorder
	return as, recorder
}

func addUser(t *testing.T, as *utils.AppState, phone string, onboarded bool) *model.User {
	t.Helper()
	userModel := &model.User{
		ID:               uuid.NewString(),
		Channel:          model.USER_CHANNEL_WHATSAPP,
		Address:          phone,
		IsAuthenticated:  true,
		ConsentGiven:     onboarded,
		CreatedAtUnixUTC: t0.Unix(),
	}
	if onboarded {
		userModel.Department = "Engineering"
		userModel.Location = "Remote"
	}
	if err := userModel.Upsert(context.Background(), as.BunDB); err != nil {
		t.Fatal(err)
	}
	return userModel
}
