package bot_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"manobal/src-server/bot"
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

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Answers "reply N" and remembers what it was given.
type fakeResponder struct {
	mu        sync.Mutex
	histories []string
	inputs    []string
	fail      bool
}

func (f *fakeResponder) GenerateReply(ctx context.Context, history string, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("model unavailable")
	}
	f.histories = append(f.histories, history)
	f.inputs = append(f.inputs, input)
	return "reply " + input, nil
}

func newTestBot(t *testing.T, env map[string]string) (*bot.Bot, *utils.AppState, *fakeClock, *fakeResponder) {
	t.Helper()
	for k, v := range map[string]string{
		"TIMEZONE":               "UTC",
		"GROQ_API_KEY":           "gsk_test",
		"TWILIO_ACCOUNT_SID":     "AC123",
		"TWILIO_AUTH_TOKEN":      "token",
		"TWILIO_WHATSAPP_NUMBER": "+14155238886",
		"DISCORD_APP_TOKEN":      "",
		"CHECKIN_NUDGE_RRULE":    "",
		"MAX_MESSAGES_PER_DAY":   "",
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
	clock := &fakeClock{now: t0}
	responder := &fakeResponder{}
	b := bot.New(as).WithClock(clock.Now)
	b.Responder = responder
	return b, as, clock, responder
}

func addOnboardedUser(t *testing.T, as *utils.AppState, phone string) *model.User {
	t.Helper()
	userModel := &model.User{
		ID:               uuid.NewString(),
		Channel:          model.USER_CHANNEL_WHATSAPP,
		Address:          phone,
		AccessCode:       "ABCD1234",
		IsAuthenticated:  true,
		ConsentGiven:     true,
		Department:       "Engineering",
		Location:         "Remote",
		CreatedAtUnixUTC: t0.Unix(),
	}
	if err := userModel.Upsert(context.Background(), as.BunDB); err != nil {
		t.Fatal(err)
	}
	return userModel
}

func findUser(t *testing.T, as *utils.AppState, phone string) *model.User {
	t.Helper()
	userModel := new(model.User)
	if err := as.BunDB.NewSelect().
		Model(userModel).
		Where("address = ?", phone).
		Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	return userModel
}
