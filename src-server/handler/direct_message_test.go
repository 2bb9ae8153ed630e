package handler

import (
	"context"
	"database/sql"
	"testing"

	"manobal/src-server/bot"
	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestAppState(t *testing.T) *utils.AppState {
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
	return utils.NewAppStateWith(utils.NewConfig(), bundb)
}

func dm(authorID string, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "dm-1",
		Author:    &discordgo.User{ID: authorID},
		Content:   content,
	}}
}

func TestIsDirectMessageForBot(t *testing.T) {
	s := &discordgo.Session{State: discordgo.NewState()}
	s.State.User = &discordgo.User{ID: "bot-self"}

	inGuild := dm("42", "hello")
	inGuild.GuildID = "guild-1"
	fromBot := dm("43", "hello")
	fromBot.Author.Bot = true
	attachmentOnly := dm("42", "")
	attachmentOnly.Attachments = []*discordgo.MessageAttachment{{ID: "a1", Filename: "photo.png"}}

	for name, tc := range map[string]struct {
		m    *discordgo.MessageCreate
		want bool
	}{
		"text":            {dm("42", "hello"), true},
		"guild":           {inGuild, false},
		"other bot":       {fromBot, false},
		"own reply":       {dm("bot-self", "hello"), false},
		"blank":           {dm("42", "  \n "), false},
		"attachment only": {attachmentOnly, false},
		"no author":       {&discordgo.MessageCreate{Message: &discordgo.Message{Content: "hi"}}, false},
	} {
		if got := isDirectMessageForBot(s, tc.m); got != tc.want {
			t.Errorf("%s: got %v, want %v", name, got, tc.want)
		}
	}
}

func TestDirectMessageIgnoresBlank(t *testing.T) {
	as := newTestAppState(t)
	handle := directMessageHandler(as, bot.New(as))

	handle(&discordgo.Session{}, dm("42", "   "))

	count, err := as.BunDB.NewSelect().Model((*model.User)(nil)).Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("a blank message created %d user(s)", count)
	}
}
