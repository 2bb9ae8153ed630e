package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type UserChannel string

const (
	USER_CHANNEL_WHATSAPP = UserChannel("whatsapp")
	USER_CHANNEL_DISCORD  = UserChannel("discord")
)

// Someone talking to the bot, on WhatsApp or over Discord DMs.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID      string      `bun:"id,pk,notnull,unique"`
	Channel UserChannel `bun:"channel,notnull,type:varchar"`
	// phone number for whatsapp, user ID for discord
	Address string `bun:"address,notnull"`

	AccessCode             string `bun:"access_code"`
	IsAuthenticated        bool   `bun:"is_authenticated,notnull,default:false"`
	AuthenticatedAtUnixUTC int64  `bun:"authenticated_at_unix_utc,notnull,default:0"`
	ConsentGiven           bool   `bun:"consent_given,notnull,default:false"`
	Department             string `bun:"department"`
	Location               string `bun:"location"`

	ConversationStarted bool   `bun:"conversation_started,notnull,default:false"`
	ConversationHistory string `bun:"conversation_history"`
	MessageCount        int    `bun:"message_count,notnull,default:0"`
	LastMessageUnixUTC  int64  `bun:"last_message_unix_utc,notnull,default:0"`
	CreatedAtUnixUTC    int64  `bun:"created_at_unix_utc,notnull"`
}

// Onboarding is done: authenticated, consented and with department + location.
func (u *User) IsOnboarded() bool {
	return u.IsAuthenticated && u.ConsentGiven && u.Department != "" && u.Location != ""
}

func (u *User) Upsert(ctx context.Context, db bun.IDB) error {
	switch {
	case u.ID == "":
		return fmt.Errorf("(*User).Upsert: id is empty")
	case u.Address == "":
		return fmt.Errorf("(*User).Upsert: address is empty")
	}

	if _, err := db.
		NewInsert().
		Model(u).
		On("CONFLICT (id) DO UPDATE").
		Set("access_code = EXCLUDED.access_code").
		Set("is_authenticated = EXCLUDED.is_authenticated").
		Set("authenticated_at_unix_utc = EXCLUDED.authenticated_at_unix_utc").
		Set("consent_given = EXCLUDED.consent_given").
		Set("department = EXCLUDED.department").
		Set("location = EXCLUDED.location").
		Set("conversation_started = EXCLUDED.conversation_started").
		Set("conversation_history = EXCLUDED.conversation_history").
		Set("message_count = EXCLUDED.message_count").
		Set("last_message_unix_utc = EXCLUDED.last_message_unix_utc").
		Exec(ctx); err != nil {
		return fmt.Errorf("(*User).Upsert: %w", err)
	}
	return nil
}
