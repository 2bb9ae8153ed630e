package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Lifetime of a temp key handed out by /login.
const TEMP_KEY_TTL = 5 * time.Minute

type SessionModelPurposeType string

const (
	// one-time key handed out by /login
	SESSION_MODEL_PURPOSE_TEMP = SessionModelPurposeType("temp")
	// for the HR dashboard to keep the session
	SESSION_MODEL_PURPOSE_SESSION = SessionModelPurposeType("session")
)

// Dashboard login session of an HR member.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	Secret           string                  `bun:"secret,pk"`                    // required
	Purpose          SessionModelPurposeType `bun:"purpose,notnull,type:varchar"` // required
	DiscordUserID    string                  `bun:"discord_user_id,notnull"`      // required
	CreatedAtUnixUTC int64                   `bun:"created_at_unix_utc,notnull"`  // required
}
