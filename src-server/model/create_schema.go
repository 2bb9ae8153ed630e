package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

// The store relies on this index to reject a second non-terminal check-in for the
// same user.
const activeCheckInIndex = `CREATE UNIQUE INDEX IF NOT EXISTS check_ins_one_active_per_user
ON check_ins (user_id) WHERE is_completed = 0 AND is_expired = 0`

func CreateSchema(ctx context.Context, db *bun.DB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*User)(nil),
			(*Employee)(nil),
			(*CheckIn)(nil),
			(*Session)(nil),
		} {
			if _, err := tx.
				NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}
		for _, stmt := range []string{
			activeCheckInIndex,
			"CREATE INDEX IF NOT EXISTS check_ins_user_id ON check_ins (user_id)",
			"CREATE INDEX IF NOT EXISTS check_ins_created_at ON check_ins (created_at_unix_utc)",
			"CREATE UNIQUE INDEX IF NOT EXISTS users_channel_address ON users (channel, address)",
			"CREATE UNIQUE INDEX IF NOT EXISTS employees_user_id ON employees (user_id) WHERE user_id <> ''",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}

	return nil
}
