package metric

import (
	"context"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"
)

func database(as *utils.AppState) (time.Duration, error) {
	start := time.Now()
	if _, err := as.BunDB.NewSelect().
		Model((*model.CheckIn)(nil)).
		Where("user_id = ?", "").
		Exists(context.Background()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
