package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
)

func Ping(as *utils.AppState) {
	id := "ping"
	as.AddAppCmdHandler(id, pingHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:        id,
		Description: "Check that the bot is alive and how check-ins are going.",
	})
}

// Counts check-ins matching the query, "?" when the database can't answer.
func countCheckIns(ctx context.Context, as *utils.AppState, where func(q *bun.SelectQuery) *bun.SelectQuery) string {
	count, err := where(as.BunDB.NewSelect().Model((*model.CheckIn)(nil))).Count(ctx)
	if err != nil {
		slog.Warn("pingHandler: can't count check-ins", "error", err)
		return "?"
	}
	return strconv.Itoa(count)
}

func pingHandler(as *utils.AppState) func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		dayAgo := time.Now().Add(-24 * time.Hour).UTC().Unix()
		open := countCheckIns(ctx, as, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("is_completed = ?", false).Where("is_expired = ?", false)
		})
		completed := countCheckIns(ctx, as, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("is_completed = ?", true).Where("completed_at_unix_utc >= ?", dayAgo)
		})
		expired := countCheckIns(ctx, as, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("is_expired = ?", true).Where("created_at_unix_utc >= ?", dayAgo)
		})

		startTimer := time.Now()
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags: discordgo.MessageFlagsEphemeral,
				Embeds: []*discordgo.MessageEmbed{{
					Title: "Pong!",
					Fields: []*discordgo.MessageEmbedField{
						{Name: "Uptime", Value: as.GetUptime().String()},
						{Name: "Latency", Value: fmt.Sprintf("%dms", s.HeartbeatLatency().Milliseconds())},
						{Name: "Open check-ins", Value: open, Inline: true},
						{Name: "Completed (24h)", Value: completed, Inline: true},
						{Name: "Timed out (24h)", Value: expired, Inline: true},
					},
				}},
			},
		}); err != nil {
			slog.Warn("pingHandler: can't respond", "error", err)
		}
		utils.Observe(as.MetricChans.DiscordSendMessage, float64(time.Since(startTimer).Microseconds()))
		return nil
	}
}
