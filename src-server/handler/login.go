package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

func Login(as *utils.AppState) {
	id := "login"
	// HR staff only, server managers by default
	permission := int64(discordgo.PermissionManageServer)
	as.AddAppCmdHandler(id, loginHandler(as))
	as.AddAppCmdInfo(id, &discordgo.ApplicationCommand{
		Name:                     id,
		Description:              "Get a one-time key to log in to the HR check-in dashboard",
		DefaultMemberPermissions: &permission,
	})
}

func loginHandler(as *utils.AppState) func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		reply := func(msg string) {
			if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg}); err != nil {
				slog.Warn("loginHandler: can't edit response", "error", err)
			}
		}

		startTimer := time.Now()
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}); err != nil {
			slog.Warn("loginHandler: can't defer response", "error", err)
			return nil
		}
		utils.Observe(as.MetricChans.DiscordSendMessage, float64(time.Since(startTimer).Microseconds()))

		// keys are tied to a guild member, DMs can't log in
		if i.Member == nil || i.Member.User == nil {
			reply("This command only works inside the server.")
			return nil
		}

		tempKey := &model.Session{
			Secret:           uuid.NewString(),
			Purpose:          model.SESSION_MODEL_PURPOSE_TEMP,
			DiscordUserID:    i.Member.User.ID,
			CreatedAtUnixUTC: time.Now().UTC().Unix(),
		}
		startTimer = time.Now()
		if _, err := as.BunDB.NewInsert().Model(tempKey).Exec(context.Background()); err != nil {
			reply("Can't create a login key, please try again.")
			return fmt.Errorf("loginHandler: can't insert temp key: %w", err)
		}
		utils.Observe(as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))

		slog.Info("login key issued", "discord_user", tempKey.DiscordUserID)
		reply(fmt.Sprintf("Your dashboard key, valid for %s:\n```%s```", model.TEMP_KEY_TTL, tempKey.Secret))
		return nil
	}
}
