package handler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"manobal/src-server/bot"
	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/bwmarrin/discordgo"
)

// Employees on Discord talk to the bot in DMs, through the same flow as
// WhatsApp.
func DirectMessage(as *utils.AppState, b *bot.Bot) {
	as.DgSession.AddHandler(directMessageHandler(as, b))
}

// Guild messages, our own replies and messages without text (attachments,
// stickers) are not answered.
func isDirectMessageForBot(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.Message == nil || m.GuildID != "" || m.Author == nil || m.Author.Bot {
		return false
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return false
	}
	return strings.TrimSpace(m.Content) != ""
}

func directMessageHandler(as *utils.AppState, b *bot.Bot) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if !isDirectMessageForBot(s, m) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		reply, user, err := b.HandleMessage(ctx, model.USER_CHANNEL_DISCORD, m.Author.ID, m.Content)
		if err != nil {
			slog.Error("can't handle discord message", "error", err)
			if _, err := s.ChannelMessageSend(m.ChannelID, bot.PROMPT_INTERNAL_ERROR); err != nil {
				slog.Warn("directMessageHandler: can't tell the user about the failure", "error", err)
			}
			return
		}
		utils.Observe(as.MetricChans.MessageRoute, string(reply.Route))

		for _, chunk := range utils.SplitMessage(reply.Text, utils.MAX_MESSAGE_LENGTH) {
			startTimer := time.Now()
			if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
				slog.Warn("directMessageHandler: can't send reply", "user", user.ID, "error", err)
				return
			}
			utils.Observe(as.MetricChans.DiscordSendMessage, float64(time.Since(startTimer).Microseconds()))
		}
	}
}
