package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"manobal/src-server/bot"
	"manobal/src-server/handler"
	"manobal/src-server/metric"
	"manobal/src-server/model"
	"manobal/src-server/route"
	"manobal/src-server/scheduler"
	"manobal/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	// The AppState carries the config, the database, the check-in engine and
	// the outbound senders; Discord is only there when a token is configured.
	as := utils.NewAppState()

	if err := model.CreateSchema(context.Background(), as.BunDB); err != nil {
		slog.Error("can't create database schema", "error", err)
		os.Exit(1)
	}

	b := bot.New(as)

	if as.DgSession != nil {
		startDiscord(as, b)
	}

	metric.Init(as)
	go scheduler.CheckInTimeout(as)
	go scheduler.CheckInNudge(as)

	// http server
	muxer := http.NewServeMux()
	muxer.Handle("GET /metrics", promhttp.Handler())
	muxer.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	route.WhatsApp(muxer, as, b)
	route.Auth(muxer, as)
	route.CheckIn(muxer, as)
	route.Employee(muxer, as, b)
	server := &http.Server{
		Addr:              ":" + as.Config.GetPort(),
		Handler:           muxer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("cannot start HTTP server", "error", err)
			as.Shutdown()
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan

	slog.Info("Gracefully shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("can't shut the HTTP server down cleanly", "error", err)
	}
	as.GracefulShutdown()
}

func startDiscord(as *utils.AppState, b *bot.Bot) {
	// injecting interaction handlers into appCmdInfo, appCmdHandler in AppState
	handler.Ping(as)
	handler.Login(as)
	handler.DirectMessage(as, b)

	// tell discordgo how to handle slash commands (w/ appCmdHandler)
	as.DgSession.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			slog.Debug("unhandled interaction type", "type", i.Type)
			return
		}
		id := i.ApplicationCommandData().Name
		cmdHandler, ok := as.GetAppCmdHandler(id)
		if !ok {
			if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Flags:   discordgo.MessageFlagsEphemeral,
					Content: "Unknown command",
				},
			}); err != nil {
				slog.Warn("can't respond", "error", err.Error())
			}
			return
		}
		if err := cmdHandler(s, i); err != nil {
			slog.Error("handler error", "command", id, "error", err.Error())
		}
	})

	// open a connection to Discord
	if err := as.DgSession.Open(); err != nil {
		slog.Error("can't open discord connection", "error", err)
		os.Exit(1)
	}

	// tell Discord what commands we have (w/ appCmdInfo)
	if _, err := as.DgSession.ApplicationCommandBulkOverwrite(
		as.Config.GetDiscordClientId(),
		as.Config.GetDiscordGuildID(),
		func() []*discordgo.ApplicationCommand {
			var cmds []*discordgo.ApplicationCommand
			as.IterateAppCmdInfo(func(k string, v *discordgo.ApplicationCommand) {
				cmds = append(cmds, v)
			})
			return cmds
		}()); err != nil {
		slog.Error("can't create slash commands", "error", err.Error())
	}

	// cleanup appCmdInfo from memory
	as.NukeAppCmdInfo()
	runtime.GC()

	slog.Info("discord connected", "guilds", len(as.DgSession.State.Guilds))
}
