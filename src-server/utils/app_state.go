package utils

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"manobal/src-server/checkin"
	"manobal/src-server/model"

	"github.com/bwmarrin/discordgo"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type AppState struct {
	Config      *Config
	BunDB       *bun.DB
	DgSession   *discordgo.Session // nil when Discord is disabled
	When        *when.Parser
	MetricChans *Metric
	Natural     *Natural

	CheckInStore *checkin.BunStore
	Engine       *checkin.Engine
	Sweeper      *checkin.Sweeper
	// outbound messages, per user channel
	Senders map[model.UserChannel]Sender

	AppCloseSignalChan chan os.Signal

	startTime time.Time

	// will be send to Discord
	appCmdInfo   map[string]*discordgo.ApplicationCommand
	appCmdInfoMu sync.RWMutex
	// handling commands from Discord WSAPI
	appCmdHandler   map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) error
	appCmdHandlerMu sync.RWMutex

	gracefulShutdownChans   []*chan struct{}
	gracefulShutdownChansMu sync.Mutex
}

// Reads the env, opens the database and, when configured, the Discord session.
func NewAppState() *AppState {
	config := NewConfig()

	rawDB, err := sql.Open(sqliteshim.ShimName, config.GetDatabasePath()+"?mode=rwc")
	if err != nil {
		slog.Error("cannot open sqlite database", "error", err)
		os.Exit(1)
	}
	rawDB.SetMaxIdleConns(8)

	bunDB := bun.NewDB(rawDB, sqlitedialect.New())
	bunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))

	as := NewAppStateWith(config, bunDB)

	if token := config.GetDiscordAppToken(); token != "" {
		as.DgSession, err = discordgo.New("Bot " + token)
		if err != nil {
			slog.Error("can't create discord session", "error", err)
			os.Exit(1)
		}
		as.DgSession.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages
		discordSender := NewDiscordSender(as.DgSession)
		discordSender.Latency = as.MetricChans.DiscordSendMessage
		as.Senders[model.USER_CHANNEL_DISCORD] = discordSender
	}

	return as
}

// Wires everything that hangs off the config and the database. Discord is left
// out; NewAppState adds it when a token is configured.
func NewAppStateWith(config *Config, bunDB *bun.DB) *AppState {
	as := &AppState{
		Config:             config,
		BunDB:              bunDB,
		MetricChans:        NewMetric(),
		AppCloseSignalChan: make(chan os.Signal, 1),
		startTime:          time.Now(),
		appCmdInfo:         make(map[string]*discordgo.ApplicationCommand),
		appCmdHandler:      make(map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) error),
	}

	// date parser
	as.When = when.New(nil)
	as.When.Add(en.All...)
	as.When.Add(common.All...)

	as.Natural = InitNatural(config.GetGroqApiKey(), config.GetGroqModel())

	twilioSender := NewTwilioSender(
		config.GetTwilioAccountSID(),
		config.GetTwilioAuthToken(),
		config.GetTwilioWhatsAppNumber(),
	)
	twilioSender.Latency = as.MetricChans.TwilioSendMessage
	as.Senders = map[model.UserChannel]Sender{
		model.USER_CHANNEL_WHATSAPP: twilioSender,
	}

	as.CheckInStore = checkin.NewBunStore(bunDB, nil)
	as.Engine = checkin.NewEngine(as.CheckInStore, as.CheckInStore, nil)
	as.Engine.OnTransition = func(state model.CheckInState) {
		Observe(as.MetricChans.CheckInTransition, state)
	}
	as.Sweeper = checkin.NewSweeper(as.CheckInStore)

	return as
}

func (as *AppState) GetUptime() time.Duration {
	return time.Since(as.startTime).Round(time.Second)
}

// Splits body into WhatsApp sized chunks and sends them in order over the
// user's channel.
func (as *AppState) SendToUser(ctx context.Context, user *model.User, body string) error {
	sender, ok := as.Senders[user.Channel]
	if !ok {
		return fmt.Errorf("(*AppState).SendToUser: no sender for channel %q", user.Channel)
	}
	for _, chunk := range SplitMessage(body, MAX_MESSAGE_LENGTH) {
		if err := sender.Send(ctx, user.Address, chunk); err != nil {
			return fmt.Errorf("(*AppState).SendToUser: %w", err)
		}
	}
	return nil
}

// #region - discord commands

func (as *AppState) AddAppCmdInfo(id string, info *discordgo.ApplicationCommand) {
	as.appCmdInfoMu.Lock()
	defer as.appCmdInfoMu.Unlock()
	as.appCmdInfo[id] = info
}

func (as *AppState) IterateAppCmdInfo(fn func(k string, v *discordgo.ApplicationCommand)) {
	as.appCmdInfoMu.RLock()
	defer as.appCmdInfoMu.RUnlock()
	for k, v := range as.appCmdInfo {
		fn(k, v)
	}
}

// Drop the command definitions once Discord knows about them.
func (as *AppState) NukeAppCmdInfo() {
	as.appCmdInfoMu.Lock()
	defer as.appCmdInfoMu.Unlock()
	as.appCmdInfo = make(map[string]*discordgo.ApplicationCommand)
}

func (as *AppState) AddAppCmdHandler(id string, handler func(s *discordgo.Session, i *discordgo.InteractionCreate) error) {
	as.appCmdHandlerMu.Lock()
	defer as.appCmdHandlerMu.Unlock()
	as.appCmdHandler[id] = handler
}

func (as *AppState) GetAppCmdHandler(id string) (func(s *discordgo.Session, i *discordgo.InteractionCreate) error, bool) {
	as.appCmdHandlerMu.RLock()
	defer as.appCmdHandlerMu.RUnlock()
	handler, ok := as.appCmdHandler[id]
	return handler, ok
}

// #endregion

// #region - graceful shutdown

// The returned channel is closed by GracefulShutdown.
func (as *AppState) CreateGracefulShutdownChan() *chan struct{} {
	as.gracefulShutdownChansMu.Lock()
	defer as.gracefulShutdownChansMu.Unlock()
	ch := make(chan struct{})
	as.gracefulShutdownChans = append(as.gracefulShutdownChans, &ch)
	return &ch
}

func (as *AppState) GracefulShutdown() {
	as.gracefulShutdownChansMu.Lock()
	for _, ch := range as.gracefulShutdownChans {
		close(*ch)
	}
	as.gracefulShutdownChans = nil
	as.gracefulShutdownChansMu.Unlock()

	if as.DgSession != nil {
		if err := as.DgSession.Close(); err != nil {
			slog.Warn("can't close discord session", "error", err)
		}
	}
	if err := as.BunDB.Close(); err != nil {
		slog.Warn("can't close database", "error", err)
	}
}

// Asks main to shut the app down.
func (as *AppState) Shutdown() {
	select {
	case as.AppCloseSignalChan <- syscall.SIGTERM:
	default:
	}
}

// #endregion
