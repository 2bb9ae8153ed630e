// Package bot answers a single inbound chat message: onboarding, the daily
// message limit, the structured check-in and the free-form conversation, in
// that order. It is shared by the WhatsApp webhook and the Discord DM handler.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"manobal/src-server/checkin"
	"manobal/src-server/model"
	"manobal/src-server/utils"

	"github.com/google/uuid"
)

const (
	// exchanges of the transcript fed back to the model
	MAX_HISTORY_EXCHANGES = 10
	// quiet time after which the transcript gets a session separator
	INACTIVITY_THRESHOLD = time.Hour
	// window of the message limit
	MESSAGE_LIMIT_WINDOW = 24 * time.Hour
	ACCESS_CODE_LENGTH   = 8

	SESSION_SEPARATOR = "--- New Session ---"
)

type Route string

const (
	ROUTE_ONBOARDING   = Route("onboarding")
	ROUTE_LIMITED      = Route("limited")
	ROUTE_CHECKIN      = Route("checkin")
	ROUTE_CONVERSATION = Route("conversation")
)

// Produces the companion's reply in the free-form conversation.
type Responder interface {
	GenerateReply(ctx context.Context, history string, input string) (string, error)
}

type Reply struct {
	// sent back to the user, may be longer than one message
	Text  string
	Route Route
	// short machine readable outcome for the webhook response
	Status string
}

type Bot struct {
	as        *utils.AppState
	locks     *checkin.KeyedMutex
	now       func() time.Time
	Responder Responder
	Logger    *slog.Logger
}

var (
	departmentRegex = regexp.MustCompile(`(?i)department:\s*([^,\n]+)`)
	locationRegex   = regexp.MustCompile(`(?i)location:\s*([^,\n]+)`)
)

func New(as *utils.AppState) *Bot {
	return &Bot{
		as:        as,
		locks:     checkin.NewKeyedMutex(),
		now:       time.Now,
		Responder: as.Natural,
		Logger:    slog.Default(),
	}
}

// Overrides the clock, for tests.
func (b *Bot) WithClock(now func() time.Time) *Bot {
	b.now = now
	return b
}

// address is the phone number for WhatsApp and the user ID for Discord. The
// returned user is the sender after the message was applied.
func (b *Bot) HandleMessage(ctx context.Context, channel model.UserChannel, address string, text string) (Reply, *model.User, error) {
	text = strings.TrimSpace(text)
	key := string(channel) + ":" + address
	b.locks.Lock(key)
	defer b.locks.Unlock(key)

	user, err := b.findUser(ctx, channel, address)
	if err != nil {
		return Reply{}, nil, fmt.Errorf("(*Bot).HandleMessage: %w", err)
	}

	// registered by HR but never greeted
	if user == nil || user.AccessCode == "" {
		user, err = b.welcome(ctx, user, channel, address)
		if err != nil {
			return Reply{}, nil, fmt.Errorf("(*Bot).HandleMessage: %w", err)
		}
		return Reply{
			Text:   fmt.Sprintf(PROMPT_WELCOME, user.AccessCode),
			Route:  ROUTE_ONBOARDING,
			Status: "Welcome message sent",
		}, user, nil
	}

	if !user.IsOnboarded() {
		reply, err := b.onboard(ctx, user, text)
		if err != nil {
			return Reply{}, nil, fmt.Errorf("(*Bot).HandleMessage: %w", err)
		}
		return reply, user, nil
	}

	now := b.now().UTC()
	if b.overMessageLimit(user, now) {
		return Reply{Text: PROMPT_MESSAGE_LIMIT, Route: ROUTE_LIMITED, Status: "Message limit reached"}, user, nil
	}

	result, err := b.as.Engine.HandleResponse(ctx, user.ID, text)
	switch {
	case errors.Is(err, checkin.ErrSessionNotFound):
		b.Logger.Debug("check-in vanished mid-message, continuing as conversation", "user", user.ID)
	case err != nil:
		return Reply{}, nil, fmt.Errorf("(*Bot).HandleMessage: %w", err)
	case result.Handled():
		b.countMessage(user, now)
		if err := b.saveUser(ctx, user); err != nil {
			return Reply{}, nil, fmt.Errorf("(*Bot).HandleMessage: %w", err)
		}
		return Reply{Text: result.ResponseText, Route: ROUTE_CHECKIN, Status: "Check-in response sent"}, user, nil
	}

	reply, err := b.converse(ctx, user, text, now)
	if err != nil {
		return Reply{}, nil, fmt.Errorf("(*Bot).HandleMessage: %w", err)
	}
	return reply, user, nil
}

func (b *Bot) findUser(ctx context.Context, channel model.UserChannel, address string) (*model.User, error) {
	startTimer := time.Now()
	userModel := new(model.User)
	if err := b.as.BunDB.
		NewSelect().
		Model(userModel).
		Where("channel = ?", channel).
		Where("address = ?", address).
		Limit(1).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't find user: %w", err)
	}
	utils.Observe(b.as.MetricChans.DatabaseRead, float64(time.Since(startTimer).Microseconds()))
	return userModel, nil
}

// Nil, nil when there is no such user.
func (b *Bot) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	userModel := new(model.User)
	if err := b.as.BunDB.NewSelect().Model(userModel).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("(*Bot).FindUserByID: %w", err)
	}
	return userModel, nil
}

func (b *Bot) newUser(channel model.UserChannel, address string) *model.User {
	return &model.User{
		ID:               uuid.NewString(),
		Channel:          channel,
		Address:          address,
		CreatedAtUnixUTC: b.now().UTC().Unix(),
	}
}

// Hands out the access code, creating the user when needed.
func (b *Bot) welcome(ctx context.Context, user *model.User, channel model.UserChannel, address string) (*model.User, error) {
	if user == nil {
		user = b.newUser(channel, address)
	}
	user.AccessCode = NewAccessCode()
	if err := b.saveUser(ctx, user); err != nil {
		return nil, err
	}
	b.Logger.Info("user welcomed", "user", user.ID, "channel", channel)
	return user, nil
}

// Finds the user behind channel and address, creating one that has not talked
// to the bot yet. Used by HR to link employees before their first message.
func (b *Bot) Register(ctx context.Context, channel model.UserChannel, address string) (*model.User, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("(*Bot).Register: address is empty")
	}
	key := string(channel) + ":" + address
	b.locks.Lock(key)
	defer b.locks.Unlock(key)

	user, err := b.findUser(ctx, channel, address)
	if err != nil {
		return nil, fmt.Errorf("(*Bot).Register: %w", err)
	}
	if user != nil {
		return user, nil
	}
	user = b.newUser(channel, address)
	if err := b.saveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("(*Bot).Register: %w", err)
	}
	b.Logger.Info("user registered", "user", user.ID, "channel", channel)
	return user, nil
}

func (b *Bot) saveUser(ctx context.Context, user *model.User) error {
	startTimer := time.Now()
	if err := user.Upsert(ctx, b.as.BunDB); err != nil {
		return err
	}
	utils.Observe(b.as.MetricChans.DatabaseWrite, float64(time.Since(startTimer).Microseconds()))
	return nil
}

// Eight characters of upper case hex.
func NewAccessCode() string {
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return code[:ACCESS_CODE_LENGTH]
}

func (b *Bot) onboard(ctx context.Context, user *model.User, text string) (Reply, error) {
	reply := Reply{Route: ROUTE_ONBOARDING}

	switch {
	case !user.IsAuthenticated:
		if !strings.EqualFold(text, user.AccessCode) {
			reply.Text = fmt.Sprintf(PROMPT_WRONG_ACCESS_CODE, user.AccessCode)
			reply.Status = "Authentication failed"
			return reply, nil
		}
		user.IsAuthenticated = true
		user.AuthenticatedAtUnixUTC = b.now().UTC().Unix()
		reply.Text = PROMPT_CONSENT
		reply.Status = "User authenticated"

	case !user.ConsentGiven:
		if !strings.Contains(strings.ToLower(text), "i consent") {
			reply.Text = PROMPT_CONSENT_REMINDER
			reply.Status = "Consent reminder sent"
			return reply, nil
		}
		user.ConsentGiven = true
		reply.Text = PROMPT_PROFILE
		reply.Status = "Consent received"

	default:
		department := departmentRegex.FindStringSubmatch(text)
		location := locationRegex.FindStringSubmatch(text)
		if department == nil && location == nil {
			reply.Text = PROMPT_PROFILE_FORMAT
			reply.Status = "Format clarification sent"
			return reply, nil
		}
		if department != nil {
			user.Department = utils.CleanupString(department[1])
		}
		if location != nil {
			user.Location = utils.CleanupString(location[1])
		}
		reply.Status = "User information updated"
		if missing, format := missingProfile(user); missing != "" {
			reply.Text = fmt.Sprintf(PROMPT_PROFILE_MISSING, missing, format)
		} else {
			user.ConversationStarted = true
			reply.Text = PROMPT_READY
		}
	}

	if err := b.saveUser(ctx, user); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func missingProfile(user *model.User) (string, string) {
	var missing, format []string
	if user.Department == "" {
		missing = append(missing, "department")
		format = append(format, "Department: [Your Department]")
	}
	if user.Location == "" {
		missing = append(missing, "location")
		format = append(format, "Location: [Your Location]")
	}
	return strings.Join(missing, " and "), strings.Join(format, ", ")
}

// The counter restarts once the last message is older than MESSAGE_LIMIT_WINDOW.
func (b *Bot) overMessageLimit(user *model.User, now time.Time) bool {
	if user.LastMessageUnixUTC != 0 && now.Sub(time.Unix(user.LastMessageUnixUTC, 0)) > MESSAGE_LIMIT_WINDOW {
		user.MessageCount = 0
		return false
	}
	return user.MessageCount >= b.as.Config.GetMaxMessagesPerDay()
}

func (b *Bot) countMessage(user *model.User, now time.Time) {
	if user.LastMessageUnixUTC != 0 && now.Sub(time.Unix(user.LastMessageUnixUTC, 0)) > MESSAGE_LIMIT_WINDOW {
		user.MessageCount = 0
	}
	user.MessageCount++
	user.LastMessageUnixUTC = now.Unix()
}

func (b *Bot) converse(ctx context.Context, user *model.User, text string, now time.Time) (Reply, error) {
	history := user.ConversationHistory
	if history != "" && user.LastMessageUnixUTC != 0 &&
		now.Sub(time.Unix(user.LastMessageUnixUTC, 0)) > INACTIVITY_THRESHOLD {
		history += "\n\n" + SESSION_SEPARATOR + "\n\n"
	}

	answer, err := b.Responder.GenerateReply(ctx, RecentHistory(history, MAX_HISTORY_EXCHANGES), text)
	if err != nil {
		b.Logger.Error("can't generate reply", "user", user.ID, "error", err)
		answer = PROMPT_LLM_UNAVAILABLE
	}

	if history != "" && !strings.HasSuffix(history, "\n\n") {
		history += "\n\n"
	}
	history += "User: " + text + "\nAI: " + answer
	user.ConversationHistory = history
	b.countMessage(user, now)
	if err := b.saveUser(ctx, user); err != nil {
		return Reply{}, err
	}

	return Reply{Text: answer, Route: ROUTE_CONVERSATION, Status: "Response sent"}, nil
}

// Keeps the last max blocks of the transcript. Exchanges and session separators
// are blocks separated by a blank line.
func RecentHistory(history string, max int) string {
	if history == "" {
		return ""
	}
	exchanges := strings.Split(history, "\n\n")
	if len(exchanges) > max {
		exchanges = exchanges[len(exchanges)-max:]
	}
	return strings.Join(exchanges, "\n\n")
}
