package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const TWILIO_API_BASE_URL = "https://api.twilio.com"

// WhatsApp caps a message body at this many characters.
const MAX_MESSAGE_LENGTH = 1600

// Delivers a single message to an address on one channel.
type Sender interface {
	Send(ctx context.Context, to string, body string) error
}

// Sends WhatsApp messages through the Twilio Messages REST resource.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string

	BaseURL string
	Latency chan float64
}

func NewTwilioSender(accountSID string, authToken string, from string) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       strings.TrimPrefix(from, "whatsapp:"),
		BaseURL:    TWILIO_API_BASE_URL,
	}
}

// to is a phone number, with or without the whatsapp: prefix.
func (t *TwilioSender) Send(ctx context.Context, to string, body string) error {
	form := url.Values{}
	form.Set("From", "whatsapp:"+t.from)
	form.Set("To", "whatsapp:"+strings.TrimPrefix(to, "whatsapp:"))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.BaseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("(*TwilioSender).Send: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	startTimer := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("(*TwilioSender).Send: failed to do request: %w", err)
	}
	defer resp.Body.Close()
	Observe(t.Latency, float64(time.Since(startTimer).Microseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("(*TwilioSender).Send: bad status code %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// Sends Discord direct messages. The address is the Discord user ID.
type DiscordSender struct {
	session *discordgo.Session
	Latency chan float64
}

func NewDiscordSender(session *discordgo.Session) *DiscordSender {
	return &DiscordSender{session: session}
}

func (d *DiscordSender) Send(ctx context.Context, to string, body string) error {
	startTimer := time.Now()
	channel, err := d.session.UserChannelCreate(to, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("(*DiscordSender).Send: can't open DM channel: %w", err)
	}
	if _, err := d.session.ChannelMessageSend(channel.ID, body, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("(*DiscordSender).Send: %w", err)
	}
	Observe(d.Latency, float64(time.Since(startTimer).Microseconds()))
	return nil
}

// Cuts msg into pieces of at most limit characters, preferring to break on a
// newline or a space. An empty msg yields no pieces.
func SplitMessage(msg string, limit int) []string {
	runes := []rune(msg)
	if limit <= 0 || len(runes) <= limit {
		if strings.TrimSpace(msg) == "" {
			return nil
		}
		return []string{msg}
	}

	chunks := make([]string, 0, len(runes)/limit+1)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i] == '\n' || runes[i] == ' ' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), " \n"))
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == '\n' || runes[0] == ' ') {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
