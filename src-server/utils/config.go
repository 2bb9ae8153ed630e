package utils

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xyedo/rrule"
)

type Config struct {
	port         string
	databasePath string
	dev          bool

	location *time.Location

	groqApiKey string
	groqModel  string

	twilioAccountSID        string
	twilioAuthToken         string
	twilioWhatsAppNumber    string
	twilioValidateSignature bool
	publicWebhookURL        string

	discordAppToken string
	discordClientId string
	discordGuildID  string

	sweepInterval            time.Duration
	checkInNudgeRRule        string
	metricCollectionInterval time.Duration
	maxMessagesPerDay        int
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),
		databasePath: func() string {
			databasePath := os.Getenv("DATABASE_PATH")
			if databasePath == "" {
				databasePath = "./sqlite.db"
			}
			slog.Debug("env", "DATABASE_PATH", databasePath)
			return databasePath
		}(),
		dev: func() bool {
			dev := strings.ToLower(os.Getenv("DEV")) == "true"
			slog.Debug("env", "DEV", dev)
			return dev
		}(),

		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			var loc *time.Location
			var err error
			switch timezoneStr {
			case "":
				slog.Warn("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				loc = time.Local
			case "UTC":
				loc = time.UTC
			default:
				loc, err = time.LoadLocation(timezoneStr)
				if err != nil {
					slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
					os.Exit(1)
				}
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),

		groqApiKey: func() string {
			groqApiKey := os.Getenv("GROQ_API_KEY")
			if groqApiKey == "" {
				slog.Error("GROQ_API_KEY is not set")
				os.Exit(1)
			}
			slog.Debug("env", "GROQ_API_KEY", redact(groqApiKey))
			return groqApiKey
		}(),
		groqModel: func() string {
			groqModel := os.Getenv("GROQ_MODEL")
			if groqModel == "" {
				groqModel = "llama3-8b-8192"
			}
			slog.Debug("env", "GROQ_MODEL", groqModel)
			return groqModel
		}(),

		twilioAccountSID: func() string {
			sid := os.Getenv("TWILIO_ACCOUNT_SID")
			if sid == "" {
				slog.Error("TWILIO_ACCOUNT_SID is not set")
				os.Exit(1)
			}
			slog.Debug("env", "TWILIO_ACCOUNT_SID", sid)
			return sid
		}(),
		twilioAuthToken: func() string {
			token := os.Getenv("TWILIO_AUTH_TOKEN")
			if token == "" {
				slog.Error("TWILIO_AUTH_TOKEN is not set")
				os.Exit(1)
			}
			slog.Debug("env", "TWILIO_AUTH_TOKEN", redact(token))
			return token
		}(),
		twilioWhatsAppNumber: func() string {
			number := os.Getenv("TWILIO_WHATSAPP_NUMBER")
			if number == "" {
				slog.Error("TWILIO_WHATSAPP_NUMBER is not set")
				os.Exit(1)
			}
			slog.Debug("env", "TWILIO_WHATSAPP_NUMBER", number)
			return strings.TrimPrefix(number, "whatsapp:")
		}(),
		twilioValidateSignature: func() bool {
			validate := strings.ToLower(os.Getenv("TWILIO_VALIDATE_SIGNATURE")) != "false"
			slog.Debug("env", "TWILIO_VALIDATE_SIGNATURE", validate)
			return validate
		}(),
		publicWebhookURL: func() string {
			webhookURL := os.Getenv("PUBLIC_WEBHOOK_URL")
			if webhookURL == "" {
				slog.Warn("PUBLIC_WEBHOOK_URL is not set, signatures are checked against the request URL")
			}
			slog.Debug("env", "PUBLIC_WEBHOOK_URL", webhookURL)
			return webhookURL
		}(),

		discordAppToken: func() string {
			discordAppToken := os.Getenv("DISCORD_APP_TOKEN")
			if discordAppToken == "" {
				slog.Warn("DISCORD_APP_TOKEN is not set, Discord is disabled")
				return ""
			}
			slog.Debug("env", "DISCORD_APP_TOKEN", redact(discordAppToken))
			return discordAppToken
		}(),
		discordClientId: func() string {
			discordClientId := os.Getenv("DISCORD_CLIENT_ID")
			if discordClientId == "" && os.Getenv("DISCORD_APP_TOKEN") != "" {
				slog.Error("DISCORD_CLIENT_ID is not set")
				os.Exit(1)
			}
			slog.Debug("env", "DISCORD_CLIENT_ID", discordClientId)
			return discordClientId
		}(),
		discordGuildID: func() string {
			discordGuildID := os.Getenv("DISCORD_GUILD_ID")
			if discordGuildID == "" && os.Getenv("DISCORD_APP_TOKEN") != "" {
				slog.Error("DISCORD_GUILD_ID is not set")
				os.Exit(1)
			}
			slog.Debug("env", "DISCORD_GUILD_ID", discordGuildID)
			return discordGuildID
		}(),

		sweepInterval: durationEnv("SWEEP_INTERVAL", time.Minute),
		checkInNudgeRRule: func() string {
			rule := os.Getenv("CHECKIN_NUDGE_RRULE")
			if rule == "" {
				return ""
			}
			if _, err := rrule.StrToRRule(rule); err != nil {
				slog.Error("invalid CHECKIN_NUDGE_RRULE", "rrule", rule, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "CHECKIN_NUDGE_RRULE", rule)
			return rule
		}(),
		metricCollectionInterval: durationEnv("METRIC_COLLECTION_INTERVAL", 15*time.Second),
		maxMessagesPerDay: func() int {
			raw := os.Getenv("MAX_MESSAGES_PER_DAY")
			if raw == "" {
				return 50
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				slog.Error("invalid MAX_MESSAGES_PER_DAY", "value", raw, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "MAX_MESSAGES_PER_DAY", n)
			return n
		}(),
	}
}

func durationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		slog.Debug("env", name, def)
		return def
	}
	duration, err := time.ParseDuration(raw)
	if err != nil || duration <= 0 {
		slog.Error("invalid duration", "env", name, "value", raw, "error", err)
		os.Exit(1)
	}
	slog.Debug("env", name, duration)
	return duration
}

func redact(secret string) string {
	if len(secret) <= 3 {
		return "..."
	}
	return secret[0:3] + "..."
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get DATABASE_PATH env, default to ./sqlite.db
func (c *Config) GetDatabasePath() string {
	return c.databasePath
}

// Get DEV env
func (c *Config) GetDev() bool {
	return c.dev
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// Get GROQ_API_KEY env
func (c *Config) GetGroqApiKey() string {
	return c.groqApiKey
}

// Get GROQ_MODEL env
func (c *Config) GetGroqModel() string {
	return c.groqModel
}

// Get TWILIO_ACCOUNT_SID env
func (c *Config) GetTwilioAccountSID() string {
	return c.twilioAccountSID
}

// Get TWILIO_AUTH_TOKEN env
func (c *Config) GetTwilioAuthToken() string {
	return c.twilioAuthToken
}

// Get TWILIO_WHATSAPP_NUMBER env, without the whatsapp: prefix
func (c *Config) GetTwilioWhatsAppNumber() string {
	return c.twilioWhatsAppNumber
}

// Get TWILIO_VALIDATE_SIGNATURE env, default to true
func (c *Config) GetTwilioValidateSignature() bool {
	return c.twilioValidateSignature
}

// Get PUBLIC_WEBHOOK_URL env
func (c *Config) GetPublicWebhookURL() string {
	return c.publicWebhookURL
}

// Get DISCORD_APP_TOKEN env, empty when Discord is disabled
func (c *Config) GetDiscordAppToken() string {
	return c.discordAppToken
}

// Get DISCORD_CLIENT_ID env
func (c *Config) GetDiscordClientId() string {
	return c.discordClientId
}

// Get DISCORD_GUILD_ID env
func (c *Config) GetDiscordGuildID() string {
	return c.discordGuildID
}

// Get SWEEP_INTERVAL env, default to 1m
func (c *Config) GetSweepInterval() time.Duration {
	return c.sweepInterval
}

// Get CHECKIN_NUDGE_RRULE env, empty when nudges are off
func (c *Config) GetCheckInNudgeRRule() string {
	return c.checkInNudgeRRule
}

// Get METRIC_COLLECTION_INTERVAL env, default to 15s
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}

// Get MAX_MESSAGES_PER_DAY env, default to 50
func (c *Config) GetMaxMessagesPerDay() int {
	return c.maxMessagesPerDay
}
