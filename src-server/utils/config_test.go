package utils_test

import (
	"testing"
	"time"

	"manobal/src-server/utils"
)

func TestConfigDefaults(t *testing.T) {
	setTestEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("MAX_MESSAGES_PER_DAY", "")
	t.Setenv("GROQ_MODEL", "")

	config := utils.NewConfig()
	switch {
	case config.GetPort() != "8080":
		t.Errorf("port = %q", config.GetPort())
	case config.GetDatabasePath() != "./sqlite.db":
		t.Errorf("database path = %q", config.GetDatabasePath())
	case config.GetSweepInterval() != time.Minute:
		t.Errorf("sweep interval = %s", config.GetSweepInterval())
	case config.GetMetricCollectionInterval() != 15*time.Second:
		t.Errorf("metric interval = %s", config.GetMetricCollectionInterval())
	case config.GetMaxMessagesPerDay() != 50:
		t.Errorf("max messages = %d", config.GetMaxMessagesPerDay())
	case config.GetGroqModel() == "":
		t.Error("groq model has no default")
	case config.GetTwilioWhatsAppNumber() != "+14155238886":
		t.Errorf("whatsapp number = %q", config.GetTwilioWhatsAppNumber())
	case config.GetTwilioValidateSignature():
		t.Error("signature validation should be off")
	case config.GetDiscordAppToken() != "":
		t.Error("discord should be disabled")
	case config.GetLocation() != time.UTC:
		t.Errorf("location = %s", config.GetLocation())
	}
}

func TestConfigOverrides(t *testing.T) {
	setTestEnv(t)
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("MAX_MESSAGES_PER_DAY", "5")
	t.Setenv("TIMEZONE", "Asia/Kolkata")
	t.Setenv("TWILIO_VALIDATE_SIGNATURE", "")
	t.Setenv("CHECKIN_NUDGE_RRULE", "FREQ=WEEKLY;BYDAY=MO;BYHOUR=10;BYMINUTE=0;BYSECOND=0")

	config := utils.NewConfig()
	if config.GetSweepInterval() != 30*time.Second {
		t.Errorf("sweep interval = %s", config.GetSweepInterval())
	}
	if config.GetMaxMessagesPerDay() != 5 {
		t.Errorf("max messages = %d", config.GetMaxMessagesPerDay())
	}
	if config.GetLocation().String() != "Asia/Kolkata" {
		t.Errorf("location = %s", config.GetLocation())
	}
	if !config.GetTwilioValidateSignature() {
		t.Error("signature validation should default to on")
	}
	if config.GetCheckInNudgeRRule() == "" {
		t.Error("nudge rule dropped")
	}
}
