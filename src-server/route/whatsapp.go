package route

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"manobal/src-server/bot"
	"manobal/src-server/model"
	"manobal/src-server/twiliosig"
	"manobal/src-server/utils"
)

type webhookRespBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeWebhookResp(w http.ResponseWriter, statusCode int, status string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(webhookRespBody{Status: status, Message: message}); err != nil {
		slog.Warn("can't encode webhook response", "error", err)
	}
}

// Twilio posts every inbound WhatsApp message here.
func WhatsApp(muxer *http.ServeMux, as *utils.AppState, b *bot.Bot) {
	muxer.HandleFunc("POST /bot", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeWebhookResp(w, http.StatusBadRequest, "error", "Invalid form body")
			return
		}

		if as.Config.GetTwilioValidateSignature() {
			if err := twiliosig.Validate(
				webhookURL(as, r),
				r.PostForm,
				r.Header.Get(twiliosig.HEADER),
				as.Config.GetTwilioAuthToken(),
			); err != nil {
				slog.Warn("rejected webhook request", "error", err)
				writeWebhookResp(w, http.StatusForbidden, "error", "Invalid signature")
				return
			}
		}

		incomingMsg := strings.TrimSpace(r.PostForm.Get("Body"))
		sender := strings.TrimPrefix(strings.TrimSpace(r.PostForm.Get("From")), "whatsapp:")
		if incomingMsg == "" || sender == "" {
			writeWebhookResp(w, http.StatusBadRequest, "error", "Missing required parameters")
			return
		}

		reply, user, err := b.HandleMessage(r.Context(), model.USER_CHANNEL_WHATSAPP, sender, incomingMsg)
		if err != nil {
			slog.Error("can't handle whatsapp message", "error", err)
			if err := as.Senders[model.USER_CHANNEL_WHATSAPP].Send(r.Context(), sender, bot.PROMPT_INTERNAL_ERROR); err != nil {
				slog.Warn("can't tell the user about the failure", "error", err)
			}
			writeWebhookResp(w, http.StatusInternalServerError, "error", "Can't process message")
			return
		}
		utils.Observe(as.MetricChans.MessageRoute, string(reply.Route))

		if err := as.SendToUser(r.Context(), user, reply.Text); err != nil {
			slog.Error("can't send whatsapp reply", "user", user.ID, "error", err)
			writeWebhookResp(w, http.StatusBadGateway, "error", "Can't send reply")
			return
		}

		writeWebhookResp(w, http.StatusOK, "success", reply.Status)
	})
}

// The URL Twilio signed: PUBLIC_WEBHOOK_URL when set, else rebuilt from the
// request.
func webhookURL(as *utils.AppState, r *http.Request) string {
	if publicURL := as.Config.GetPublicWebhookURL(); publicURL != "" {
		return publicURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
