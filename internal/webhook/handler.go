// Package webhook provides the HTTP handler for Telegram webhook updates.
//
// Telegram sends a POST with a JSON Update payload and echoes the secret
// configured at setWebhook time in the X-Telegram-Bot-Api-Secret-Token
// header. The handler validates the secret, decodes the update, and hands it
// to the dispatcher.
//
// Reference: https://core.telegram.org/bots/api#setwebhook
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// maxBodySize is the maximum allowed request body size (1 MB). A single
// Telegram update stays well under this limit.
const maxBodySize = 1 << 20 // 1 MB

// SecretHeader is the header Telegram echoes the webhook secret in.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes one decoded update. Processing failures are the
// dispatcher's responsibility; the webhook only reports transport outcomes.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Handler handles Telegram webhook notifications.
type Handler struct {
	secret     string
	dispatcher UpdateHandler
}

// NewHandler creates a webhook handler. secret must match the value passed
// to setWebhook; surrounding whitespace is ignored on both sides.
func NewHandler(secret string, dispatcher UpdateHandler) *Handler {
	return &Handler{
		secret:     strings.TrimSpace(secret),
		dispatcher: dispatcher,
	}
}

// ServeHTTP accepts POSTed updates.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	got := strings.TrimSpace(r.Header.Get(SecretHeader))
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		log.Warn().Msg("Webhook request with invalid secret token")
		http.Error(w, "invalid secret token", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Webhook: failed to read body")
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return
	}

	var upd tgbotapi.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		log.Error().Err(err).Msg("Webhook: failed to decode update")
		http.Error(w, "failed to decode update", http.StatusInternalServerError)
		return
	}

	h.dispatcher.HandleUpdate(r.Context(), upd)
	w.WriteHeader(http.StatusOK)
}
