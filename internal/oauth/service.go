package oauth

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Notifier tells the originating chat how the authorization ended.
type Notifier func(chatID int64, text string) error

// Service hands out authorization links and handles the OAuth callback.
type Service struct {
	cfg    *oauth2.Config
	store  TokenStore
	secret []byte
	notify Notifier

	mu       sync.Mutex
	sessions map[int64]authSession

	now func() time.Time
}

// authSession is the one live re-auth attempt for a chat.
type authSession struct {
	state     string
	expiresAt time.Time
}

// NewService wires the flow. secret signs state tokens; it must stay stable
// for the lifetime of a link.
func NewService(cfg *oauth2.Config, store TokenStore, secret []byte, notify Notifier) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		secret:   secret,
		notify:   notify,
		sessions: make(map[int64]authSession),
		now:      time.Now,
	}
}

// AuthURL issues a fresh authorization link for the chat. A new link
// replaces any earlier one, keeping a single live re-auth session per chat.
func (s *Service) AuthURL(chatID int64) (string, error) {
	state, err := signState(s.secret, statePayload{
		ChatID:   chatID,
		Nonce:    uuid.NewString(),
		IssuedAt: s.now().Unix(),
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[chatID] = authSession{state: state, expiresAt: s.now().Add(StateTTL)}
	s.mu.Unlock()

	log.Info().Int64("chatId", chatID).Msg("OAuth re-authorization link issued")
	return s.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// consumeSession validates that state is the chat's live session and retires
// it, so a link works at most once.
func (s *Service) consumeSession(chatID int64, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return fmt.Errorf("no re-authorization session for chat %d", chatID)
	}
	if sess.state != state {
		return fmt.Errorf("state token superseded by a newer link")
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, chatID)
		return fmt.Errorf("re-authorization session expired")
	}
	delete(s.sessions, chatID)
	return nil
}

func (s *Service) tellChat(chatID int64, text string) {
	if s.notify == nil {
		return
	}
	if err := s.notify(chatID, text); err != nil {
		log.Warn().Err(err).Int64("chatId", chatID).Msg("Failed to notify chat about OAuth outcome")
	}
}

// HandleCallback processes the Google OAuth redirect.
// Google redirects the user's browser here with ?code=AUTH_CODE&state=STATE
// (success) or ?error=ERROR&state=STATE (denied).
func (s *Service) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondHTML(w, http.StatusMethodNotAllowed, "Error", "Método no permitido.")
		return
	}

	state := r.URL.Query().Get("state")

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		log.Warn().Str("error", errParam).Msg("OAuth authorization denied by user")
		if p, err := verifyState(s.secret, state, s.now()); err == nil {
			s.tellChat(p.ChatID, "❌ Autorización de Google cancelada.")
		}
		respondHTML(w, http.StatusOK, "Autorización cancelada",
			"Has cancelado la autorización. Puedes cerrar esta ventana.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Error().Msg("OAuth callback received without code or error parameter")
		respondHTML(w, http.StatusBadRequest, "Error", "Falta el código de autorización.")
		return
	}

	p, err := verifyState(s.secret, state, s.now())
	if err != nil {
		log.Warn().Err(err).Msg("OAuth callback with invalid state token")
		respondHTML(w, http.StatusForbidden, "Enlace no válido",
			"El enlace de autorización no es válido o ha caducado. Pide uno nuevo con /google_login.")
		return
	}
	if err := s.consumeSession(p.ChatID, state); err != nil {
		log.Warn().Err(err).Int64("chatId", p.ChatID).Msg("OAuth callback rejected")
		respondHTML(w, http.StatusForbidden, "Enlace no válido",
			"El enlace de autorización ya no está activo. Pide uno nuevo con /google_login.")
		return
	}

	ctx := r.Context()
	tok, err := s.cfg.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		s.tellChat(p.ChatID, "⚠️ No se pudo completar la autorización de Google. Inténtalo de nuevo con /google_login.")
		respondHTML(w, http.StatusBadGateway, "Error de autorización",
			"No se pudo intercambiar el código de autorización. Inténtalo de nuevo.")
		return
	}

	if err := s.store.Save(ctx, tok); err != nil {
		log.Error().Err(err).Msg("Failed to persist OAuth token")
		s.tellChat(p.ChatID, "⚠️ La autorización se completó pero el token no se pudo guardar.")
		respondHTML(w, http.StatusInternalServerError, "Error de almacenamiento",
			"Se obtuvo el token pero no se pudo guardar. Revisa los logs del servidor.")
		return
	}

	log.Info().Int64("chatId", p.ChatID).Msg("OAuth token refreshed and stored")
	s.tellChat(p.ChatID, "✅ Google Drive autorizado de nuevo.")
	respondHTML(w, http.StatusOK, "Autorización completada",
		"Google Drive queda autorizado. Puedes cerrar esta ventana y volver al chat.")
}

// respondHTML writes a minimal HTML page with the given title and message.
func respondHTML(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; max-width: 600px; margin: 80px auto; padding: 0 20px; text-align: center; color: #1a1a1a; }
    h1 { font-size: 1.5rem; margin-bottom: 1rem; }
    p { font-size: 1rem; line-height: 1.6; color: #444; }
  </style>
</head>
<body>
  <h1>%s</h1>
  <p>%s</p>
</body>
</html>`, title, title, message)
}
