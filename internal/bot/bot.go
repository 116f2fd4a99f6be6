// Package bot dispatches Telegram updates to the conversational flows and
// the stateless command handlers, and executes the effects the flows emit.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/inmodocs/inmodocs-bot/internal/flow"
	"github.com/inmodocs/inmodocs-bot/internal/property"
	"github.com/inmodocs/inmodocs-bot/internal/session"
)

// Options carries the knobs and optional collaborators the dispatcher uses.
type Options struct {
	Version    string
	Production bool

	// AuthURL builds a Google authorization link for /google_login. Nil
	// disables the command.
	AuthURL func(chatID int64) (string, error)
	// SelfTest runs the end-to-end diagnostic and returns the formatted
	// report. Nil disables /selftest.
	SelfTest func(ctx context.Context, chatID int64) string
}

// Bot is the top-level update handler.
type Bot struct {
	msg      Messenger
	sessions *session.Manager
	props    *property.Service
	allowed  map[int64]bool
	opts     Options

	startedAt time.Time
}

// New wires the dispatcher. The allowlist must be non-empty; an empty map
// would silently reject everyone.
func New(msg Messenger, sessions *session.Manager, props *property.Service, allowed map[int64]bool, opts Options) *Bot {
	return &Bot{
		msg:       msg,
		sessions:  sessions,
		props:     props,
		allowed:   allowed,
		opts:      opts,
		startedAt: time.Now(),
	}
}

const (
	rejectionText   = "⛔️ No tienes acceso a este bot."
	unknownText     = "Comando no reconocido. Usa /help para ver los comandos disponibles."
	genericFailText = "⚠️ Algo ha ido mal. Inténtalo de nuevo."
)

// HandleUpdate routes one inbound update. Handler failures are logged and
// degraded to a short generic chat message; no raw error reaches the user.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		b.guard(upd.CallbackQuery.Message.Chat.ID, func() error {
			return b.handleCallback(ctx, upd.CallbackQuery)
		})
	case upd.Message != nil:
		b.guard(upd.Message.Chat.ID, func() error {
			return b.handleMessage(ctx, upd.Message)
		})
	}
}

// guard is the catch-all boundary around every top-level handler.
func (b *Bot) guard(chatID int64, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("chatId", chatID).Msg("Handler panicked")
			b.sendFailure(chatID)
		}
	}()
	if err := fn(); err != nil {
		log.Error().Err(err).Int64("chatId", chatID).Msg("Handler failed")
		b.sendFailure(chatID)
	}
}

func (b *Bot) sendFailure(chatID int64) {
	text := genericFailText
	if !b.opts.Production {
		text = "DEV:: " + text
	}
	if err := b.msg.SendMessage(chatID, text, nil); err != nil {
		log.Error().Err(err).Int64("chatId", chatID).Msg("Failed to send failure notice")
	}
}

func (b *Bot) authorized(userID int64) bool {
	return b.allowed[userID]
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	chatID := cb.Message.Chat.ID
	if !b.authorized(cb.From.ID) {
		return b.msg.AnswerCallback(cb.ID, rejectionText, true)
	}
	if err := b.msg.AnswerCallback(cb.ID, "", false); err != nil {
		log.Warn().Err(err).Msg("Failed to answer callback")
	}

	ev := flow.CallbackEvent{Data: cb.Data}
	if s := b.sessions.Bulk.Get(chatID); s != nil {
		return b.runBulkEffects(ctx, chatID, flow.Bulk(s, ev))
	}
	if s := b.sessions.Individual.Get(chatID); s != nil {
		return b.runIndividualEffects(ctx, chatID, flow.Individual(s, ev))
	}
	return b.msg.SendMessage(chatID, "Esta acción ya no está activa.", nil)
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	chatID := m.Chat.ID
	if m.From == nil || !b.authorized(m.From.ID) {
		return b.msg.SendMessage(chatID, rejectionText, nil)
	}

	// /cancel and /bulk cut across any active session.
	if m.IsCommand() {
		switch m.Command() {
		case "cancel":
			return b.handleCancel(chatID)
		case "bulk":
			return b.handleBulkStart(chatID)
		}
	}

	file, hasFile, err := extractFile(m)
	if err != nil {
		return err
	}

	if s := b.sessions.Bulk.Get(chatID); s != nil {
		var ev flow.Event = flow.TextEvent{Text: m.Text}
		if hasFile {
			ev = flow.FileEvent{File: file}
		}
		return b.runBulkEffects(ctx, chatID, flow.Bulk(s, ev))
	}
	if s := b.sessions.Individual.Get(chatID); s != nil {
		if hasFile {
			return b.msg.SendMessage(chatID, "Termina o cancela la subida actual antes de enviar otro archivo.", nil)
		}
		return b.runIndividualEffects(ctx, chatID, flow.Individual(s, flow.TextEvent{Text: m.Text}))
	}

	// A bare file starts an individual upload.
	if hasFile {
		return b.startIndividual(ctx, chatID, file)
	}
	if m.IsCommand() {
		return b.handleCommand(ctx, m)
	}
	return b.msg.SendMessage(chatID, unknownText, nil)
}

// extractFile pulls the document, video, or photo out of a message. Photos
// arrive as a size ladder; the largest rendition is used.
func extractFile(m *tgbotapi.Message) (session.BulkFile, bool, error) {
	switch {
	case m.Document != nil:
		f, err := session.NewBulkFile(m.Document.FileID, m.Document.FileUniqueID, documentMime(m.Document), m.Document.FileName)
		return f, true, err
	case m.Video != nil:
		f, err := session.NewBulkFile(m.Video.FileID, m.Video.FileUniqueID, videoMime(m.Video), m.Video.FileName)
		return f, true, err
	case len(m.Photo) > 0:
		p := m.Photo[len(m.Photo)-1]
		f, err := session.NewBulkFile(p.FileID, p.FileUniqueID, "image/jpeg", "")
		return f, true, err
	default:
		return session.BulkFile{}, false, nil
	}
}

func documentMime(d *tgbotapi.Document) string {
	if d.MimeType != "" {
		return d.MimeType
	}
	return "application/octet-stream"
}

func videoMime(v *tgbotapi.Video) string {
	if v.MimeType != "" {
		return v.MimeType
	}
	return "video/mp4"
}

func (b *Bot) startIndividual(ctx context.Context, chatID int64, file session.BulkFile) error {
	s := b.sessions.StartIndividual(chatID, file)
	return b.showIndividualPropertyKeyboard(ctx, chatID, s)
}
