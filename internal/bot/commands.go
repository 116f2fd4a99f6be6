package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/inmodocs/inmodocs-bot/internal/catalog"
	"github.com/inmodocs/inmodocs-bot/internal/flow"
	"github.com/inmodocs/inmodocs-bot/internal/property"
)

// defaultCommands is the menu outside any flow; bulkCommands replaces it
// while a bulk session is collecting files.
var defaultCommands = []Command{
	{Name: "add_property", Description: "Añadir una propiedad"},
	{Name: "list_properties", Description: "Listar propiedades"},
	{Name: "bulk", Description: "Subida múltiple de archivos"},
	{Name: "archive_property", Description: "Archivar una propiedad"},
	{Name: "list_archived", Description: "Listar propiedades archivadas"},
	{Name: "unarchive_property", Description: "Desarchivar una propiedad"},
	{Name: "delete_property", Description: "Eliminar una propiedad"},
	{Name: "cancel", Description: "Cancelar la operación actual"},
	{Name: "status", Description: "Estado del bot"},
	{Name: "help", Description: "Ayuda"},
}

var bulkCommands = []Command{
	{Name: "bulk_done", Description: "Terminar de enviar archivos"},
	{Name: "cancel", Description: "Cancelar la subida"},
}

const helpText = `📂 InmoDocs Bot

Envía un documento, foto o vídeo para subirlo a una propiedad, o usa:

/add_property <dirección> — añadir una propiedad
/list_properties — listar propiedades activas
/bulk — subir varios archivos de golpe
/archive_property <dirección> — archivar una propiedad
/list_archived — listar propiedades archivadas
/unarchive_property <dirección> — desarchivar una propiedad
/delete_property <dirección> — eliminar una propiedad y su carpeta
/cancel — cancelar la operación en curso
/status — estado del bot
/version — versión del bot`

// DefaultCommands exposes the standard menu for startup registration.
func DefaultCommands() []Command {
	return defaultCommands
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) error {
	chatID := m.Chat.ID
	arg := strings.TrimSpace(m.CommandArguments())

	switch m.Command() {
	case "start", "help":
		return b.msg.SendMessage(chatID, helpText, nil)
	case "add_property":
		return b.handleAddProperty(ctx, chatID, arg)
	case "list_properties":
		return b.handleList(ctx, chatID, false)
	case "list_archived":
		return b.handleList(ctx, chatID, true)
	case "delete_property":
		return b.handlePropertyMutation(ctx, chatID, arg, "delete_property", b.props.Delete,
			"🗑 Propiedad %q eliminada junto con su carpeta de Drive.")
	case "archive_property":
		return b.handlePropertyMutation(ctx, chatID, arg, "archive_property", b.props.Archive,
			"📦 Propiedad %q archivada.")
	case "unarchive_property":
		return b.handlePropertyMutation(ctx, chatID, arg, "unarchive_property", b.props.Unarchive,
			"📂 Propiedad %q restaurada.")
	case "bulk_done":
		return b.msg.SendMessage(chatID, "No hay una sesión de subida múltiple activa. Empieza con /bulk.", nil)
	case "selftest":
		return b.handleSelfTest(ctx, chatID)
	case "version":
		return b.msg.SendMessage(chatID, "inmodocs-bot "+b.opts.Version, nil)
	case "status":
		return b.handleStatus(chatID)
	case "google_login":
		return b.handleGoogleLogin(chatID)
	default:
		return b.msg.SendMessage(chatID, unknownText, nil)
	}
}

func (b *Bot) handleCancel(chatID int64) error {
	hadSession := b.sessions.Bulk.Get(chatID) != nil || b.sessions.Individual.Get(chatID) != nil
	if !hadSession {
		return b.msg.SendMessage(chatID, "No hay ninguna operación en curso.", nil)
	}
	return b.cancelSession(chatID, true)
}

func (b *Bot) handleBulkStart(chatID int64) error {
	b.sessions.StartBulk(chatID)
	if err := b.msg.SetCommands(chatID, bulkCommands); err != nil {
		log.Warn().Err(err).Int64("chatId", chatID).Msg("Failed to set bulk command menu")
	}
	return b.msg.SendMessage(chatID,
		"📤 Subida múltiple iniciada. Envía documentos, fotos o vídeos y termina con "+flow.BulkDoneCommand+".", nil)
}

func (b *Bot) handleAddProperty(ctx context.Context, chatID int64, arg string) error {
	if arg == "" {
		return b.msg.SendMessage(chatID, "Uso: /add_property <dirección>", nil)
	}
	res, err := b.props.Add(ctx, arg)
	if err != nil {
		return err
	}
	if !res.OK {
		return b.msg.SendMessage(chatID, res.Message, nil)
	}
	return b.msg.SendMessage(chatID,
		fmt.Sprintf("✅ Propiedad %q añadida con su estructura de carpetas.", res.Property.NormalizedAddress), nil)
}

func (b *Bot) handleList(ctx context.Context, chatID int64, archived bool) error {
	var (
		res property.ListResult
		err error
	)
	title := "🏠 Propiedades:"
	if archived {
		res, err = b.props.ListArchived(ctx)
		title = "📦 Propiedades archivadas:"
	} else {
		res, err = b.props.List(ctx)
	}
	if err != nil {
		return err
	}
	if res.Message != "" {
		return b.msg.SendMessage(chatID, res.Message, nil)
	}
	lines := []string{title}
	for _, p := range res.Properties {
		lines = append(lines, "  • "+p.Address)
	}
	return b.msg.SendMessage(chatID, strings.Join(lines, "\n"), nil)
}

// handlePropertyMutation covers delete, archive, and unarchive, which share
// the argument handling and outcome shape.
func (b *Bot) handlePropertyMutation(ctx context.Context, chatID int64, arg, command string,
	op func(context.Context, string) (property.Result, error), successFormat string) error {
	if arg == "" {
		return b.msg.SendMessage(chatID, fmt.Sprintf("Uso: /%s <dirección>", command), nil)
	}
	norm, err := catalog.NormalizeAddress(arg)
	if err != nil {
		return b.msg.SendMessage(chatID, fmt.Sprintf("Uso: /%s <dirección>", command), nil)
	}
	res, err := op(ctx, norm)
	if err != nil {
		return err
	}
	if !res.OK {
		return b.msg.SendMessage(chatID, res.Message, nil)
	}
	return b.msg.SendMessage(chatID, fmt.Sprintf(successFormat, norm), nil)
}

func (b *Bot) handleSelfTest(ctx context.Context, chatID int64) error {
	if b.opts.SelfTest == nil {
		return b.msg.SendMessage(chatID, "El self-test no está disponible.", nil)
	}
	if !b.sessions.StartSelfTest(chatID) {
		return b.msg.SendMessage(chatID, "⚠️ Ya hay un self-test en curso para este chat.", nil)
	}
	defer b.sessions.EndSelfTest(chatID)

	if err := b.msg.SendMessage(chatID, "🧪 Ejecutando self-test, esto puede tardar un poco…", nil); err != nil {
		return err
	}
	return b.msg.SendMessage(chatID, b.opts.SelfTest(ctx, chatID), nil)
}

func (b *Bot) handleStatus(chatID int64) error {
	env := "development"
	if b.opts.Production {
		env = "production"
	}
	active := "ninguna"
	switch {
	case b.sessions.Bulk.Get(chatID) != nil:
		active = "subida múltiple"
	case b.sessions.Individual.Get(chatID) != nil:
		active = "subida individual"
	}
	lines := []string{
		"🤖 inmodocs-bot " + b.opts.Version,
		"Entorno: " + env,
		"En marcha desde hace: " + time.Since(b.startedAt).Round(time.Second).String(),
		"Sesión activa: " + active,
	}
	return b.msg.SendMessage(chatID, strings.Join(lines, "\n"), nil)
}

func (b *Bot) handleGoogleLogin(chatID int64) error {
	if b.opts.AuthURL == nil {
		return b.msg.SendMessage(chatID, "La re-autorización de Google no está disponible.", nil)
	}
	url, err := b.opts.AuthURL(chatID)
	if err != nil {
		return err
	}
	return b.msg.SendMessage(chatID, "🔑 Autoriza el acceso a Google Drive con este enlace (caduca en 10 minutos):\n"+url, nil)
}
