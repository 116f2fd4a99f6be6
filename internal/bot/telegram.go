package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/inmodocs/inmodocs-bot/internal/flow"
)

// Command is one entry of the bot command menu.
type Command struct {
	Name        string
	Description string
}

// Messenger abstracts the outbound Telegram operations the bot needs, so
// handlers and flows can be tested against a recording fake.
type Messenger interface {
	// SendMessage sends text to a chat, optionally with an inline keyboard.
	SendMessage(chatID int64, text string, buttons [][]flow.Button) error
	// EditMessageText rewrites the text of a previously sent message.
	EditMessageText(chatID int64, messageID int, text string) error
	// AnswerCallback acknowledges an inline button press.
	AnswerCallback(callbackID, text string, alert bool) error
	// SetCommands installs the command menu for one chat, or globally when
	// chatID is zero.
	SetCommands(chatID int64, commands []Command) error
	// DownloadFile fetches the raw bytes of a Telegram file by file id.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Telegram implements Messenger over the Bot API.
type Telegram struct {
	api  *tgbotapi.BotAPI
	http *http.Client
}

// NewTelegram authenticates against the Bot API.
func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authenticated with Telegram")
	return &Telegram{
		api:  api,
		http: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// API exposes the underlying client for webhook management.
func (t *Telegram) API() *tgbotapi.BotAPI {
	return t.api
}

func inlineKeyboard(buttons [][]flow.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, len(buttons))
	for i, row := range buttons {
		r := make([]tgbotapi.InlineKeyboardButton, len(row))
		for j, b := range row {
			r[j] = tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data)
		}
		rows[i] = r
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (t *Telegram) SendMessage(chatID int64, text string, buttons [][]flow.Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = inlineKeyboard(buttons)
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) EditMessageText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := t.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (t *Telegram) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := t.api.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func (t *Telegram) SetCommands(chatID int64, commands []Command) error {
	cmds := make([]tgbotapi.BotCommand, len(commands))
	for i, c := range commands {
		cmds[i] = tgbotapi.BotCommand{Command: c.Name, Description: c.Description}
	}
	var cfg tgbotapi.SetMyCommandsConfig
	if chatID == 0 {
		cfg = tgbotapi.NewSetMyCommands(cmds...)
	} else {
		cfg = tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), cmds...)
	}
	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}
	return nil
}

// DownloadFile resolves the file path via getFile and fetches the content
// from the file endpoint.
func (t *Telegram) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}
	url := file.Link(t.api.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return data, nil
}
