package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/flow"
	"github.com/inmodocs/inmodocs-bot/internal/session"
)

// runBulkEffects executes the effects emitted by a bulk flow transition.
func (b *Bot) runBulkEffects(ctx context.Context, chatID int64, effects []flow.Effect) error {
	for _, ef := range effects {
		var err error
		switch e := ef.(type) {
		case flow.Reply:
			err = b.msg.SendMessage(chatID, e.Text, e.Buttons)
		case flow.ShowPropertyKeyboard:
			err = b.showBulkPropertyKeyboard(ctx, chatID)
		case flow.RunDuplicateCheck:
			err = b.runBulkDuplicateCheck(ctx, chatID)
		case flow.RunUpload:
			err = b.executeBulkUpload(ctx, chatID, e.Replace)
		case flow.Cancel:
			err = b.cancelSession(chatID, e.Notify)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// runIndividualEffects executes the effects emitted by an individual flow
// transition.
func (b *Bot) runIndividualEffects(ctx context.Context, chatID int64, effects []flow.Effect) error {
	for _, ef := range effects {
		var err error
		switch e := ef.(type) {
		case flow.Reply:
			err = b.msg.SendMessage(chatID, e.Text, e.Buttons)
		case flow.RunUpload:
			err = b.executeIndividualUpload(ctx, chatID)
		case flow.Cancel:
			err = b.cancelSession(chatID, e.Notify)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) cancelSession(chatID int64, notify bool) error {
	b.sessions.ClearAll(chatID)
	if err := b.msg.SetCommands(chatID, defaultCommands); err != nil {
		log.Warn().Err(err).Int64("chatId", chatID).Msg("Failed to restore command menu")
	}
	if notify {
		return b.msg.SendMessage(chatID, "❌ Operación cancelada.", nil)
	}
	return nil
}

// --- Property keyboard ---

// propertyOptions loads the active properties into keyboard options. The
// second return is the "nothing registered" message when the list is empty.
func (b *Bot) propertyOptions(ctx context.Context) ([]session.PropertyOption, string, error) {
	res, err := b.props.List(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(res.Properties) == 0 {
		return nil, res.Message + " Añade una con /add_property.", nil
	}
	opts := make([]session.PropertyOption, len(res.Properties))
	for i, p := range res.Properties {
		opts[i] = session.PropertyOption{
			Address:    p.Address,
			Normalized: p.NormalizedAddress,
			FolderID:   p.PropertyFolderID,
		}
	}
	return opts, "", nil
}

func propertyButtons(opts []session.PropertyOption) [][]flow.Button {
	rows := make([][]flow.Button, 0, len(opts)+1)
	for i, opt := range opts {
		rows = append(rows, []flow.Button{{Label: "🏠 " + opt.Address, Data: flow.PropertyCallback(i)}})
	}
	return append(rows, []flow.Button{{Label: "❌ Cancelar", Data: flow.CBCancel}})
}

func (b *Bot) showBulkPropertyKeyboard(ctx context.Context, chatID int64) error {
	opts, emptyMsg, err := b.propertyOptions(ctx)
	if err != nil {
		return err
	}
	if emptyMsg != "" {
		if err := b.cancelSession(chatID, false); err != nil {
			return err
		}
		return b.msg.SendMessage(chatID, emptyMsg, nil)
	}
	if err := b.sessions.Bulk.Update(chatID, func(s *session.BulkSession) {
		s.PropertyOptions = opts
	}); err != nil {
		return err
	}
	return b.msg.SendMessage(chatID, "🏠 ¿A qué propiedad pertenecen estos archivos?", propertyButtons(opts))
}

func (b *Bot) showIndividualPropertyKeyboard(ctx context.Context, chatID int64, s *session.IndividualSession) error {
	opts, emptyMsg, err := b.propertyOptions(ctx)
	if err != nil {
		return err
	}
	if emptyMsg != "" {
		if err := b.cancelSession(chatID, false); err != nil {
			return err
		}
		return b.msg.SendMessage(chatID, emptyMsg, nil)
	}
	s.PropertyOptions = opts
	return b.msg.SendMessage(chatID, "🏠 ¿A qué propiedad pertenece este archivo?", propertyButtons(opts))
}

// --- Duplicate check and uploads ---

func (b *Bot) categoryFolder(ctx context.Context, propertyFolderID string, cat category.Category, year string) (string, error) {
	path, err := category.FolderPath(cat, year)
	if err != nil {
		return "", err
	}
	return b.props.Drive().ResolveCategoryFolderID(ctx, propertyFolderID, path)
}

func (b *Bot) runBulkDuplicateCheck(ctx context.Context, chatID int64) error {
	s := b.sessions.Bulk.Get(chatID)
	if s == nil {
		return fmt.Errorf("duplicate check without an active bulk session for chat %d", chatID)
	}
	folderID, err := b.categoryFolder(ctx, s.PropertyFolderID, s.Category, s.Year)
	if err != nil {
		return err
	}
	existing, err := b.props.Drive().CheckMultipleFilesExist(ctx, s.TargetNames, folderID)
	if err != nil {
		return err
	}
	return b.runBulkEffects(ctx, chatID, flow.Bulk(s, flow.DuplicatesEvent{Existing: existing}))
}

// executeBulkUpload downloads every collected file from Telegram and uploads
// it to the resolved category folder. Failures are isolated per file; the
// final report enumerates successes and failures individually.
func (b *Bot) executeBulkUpload(ctx context.Context, chatID int64, replace bool) error {
	s := b.sessions.Bulk.Get(chatID)
	if s == nil {
		return fmt.Errorf("upload without an active bulk session for chat %d", chatID)
	}
	folderID, err := b.categoryFolder(ctx, s.PropertyFolderID, s.Category, s.Year)
	if err != nil {
		return err
	}

	replacing := make(map[string]bool, len(s.Duplicates))
	for _, name := range s.Duplicates {
		replacing[name] = replace
	}

	var uploaded, failed []string
	for i, f := range s.Files {
		name := s.TargetNames[i]
		if err := b.uploadOne(ctx, folderID, f, name, replacing[name]); err != nil {
			log.Error().Err(err).Str("name", name).Int64("chatId", chatID).Msg("Bulk upload item failed")
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		uploaded = append(uploaded, name)
	}

	if err := b.cancelSession(chatID, false); err != nil {
		return err
	}
	return b.msg.SendMessage(chatID, uploadReport(uploaded, failed), nil)
}

func (b *Bot) uploadOne(ctx context.Context, folderID string, f session.BulkFile, name string, replace bool) error {
	data, err := b.msg.DownloadFile(ctx, f.FileID)
	if err != nil {
		return err
	}
	if replace {
		_, err = b.props.Drive().UploadReplacing(ctx, folderID, name, f.MimeType, data)
	} else {
		_, err = b.props.Drive().UploadBuffer(ctx, folderID, name, f.MimeType, data)
	}
	return err
}

func uploadReport(uploaded, failed []string) string {
	var lines []string
	if len(uploaded) > 0 {
		lines = append(lines, fmt.Sprintf("✅ Subida completada: %d %s", len(uploaded), fileWord(len(uploaded))))
		for _, n := range uploaded {
			lines = append(lines, "  • "+n)
		}
	}
	if len(failed) > 0 {
		lines = append(lines, fmt.Sprintf("⚠️ Fallos: %d", len(failed)))
		for _, n := range failed {
			lines = append(lines, "  • "+n)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No había archivos que subir.")
	}
	return strings.Join(lines, "\n")
}

func fileWord(n int) string {
	if n == 1 {
		return "archivo"
	}
	return "archivos"
}

// executeIndividualUpload uploads the single file of an individual session.
// Any failure clears the session; the caller's catch-all reports it.
func (b *Bot) executeIndividualUpload(ctx context.Context, chatID int64) error {
	s := b.sessions.Individual.Get(chatID)
	if s == nil {
		return fmt.Errorf("upload without an active individual session for chat %d", chatID)
	}
	defer func() {
		if err := b.cancelSession(chatID, false); err != nil {
			log.Warn().Err(err).Int64("chatId", chatID).Msg("Failed to clear session after upload")
		}
	}()

	folderID, err := b.categoryFolder(ctx, s.PropertyFolderID, s.Category, s.Year)
	if err != nil {
		return err
	}
	if err := b.uploadOne(ctx, folderID, s.File, s.FileName, false); err != nil {
		return err
	}
	return b.msg.SendMessage(chatID, fmt.Sprintf("✅ %s subido a %s.", s.FileName, s.Category.Label()), nil)
}
