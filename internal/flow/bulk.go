package flow

import (
	"fmt"

	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/naming"
	"github.com/inmodocs/inmodocs-bot/internal/session"
)

// BulkDoneCommand closes the collection phase of a bulk session.
const BulkDoneCommand = "/bulk_done"

// Bulk advances a bulk session by one event. The session is mutated in
// place; the returned effects must be executed in order by the caller.
// A cancel button press is honored from every state.
func Bulk(s *session.BulkSession, ev Event) []Effect {
	if cb, ok := ev.(CallbackEvent); ok && cb.Data == CBCancel {
		return []Effect{Cancel{Notify: true}}
	}

	switch s.State {
	case session.BulkCollectingFiles:
		return bulkCollecting(s, ev)
	case session.BulkWaitingProperty:
		return bulkProperty(s, ev)
	case session.BulkWaitingCategory:
		return bulkCategory(s, ev)
	case session.BulkWaitingYear:
		return bulkYear(s, ev)
	case session.BulkWaitingCustomYear:
		return bulkCustomYear(s, ev)
	case session.BulkWaitingBasename:
		return bulkBasename(s, ev)
	case session.BulkWaitingConfirmation:
		return bulkConfirmation(s, ev)
	case session.BulkCheckingDuplicates:
		return bulkDuplicates(s, ev)
	case session.BulkWaitingReplace:
		return bulkReplace(s, ev)
	default:
		return []Effect{Reply{Text: "Estado de sesión desconocido. Usa /cancel y vuelve a empezar."}}
	}
}

func bulkCollecting(s *session.BulkSession, ev Event) []Effect {
	switch e := ev.(type) {
	case FileEvent:
		s.Files = append(s.Files, e.File)
		return []Effect{Reply{Text: fmt.Sprintf("📥 Recibido (%d). Envía más archivos o termina con %s.", len(s.Files), BulkDoneCommand)}}
	case TextEvent:
		if e.Text == BulkDoneCommand {
			if len(s.Files) == 0 {
				return []Effect{Reply{Text: "Todavía no has enviado ningún archivo. Envía al menos uno antes de " + BulkDoneCommand + "."}}
			}
			s.State = session.BulkWaitingProperty
			return []Effect{ShowPropertyKeyboard{}}
		}
		return []Effect{Reply{Text: "Envía documentos, fotos o vídeos. Termina con " + BulkDoneCommand + " o cancela con /cancel."}}
	default:
		return []Effect{Reply{Text: "Envía documentos, fotos o vídeos. Termina con " + BulkDoneCommand + "."}}
	}
}

func bulkProperty(s *session.BulkSession, ev Event) []Effect {
	cb, ok := ev.(CallbackEvent)
	if !ok {
		return []Effect{Reply{Text: "Elige una propiedad con los botones."}}
	}
	i := parseProperty(cb.Data, s.PropertyOptions)
	if i < 0 {
		return []Effect{Reply{Text: "Elige una propiedad con los botones."}}
	}
	opt := s.PropertyOptions[i]
	s.SelectedProperty = opt.Normalized
	s.PropertyFolderID = opt.FolderID
	s.State = session.BulkWaitingCategory
	return []Effect{Reply{Text: "🗂 ¿En qué categoría van estos archivos?", Buttons: CategoryButtons()}}
}

func bulkCategory(s *session.BulkSession, ev Event) []Effect {
	cb, ok := ev.(CallbackEvent)
	if !ok {
		return []Effect{Reply{Text: "Elige una categoría con los botones."}}
	}
	cat, ok := parseCategory(cb.Data)
	if !ok {
		return []Effect{Reply{Text: "Elige una categoría con los botones."}}
	}
	s.Category = cat
	if cat.NeedsYear() {
		s.State = session.BulkWaitingYear
		return []Effect{Reply{Text: "📅 ¿De qué año son?", Buttons: YearButtons()}}
	}
	return bulkAfterYear(s)
}

func bulkYear(s *session.BulkSession, ev Event) []Effect {
	cb, ok := ev.(CallbackEvent)
	if !ok {
		return []Effect{Reply{Text: "Elige el año con los botones."}}
	}
	switch cb.Data {
	case CBYearCurrent:
		s.Year = category.CurrentYear()
		return bulkAfterYear(s)
	case CBYearOther:
		s.State = session.BulkWaitingCustomYear
		return []Effect{Reply{Text: "✏️ Escribe el año (formato YYYY):"}}
	default:
		return []Effect{Reply{Text: "Elige el año con los botones."}}
	}
}

func bulkCustomYear(s *session.BulkSession, ev Event) []Effect {
	txt, ok := ev.(TextEvent)
	if !ok {
		return []Effect{Reply{Text: "Escribe el año (formato YYYY):"}}
	}
	if err := category.ValidateYear(txt.Text); err != nil {
		return []Effect{Reply{Text: "⚠️ " + err.Error() + " Inténtalo de nuevo:"}}
	}
	s.Year = txt.Text
	return bulkAfterYear(s)
}

// bulkAfterYear branches to the base name prompt when any collected file
// still carries a placeholder name, otherwise straight to confirmation.
func bulkAfterYear(s *session.BulkSession) []Effect {
	for _, f := range s.Files {
		if naming.NeedsUserProvidedName(f.FileName) {
			s.State = session.BulkWaitingBasename
			return []Effect{Reply{Text: "✏️ Algunos archivos no tienen nombre. Escribe un nombre base (por ejemplo \"Estado salón\") o responde \"skip\" para dejar los nombres automáticos:"}}
		}
	}
	s.BaseName = ""
	return bulkToConfirmation(s)
}

func bulkBasename(s *session.BulkSession, ev Event) []Effect {
	txt, ok := ev.(TextEvent)
	if !ok {
		return []Effect{Reply{Text: "Escribe un nombre base o responde \"skip\":"}}
	}
	if naming.IsSkip(txt.Text) {
		s.BaseName = ""
	} else {
		s.BaseName = txt.Text
	}
	return bulkToConfirmation(s)
}

func bulkToConfirmation(s *session.BulkSession) []Effect {
	files := make([]naming.File, len(s.Files))
	for i, f := range s.Files {
		files[i] = naming.File{Name: f.FileName, Mime: f.MimeType}
	}
	s.TargetNames = naming.RenameForUpload(files, s.BaseName)
	s.State = session.BulkWaitingConfirmation

	return []Effect{Reply{
		Text:    joinLines(summaryLines(s.SelectedProperty, s.Category, s.Year, s.TargetNames)),
		Buttons: confirmButtons(),
	}}
}

func bulkConfirmation(s *session.BulkSession, ev Event) []Effect {
	cb, ok := ev.(CallbackEvent)
	if !ok || cb.Data != CBConfirm {
		return []Effect{Reply{Text: "Confirma o cancela con los botones."}}
	}
	s.State = session.BulkCheckingDuplicates
	return []Effect{RunDuplicateCheck{}}
}

func bulkDuplicates(s *session.BulkSession, ev Event) []Effect {
	dup, ok := ev.(DuplicatesEvent)
	if !ok {
		return []Effect{Reply{Text: "Comprobando duplicados, un momento…"}}
	}
	if len(dup.Existing) == 0 {
		return []Effect{RunUpload{}}
	}
	s.Duplicates = dup.Existing
	s.State = session.BulkWaitingReplace

	lines := []string{"⚠️ Estos archivos ya existen en la carpeta de destino:"}
	for _, n := range dup.Existing {
		lines = append(lines, "  • "+n)
	}
	lines = append(lines, "¿Quieres reemplazarlos?")
	return []Effect{Reply{Text: joinLines(lines), Buttons: replaceButtons()}}
}

func bulkReplace(s *session.BulkSession, ev Event) []Effect {
	cb, ok := ev.(CallbackEvent)
	if !ok {
		return []Effect{Reply{Text: "Elige una opción con los botones."}}
	}
	switch cb.Data {
	case CBReplaceYes:
		return []Effect{RunUpload{Replace: true}}
	case CBReplaceNo:
		return []Effect{Cancel{Notify: true}}
	default:
		return []Effect{Reply{Text: "Elige una opción con los botones."}}
	}
}
