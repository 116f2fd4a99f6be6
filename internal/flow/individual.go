package flow

import (
	"strings"

	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/naming"
	"github.com/inmodocs/inmodocs-bot/internal/session"
)

// Individual advances a single-file upload session by one event. Mirrors
// the bulk machine without the collection, duplicate, and replace phases.
func Individual(s *session.IndividualSession, ev Event) []Effect {
	if cb, ok := ev.(CallbackEvent); ok && cb.Data == CBCancel {
		return []Effect{Cancel{Notify: true}}
	}

	switch s.State {
	case session.IndWaitingProperty:
		return indProperty(s, ev)
	case session.IndWaitingCategory:
		return indCategory(s, ev)
	case session.IndWaitingYear:
		return indYear(s, ev)
	case session.IndWaitingCustomYear:
		return indCustomYear(s, ev)
	case session.IndWaitingFilename:
		return indFilename(s, ev)
	default:
		return []Effect{Reply{Text: "Estado de sesión desconocido. Usa /cancel y vuelve a empezar."}}
	}
}

func indProperty(s *session.IndividualSession, ev Event) []Effect {
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
	s.State = session.IndWaitingCategory
	return []Effect{Reply{Text: "🗂 ¿En qué categoría va este archivo?", Buttons: CategoryButtons()}}
}

func indCategory(s *session.IndividualSession, ev Event) []Effect {
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
		s.State = session.IndWaitingYear
		return []Effect{Reply{Text: "📅 ¿De qué año es?", Buttons: YearButtons()}}
	}
	return indAfterYear(s)
}

func indYear(s *session.IndividualSession, ev Event) []Effect {
	cb, ok := ev.(CallbackEvent)
	if !ok {
		return []Effect{Reply{Text: "Elige el año con los botones."}}
	}
	switch cb.Data {
	case CBYearCurrent:
		s.Year = category.CurrentYear()
		return indAfterYear(s)
	case CBYearOther:
		s.State = session.IndWaitingCustomYear
		return []Effect{Reply{Text: "✏️ Escribe el año (formato YYYY):"}}
	default:
		return []Effect{Reply{Text: "Elige el año con los botones."}}
	}
}

func indCustomYear(s *session.IndividualSession, ev Event) []Effect {
	txt, ok := ev.(TextEvent)
	if !ok {
		return []Effect{Reply{Text: "Escribe el año (formato YYYY):"}}
	}
	if err := category.ValidateYear(txt.Text); err != nil {
		return []Effect{Reply{Text: "⚠️ " + err.Error() + " Inténtalo de nuevo:"}}
	}
	s.Year = txt.Text
	return indAfterYear(s)
}

// indAfterYear prompts for a filename only when the original name is a
// placeholder; a real filename goes straight to upload.
func indAfterYear(s *session.IndividualSession) []Effect {
	if naming.NeedsUserProvidedName(s.File.FileName) {
		s.State = session.IndWaitingFilename
		return []Effect{Reply{Text: "✏️ Escribe un nombre para el archivo o responde \"skip\" para dejar el nombre automático:"}}
	}
	s.FileName = naming.ApplySnakeCaseToFileName(s.File.FileName)
	return []Effect{RunUpload{}}
}

func indFilename(s *session.IndividualSession, ev Event) []Effect {
	txt, ok := ev.(TextEvent)
	if !ok {
		return []Effect{Reply{Text: "Escribe un nombre para el archivo o responde \"skip\":"}}
	}
	base := naming.ToSnakeCase(txt.Text)
	if naming.IsSkip(txt.Text) || base == "" {
		s.FileName = s.File.FileName
	} else {
		s.FileName = base + extensionOf(s.File)
	}
	return []Effect{RunUpload{}}
}

// extensionOf returns the file's extension, falling back to the mime type.
func extensionOf(f session.BulkFile) string {
	if idx := strings.LastIndex(f.FileName, "."); idx >= 0 {
		return strings.ToLower(f.FileName[idx:])
	}
	return naming.ExtensionForMime(f.MimeType)
}
