// Package flow implements the conversational state machines for the upload
// flows. Transitions are pure with respect to I/O: they mutate the session
// record and return a list of effects for the bot layer to execute, which
// keeps the machines unit-testable without a chat platform.
package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/session"
)

// --- Events ---

// Event is an inbound stimulus: free text, an inline button press, a file
// attachment, or the result of the duplicate probe.
type Event interface{ isEvent() }

// TextEvent is a plain text message (commands included, e.g. "/bulk_done").
type TextEvent struct{ Text string }

// CallbackEvent is an inline keyboard button press.
type CallbackEvent struct{ Data string }

// FileEvent is an incoming document, photo, or video.
type FileEvent struct{ File session.BulkFile }

// DuplicatesEvent reports which target names already exist in the
// destination folder.
type DuplicatesEvent struct{ Existing []string }

func (TextEvent) isEvent()       {}
func (CallbackEvent) isEvent()   {}
func (FileEvent) isEvent()       {}
func (DuplicatesEvent) isEvent() {}

// --- Effects ---

// Effect is a side effect the bot layer must perform after a transition.
type Effect interface{ isEffect() }

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Reply sends a message, optionally with an inline keyboard.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// ShowPropertyKeyboard asks the bot to load the active property list into
// the session's PropertyOptions and prompt for a selection.
type ShowPropertyKeyboard struct{}

// RunDuplicateCheck asks the bot to probe the destination folder for the
// session's target names and feed back a DuplicatesEvent.
type RunDuplicateCheck struct{}

// RunUpload asks the bot to execute the upload and report the outcome. The
// bot clears the session when done.
type RunUpload struct{ Replace bool }

// Cancel clears the session and restores the chat's default command menu.
type Cancel struct{ Notify bool }

func (Reply) isEffect()                {}
func (ShowPropertyKeyboard) isEffect() {}
func (RunDuplicateCheck) isEffect()    {}
func (RunUpload) isEffect()            {}
func (Cancel) isEffect()               {}

// --- Callback data ---

const (
	CBCancel      = "cancel"
	cbPropPrefix  = "prop:"
	cbCatPrefix   = "cat:"
	CBYearCurrent = "year:current"
	CBYearOther   = "year:other"
	CBConfirm     = "confirm:yes"
	CBReplaceYes  = "replace:yes"
	CBReplaceNo   = "replace:no"
)

// PropertyCallback builds the callback data for the i-th property option.
func PropertyCallback(i int) string {
	return cbPropPrefix + strconv.Itoa(i)
}

// CategoryCallback builds the callback data for a category button.
func CategoryCallback(c category.Category) string {
	return cbCatPrefix + string(c)
}

// CategoryButtons renders the fixed taxonomy as a one-column keyboard with a
// trailing cancel row.
func CategoryButtons() [][]Button {
	var rows [][]Button
	for _, c := range category.All {
		rows = append(rows, []Button{{Label: c.Label(), Data: CategoryCallback(c)}})
	}
	return append(rows, cancelRow())
}

// YearButtons offers the current year and an "other year" branch.
func YearButtons() [][]Button {
	return [][]Button{
		{{Label: "📅 " + category.CurrentYear(), Data: CBYearCurrent}},
		{{Label: "✏️ Otro año", Data: CBYearOther}},
		cancelRow(),
	}
}

func cancelRow() []Button {
	return []Button{{Label: "❌ Cancelar", Data: CBCancel}}
}

func confirmButtons() [][]Button {
	return [][]Button{
		{{Label: "✅ Confirmar", Data: CBConfirm}},
		cancelRow(),
	}
}

func replaceButtons() [][]Button {
	return [][]Button{
		{{Label: "♻️ Reemplazar", Data: CBReplaceYes}},
		{{Label: "❌ No, cancelar", Data: CBReplaceNo}},
	}
}

// parseProperty resolves a "prop:<i>" callback against the options captured
// in the session. Returns a negative index when the data is not a property
// selection or out of range.
func parseProperty(data string, options []session.PropertyOption) int {
	if !strings.HasPrefix(data, cbPropPrefix) {
		return -1
	}
	i, err := strconv.Atoi(strings.TrimPrefix(data, cbPropPrefix))
	if err != nil || i < 0 || i >= len(options) {
		return -1
	}
	return i
}

func parseCategory(data string) (category.Category, bool) {
	if !strings.HasPrefix(data, cbCatPrefix) {
		return "", false
	}
	c, err := category.Parse(strings.TrimPrefix(data, cbCatPrefix))
	if err != nil {
		return "", false
	}
	return c, true
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func fileWord(n int) string {
	if n == 1 {
		return "archivo"
	}
	return "archivos"
}

func summaryLines(property string, cat category.Category, year string, names []string) []string {
	lines := []string{
		"📋 Resumen de la subida:",
		fmt.Sprintf("🏠 Propiedad: %s", property),
		fmt.Sprintf("🗂 Categoría: %s", cat.Label()),
	}
	if cat.NeedsYear() {
		lines = append(lines, fmt.Sprintf("📅 Año: %s", year))
	}
	lines = append(lines, fmt.Sprintf("📎 %d %s:", len(names), fileWord(len(names))))
	for _, n := range names {
		lines = append(lines, "  • "+n)
	}
	return lines
}
