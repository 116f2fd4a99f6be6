package flow

import (
	"strings"
	"testing"

	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/session"
)

func newBulkSession() *session.BulkSession {
	return &session.BulkSession{
		ChatID: 42,
		State:  session.BulkCollectingFiles,
	}
}

func testOptions() []session.PropertyOption {
	return []session.PropertyOption{
		{Address: "Calle Mayor 123", Normalized: "Calle Mayor 123", FolderID: "folder-mayor"},
		{Address: "Avenida América 2", Normalized: "Avenida América 2", FolderID: "folder-america"},
	}
}

func replyText(t *testing.T, effects []Effect) string {
	t.Helper()
	if len(effects) != 1 {
		t.Fatalf("expected exactly one effect, got %d: %#v", len(effects), effects)
	}
	r, ok := effects[0].(Reply)
	if !ok {
		t.Fatalf("expected Reply effect, got %T", effects[0])
	}
	return r.Text
}

func namedFile(name string) session.BulkFile {
	return session.BulkFile{
		FileID:       "fid-" + name,
		FileUniqueID: "uid-" + name,
		MimeType:     "application/pdf",
		FileName:     name,
	}
}

func placeholderPhoto(uniqueID string) session.BulkFile {
	f, err := session.NewBulkFile("fid-"+uniqueID, uniqueID, "image/jpeg", "")
	if err != nil {
		panic(err)
	}
	return f
}

// --- Collection Phase Tests ---

func TestBulkCollectsFilesAndCounts(t *testing.T) {
	s := newBulkSession()

	got := replyText(t, Bulk(s, FileEvent{File: namedFile("contrato.pdf")}))
	if !strings.Contains(got, "(1)") {
		t.Errorf("first file reply should carry count 1, got %q", got)
	}
	got = replyText(t, Bulk(s, FileEvent{File: namedFile("anexo.pdf")}))
	if !strings.Contains(got, "(2)") {
		t.Errorf("second file reply should carry count 2, got %q", got)
	}
	if len(s.Files) != 2 {
		t.Errorf("expected 2 collected files, got %d", len(s.Files))
	}
	if s.State != session.BulkCollectingFiles {
		t.Errorf("collection should not change state, got %q", s.State)
	}
}

func TestBulkDoneWithoutFilesIsRejected(t *testing.T) {
	s := newBulkSession()

	got := replyText(t, Bulk(s, TextEvent{Text: BulkDoneCommand}))
	if !strings.Contains(got, "ningún archivo") {
		t.Errorf("expected zero-file rejection, got %q", got)
	}
	if s.State != session.BulkCollectingFiles {
		t.Errorf("rejection must keep the collection state, got %q", s.State)
	}
}

func TestBulkDoneAdvancesToPropertySelection(t *testing.T) {
	s := newBulkSession()
	Bulk(s, FileEvent{File: namedFile("contrato.pdf")})

	effects := Bulk(s, TextEvent{Text: BulkDoneCommand})
	if len(effects) != 1 {
		t.Fatalf("expected one effect, got %d", len(effects))
	}
	if _, ok := effects[0].(ShowPropertyKeyboard); !ok {
		t.Errorf("expected ShowPropertyKeyboard, got %T", effects[0])
	}
	if s.State != session.BulkWaitingProperty {
		t.Errorf("expected state %q, got %q", session.BulkWaitingProperty, s.State)
	}
}

func TestBulkCollectingIgnoresOtherText(t *testing.T) {
	s := newBulkSession()

	got := replyText(t, Bulk(s, TextEvent{Text: "hola"}))
	if !strings.Contains(got, BulkDoneCommand) {
		t.Errorf("re-prompt should mention %s, got %q", BulkDoneCommand, got)
	}
	if len(s.Files) != 0 {
		t.Errorf("text must not be collected as a file")
	}
}

// --- Property and Category Tests ---

func TestBulkPropertySelection(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingProperty
	s.PropertyOptions = testOptions()

	Bulk(s, CallbackEvent{Data: PropertyCallback(1)})

	if s.SelectedProperty != "Avenida América 2" {
		t.Errorf("expected selected property %q, got %q", "Avenida América 2", s.SelectedProperty)
	}
	if s.PropertyFolderID != "folder-america" {
		t.Errorf("expected folder id %q, got %q", "folder-america", s.PropertyFolderID)
	}
	if s.State != session.BulkWaitingCategory {
		t.Errorf("expected state %q, got %q", session.BulkWaitingCategory, s.State)
	}
}

func TestBulkPropertyOutOfRangeReprompts(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingProperty
	s.PropertyOptions = testOptions()

	got := replyText(t, Bulk(s, CallbackEvent{Data: PropertyCallback(7)}))
	if !strings.Contains(got, "botones") {
		t.Errorf("expected re-prompt, got %q", got)
	}
	if s.State != session.BulkWaitingProperty {
		t.Errorf("bad selection must not advance, got state %q", s.State)
	}
}

func TestBulkYearedCategoryAsksForYear(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingCategory
	s.Files = []session.BulkFile{namedFile("poliza.pdf")}

	effects := Bulk(s, CallbackEvent{Data: CategoryCallback(category.Seguros)})

	if s.Category != category.Seguros {
		t.Errorf("expected category %q, got %q", category.Seguros, s.Category)
	}
	if s.State != session.BulkWaitingYear {
		t.Errorf("expected state %q, got %q", session.BulkWaitingYear, s.State)
	}
	r := effects[0].(Reply)
	if len(r.Buttons) == 0 {
		t.Errorf("year prompt should carry buttons")
	}
}

func TestBulkYearlessCategorySkipsYearPrompt(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingCategory
	s.SelectedProperty = "Calle Mayor 123"
	s.Files = []session.BulkFile{namedFile("salon.jpg")}

	Bulk(s, CallbackEvent{Data: CategoryCallback(category.FotosEstado)})

	if s.State != session.BulkWaitingConfirmation {
		t.Errorf("yearless category should go straight to confirmation, got %q", s.State)
	}
	if s.Year != "" {
		t.Errorf("year must stay empty for yearless categories, got %q", s.Year)
	}
}

// --- Year Tests ---

func TestBulkCurrentYearShortcut(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingYear
	s.SelectedProperty = "Calle Mayor 123"
	s.Category = category.Contratos
	s.Files = []session.BulkFile{namedFile("contrato.pdf")}

	Bulk(s, CallbackEvent{Data: CBYearCurrent})

	if s.Year != category.CurrentYear() {
		t.Errorf("expected year %q, got %q", category.CurrentYear(), s.Year)
	}
	if s.State != session.BulkWaitingConfirmation {
		t.Errorf("expected state %q, got %q", session.BulkWaitingConfirmation, s.State)
	}
}

func TestBulkCustomYearValidation(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingYear
	s.SelectedProperty = "Calle Mayor 123"
	s.Category = category.Contratos
	s.Files = []session.BulkFile{namedFile("contrato.pdf")}

	Bulk(s, CallbackEvent{Data: CBYearOther})
	if s.State != session.BulkWaitingCustomYear {
		t.Fatalf("expected state %q, got %q", session.BulkWaitingCustomYear, s.State)
	}

	got := replyText(t, Bulk(s, TextEvent{Text: "20x4"}))
	if !strings.Contains(got, "⚠️") {
		t.Errorf("invalid year should warn, got %q", got)
	}
	if s.State != session.BulkWaitingCustomYear {
		t.Errorf("invalid year must keep the state, got %q", s.State)
	}

	Bulk(s, TextEvent{Text: "2019"})
	if s.Year != "2019" {
		t.Errorf("expected year 2019, got %q", s.Year)
	}
	if s.State != session.BulkWaitingConfirmation {
		t.Errorf("expected state %q, got %q", session.BulkWaitingConfirmation, s.State)
	}
}

// --- Base Name Tests ---

func TestBulkPlaceholderNamesTriggerBasenamePrompt(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingCategory
	s.SelectedProperty = "Calle Mayor 123"
	s.Files = []session.BulkFile{
		placeholderPhoto("AAQADAgADk1234567"),
		namedFile("factura.pdf"),
	}

	got := replyText(t, Bulk(s, CallbackEvent{Data: CategoryCallback(category.FotosEstado)}))
	if s.State != session.BulkWaitingBasename {
		t.Fatalf("expected state %q, got %q", session.BulkWaitingBasename, s.State)
	}
	if !strings.Contains(got, "nombre base") {
		t.Errorf("expected base name prompt, got %q", got)
	}
}

func TestBulkBasenameRenamesOnlyPlaceholders(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingBasename
	s.SelectedProperty = "Calle Mayor 123"
	s.Category = category.FotosEstado
	s.Files = []session.BulkFile{
		placeholderPhoto("AAQADAgADk1234567"),
		namedFile("factura.pdf"),
		placeholderPhoto("AAQADAgADk7654321"),
	}

	Bulk(s, TextEvent{Text: "Estado salón"})

	want := []string{"estado_salón_1.jpg", "factura.pdf", "estado_salón_2.jpg"}
	if len(s.TargetNames) != len(want) {
		t.Fatalf("expected %d target names, got %d", len(want), len(s.TargetNames))
	}
	for i, w := range want {
		if s.TargetNames[i] != w {
			t.Errorf("target name %d: expected %q, got %q", i, w, s.TargetNames[i])
		}
	}
	if s.State != session.BulkWaitingConfirmation {
		t.Errorf("expected state %q, got %q", session.BulkWaitingConfirmation, s.State)
	}
}

func TestBulkBasenameSkipKeepsPlaceholders(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingBasename
	s.SelectedProperty = "Calle Mayor 123"
	s.Category = category.FotosEstado
	photo := placeholderPhoto("AAQADAgADk1234567")
	s.Files = []session.BulkFile{photo}

	Bulk(s, TextEvent{Text: "skip"})

	if len(s.TargetNames) != 1 || s.TargetNames[0] != photo.FileName {
		t.Errorf("skip must keep the generated name %q, got %v", photo.FileName, s.TargetNames)
	}
}

// --- Confirmation and Duplicate Tests ---

func TestBulkSummaryListsTargetNames(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingCategory
	s.SelectedProperty = "Calle Mayor 123"
	s.Files = []session.BulkFile{namedFile("Año Renovación.pdf")}

	got := replyText(t, Bulk(s, CallbackEvent{Data: CategoryCallback(category.FotosEstado)}))
	if !strings.Contains(got, "Calle Mayor 123") {
		t.Errorf("summary should name the property, got %q", got)
	}
	if !strings.Contains(got, "año_renovación.pdf") {
		t.Errorf("summary should list the snake_cased target name, got %q", got)
	}
}

func TestBulkConfirmTriggersDuplicateCheck(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingConfirmation
	s.TargetNames = []string{"contrato.pdf"}

	effects := Bulk(s, CallbackEvent{Data: CBConfirm})
	if len(effects) != 1 {
		t.Fatalf("expected one effect, got %d", len(effects))
	}
	if _, ok := effects[0].(RunDuplicateCheck); !ok {
		t.Errorf("expected RunDuplicateCheck, got %T", effects[0])
	}
	if s.State != session.BulkCheckingDuplicates {
		t.Errorf("expected state %q, got %q", session.BulkCheckingDuplicates, s.State)
	}
}

func TestBulkNoDuplicatesUploadsDirectly(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkCheckingDuplicates

	effects := Bulk(s, DuplicatesEvent{})
	up, ok := effects[0].(RunUpload)
	if !ok {
		t.Fatalf("expected RunUpload, got %T", effects[0])
	}
	if up.Replace {
		t.Errorf("upload without duplicates must not replace")
	}
}

func TestBulkDuplicatesAskBeforeReplacing(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkCheckingDuplicates

	got := replyText(t, Bulk(s, DuplicatesEvent{Existing: []string{"contrato.pdf"}}))
	if !strings.Contains(got, "contrato.pdf") {
		t.Errorf("duplicate prompt should list the colliding name, got %q", got)
	}
	if s.State != session.BulkWaitingReplace {
		t.Fatalf("expected state %q, got %q", session.BulkWaitingReplace, s.State)
	}

	effects := Bulk(s, CallbackEvent{Data: CBReplaceYes})
	up, ok := effects[0].(RunUpload)
	if !ok {
		t.Fatalf("expected RunUpload, got %T", effects[0])
	}
	if !up.Replace {
		t.Errorf("replace confirmation must set Replace")
	}
}

func TestBulkReplaceDeclinedCancels(t *testing.T) {
	s := newBulkSession()
	s.State = session.BulkWaitingReplace
	s.Duplicates = []string{"contrato.pdf"}

	effects := Bulk(s, CallbackEvent{Data: CBReplaceNo})
	if _, ok := effects[0].(Cancel); !ok {
		t.Errorf("declining replacement should cancel, got %T", effects[0])
	}
}

// --- Cancel Tests ---

func TestBulkCancelWorksFromEveryState(t *testing.T) {
	states := []string{
		session.BulkCollectingFiles,
		session.BulkWaitingProperty,
		session.BulkWaitingCategory,
		session.BulkWaitingYear,
		session.BulkWaitingCustomYear,
		session.BulkWaitingBasename,
		session.BulkWaitingConfirmation,
		session.BulkCheckingDuplicates,
		session.BulkWaitingReplace,
	}
	for _, state := range states {
		s := newBulkSession()
		s.State = state
		effects := Bulk(s, CallbackEvent{Data: CBCancel})
		if len(effects) != 1 {
			t.Errorf("state %q: expected one effect, got %d", state, len(effects))
			continue
		}
		if _, ok := effects[0].(Cancel); !ok {
			t.Errorf("state %q: expected Cancel, got %T", state, effects[0])
		}
	}
}
