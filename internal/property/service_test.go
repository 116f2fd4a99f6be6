package property

import (
	"context"
	"testing"

	"github.com/inmodocs/inmodocs-bot/internal/catalog"
	"github.com/inmodocs/inmodocs-bot/internal/drive"
	"github.com/inmodocs/inmodocs-bot/internal/drive/drivetest"
)

const baseID = "base"

func newService(t *testing.T) (*Service, *drivetest.Fake) {
	t.Helper()
	fake := drivetest.New(baseID)
	svc, err := NewService(drive.New(fake), baseID)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc, fake
}

// --- Constructor Tests ---

func TestNewService_Preconditions(t *testing.T) {
	if _, err := NewService(nil, baseID); err == nil {
		t.Error("expected error for nil drive client")
	}
	if _, err := NewService(drive.New(drivetest.New(baseID)), ""); err == nil {
		t.Error("expected error for empty base folder id")
	}
}

// --- Add Tests ---

func TestAdd_CreatesFoldersAndRecord(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	res, err := svc.Add(ctx, "  Calle   Mayor    123  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || res.Property == nil {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Property.NormalizedAddress != "Calle Mayor 123" {
		t.Errorf("expected normalized address, got %q", res.Property.NormalizedAddress)
	}
	if res.Property.Status != catalog.StatusActive {
		t.Errorf("expected active status, got %q", res.Property.Status)
	}

	viviendasID := fake.FolderID("Viviendas", baseID)
	if fake.FolderID("Calle Mayor 123", viviendasID) != res.Property.PropertyFolderID {
		t.Error("property folder not provisioned under Viviendas")
	}
}

func TestAdd_DuplicateIsBusinessOutcome(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "Calle Mayor 123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.Add(ctx, "Calle  Mayor   123")
	if err != nil {
		t.Fatalf("duplicate must not be an error, got %v", err)
	}
	if res.OK || res.Message == "" {
		t.Errorf("expected 'already exists' outcome, got %+v", res)
	}
}

func TestAdd_EmptyAddressIsError(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Add(context.Background(), "   "); err == nil {
		t.Error("expected error for address that normalizes to empty")
	}
}

// --- List Tests ---

func TestList_SortedAndFiltered(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, addr := range []string{"Calle Zurbano 9", "Avenida América 2", "Calle Mayor 123"} {
		if _, err := svc.Add(ctx, addr); err != nil {
			t.Fatalf("add %q failed: %v", addr, err)
		}
	}

	res, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Message != "" {
		t.Fatalf("expected entries, got message %q", res.Message)
	}
	want := []string{"Avenida América 2", "Calle Mayor 123", "Calle Zurbano 9"}
	if len(res.Properties) != len(want) {
		t.Fatalf("expected %d properties, got %d", len(want), len(res.Properties))
	}
	for i, w := range want {
		if res.Properties[i].Address != w {
			t.Errorf("position %d: expected %q, got %q", i, w, res.Properties[i].Address)
		}
	}
}

func TestList_EmptyMessage(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Properties) != 0 || res.Message == "" {
		t.Errorf("expected 'nothing found' message only, got %+v", res)
	}
}

// --- Delete Tests ---

func TestDelete_SoftMarksAndHardDeletesFolder(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, "Calle Mayor 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	folderID := added.Property.PropertyFolderID

	res, err := svc.Delete(ctx, "Calle Mayor 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}

	if fake.Exists(folderID) {
		t.Error("expected Drive folder hard-deleted")
	}
	if fake.Calls["DeleteFile"] != 1 {
		t.Errorf("expected exactly 1 folder deletion, got %d", fake.Calls["DeleteFile"])
	}

	// Soft delete: the record stays in the array with status deleted.
	cat, _, err := svc.Drive().ReadCatalog(ctx, baseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Properties) != 1 {
		t.Fatalf("expected retained record, got %d", len(cat.Properties))
	}
	if cat.Properties[0].Status != catalog.StatusDeleted || cat.Properties[0].DeletedAt == "" {
		t.Errorf("expected deleted status with timestamp, got %+v", cat.Properties[0])
	}

	// Gone from both listings.
	active, _ := svc.List(ctx)
	if len(active.Properties) != 0 {
		t.Error("deleted property still listed as active")
	}
	archived, _ := svc.ListArchived(ctx)
	if len(archived.Properties) != 0 {
		t.Error("deleted property listed as archived")
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.Delete(context.Background(), "Calle Inexistente 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Message == "" {
		t.Errorf("expected not-found outcome, got %+v", res)
	}
}

// --- Archive / Unarchive Tests ---

func TestArchiveUnarchive_RoundTrip(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, "Calle Mayor 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	folderID := added.Property.PropertyFolderID

	res, err := svc.Archive(ctx, "Calle Mayor 123")
	if err != nil || !res.OK {
		t.Fatalf("archive failed: %v %+v", err, res)
	}
	if got := fake.ParentOf(folderID); got != fake.FolderID("Archivo", baseID) {
		t.Errorf("expected folder moved under Archivo, parent is %s", got)
	}
	archived, _ := svc.ListArchived(ctx)
	if len(archived.Properties) != 1 {
		t.Fatalf("expected 1 archived property, got %d", len(archived.Properties))
	}
	if archived.Properties[0].ArchivedAt == "" {
		t.Error("expected archivedAt timestamp")
	}
	active, _ := svc.List(ctx)
	if len(active.Properties) != 0 {
		t.Error("archived property still listed as active")
	}

	res, err = svc.Unarchive(ctx, "Calle Mayor 123")
	if err != nil || !res.OK {
		t.Fatalf("unarchive failed: %v %+v", err, res)
	}
	if got := fake.ParentOf(folderID); got != fake.FolderID("Viviendas", baseID) {
		t.Errorf("expected folder moved back under Viviendas, parent is %s", got)
	}
	active, _ = svc.List(ctx)
	if len(active.Properties) != 1 || active.Properties[0].Status != catalog.StatusActive {
		t.Errorf("expected property active again, got %+v", active.Properties)
	}
	if active.Properties[0].UnarchivedAt == "" {
		t.Error("expected unarchivedAt timestamp")
	}
}

func TestArchive_WrongStatusIsNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "Calle Mayor 123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Unarchiving an active property: status mismatch, not a no-op.
	res, err := svc.Unarchive(ctx, "Calle Mayor 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK || res.Message == "" {
		t.Errorf("expected not-found outcome for status mismatch, got %+v", res)
	}

	// Archiving twice: second call fails the same way.
	if _, err := svc.Archive(ctx, "Calle Mayor 123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err = svc.Archive(ctx, "Calle Mayor 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Error("expected second archive to fail with not-found outcome")
	}
}
