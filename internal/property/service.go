// Package property orchestrates folder provisioning and catalog mutations
// for the property lifecycle: add, list, delete, archive, unarchive.
package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/inmodocs/inmodocs-bot/internal/catalog"
	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/drive"
)

// Service mutates the catalog and keeps the Drive folder tree in sync.
// Folder and catalog changes are not transactional: folder provisioning runs
// before the catalog write, so a failed write can leave an orphan folder
// tree. That risk is accepted and logged, not hidden.
type Service struct {
	drive        *drive.Client
	baseFolderID string
}

// NewService requires both collaborators up front; a missing one is a
// configuration error, not a runtime condition.
func NewService(dc *drive.Client, baseFolderID string) (*Service, error) {
	if dc == nil {
		return nil, fmt.Errorf("property service requires a drive client")
	}
	if baseFolderID == "" {
		return nil, fmt.Errorf("property service requires a base folder id")
	}
	return &Service{drive: dc, baseFolderID: baseFolderID}, nil
}

// Result is a business outcome. OK=false with a Message is normal flow
// (duplicate, not found), not an error.
type Result struct {
	OK      bool
	Message string
}

// AddResult carries the created record on success.
type AddResult struct {
	Result
	Property *catalog.Property
}

// ListResult carries the sorted records, or a "nothing found" message,
// never both.
type ListResult struct {
	Properties []catalog.Property
	Message    string
}

// errDuplicate aborts the catalog mutation when a concurrent writer added
// the same address between our uniqueness check and the write.
var errDuplicate = errors.New("duplicate property")

// Add registers a new property: normalize the address, check uniqueness
// among non-deleted records, provision the folder tree for the current
// calendar year, then append the catalog record.
func (s *Service) Add(ctx context.Context, address string) (AddResult, error) {
	norm, err := catalog.NormalizeAddress(address)
	if err != nil {
		return AddResult{}, err
	}

	cat, _, err := s.drive.ReadCatalog(ctx, s.baseFolderID)
	if err != nil {
		return AddResult{}, err
	}
	if cat.FindNonDeleted(norm) != nil {
		return AddResult{Result: Result{Message: fmt.Sprintf("La propiedad %q ya existe.", norm)}}, nil
	}

	folderID, err := s.drive.CreateFolderStructure(ctx, s.baseFolderID, norm, category.CurrentYear())
	if err != nil {
		return AddResult{}, err
	}

	record := catalog.Property{
		Address:           address,
		NormalizedAddress: norm,
		PropertyFolderID:  folderID,
		CreatedAt:         catalog.Now(),
		Status:            catalog.StatusActive,
	}
	_, err = s.drive.UpdateCatalog(ctx, s.baseFolderID, func(c *catalog.Catalog) error {
		if c.FindNonDeleted(norm) != nil {
			return errDuplicate
		}
		c.Properties = append(c.Properties, record)
		return nil
	})
	if errors.Is(err, errDuplicate) {
		// Lost the race to another writer. The freshly provisioned folders
		// are find-or-create, so they belong to the winner's property.
		return AddResult{Result: Result{Message: fmt.Sprintf("La propiedad %q ya existe.", norm)}}, nil
	}
	if err != nil {
		log.Error().Err(err).Str("address", norm).Str("folderId", folderID).
			Msg("Catalog write failed after folder provisioning; orphan folder tree left behind")
		return AddResult{}, err
	}

	log.Info().Str("address", norm).Str("folderId", folderID).Msg("Property added")
	return AddResult{Result: Result{OK: true}, Property: &record}, nil
}

// spanish orders property listings the way a Spanish speaker expects.
var spanish = language.Spanish

// List returns active properties sorted by display address.
func (s *Service) List(ctx context.Context) (ListResult, error) {
	return s.list(ctx, catalog.StatusActive, "No hay propiedades registradas.")
}

// ListArchived returns archived properties sorted by display address.
func (s *Service) ListArchived(ctx context.Context) (ListResult, error) {
	return s.list(ctx, catalog.StatusArchived, "No hay propiedades archivadas.")
}

func (s *Service) list(ctx context.Context, status, emptyMsg string) (ListResult, error) {
	cat, _, err := s.drive.ReadCatalog(ctx, s.baseFolderID)
	if err != nil {
		return ListResult{}, err
	}

	var out []catalog.Property
	for _, p := range cat.Properties {
		switch status {
		case catalog.StatusActive:
			if p.IsActive() {
				out = append(out, p)
			}
		default:
			if p.Status == status {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return ListResult{Message: emptyMsg}, nil
	}

	coll := collate.New(spanish)
	coll.Sort(byAddress(out))
	return ListResult{Properties: out}, nil
}

// byAddress adapts a property slice to collate.Sort.
type byAddress []catalog.Property

func (b byAddress) Len() int           { return len(b) }
func (b byAddress) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
func (b byAddress) Bytes(i int) []byte { return []byte(b[i].Address) }

// Delete soft-marks the record deleted, then permanently deletes the Drive
// folder. The hard delete is unrecoverable.
func (s *Service) Delete(ctx context.Context, normalizedAddress string) (Result, error) {
	var folderID string
	_, err := s.drive.UpdateCatalog(ctx, s.baseFolderID, func(c *catalog.Catalog) error {
		p := c.FindNonDeleted(normalizedAddress)
		if p == nil {
			return errNotFound
		}
		p.Status = catalog.StatusDeleted
		p.DeletedAt = catalog.Now()
		folderID = p.PropertyFolderID
		return nil
	})
	if errors.Is(err, errNotFound) {
		return notFound(normalizedAddress), nil
	}
	if err != nil {
		return Result{}, err
	}

	if folderID != "" {
		if err := s.drive.DeleteFolder(ctx, folderID); err != nil {
			// The catalog already says deleted; surface the half-done state.
			return Result{}, fmt.Errorf("property marked deleted but folder removal failed: %w", err)
		}
	}
	log.Info().Str("address", normalizedAddress).Str("folderId", folderID).Msg("Property deleted")
	return Result{OK: true}, nil
}

var errNotFound = errors.New("property not found")

func notFound(address string) Result {
	return Result{Message: fmt.Sprintf("No se encontró la propiedad %q.", address)}
}

// Archive moves the property folder under the top-level Archivo folder and
// flips the record to archived. The record must currently be active; any
// other status is "not found", not a no-op.
func (s *Service) Archive(ctx context.Context, normalizedAddress string) (Result, error) {
	return s.transition(ctx, normalizedAddress,
		catalog.StatusActive, catalog.StatusArchived,
		drive.ActiveRootName, drive.ArchivedRootName)
}

// Unarchive moves the folder back under Viviendas and reactivates the
// record. The record must currently be archived.
func (s *Service) Unarchive(ctx context.Context, normalizedAddress string) (Result, error) {
	return s.transition(ctx, normalizedAddress,
		catalog.StatusArchived, catalog.StatusActive,
		drive.ArchivedRootName, drive.ActiveRootName)
}

func (s *Service) transition(ctx context.Context, normalizedAddress, fromStatus, toStatus, fromRoot, toRoot string) (Result, error) {
	// The folder move precedes the catalog write, mirroring Add: the catalog
	// stays authoritative and the tree is best-effort synced by the same
	// operation.
	cat, _, err := s.drive.ReadCatalog(ctx, s.baseFolderID)
	if err != nil {
		return Result{}, err
	}
	p := cat.FindWithStatus(normalizedAddress, fromStatus)
	if p == nil {
		return notFound(normalizedAddress), nil
	}

	fromRootID, err := s.drive.FindOrCreateFolder(ctx, fromRoot, s.baseFolderID)
	if err != nil {
		return Result{}, err
	}
	toRootID, err := s.drive.FindOrCreateFolder(ctx, toRoot, s.baseFolderID)
	if err != nil {
		return Result{}, err
	}
	if err := s.drive.MoveFolder(ctx, p.PropertyFolderID, toRootID, fromRootID); err != nil {
		return Result{}, err
	}

	_, err = s.drive.UpdateCatalog(ctx, s.baseFolderID, func(c *catalog.Catalog) error {
		rec := c.FindWithStatus(normalizedAddress, fromStatus)
		if rec == nil {
			return errNotFound
		}
		rec.Status = toStatus
		now := catalog.Now()
		if toStatus == catalog.StatusArchived {
			rec.ArchivedAt = now
		} else {
			rec.UnarchivedAt = now
		}
		return nil
	})
	if errors.Is(err, errNotFound) {
		return notFound(normalizedAddress), nil
	}
	if err != nil {
		return Result{}, err
	}

	log.Info().Str("address", normalizedAddress).Str("status", toStatus).Msg("Property status changed")
	return Result{OK: true}, nil
}

// BaseFolderID exposes the configured base folder for collaborators that
// resolve category folders themselves.
func (s *Service) BaseFolderID() string {
	return s.baseFolderID
}

// Drive exposes the underlying Drive client.
func (s *Service) Drive() *drive.Client {
	return s.drive
}
