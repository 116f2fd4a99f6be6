package drive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/inmodocs/inmodocs-bot/internal/catalog"
)

// CatalogFileName is the well-known name of the catalog file inside the base
// folder.
const CatalogFileName = "catalogo_propiedades.json"

// ErrConflict signals that the catalog changed between read and write. The
// caller re-reads, re-applies its mutation, and retries.
var ErrConflict = errors.New("catalog revision conflict")

// catalogWriteAttempts bounds the reread-mutate-write loop in UpdateCatalog.
const catalogWriteAttempts = 3

// locateCatalog finds the catalog file under the base folder. Returns a zero
// File when it does not exist. Several files with the catalog name is a fatal
// condition, same as a corrupt catalog.
func (c *Client) locateCatalog(ctx context.Context, baseFolderID string) (File, bool, error) {
	matches, err := c.api.ListFilesByName(ctx, CatalogFileName, baseFolderID)
	if err != nil {
		return File{}, false, err
	}
	switch len(matches) {
	case 0:
		return File{}, false, nil
	case 1:
		return matches[0], true, nil
	default:
		return File{}, false, fmt.Errorf("%w: %d files named %s in base folder", catalog.ErrInvalid, len(matches), CatalogFileName)
	}
}

// revisionOf is the revision marker for catalog content: a hex SHA-256 of
// the raw bytes. The empty string marks "file does not exist yet".
func revisionOf(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ReadCatalog reads and validates the catalog, returning it together with
// its revision marker. When the file does not exist, a fresh empty catalog
// and an empty revision are returned without creating anything; creation
// happens lazily on first write. A corrupt or invalid catalog is fatal and
// never retried or repaired.
func (c *Client) ReadCatalog(ctx context.Context, baseFolderID string) (*catalog.Catalog, string, error) {
	f, found, err := c.locateCatalog(ctx, baseFolderID)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return catalog.New(), "", nil
	}

	raw, err := c.DownloadFile(ctx, f.ID)
	if err != nil {
		return nil, "", err
	}
	cat, err := catalog.Parse(raw)
	if err != nil {
		return nil, "", err
	}
	return cat, revisionOf(raw), nil
}

// WriteCatalog persists the catalog, conditioned on the revision obtained
// from ReadCatalog. The file is re-located by name immediately before
// writing rather than through a held reference, and the current content is
// re-hashed: any movement since the read fails with ErrConflict instead of
// silently losing the other writer's update.
func (c *Client) WriteCatalog(ctx context.Context, baseFolderID string, cat *catalog.Catalog, revision string) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	encoded, err := cat.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	f, found, err := c.locateCatalog(ctx, baseFolderID)
	if err != nil {
		return err
	}

	if !found {
		if revision != "" {
			return fmt.Errorf("%w: catalog file disappeared since read", ErrConflict)
		}
		created, err := c.api.CreateFile(ctx, CatalogFileName, "application/json", baseFolderID, bytes.NewReader(encoded))
		if err != nil {
			return err
		}
		log.Info().Str("fileId", created.ID).Msg("Catalog file created")
		return nil
	}

	current, err := c.DownloadFile(ctx, f.ID)
	if err != nil {
		return err
	}
	if revisionOf(current) != revision {
		return fmt.Errorf("%w: catalog changed since read", ErrConflict)
	}

	if _, err := c.api.UpdateFileContent(ctx, f.ID, bytes.NewReader(encoded)); err != nil {
		return err
	}
	return nil
}

// UpdateCatalog runs a bounded read-mutate-write loop with optimistic
// concurrency. mutate is called with a freshly read catalog on every
// attempt; returning an error aborts without writing. Revision conflicts
// trigger a reread and retry up to catalogWriteAttempts times.
func (c *Client) UpdateCatalog(ctx context.Context, baseFolderID string, mutate func(*catalog.Catalog) error) (*catalog.Catalog, error) {
	var lastErr error
	for attempt := 1; attempt <= catalogWriteAttempts; attempt++ {
		cat, revision, err := c.ReadCatalog(ctx, baseFolderID)
		if err != nil {
			return nil, err
		}
		if err := mutate(cat); err != nil {
			return nil, err
		}
		err = c.WriteCatalog(ctx, baseFolderID, cat, revision)
		if err == nil {
			return cat, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
		log.Warn().Int("attempt", attempt).Msg("Catalog write conflict, retrying")
	}
	return nil, fmt.Errorf("catalog update failed after %d attempts: %w", catalogWriteAttempts, lastErr)
}
