package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	gdrive "google.golang.org/api/drive/v3"

	"github.com/inmodocs/inmodocs-bot/internal/category"
)

// Top-level folders under the base folder. Active properties live under
// Viviendas; archived ones are moved to Archivo.
const (
	ActiveRootName   = "Viviendas"
	ArchivedRootName = "Archivo"
)

// Client provides folder provisioning, file probes, uploads and catalog I/O
// on top of the raw Drive API.
type Client struct {
	api API
}

// New wraps an API in a Client.
func New(api API) *Client {
	return &Client{api: api}
}

// NewFromService builds a Client over a real Drive service.
func NewFromService(svc *gdrive.Service) *Client {
	return New(NewAPI(svc))
}

// FindOrCreateFolder returns the id of the non-trashed folder with the exact
// name under parentID, creating it when absent. The call is idempotent given
// no concurrent creation. More than one match is an error: picking one
// silently could route documents into different folders across calls.
func (c *Client) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	matches, err := c.api.ListFolders(ctx, name, parentID)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		created, err := c.api.CreateFolder(ctx, name, parentID)
		if err != nil {
			return "", err
		}
		log.Debug().Str("name", name).Str("parentId", parentID).Str("folderId", created.ID).
			Msg("Folder created")
		return created.ID, nil
	case 1:
		return matches[0].ID, nil
	default:
		return "", fmt.Errorf("ambiguous folder name %q under %s: %d matches", name, parentID, len(matches))
	}
}

// CreateFolderStructure provisions the full category tree for a property:
// Viviendas/<address>/<8 category branches>, year-scoped branches nested
// under the given year. Every segment is find-or-create, so re-running is
// safe and non-destructive. Returns the property folder id.
func (c *Client) CreateFolderStructure(ctx context.Context, baseFolderID, propertyAddress, year string) (string, error) {
	activeRootID, err := c.FindOrCreateFolder(ctx, ActiveRootName, baseFolderID)
	if err != nil {
		return "", err
	}
	propertyFolderID, err := c.FindOrCreateFolder(ctx, propertyAddress, activeRootID)
	if err != nil {
		return "", err
	}

	for _, cat := range category.All {
		path, err := category.FolderPath(cat, year)
		if err != nil {
			return "", err
		}
		if _, err := c.resolvePath(ctx, propertyFolderID, path); err != nil {
			return "", err
		}
	}

	log.Info().Str("address", propertyAddress).Str("folderId", propertyFolderID).
		Msg("Property folder structure provisioned")
	return propertyFolderID, nil
}

// ResolveCategoryFolderID walks a path of folder names under the property
// folder, creating segments as needed, and returns the leaf folder id.
func (c *Client) ResolveCategoryFolderID(ctx context.Context, propertyFolderID string, path []string) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("empty category path")
	}
	return c.resolvePath(ctx, propertyFolderID, path)
}

func (c *Client) resolvePath(ctx context.Context, rootID string, path []string) (string, error) {
	current := rootID
	for _, segment := range path {
		id, err := c.FindOrCreateFolder(ctx, segment, current)
		if err != nil {
			return "", err
		}
		current = id
	}
	return current, nil
}

// CheckFileExists reports whether a non-trashed file with the exact name
// exists in the folder.
func (c *Client) CheckFileExists(ctx context.Context, fileName, folderID string) (bool, error) {
	matches, err := c.api.ListFilesByName(ctx, fileName, folderID)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// CheckMultipleFilesExist returns the subset of fileNames that already exist
// in the folder, preserving input order.
func (c *Client) CheckMultipleFilesExist(ctx context.Context, fileNames []string, folderID string) ([]string, error) {
	var existing []string
	for _, name := range fileNames {
		exists, err := c.CheckFileExists(ctx, name, folderID)
		if err != nil {
			return nil, err
		}
		if exists {
			existing = append(existing, name)
		}
	}
	return existing, nil
}

// UploadBuffer creates a Drive file from an in-memory payload.
func (c *Client) UploadBuffer(ctx context.Context, folderID, name, mimeType string, data []byte) (File, error) {
	return c.UploadStream(ctx, folderID, name, mimeType, bytes.NewReader(data))
}

// UploadStream creates a Drive file from a reader.
func (c *Client) UploadStream(ctx context.Context, folderID, name, mimeType string, r io.Reader) (File, error) {
	f, err := c.api.CreateFile(ctx, name, mimeType, folderID, r)
	if err != nil {
		return File{}, err
	}
	log.Info().Str("name", f.Name).Str("fileId", f.ID).Str("folderId", folderID).
		Msg("File uploaded to Drive")
	return f, nil
}

// UploadReplacing uploads a file, overwriting an existing file with the same
// name in the folder instead of creating a second copy. With no existing
// match it behaves like UploadBuffer; more than one match is ambiguous and
// fails.
func (c *Client) UploadReplacing(ctx context.Context, folderID, name, mimeType string, data []byte) (File, error) {
	matches, err := c.api.ListFilesByName(ctx, name, folderID)
	if err != nil {
		return File{}, err
	}
	switch len(matches) {
	case 0:
		return c.UploadBuffer(ctx, folderID, name, mimeType, data)
	case 1:
		f, err := c.api.UpdateFileContent(ctx, matches[0].ID, bytes.NewReader(data))
		if err != nil {
			return File{}, err
		}
		log.Info().Str("name", name).Str("fileId", f.ID).Str("folderId", folderID).
			Msg("File replaced in Drive")
		return f, nil
	default:
		return File{}, fmt.Errorf("ambiguous file name %q in folder %s: %d matches", name, folderID, len(matches))
	}
}

// DownloadFile fetches the raw content of a file.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	body, err := c.api.DownloadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return data, nil
}

// DeleteFolder permanently deletes a folder and everything under it. This is
// a hard delete; there is no trash step.
func (c *Client) DeleteFolder(ctx context.Context, folderID string) error {
	return c.api.DeleteFile(ctx, folderID)
}

// MoveFolder reparents a folder from one parent to another.
func (c *Client) MoveFolder(ctx context.Context, folderID, newParentID, oldParentID string) error {
	return c.api.MoveFile(ctx, folderID, newParentID, oldParentID)
}
