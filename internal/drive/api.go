// Package drive adapts Google Drive into the two primitives the bot needs:
// an idempotent folder tree and a single JSON catalog file read and written
// with optimistic concurrency.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const folderMimeType = "application/vnd.google-apps.folder"

// File identifies a Drive file or folder.
type File struct {
	ID   string
	Name string
}

// API is the narrow Drive surface the adapter consumes. The production
// implementation wraps *drive.Service; tests use an in-memory fake.
type API interface {
	// ListFolders returns non-trashed folders with the exact name under parentID.
	ListFolders(ctx context.Context, name, parentID string) ([]File, error)

	// ListFilesByName returns non-trashed, non-folder files with the exact
	// name under parentID.
	ListFilesByName(ctx context.Context, name, parentID string) ([]File, error)

	CreateFolder(ctx context.Context, name, parentID string) (File, error)
	CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (File, error)
	UpdateFileContent(ctx context.Context, fileID string, content io.Reader) (File, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, fileID string) error
	MoveFile(ctx context.Context, fileID, addParentID, removeParentID string) error
}

// googleAPI implements API over the real Drive v3 service.
type googleAPI struct {
	svc *gdrive.Service
}

// NewAPI wraps a Drive service in the adapter's API interface.
func NewAPI(svc *gdrive.Service) API {
	return &googleAPI{svc: svc}
}

// EscapeName escapes single quotes and backslashes for interpolation into a
// Drive query string. Drive has no parameterized queries, so every
// user-supplied name funnels through here before reaching a query.
func EscapeName(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	return strings.ReplaceAll(name, `'`, `\'`)
}

func (g *googleAPI) list(ctx context.Context, query string) ([]File, error) {
	var out []File
	call := g.svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name)").
		PageSize(100)
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("drive list failed: %w", err)
		}
		for _, f := range res.Files {
			out = append(out, File{ID: f.Id, Name: f.Name})
		}
		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

func (g *googleAPI) ListFolders(ctx context.Context, name, parentID string) ([]File, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		EscapeName(name), EscapeName(parentID), folderMimeType)
	return g.list(ctx, q)
}

func (g *googleAPI) ListFilesByName(ctx context.Context, name, parentID string) ([]File, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType != '%s' and trashed = false",
		EscapeName(name), EscapeName(parentID), folderMimeType)
	return g.list(ctx, q)
}

func (g *googleAPI) CreateFolder(ctx context.Context, name, parentID string) (File, error) {
	f, err := g.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return File{}, fmt.Errorf("drive create folder %q failed: %w", name, err)
	}
	return File{ID: f.Id, Name: f.Name}, nil
}

func (g *googleAPI) CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (File, error) {
	f, err := g.svc.Files.Create(&gdrive.File{
		Name:    name,
		Parents: []string{parentID},
	}).Media(content, googleapi.ContentType(mimeType)).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return File{}, fmt.Errorf("drive create file %q failed: %w", name, err)
	}
	return File{ID: f.Id, Name: f.Name}, nil
}

func (g *googleAPI) UpdateFileContent(ctx context.Context, fileID string, content io.Reader) (File, error) {
	f, err := g.svc.Files.Update(fileID, &gdrive.File{}).Media(content).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return File{}, fmt.Errorf("drive update file %s failed: %w", fileID, err)
	}
	return File{ID: f.Id, Name: f.Name}, nil
}

func (g *googleAPI) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	res, err := g.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download %s failed: %w", fileID, err)
	}
	return res.Body, nil
}

func (g *googleAPI) DeleteFile(ctx context.Context, fileID string) error {
	if err := g.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("drive delete %s failed: %w", fileID, err)
	}
	return nil
}

func (g *googleAPI) MoveFile(ctx context.Context, fileID, addParentID, removeParentID string) error {
	_, err := g.svc.Files.Update(fileID, &gdrive.File{}).
		AddParents(addParentID).
		RemoveParents(removeParentID).
		Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive move %s failed: %w", fileID, err)
	}
	return nil
}
