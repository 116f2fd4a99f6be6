// Package drivetest provides an in-memory drive.API fake shared by the
// adapter, property service, and self-test packages.
package drivetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/inmodocs/inmodocs-bot/internal/drive"
)

type node struct {
	id      string
	name    string
	mime    string
	parent  string
	folder  bool
	content []byte
	trashed bool
}

// Fake is an in-memory Drive. The zero value is not usable; call New.
type Fake struct {
	mu     sync.Mutex
	nodes  map[string]*node
	nextID int

	// Failure injection. When set, the named operation returns the error once
	// per call.
	FailList     error
	FailCreate   error
	FailUpdate   error
	FailDownload error
	FailDelete   error
	FailMove     error

	// Calls counts operations by name (e.g. "DeleteFile").
	Calls map[string]int
}

// New returns an empty fake with a root folder of the given id.
func New(rootID string) *Fake {
	f := &Fake{nodes: make(map[string]*node), Calls: make(map[string]int)}
	f.nodes[rootID] = &node{id: rootID, name: rootID, folder: true}
	return f
}

func (f *Fake) newID() string {
	f.nextID++
	return "id-" + strconv.Itoa(f.nextID)
}

func (f *Fake) count(op string) {
	f.Calls[op]++
}

// AddFolder seeds a folder and returns its id.
func (f *Fake) AddFolder(name, parentID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, parent: parentID, folder: true}
	return id
}

// AddFile seeds a file and returns its id.
func (f *Fake) AddFile(name, parentID string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, parent: parentID, content: content, mime: "application/octet-stream"}
	return id
}

// FolderID returns the id of the first live folder with the given name under
// parentID, or "".
func (f *Fake) FolderID(name, parentID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.nodes {
		if n.folder && !n.trashed && n.name == name && n.parent == parentID {
			return n.id
		}
	}
	return ""
}

// FileNames lists the names of live non-folder files under folderID.
func (f *Fake) FileNames(folderID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, n := range f.nodes {
		if !n.folder && !n.trashed && n.parent == folderID {
			names = append(names, n.name)
		}
	}
	return names
}

// Content returns the content of a file by id.
func (f *Fake) Content(fileID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[fileID]; ok {
		return n.content
	}
	return nil
}

// SetContent overwrites a file's content directly, bypassing the API. Used
// to simulate a concurrent writer between read and write.
func (f *Fake) SetContent(fileID string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[fileID]; ok {
		n.content = content
	}
}

// Exists reports whether a node is still present (not deleted).
func (f *Fake) Exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[id]
	return ok
}

// ParentOf returns the parent id of a node.
func (f *Fake) ParentOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[id]; ok {
		return n.parent
	}
	return ""
}

// --- drive.API implementation ---

func (f *Fake) ListFolders(ctx context.Context, name, parentID string) ([]drive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListFolders")
	if err := f.FailList; err != nil {
		f.FailList = nil
		return nil, err
	}
	var out []drive.File
	for _, n := range f.nodes {
		if n.folder && !n.trashed && n.name == name && n.parent == parentID {
			out = append(out, drive.File{ID: n.id, Name: n.name})
		}
	}
	return out, nil
}

func (f *Fake) ListFilesByName(ctx context.Context, name, parentID string) ([]drive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListFilesByName")
	if err := f.FailList; err != nil {
		f.FailList = nil
		return nil, err
	}
	var out []drive.File
	for _, n := range f.nodes {
		if !n.folder && !n.trashed && n.name == name && n.parent == parentID {
			out = append(out, drive.File{ID: n.id, Name: n.name})
		}
	}
	return out, nil
}

func (f *Fake) CreateFolder(ctx context.Context, name, parentID string) (drive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateFolder")
	if err := f.FailCreate; err != nil {
		f.FailCreate = nil
		return drive.File{}, err
	}
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, parent: parentID, folder: true}
	return drive.File{ID: id, Name: name}, nil
}

func (f *Fake) CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (drive.File, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return drive.File{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateFile")
	if err := f.FailCreate; err != nil {
		f.FailCreate = nil
		return drive.File{}, err
	}
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, mime: mimeType, parent: parentID, content: data}
	return drive.File{ID: id, Name: name}, nil
}

func (f *Fake) UpdateFileContent(ctx context.Context, fileID string, content io.Reader) (drive.File, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return drive.File{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UpdateFileContent")
	if err := f.FailUpdate; err != nil {
		f.FailUpdate = nil
		return drive.File{}, err
	}
	n, ok := f.nodes[fileID]
	if !ok {
		return drive.File{}, fmt.Errorf("file not found: %s", fileID)
	}
	n.content = data
	return drive.File{ID: n.id, Name: n.name}, nil
}

func (f *Fake) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DownloadFile")
	if err := f.FailDownload; err != nil {
		f.FailDownload = nil
		return nil, err
	}
	n, ok := f.nodes[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	return io.NopCloser(bytes.NewReader(n.content)), nil
}

func (f *Fake) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DeleteFile")
	if err := f.FailDelete; err != nil {
		f.FailDelete = nil
		return err
	}
	if _, ok := f.nodes[fileID]; !ok {
		return fmt.Errorf("file not found: %s", fileID)
	}
	delete(f.nodes, fileID)
	// Children of a deleted folder go with it.
	for id, n := range f.nodes {
		if f.isOrphan(n) {
			delete(f.nodes, id)
		}
	}
	return nil
}

// isOrphan reports whether a node's ancestry no longer reaches a live root.
func (f *Fake) isOrphan(n *node) bool {
	for n.parent != "" {
		parent, ok := f.nodes[n.parent]
		if !ok {
			return true
		}
		n = parent
	}
	return false
}

func (f *Fake) MoveFile(ctx context.Context, fileID, addParentID, removeParentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("MoveFile")
	if err := f.FailMove; err != nil {
		f.FailMove = nil
		return err
	}
	n, ok := f.nodes[fileID]
	if !ok {
		return fmt.Errorf("file not found: %s", fileID)
	}
	if n.parent != removeParentID {
		return fmt.Errorf("node %s is not under %s", fileID, removeParentID)
	}
	n.parent = addParentID
	return nil
}
