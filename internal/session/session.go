// Package session holds the per-chat, in-memory conversational state for the
// upload flows and the self-test lock. Sessions have no persistence and no
// TTL: they die with the process or on explicit cancel.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/naming"
)

// Bulk flow states.
const (
	BulkCollectingFiles     = "collecting_files"
	BulkWaitingProperty     = "waiting_for_property"
	BulkWaitingCategory     = "waiting_for_category"
	BulkWaitingYear         = "waiting_for_year"
	BulkWaitingCustomYear   = "waiting_for_custom_year"
	BulkWaitingBasename     = "waiting_for_basename"
	BulkWaitingConfirmation = "waiting_for_confirmation"
	BulkCheckingDuplicates  = "checking_duplicates"
	BulkWaitingReplace      = "waiting_for_replace_confirmation"
)

// Individual flow states.
const (
	IndWaitingProperty   = "waiting_for_property"
	IndWaitingCategory   = "waiting_for_category"
	IndWaitingYear       = "waiting_for_year"
	IndWaitingCustomYear = "waiting_for_custom_year"
	IndWaitingFilename   = "waiting_for_filename"
)

// BulkFile is one collected attachment. FileID, FileUniqueID, and MimeType
// come straight from Telegram and are mandatory.
type BulkFile struct {
	FileID       string
	FileUniqueID string
	MimeType     string
	FileName     string
}

// NewBulkFile validates the mandatory fields and defaults FileName to the
// deterministic placeholder when the source provides none.
func NewBulkFile(fileID, fileUniqueID, mimeType, fileName string) (BulkFile, error) {
	if fileID == "" {
		return BulkFile{}, fmt.Errorf("bulk file missing fileId")
	}
	if fileUniqueID == "" {
		return BulkFile{}, fmt.Errorf("bulk file missing fileUniqueId")
	}
	if mimeType == "" {
		return BulkFile{}, fmt.Errorf("bulk file missing mimeType")
	}
	if fileName == "" {
		fileName = naming.DefaultFileName(mimeType, fileUniqueID)
	}
	return BulkFile{
		FileID:       fileID,
		FileUniqueID: fileUniqueID,
		MimeType:     mimeType,
		FileName:     fileName,
	}, nil
}

// PropertyOption is one entry of the property keyboard presented to the
// user, captured in the session so a callback index can be resolved later.
type PropertyOption struct {
	Address    string
	Normalized string
	FolderID   string
}

// BulkSession tracks a multi-file upload conversation for one chat.
type BulkSession struct {
	ChatID           int64
	State            string
	Files            []BulkFile
	CreatedAt        time.Time
	PropertyOptions  []PropertyOption
	SelectedProperty string // normalized address
	PropertyFolderID string
	Category         category.Category
	Year             string
	BaseName         string
	TargetNames      []string
	Duplicates       []string
}

// IndividualSession tracks a single-file upload conversation for one chat.
type IndividualSession struct {
	ChatID           int64
	State            string
	File             BulkFile
	CreatedAt        time.Time
	PropertyOptions  []PropertyOption
	SelectedProperty string
	PropertyFolderID string
	Category         category.Category
	Year             string
	FileName         string
}

// Store is a mutex-guarded per-chat session map. The zero value is not
// usable; use NewStore.
type Store[T any] struct {
	mu       sync.Mutex
	sessions map[int64]*T
}

// NewStore returns an empty store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{sessions: make(map[int64]*T)}
}

// Start installs a new session for the chat, replacing any existing one.
func (s *Store[T]) Start(chatID int64, sess *T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
}

// Get returns the chat's session, or nil when there is none.
func (s *Store[T]) Get(chatID int64) *T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[chatID]
}

// Update applies fn to the chat's session while holding the store lock.
// Returns an error when the chat has no active session.
func (s *Store[T]) Update(chatID int64, fn func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return fmt.Errorf("no active session for chat %d", chatID)
	}
	fn(sess)
	return nil
}

// Clear removes the chat's session.
func (s *Store[T]) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// Manager bundles the three session stores the dispatcher needs.
type Manager struct {
	Bulk       *Store[BulkSession]
	Individual *Store[IndividualSession]
	selfTest   *selfTestStore
}

// NewManager creates empty stores.
func NewManager() *Manager {
	return &Manager{
		Bulk:       NewStore[BulkSession](),
		Individual: NewStore[IndividualSession](),
		selfTest:   &selfTestStore{running: make(map[int64]time.Time)},
	}
}

// StartBulk begins a fresh bulk session for the chat, replacing any prior
// bulk or individual session.
func (m *Manager) StartBulk(chatID int64) *BulkSession {
	m.Individual.Clear(chatID)
	sess := &BulkSession{
		ChatID:    chatID,
		State:     BulkCollectingFiles,
		Files:     []BulkFile{},
		CreatedAt: time.Now(),
	}
	m.Bulk.Start(chatID, sess)
	return sess
}

// AddFileToBulk appends a validated file to the chat's bulk session.
// Fails when the chat has no active bulk session.
func (m *Manager) AddFileToBulk(chatID int64, f BulkFile) error {
	return m.Bulk.Update(chatID, func(s *BulkSession) {
		s.Files = append(s.Files, f)
	})
}

// StartIndividual begins an individual upload session for the chat.
func (m *Manager) StartIndividual(chatID int64, f BulkFile) *IndividualSession {
	m.Bulk.Clear(chatID)
	sess := &IndividualSession{
		ChatID:    chatID,
		State:     IndWaitingProperty,
		File:      f,
		CreatedAt: time.Now(),
	}
	m.Individual.Start(chatID, sess)
	return sess
}

// ClearAll drops every session type for the chat.
func (m *Manager) ClearAll(chatID int64) {
	m.Bulk.Clear(chatID)
	m.Individual.Clear(chatID)
}

// selfTestStore is a per-chat mutual-exclusion lock for the diagnostics run.
// It carries no business payload.
type selfTestStore struct {
	mu      sync.Mutex
	running map[int64]time.Time
}

// StartSelfTest atomically checks-and-sets the per-chat lock. It returns
// false when a self-test is already running for that chat. The lock is not
// global: other chats may run their own self-tests concurrently.
func (m *Manager) StartSelfTest(chatID int64) bool {
	m.selfTest.mu.Lock()
	defer m.selfTest.mu.Unlock()
	if _, running := m.selfTest.running[chatID]; running {
		return false
	}
	m.selfTest.running[chatID] = time.Now()
	return true
}

// EndSelfTest releases the per-chat lock.
func (m *Manager) EndSelfTest(chatID int64) {
	m.selfTest.mu.Lock()
	defer m.selfTest.mu.Unlock()
	delete(m.selfTest.running, chatID)
}
