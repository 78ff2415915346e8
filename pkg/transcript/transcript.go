// Package transcript persists per-conversation diagnostic records as
// JSONL. Transcripts are write-mostly: the host appends each turn and
// tooling reads them back for debugging. Conversation state itself is
// never reconstructed from here.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventKind classifies a transcript record.
type EventKind string

const (
	EventQuery      EventKind = "query"
	EventDecision   EventKind = "decision"
	EventDispatch   EventKind = "dispatch"
	EventAnswer     EventKind = "answer"
	EventAbort      EventKind = "abort"
	EventConnection EventKind = "connection"
)

// Event is one transcript record.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Iteration int                    `json:"iteration,omitempty"`
	Tool      string                 `json:"tool,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Entry is an event with its conversation key, as stored on disk.
type Entry struct {
	ConversationID string `json:"conversation_id"`
	Event          Event  `json:"event"`
}

// Store appends conversation transcripts under a directory, one JSONL
// file per conversation.
type Store struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// NewStore creates a transcript store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".gitpulse", "transcripts")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	log.Info().Str("dir", dir).Msg("Transcript store initialized")

	return &Store{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// validateID rejects conversation IDs that could escape the store
// directory.
func validateID(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	if strings.Contains(conversationID, "..") {
		return fmt.Errorf("conversation id cannot contain '..'")
	}
	if strings.ContainsAny(conversationID, "/\\") {
		return fmt.Errorf("conversation id cannot contain path separators")
	}
	if strings.Contains(conversationID, "\x00") {
		return fmt.Errorf("conversation id cannot contain null bytes")
	}
	return nil
}

func (s *Store) path(conversationID string) string {
	return filepath.Join(s.dir, conversationID+".jsonl")
}

func (s *Store) lockFor(conversationID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, ok := s.writeLocks[conversationID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.writeLocks[conversationID] = lock
	return lock
}

// Append records one event for a conversation.
func (s *Store) Append(conversationID string, event Event) error {
	if err := validateID(conversationID); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	line, err := json.Marshal(Entry{ConversationID: conversationID, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal transcript entry: %w", err)
	}

	f, err := os.OpenFile(s.path(conversationID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write transcript entry: %w", err)
	}
	return nil
}

// Load reads back all events for a conversation. Malformed lines are
// skipped, not fatal; the transcript is diagnostic data.
func (s *Store) Load(conversationID string) ([]Entry, error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer f.Close()

	entries := []Entry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Warn().Str("conversation_id", conversationID).Msg("Skipping malformed transcript line")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}
	return entries, nil
}

// List returns the conversation IDs with transcripts on disk.
func (s *Store) List() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	ids := []string{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(f.Name(), ".jsonl"))
	}
	return ids, nil
}

// Delete removes a conversation's transcript.
func (s *Store) Delete(conversationID string) error {
	if err := validateID(conversationID); err != nil {
		return err
	}

	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(conversationID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	s.locksMu.Lock()
	delete(s.writeLocks, conversationID)
	s.locksMu.Unlock()
	return nil
}
