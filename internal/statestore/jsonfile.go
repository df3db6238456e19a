package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/npratt/atari/internal/engine"
)

// jsonFileDoc is the whole-file shape written by JSONFileStore.
type jsonFileDoc struct {
	Queue           []MessageRecord     `json:"queue"`
	History         []MessageRecord     `json:"history"`
	UsageLimitReset string              `json:"usage_limit_reset"`
	KeywordRules    []KeywordRuleRecord `json:"keyword_rules"`
}

// JSONFileStore persists all engine state as one JSON document, written
// atomically (temp file in the same directory, then rename) so a crash
// mid-write never leaves a truncated file. This is the fallback store for
// environments without a usable SQLite driver.
type JSONFileStore struct {
	mu   sync.Mutex
	path string
	doc  jsonFileDoc
}

// NewJSONFileStore opens (or creates) the document at path.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	s := &JSONFileStore{path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("statestore: read %s: %w", path, err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.doc); err != nil {
		return nil, fmt.Errorf("statestore: parse %s: %w", path, err)
	}
	return s, nil
}

func (s *JSONFileStore) writeLocked() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".atari-inject-state-*.tmp")
	if err != nil {
		return fmt.Errorf("statestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("statestore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("statestore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("statestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("statestore: rename into place: %w", err)
	}
	return nil
}

// SaveQueue implements engine.QueuePersister.
func (s *JSONFileStore) SaveQueue(messages []engine.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]MessageRecord, len(messages))
	for i, m := range messages {
		records[i] = ToMessageRecord(m)
	}
	s.doc.Queue = records
	return s.writeLocked()
}

// SaveHistoryEntry implements engine.QueuePersister.
func (s *JSONFileStore) SaveHistoryEntry(entry engine.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.History = append(s.doc.History, ToMessageRecord(entry))
	if len(s.doc.History) > engine.MaxMessageHistory {
		s.doc.History = s.doc.History[len(s.doc.History)-engine.MaxMessageHistory:]
	}
	return s.writeLocked()
}

func (s *JSONFileStore) LoadQueue() ([]MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MessageRecord, len(s.doc.Queue))
	copy(out, s.doc.Queue)
	return out, nil
}

func (s *JSONFileStore) LoadHistory() ([]MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MessageRecord, len(s.doc.History))
	copy(out, s.doc.History)
	return out, nil
}

func (s *JSONFileStore) SaveUsageLimitState(lastProcessedReset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.UsageLimitReset = lastProcessedReset
	return s.writeLocked()
}

func (s *JSONFileStore) LoadUsageLimitState() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.UsageLimitReset, nil
}

func (s *JSONFileStore) SaveKeywordRules(rules []KeywordRuleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.KeywordRules = append([]KeywordRuleRecord{}, rules...)
	return s.writeLocked()
}

func (s *JSONFileStore) LoadKeywordRules() ([]KeywordRuleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]KeywordRuleRecord, len(s.doc.KeywordRules))
	copy(out, s.doc.KeywordRules)
	return out, nil
}

func (s *JSONFileStore) Close() error { return nil }
