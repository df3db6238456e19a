package statestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/npratt/atari/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS queue_snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history_entries (
	id INTEGER NOT NULL,
	payload TEXT NOT NULL,
	inserted_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const usageLimitSettingKey = "usage_limit_reset"
const keywordRulesSettingKey = "keyword_rules"

// SQLiteStore persists engine state to a local SQLite database via the
// pure-Go modernc.org/sqlite driver (no cgo toolchain required on the
// operator's machine), grounded on the corpus's database/sql usage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) the database at path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statestore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveQueue implements engine.QueuePersister with a whole-row upsert,
// matching the "atomic whole-array persistence" contract spec.md §4.9
// requires of the underlying store.
func (s *SQLiteStore) SaveQueue(messages []engine.Message) error {
	records := make([]MessageRecord, len(messages))
	for i, m := range messages {
		records[i] = ToMessageRecord(m)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("statestore: marshal queue: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO queue_snapshot (id, payload) VALUES (0, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, string(payload))
	if err != nil {
		return fmt.Errorf("statestore: save queue: %w", err)
	}
	return nil
}

// SaveHistoryEntry implements engine.QueuePersister.
func (s *SQLiteStore) SaveHistoryEntry(entry engine.Message) error {
	payload, err := json.Marshal(ToMessageRecord(entry))
	if err != nil {
		return fmt.Errorf("statestore: marshal history entry: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO history_entries (id, payload, inserted_at) VALUES (?, ?, ?)`,
		int64(entry.ID), string(payload), time.Now()); err != nil {
		return fmt.Errorf("statestore: save history entry: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM history_entries WHERE rowid NOT IN (
		SELECT rowid FROM history_entries ORDER BY inserted_at DESC LIMIT ?)`, engine.MaxMessageHistory); err != nil {
		return fmt.Errorf("statestore: trim history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadQueue() ([]MessageRecord, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM queue_snapshot WHERE id = 0`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: load queue: %w", err)
	}
	var records []MessageRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("statestore: unmarshal queue: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) LoadHistory() ([]MessageRecord, error) {
	rows, err := s.db.Query(`SELECT payload FROM history_entries ORDER BY inserted_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("statestore: load history: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("statestore: scan history: %w", err)
		}
		var rec MessageRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("statestore: unmarshal history entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveUsageLimitState(lastProcessedReset string) error {
	return s.setSetting(usageLimitSettingKey, lastProcessedReset)
}

func (s *SQLiteStore) LoadUsageLimitState() (string, error) {
	return s.getSetting(usageLimitSettingKey)
}

func (s *SQLiteStore) SaveKeywordRules(rules []KeywordRuleRecord) error {
	payload, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("statestore: marshal keyword rules: %w", err)
	}
	return s.setSetting(keywordRulesSettingKey, string(payload))
}

func (s *SQLiteStore) LoadKeywordRules() ([]KeywordRuleRecord, error) {
	payload, err := s.getSetting(keywordRulesSettingKey)
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, nil
	}
	var rules []KeywordRuleRecord
	if err := json.Unmarshal([]byte(payload), &rules); err != nil {
		return nil, fmt.Errorf("statestore: unmarshal keyword rules: %w", err)
	}
	return rules, nil
}

func (s *SQLiteStore) setSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("statestore: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) getSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("statestore: get %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
