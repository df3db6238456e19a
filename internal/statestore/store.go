// Package statestore persists the engine's durable state across restarts:
// the pending Message Queue, the Message History ring, the Usage-Limit
// Synchronizer's last-processed reset string, and configured Keyword Rules
// (spec.md §6, "Persisted state (survives restart)").
package statestore

import (
	"time"

	"github.com/npratt/atari/internal/engine"
)

// MessageRecord is the on-disk shape of a queued or historical message.
type MessageRecord struct {
	ID            uint64    `json:"id"`
	OriginalText  string    `json:"original_text"`
	ProcessedText string    `json:"processed_text"`
	CreatedAt     time.Time `json:"created_at"`
	ExecuteAt     time.Time `json:"execute_at"`
	Sequence      uint64    `json:"sequence"`
	Target        int       `json:"target"`
}

// KeywordRuleRecord is the on-disk shape of a configured keyword rule.
type KeywordRuleRecord struct {
	ID       uint64        `json:"id"`
	Keyword  string        `json:"keyword"`
	Response string        `json:"response"`
	Cooldown time.Duration `json:"cooldown"`
}

// Store is the persistence contract the engine package depends on through
// the narrower engine.QueuePersister interface, extended here with the
// rest of spec.md §6's persisted-state list.
type Store interface {
	engine.QueuePersister

	LoadQueue() ([]MessageRecord, error)
	LoadHistory() ([]MessageRecord, error)

	SaveUsageLimitState(lastProcessedReset string) error
	LoadUsageLimitState() (string, error)

	SaveKeywordRules(rules []KeywordRuleRecord) error
	LoadKeywordRules() ([]KeywordRuleRecord, error)

	Close() error
}

// ToMessageRecord converts an engine.Message to its persisted form.
func ToMessageRecord(m engine.Message) MessageRecord {
	return MessageRecord{
		ID:            uint64(m.ID),
		OriginalText:  m.OriginalText,
		ProcessedText: m.ProcessedText,
		CreatedAt:     m.CreatedAt,
		ExecuteAt:     m.ExecuteAt,
		Sequence:      m.Sequence,
		Target:        int(m.Target),
	}
}

// ToMessage converts a persisted record back into an engine.Message.
func ToMessage(r MessageRecord) engine.Message {
	return engine.Message{
		ID:            engine.MessageID(r.ID),
		OriginalText:  r.OriginalText,
		ProcessedText: r.ProcessedText,
		CreatedAt:     r.CreatedAt,
		ExecuteAt:     r.ExecuteAt,
		Sequence:      r.Sequence,
		Target:        engine.TerminalID(r.Target),
	}
}
