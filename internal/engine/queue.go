package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/npratt/atari/internal/difflog"
)

// MaxMessageHistory bounds the in-memory Message History ring (spec.md
// §4.9).
const MaxMessageHistory = 100

// QueuePersister is the subset of internal/statestore.Store the Message
// Queue needs: a whole-array write of the pending queue and a single-entry
// append to history. Kept as a narrow interface here so the engine package
// never imports the storage backend directly.
type QueuePersister interface {
	SaveQueue(messages []Message) error
	SaveHistoryEntry(entry Message) error
}

// persistRetries and persistBackoff implement spec.md §4.9's "up to three
// retries and exponential backoff" for whole-array queue writes.
const persistRetries = 3

var persistBackoff = 50 * time.Millisecond

// Queue is the ordered, persisted list of pending injection records
// described in spec.md §3 and §4.9.
type Queue struct {
	mu        sync.Mutex
	messages  []Message
	history   []Message
	nextID    MessageID
	nextSeq   uint64
	persister QueuePersister
	log       *ActionLog
}

// NewQueue creates an empty Queue. persister may be nil, in which case
// mutations are not persisted (useful for tests).
func NewQueue(persister QueuePersister, log *ActionLog) *Queue {
	return &Queue{persister: persister, log: log}
}

// Restore seeds the queue from persisted state (engine startup), without
// re-triggering persistence.
func (q *Queue) Restore(messages []Message, history []Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append([]Message{}, messages...)
	sortBySequence(q.messages)
	q.history = append([]Message{}, history...)
	for _, m := range q.messages {
		if m.ID >= q.nextID {
			q.nextID = m.ID + 1
		}
		if m.Sequence >= q.nextSeq {
			q.nextSeq = m.Sequence + 1
		}
	}
}

// Enqueue appends a new message targeting target, executable immediately
// (executeAt defaults to creation time). Content must be non-empty after
// trimming (spec.md §4.9 Validation).
func (q *Queue) Enqueue(content string, target TerminalID) (Message, error) {
	return q.EnqueueAt(content, target, time.Time{})
}

// EnqueueAt enqueues content for execution no earlier than executeAt. A
// zero executeAt means "now" (creation time).
func (q *Queue) EnqueueAt(content string, target TerminalID, executeAt time.Time) (Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Message{}, fmt.Errorf("enqueue: %w", ErrInvalidInput)
	}

	q.mu.Lock()
	now := time.Now()
	if executeAt.IsZero() {
		executeAt = now
	}
	m := Message{
		ID:            q.nextID,
		OriginalText:  content,
		ProcessedText: content,
		CreatedAt:     now,
		ExecuteAt:     executeAt,
		Sequence:      q.nextSeq,
		Target:        target,
	}
	q.nextID++
	q.nextSeq++
	q.messages = append(q.messages, m)
	q.mu.Unlock()

	if err := q.persist(); err != nil {
		return m, err
	}
	if q.log != nil {
		q.log.Infof(fmt.Sprintf("enqueued message %d for terminal %d", m.ID, target))
	}
	return m, nil
}

// Reorder moves the message at index `from` to index `to`, preserving ids.
// Indexes are into the current pending-queue order (not history).
func (q *Queue) Reorder(from, to int) error {
	q.mu.Lock()
	if from < 0 || from >= len(q.messages) || to < 0 || to >= len(q.messages) {
		q.mu.Unlock()
		return fmt.Errorf("reorder: %w", ErrInvalidInput)
	}
	before := summarizeOrder(q.messages)
	m := q.messages[from]
	q.messages = append(q.messages[:from], q.messages[from+1:]...)
	q.messages = append(q.messages[:to], append([]Message{m}, q.messages[to:]...)...)
	after := summarizeOrder(q.messages)
	q.mu.Unlock()

	if q.log != nil {
		if d := difflog.QueueOrderDiff(before, after); d != "" {
			q.log.Infof("queue reorder:\n" + d)
		}
	}
	return q.persist()
}

// summarizeOrder renders one difflog.MessageSummary line per message, for
// Reorder's before/after diff.
func summarizeOrder(messages []Message) []string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = difflog.MessageSummary(i+1, uint64(m.ID), m.OriginalText)
	}
	return lines
}

// ReorderFull reassigns the pending queue's order to match ids: each
// message named in ids is moved to the front in that order, and any
// pending message not named in ids keeps its relative order at the end.
// Unknown ids are ignored. Intended for RPC callers (daemon's "queue"
// method) that send a full desired ordering rather than a single
// from/to move.
func (q *Queue) ReorderFull(ids []MessageID) error {
	q.mu.Lock()
	before := summarizeOrder(q.messages)

	byID := make(map[MessageID]Message, len(q.messages))
	for _, m := range q.messages {
		byID[m.ID] = m
	}
	seen := make(map[MessageID]bool, len(ids))
	reordered := make([]Message, 0, len(q.messages))
	for _, id := range ids {
		if m, ok := byID[id]; ok && !seen[id] {
			reordered = append(reordered, m)
			seen[id] = true
		}
	}
	for _, m := range q.messages {
		if !seen[m.ID] {
			reordered = append(reordered, m)
		}
	}
	q.messages = reordered
	after := summarizeOrder(q.messages)
	q.mu.Unlock()

	if q.log != nil {
		if d := difflog.QueueOrderDiff(before, after); d != "" {
			q.log.Infof("queue reorder:\n" + d)
		}
	}
	return q.persist()
}

// Update replaces a pending message's content by id.
func (q *Queue) Update(id MessageID, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("update: %w", ErrInvalidInput)
	}
	q.mu.Lock()
	found := false
	for i := range q.messages {
		if q.messages[i].ID == id {
			q.messages[i].OriginalText = content
			q.messages[i].ProcessedText = content
			found = true
			break
		}
	}
	q.mu.Unlock()
	if !found {
		return fmt.Errorf("update: %w", ErrInvalidInput)
	}
	return q.persist()
}

// Delete removes a pending message by id.
func (q *Queue) Delete(id MessageID) error {
	q.mu.Lock()
	out := q.messages[:0]
	for _, m := range q.messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	q.messages = out
	q.mu.Unlock()
	return q.persist()
}

// Clear removes all pending messages.
func (q *Queue) Clear() error {
	q.mu.Lock()
	q.messages = nil
	q.mu.Unlock()
	return q.persist()
}

// Snapshot returns a copy of the current pending queue, safe for callers
// outside the single engine task to read (spec.md §5, "other consumers
// read a snapshot").
func (q *Queue) Snapshot() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.messages))
	copy(out, q.messages)
	return out
}

// ForTarget returns pending messages targeting t, in queue order.
func (q *Queue) ForTarget(t TerminalID) []Message {
	all := q.Snapshot()
	out := all[:0]
	for _, m := range all {
		if m.Target == t {
			out = append(out, m)
		}
	}
	return out
}

// NextEligible returns the message for terminal t with the smallest
// (execute_at, sequence) pair whose execute_at <= now, per spec.md §4.3
// step 4's tie-break: (execute_at ASC, sequence ASC, id ASC).
func (q *Queue) NextEligible(t TerminalID, now time.Time) (Message, bool) {
	candidates := q.ForTarget(t)
	var best *Message
	for i := range candidates {
		m := &candidates[i]
		if m.InFlight || m.ExecuteAt.After(now) {
			continue
		}
		if best == nil || less(*m, *best) {
			best = m
		}
	}
	if best == nil {
		return Message{}, false
	}
	return *best, true
}

// EarliestFutureExecuteAt returns the smallest ExecuteAt among pending
// messages for t that is still in the future, or zero+false if none.
func (q *Queue) EarliestFutureExecuteAt(t TerminalID, now time.Time) (time.Time, bool) {
	candidates := q.ForTarget(t)
	var earliest time.Time
	found := false
	for _, m := range candidates {
		if m.ExecuteAt.After(now) {
			if !found || m.ExecuteAt.Before(earliest) {
				earliest = m.ExecuteAt
				found = true
			}
		}
	}
	return earliest, found
}

func less(a, b Message) bool {
	if !a.ExecuteAt.Equal(b.ExecuteAt) {
		return a.ExecuteAt.Before(b.ExecuteAt)
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	return a.ID < b.ID
}

// UnshiftContinue inserts a "continue" message at the head of the queue for
// target t, used by the Usage-Limit Synchronizer on Timer natural expiry
// (spec.md §4.6) and by the Timer's own natural-completion handling
// (spec.md §4.5).
func (q *Queue) UnshiftContinue(t TerminalID) (Message, error) {
	q.mu.Lock()
	now := time.Now()
	m := Message{
		ID:            q.nextID,
		OriginalText:  "continue",
		ProcessedText: "continue",
		CreatedAt:     now,
		ExecuteAt:     now,
		Sequence:      q.nextSeq,
		Target:        t,
	}
	q.nextID++
	q.nextSeq++
	q.messages = append([]Message{m}, q.messages...)
	q.mu.Unlock()

	if err := q.persist(); err != nil {
		return m, err
	}
	if q.log != nil {
		q.log.Infof(fmt.Sprintf("unshifted continue message %d for terminal %d", m.ID, t))
	}
	return m, nil
}

// MarkInFlight transitions a message to in-flight, removing it from the
// eligible set without removing it from the backing slice (it is removed
// entirely on Complete).
func (q *Queue) MarkInFlight(id MessageID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.messages {
		if q.messages[i].ID == id {
			q.messages[i].InFlight = true
			return
		}
	}
}

// MarkPending clears the in-flight flag without removing the message
// (used when an injection is cancelled or the terminal closes mid-flight,
// spec.md §9(c)).
func (q *Queue) MarkPending(id MessageID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.messages {
		if q.messages[i].ID == id {
			q.messages[i].InFlight = false
			q.messages[i].TypedIndex = 0
			return
		}
	}
}

// SetTypedIndex records how far a paused executor progressed, so Resume
// can continue from it.
func (q *Queue) SetTypedIndex(id MessageID, idx int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.messages {
		if q.messages[i].ID == id {
			q.messages[i].TypedIndex = idx
			return
		}
	}
}

// Get returns a pending message by id.
func (q *Queue) Get(id MessageID) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Complete removes a message from the pending queue and appends it to
// Message History (bounded at MaxMessageHistory), per spec.md §3 ("on
// successful completion it is removed from the queue and appended to
// Message History").
func (q *Queue) Complete(id MessageID) error {
	q.mu.Lock()
	var completed Message
	out := q.messages[:0]
	for _, m := range q.messages {
		if m.ID == id {
			completed = m
			continue
		}
		out = append(out, m)
	}
	q.messages = out
	q.history = append(q.history, completed)
	if len(q.history) > MaxMessageHistory {
		q.history = q.history[len(q.history)-MaxMessageHistory:]
	}
	q.mu.Unlock()

	if q.persister != nil {
		if err := q.persister.SaveHistoryEntry(completed); err != nil {
			if q.log != nil {
				q.log.Errorf(fmt.Sprintf("persist history failed: %v", err))
			}
		}
	}
	return q.persist()
}

// History returns a copy of the in-memory history ring, newest last.
func (q *Queue) History() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.history))
	copy(out, q.history)
	return out
}

// persist writes the whole pending-queue array with retry and exponential
// backoff, per spec.md §4.9. On exhausted retries it returns a wrapped
// ErrPersistence but leaves the in-memory queue authoritative for the
// session (spec.md §4.9 Failure).
func (q *Queue) persist() error {
	if q.persister == nil {
		return nil
	}
	snapshot := q.Snapshot()

	var lastErr error
	backoff := persistBackoff
	for attempt := 0; attempt <= persistRetries; attempt++ {
		if err := q.persister.SaveQueue(snapshot); err != nil {
			lastErr = err
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		return nil
	}
	if q.log != nil {
		q.log.Errorf(fmt.Sprintf("queue persistence failed after %d attempts: %v", persistRetries+1, lastErr))
	}
	return fmt.Errorf("%w: %v", ErrPersistence, lastErr)
}

// sortBySequence is a helper exposed for tests verifying ordering
// invariants (spec.md §8 "Ordering").
func sortBySequence(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool { return less(msgs[i], msgs[j]) })
}
