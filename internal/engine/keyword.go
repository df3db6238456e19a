package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/npratt/atari/internal/metrics"
)

// Keyword Interruptor tuning constants (spec.md §4.8).
const (
	keywordEscapeDelayMin = 700 * time.Millisecond
	keywordEscapeDelayMax = 1000 * time.Millisecond
	keywordReturnDelayMin = 150 * time.Millisecond
	keywordReturnDelayMax = 350 * time.Millisecond
	keywordRearmMinMs     = 800 * time.Millisecond
	keywordRearmMaxMs     = 1200 * time.Millisecond
)

// KeywordStore holds the configured set of Keyword Rules. Keyword strings
// are unique case-insensitively (spec.md §3).
type KeywordStore struct {
	mu    sync.Mutex
	rules []*KeywordRule
	nextID uint64
}

// NewKeywordStore creates an empty store.
func NewKeywordStore() *KeywordStore { return &KeywordStore{} }

// Add inserts a rule, rejecting a duplicate (case-insensitive) keyword.
func (s *KeywordStore) Add(keyword, response string, cooldown time.Duration) (*KeywordRule, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("keyword rule: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(keyword)
	for _, r := range s.rules {
		if strings.ToLower(r.Keyword) == lower {
			return nil, fmt.Errorf("keyword rule: duplicate keyword: %w", ErrInvalidInput)
		}
	}
	r := &KeywordRule{
		ID:        s.nextID,
		Keyword:   keyword,
		Response:  response,
		Cooldown:  cooldown,
		lastFired: map[TerminalID]time.Time{},
	}
	s.nextID++
	s.rules = append(s.rules, r)
	return r, nil
}

// Remove deletes a rule by id.
func (s *KeywordStore) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.rules[:0]
	for _, r := range s.rules {
		if r.ID != id {
			out = append(out, r)
		}
	}
	s.rules = out
}

// All returns the configured rules.
func (s *KeywordStore) All() []*KeywordRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*KeywordRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// KeywordInterruptor implements spec.md §4.8. Precondition: auto-continue
// enabled and the verdict is `prompting`. It examines the prompt's visible
// region; on a keyword match it sends Escape and, if the rule carries a
// response, types it and sends Return. It fires at most once per prompt
// occurrence and re-arms when the verdict leaves `prompting`.
type KeywordInterruptor struct {
	writer   PTYWriter
	clock    Clock
	log      *ActionLog
	typing   *TypingExecutor
	autoCont *AutoContinue

	mu     sync.Mutex
	armed  map[TerminalID]bool // true once this interruptor has fired for the current prompt occurrence (disarmed until Rearm)
}

// NewKeywordInterruptor wires the interruptor to its collaborators. typing
// is used to type the optional response text; autoCont is suppressed while
// firing.
func NewKeywordInterruptor(w PTYWriter, clock Clock, log *ActionLog, typing *TypingExecutor, autoCont *AutoContinue) *KeywordInterruptor {
	if clock == nil {
		clock = RealClock{}
	}
	return &KeywordInterruptor{writer: w, clock: clock, log: log, typing: typing, autoCont: autoCont, armed: map[TerminalID]bool{}}
}

// Rearm marks t eligible to fire again; called when the verdict leaves
// `prompting` (spec.md §4.8).
func (k *KeywordInterruptor) Rearm(t TerminalID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.armed, t)
}

func (k *KeywordInterruptor) isArmed(t TerminalID) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return !k.armed[t]
}

func (k *KeywordInterruptor) markFired(t TerminalID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.armed[t] = true
}

// TryFire checks the window's prompt region against store and, on a match
// that isn't in cooldown and isn't already fired for this occurrence, sends
// Escape (and optionally types the response). It returns true if it fired.
func (k *KeywordInterruptor) TryFire(ctx context.Context, t TerminalID, window *OutputWindow, store *KeywordStore) bool {
	if k.autoCont != nil && !k.autoCont.Enabled() {
		return false
	}
	if !k.isArmed(t) {
		return false
	}

	rule, ok := window.MatchKeyword(store.All())
	if !ok {
		return false
	}

	now := time.Now()
	if rule.Cooldown > 0 {
		if last, seen := rule.lastFired[t]; seen && now.Sub(last) < rule.Cooldown {
			return false
		}
	}

	k.markFired(t)
	metrics.KeywordFire()
	if k.autoCont != nil {
		k.autoCont.Suppress(t)
	}
	rule.lastFired[t] = now

	if err := k.writer.Write(t, []byte{0x1B}); err != nil {
		if k.log != nil {
			k.log.Warnf(fmt.Sprintf("keyword interruptor: escape write failed on terminal %d: %v", t, err))
		}
		return true
	}
	if k.log != nil {
		k.log.Infof(fmt.Sprintf("keyword interruptor: matched %q on terminal %d, sent Escape", rule.Keyword, t))
	}

	if rule.Response == "" {
		return true
	}

	go func() {
		k.clock.Sleep(randBetween(keywordEscapeDelayMin, keywordEscapeDelayMax))
		if ctx.Err() != nil {
			return
		}
		// The Typing Executor's own plain-text path already sends Return
		// after a randomized pause following the last character (spec.md
		// §4.4), which satisfies this rule's "type the response, then
		// Return after a pause" requirement without a second Return.
		done := make(chan struct{})
		msg := &Message{ProcessedText: rule.Response}
		k.typing.Run(ctx, t, msg, func(bool) { close(done) })
		<-done
	}()

	return true
}
