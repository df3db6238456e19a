package engine

import (
	"regexp"
	"strings"
)

// MaxWindowBytes bounds the rolling output window kept per terminal.
const MaxWindowBytes = 5000

// PromptRegionFallbackBytes is how far back to look for keyword matching
// when no prompt-framing character is present in the window.
const PromptRegionFallbackBytes = 1000

// promptFrameChar delimits the start of the most recent prompt box.
const promptFrameChar = "╭"

var usageLimitRe = regexp.MustCompile(`(?i)Claude usage limit reached\. Your limit will reset at (\d{1,2})(am|pm)`)

// clearScreenSequences are ANSI sequences that reset the terminal view; when
// one appears in newly appended bytes, the window is cleared before
// classification runs.
var clearScreenSequences = []string{
	"\x1b[2J",
	"\x1b[H\x1b[2J",
	"\x1b[3J",
}

// markerTable is evaluated in order; the first match wins. This mirrors
// spec.md §4.1's table exactly.
type markerRule struct {
	verdict Verdict
	markers []string
}

var markerTable = []markerRule{
	{VerdictRunning, []string{"esc to interrupt", "(esc to interrupt)", "offline)"}},
	{VerdictPrompting, []string{"no, and tell claude what to do differently"}},
	{VerdictTrustAsked, []string{"do you trust the files in this folder?"}},
}

// proceedMarker is also recognized as "prompting" for auto-continue purposes
// (spec.md §4.1, "Also recognized for auto-continue").
const proceedMarker = "do you want to proceed?"

// OutputWindow is a rolling, bounded view of a terminal's recent output
// bytes, classified on every append. It is not safe for concurrent use;
// callers (the engine's single task) serialize access.
type OutputWindow struct {
	buf []byte
}

// NewOutputWindow creates an empty window.
func NewOutputWindow() *OutputWindow {
	return &OutputWindow{buf: make([]byte, 0, MaxWindowBytes)}
}

// Append adds bytes to the window, trimming to MaxWindowBytes and resetting
// on a clear-screen sequence, then returns the classified verdict.
func (w *OutputWindow) Append(b []byte) DetectorVerdict {
	for _, seq := range clearScreenSequences {
		if strings.Contains(string(b), seq) {
			w.buf = w.buf[:0]
			break
		}
	}

	w.buf = append(w.buf, b...)
	if len(w.buf) > MaxWindowBytes {
		w.buf = w.buf[len(w.buf)-MaxWindowBytes:]
	}

	return Classify(w.buf)
}

// Bytes returns the current window contents.
func (w *OutputWindow) Bytes() []byte {
	return w.buf
}

// PromptRegion returns the text following the last "╭" in the window, or
// the last PromptRegionFallbackBytes bytes if no framing character is
// present.
func (w *OutputWindow) PromptRegion() string {
	return promptRegion(w.buf)
}

func promptRegion(buf []byte) string {
	if idx := strings.LastIndex(string(buf), promptFrameChar); idx >= 0 {
		return string(buf[idx:])
	}
	if len(buf) > PromptRegionFallbackBytes {
		return string(buf[len(buf)-PromptRegionFallbackBytes:])
	}
	return string(buf)
}

// Classify applies the marker table in order to a byte window and returns
// the resulting verdict. It is a pure function of its input, per spec.md
// §4.1 ("Stateless w.r.t. history beyond the window").
func Classify(buf []byte) DetectorVerdict {
	lower := strings.ToLower(string(buf))

	for _, rule := range markerTable {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return DetectorVerdict{Verdict: rule.verdict}
			}
		}
	}

	if m := usageLimitRe.FindStringSubmatch(string(buf)); m != nil {
		return DetectorVerdict{
			Verdict:   VerdictUsageLimitAnnounced,
			ResetTime: strings.ToLower(m[1] + m[2]),
		}
	}

	return DetectorVerdict{Verdict: VerdictIdle}
}

// IsProceedPrompt reports whether the window's tail contains the
// auto-continue "Do you want to proceed?" marker (checked independently of
// the primary verdict, per spec.md §4.1).
func (w *OutputWindow) IsProceedPrompt() bool {
	return strings.Contains(strings.ToLower(string(w.buf)), proceedMarker)
}

// MatchKeyword reports whether any of the supplied rules' keywords appear
// (case-insensitively) in the window's prompt region, returning the first
// match.
func (w *OutputWindow) MatchKeyword(rules []*KeywordRule) (*KeywordRule, bool) {
	region := strings.ToLower(w.PromptRegion())
	for _, r := range rules {
		if r.Keyword == "" {
			continue
		}
		if strings.Contains(region, strings.ToLower(r.Keyword)) {
			return r, true
		}
	}
	return nil, false
}
