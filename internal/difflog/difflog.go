// Package difflog renders a human-readable unified diff between two
// Message Queue orderings, used for the Action Log's "queue reorder"
// entries (spec.md §4.9 "User reorders queue via UI").
package difflog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// QueueOrderDiff returns a unified diff between before and after, each
// one queued-message summary per line, or "" if the orderings are
// identical (no reorder occurred).
func QueueOrderDiff(before, after []string) string {
	beforeText := renderLines(before)
	afterText := renderLines(after)
	if beforeText == afterText {
		return ""
	}
	return udiff.Unified("queue(before)", "queue(after)", beforeText, afterText)
}

// MessageSummary formats a single queue entry for diffing: its position,
// id, and a short preview of its text.
func MessageSummary(position int, id uint64, text string) string {
	const maxPreview = 48
	preview := strings.ReplaceAll(text, "\n", " ")
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "..."
	}
	return fmt.Sprintf("%d. #%s %s", position, strconv.FormatUint(id, 10), preview)
}

func renderLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
