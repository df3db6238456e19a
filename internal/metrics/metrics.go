// Package metrics exposes lightweight counters for the scheduler pass
// loop, injections, and Action Log overflow, readable in Prometheus text
// format through WritePrometheus. Grounded on the teacher's use of small single-purpose
// internal packages per concern; backed by the VictoriaMetrics metrics
// library already present in the retrieved pack's go.mod set.
package metrics

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	schedulerPasses     = metrics.NewCounter("atari_inject_scheduler_passes_total")
	injectionsStarted   = metrics.NewCounter("atari_inject_injections_started_total")
	injectionsCompleted = metrics.NewCounter("atari_inject_injections_completed_total")
	injectionsCancelled = metrics.NewCounter("atari_inject_injections_cancelled_total")
	actionLogOverflow   = metrics.NewCounter("atari_inject_action_log_overflow_total")
	keywordFires        = metrics.NewCounter("atari_inject_keyword_fires_total")
	guardBlocks         = metrics.NewCounter("atari_inject_guard_blocks_total")
)

// SchedulerPass records one completed Scheduler.Pass call.
func SchedulerPass() { schedulerPasses.Inc() }

// InjectionStarted records a Typing Executor run beginning.
func InjectionStarted() { injectionsStarted.Inc() }

// InjectionCompleted records a Typing Executor run finishing normally.
func InjectionCompleted() { injectionsCompleted.Inc() }

// InjectionCancelled records a Typing Executor run stopped by Cancel.
func InjectionCancelled() { injectionsCancelled.Inc() }

// ActionLogOverflow records an Action Log ring trimming its oldest entries.
func ActionLogOverflow() { actionLogOverflow.Inc() }

// KeywordFire records a Keyword Interruptor match firing.
func KeywordFire() { keywordFires.Inc() }

// GuardBlock records the dangerous-command guard withholding a message.
func GuardBlock() { guardBlocks.Inc() }

// WritePrometheus writes all registered counters in Prometheus exposition
// format. No CLI command calls it; `status` does not print these counters.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
