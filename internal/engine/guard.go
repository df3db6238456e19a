package engine

import "regexp"

// DangerousPatterns are destructive-shell-command regexes checked against a
// message's text when the daemon's enqueue handler accepts it. This is
// a SPEC_FULL.md supplement grounded on the teacher pack's
// alehatsman-claude-autoapprove wrapper; it augments spec.md §4.4 without
// weakening any invariant in §8 — a match does not block the message, it
// requires Force to be set (see the daemon's enqueue handler).
var DangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/`),
	regexp.MustCompile(`\bmkfs\b`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`\bshutdown\b`),
	regexp.MustCompile(`\breboot\b`),
	regexp.MustCompile(`:\(\)\{\s*:\|:&\s*\};:`),
	regexp.MustCompile(`curl[^|]*\|\s*sh`),
	regexp.MustCompile(`wget[^|]*\|\s*sh`),
	regexp.MustCompile(`/etc/sudoers`),
	regexp.MustCompile(`chmod\s+777\s+/`),
	regexp.MustCompile(`git\s+push\s+--force`),
}

// IsDangerous reports whether text matches any configured destructive
// pattern.
func IsDangerous(text string) (*regexp.Regexp, bool) {
	for _, re := range DangerousPatterns {
		if re.MatchString(text) {
			return re, true
		}
	}
	return nil, false
}
