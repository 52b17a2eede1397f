// Package utils holds small duration and string formatting helpers and
// the FirstToken line splitter used by internal/inputlist.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration formats a duration into human readable "1h 2m 3s" form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("0h 0m %ds", int(d.Seconds()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// FormatTimeAgo formats a time.Time into relative form like "2h 30m 15s ago".
func FormatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := time.Since(t)
	if d < 0 {
		return "in the future"
	}

	return FormatDuration(d) + " ago"
}

// TruncateString truncates a string to maxLen characters, appending "..."
// when truncation occurs.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// FirstToken splits a line on whitespace, returning the first token and the
// trimmed remainder. Used by internal/inputlist to split a task name from
// its command when --with-task-name is set.
func FirstToken(line string) (first, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", "", false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", "", false
	}
	idx := strings.Index(trimmed, fields[0]) + len(fields[0])
	return fields[0], strings.TrimSpace(trimmed[idx:]), true
}
