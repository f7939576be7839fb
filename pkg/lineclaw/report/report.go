// Package report renders activity-log entries into the plain-text report
// pushed to the admin, and splits long reports into chunks that fit the
// LINE text-message limit.
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
)

// Separator divides the blocks of a report. Split prefers to cut on it so
// a block is never torn across two messages.
const Separator = "\n──────────────\n"

// DefaultMaxChunkRunes stays under LINE's 5000-character text limit with
// headroom for the trailing separator a chunk may carry.
const DefaultMaxChunkRunes = 4800

// Build renders entries into a single report string: a title, a summary
// line and one block per entry with its local-time stamp, display name,
// user text and reply preview. Timestamps are formatted in loc; a nil loc
// means the system zone. An empty entry set yields a short notice instead
// of an empty report.
func Build(entries []activity.Entry, title string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	if len(entries) == 0 {
		b.WriteString("\nNo conversations in this period.")
		return b.String()
	}

	users := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		users[e.UserID] = struct{}{}
	}
	fmt.Fprintf(&b, "%d messages · %d users\n", len(entries), len(users))

	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = e.UserID
		}
		b.WriteString(Separator)
		fmt.Fprintf(&b, "%s · %s\n", e.Timestamp.In(loc).Format("01/02 15:04"), name)
		b.WriteString(e.UserText)
		b.WriteString("\n↪ ")
		b.WriteString(e.ReplyPreview)
	}
	return b.String()
}

// Split cuts text into chunks of at most maxRunes runes each. Cuts land
// on the last Separator that fits, falling back to a hard cut only when a
// single block exceeds the limit. Separators stay at the end of the chunk
// they close, so concatenating the chunks reproduces text exactly.
func Split(text string, maxRunes int) []string {
	if text == "" {
		return nil
	}
	if maxRunes <= 0 {
		maxRunes = DefaultMaxChunkRunes
	}

	var chunks []string
	remaining := text
	for utf8.RuneCountInString(remaining) > maxRunes {
		window := remaining[:byteOffset(remaining, maxRunes)]
		if cut := strings.LastIndex(window, Separator); cut > 0 {
			end := cut + len(Separator)
			chunks = append(chunks, remaining[:end])
			remaining = remaining[end:]
			continue
		}
		chunks = append(chunks, window)
		remaining = remaining[len(window):]
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// byteOffset returns the byte index of the n-th rune of s, or len(s) when
// s has fewer than n runes.
func byteOffset(s string, n int) int {
	seen := 0
	for i := range s {
		if seen == n {
			return i
		}
		seen++
	}
	return len(s)
}
