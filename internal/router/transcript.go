package router

import "strings"

// Transcript lines are "User: ..." / "Bot: ..." strings, oldest first. The
// caller ships the full transcript with every turn, so the in-request history
// is the source of truth for the most recent bot line; the stored copy may
// lag one turn behind.

// BuildUpdatedHistory appends the latest exchange to the transcript.
func BuildUpdatedHistory(existing []string, userQuery, botResponse string) []string {
	updated := make([]string, 0, len(existing)+2)
	updated = append(updated, existing...)
	return append(updated, "User: "+userQuery, "Bot: "+botResponse)
}

// ExtractBotLines returns the last count bot messages from the transcript,
// newest first, lower-cased and stripped of the "Bot:" prefix.
func ExtractBotLines(history []string, count int) []string {
	var lines []string
	for i := len(history) - 1; i >= 0 && len(lines) < count; i-- {
		line := history[i]
		if !strings.HasPrefix(strings.ToLower(line), "bot:") {
			continue
		}
		_, rest, _ := strings.Cut(line, ":")
		lines = append(lines, strings.ToLower(strings.TrimSpace(rest)))
	}
	return lines
}
