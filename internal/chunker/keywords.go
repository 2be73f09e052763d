package chunker

import "strings"

// DefaultKeywords is the DCS World scripting vocabulary flagged in chunk text
var DefaultKeywords = []string{
	"coalition", "country", "trigger", "action", "condition",
	"unit", "group", "static", "airbase", "zone", "waypoint",
	"task", "mission", "event", "handler", "missionCommands",
	"timer", "scheduler", "radio", "marker", "smoke", "flare",
}

// ScanKeywords returns the keywords that occur in text, compared
// case-insensitively, in vocabulary order and without duplicates.
func ScanKeywords(text string, keywords []string) []string {
	if text == "" || len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var found []string
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if strings.Contains(lower, key) {
			found = append(found, kw)
		}
	}
	return found
}
