package engage

import (
	"strings"

	"github.com/MikeSquared-Agency/lure/internal/assess"
	"github.com/MikeSquared-Agency/lure/internal/session"
)

var disengagePhrases = []string{
	"goodbye",
	"good bye",
	"bye",
	"stop messaging",
	"stop texting",
	"don't contact",
	"do not contact",
	"never mind",
	"forget it",
	"wrong number",
	"leave me alone",
	"not interested",
}

// DefaultDisengage detects an explicit walk-away in the counterpart's
// message: a goodbye or a withdrawal of the pitch. Scores are not consulted
// here; stagnation is handled separately by the quiet-streak rule.
func DefaultDisengage(msg session.Message, _ assess.Assessment) bool {
	lowered := strings.ToLower(strings.TrimSpace(msg.Text))
	if lowered == "" {
		return false
	}
	for _, phrase := range disengagePhrases {
		if phrase == "bye" {
			// "bye" alone, not as a substring of "buyer" etc.
			if lowered == "bye" || strings.HasPrefix(lowered, "bye ") || strings.HasSuffix(lowered, " bye") {
				return true
			}
			continue
		}
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
