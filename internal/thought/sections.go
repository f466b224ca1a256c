package thought

import (
	"strings"
	"time"
)

var zeroTime time.Time

// extractOpenQuestions returns the bullet items under a "## Open Questions"
// heading in body, stopping at the next heading of equal or higher level.
func extractOpenQuestions(body string) []string {
	lines := strings.Split(body, "\n")
	var questions []string
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			if level <= 2 {
				inSection = level == 2 && strings.EqualFold(strings.TrimSpace(trimmed[level:]), "Open Questions")
			}
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			questions = append(questions, strings.TrimSpace(trimmed[2:]))
		}
	}
	return questions
}
