package usecases

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"waflow/internal/entities"
)

// stripMarks removes combining marks after NFD decomposition, so "sí"
// normalizes to "si".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeTriggerText(s string) string {
	normalized, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Fall back to plain trim+lowercase on odd input.
		return strings.ToLower(strings.TrimSpace(s))
	}
	return strings.ToLower(strings.TrimSpace(normalized))
}

// MatchesTrigger reports whether a free-text message satisfies a flow's
// trigger keyword. Both sides are trimmed, diacritic-stripped and
// lower-cased before comparing. The "default" keyword matches anything;
// the router is responsible for evaluating default flows last.
func MatchesTrigger(messageText, triggerKeyword string) bool {
	keyword := normalizeTriggerText(triggerKeyword)
	if keyword == entities.TriggerDefault {
		return true
	}
	if keyword == "" {
		return false
	}

	message := normalizeTriggerText(messageText)
	if message == "" {
		return false
	}
	if message == keyword || strings.Contains(message, keyword) {
		return true
	}
	for _, token := range strings.Fields(message) {
		if token == keyword {
			return true
		}
	}
	return false
}
