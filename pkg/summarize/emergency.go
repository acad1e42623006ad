package summarize

import (
	"context"
	"strings"
)

const (
	ellipsis         = "…"
	emptyPlaceholder = "(empty)"
)

// EmergencyStrategy truncates at a word boundary. It cannot fail.
type EmergencyStrategy struct{}

func (EmergencyStrategy) Name() string { return "emergency" }

func (EmergencyStrategy) Summarize(_ context.Context, text string, maxLength int, _ Style) (string, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return emptyPlaceholder, nil
	}

	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	if len(words) <= maxLength {
		return strings.Join(words, " "), nil
	}

	words = words[:maxLength]

	// Prefer a sentence end in the last third of the cut.
	for i := len(words) - 1; i >= maxLength*2/3; i-- {
		if endsSentence(words[i]) {
			return strings.Join(words[:i+1], " "), nil
		}
	}

	return strings.Join(words, " ") + ellipsis, nil
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}
