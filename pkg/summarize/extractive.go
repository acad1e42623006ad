package summarize

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

var (
	importanceKeywords = []string{
		"urgent", "important", "asap", "deadline", "critical", "action required",
		"please", "decision", "approve", "confirm", "cancel", "today", "tomorrow",
	}

	emailKeywords = []string{
		"meeting", "invoice", "payment", "attached", "attachment", "reply",
		"schedule", "order", "delivery", "update", "reminder", "request",
	}
)

// ExtractiveStrategy selects the highest-scoring sentences of the input.
type ExtractiveStrategy struct{}

func (ExtractiveStrategy) Name() string { return "extractive" }

type scoredSentence struct {
	index int
	text  string
	words int
	score float64
}

func (ExtractiveStrategy) Summarize(_ context.Context, text string, maxLength int, style Style) (string, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", ErrNothingToSummarize
	}

	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	scored := make([]scoredSentence, len(sentences))
	for i, sentence := range sentences {
		scored[i] = scoredSentence{
			index: i,
			text:  sentence,
			words: len(strings.Fields(sentence)),
			score: scoreSentence(sentence, i, len(sentences)),
		}
	}

	ranked := make([]scoredSentence, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	budget := max(maxLength*4/5, 1)
	used := 0

	var selected []scoredSentence

	for _, sentence := range ranked {
		if used+sentence.words > budget {
			continue
		}

		selected = append(selected, sentence)
		used += sentence.words
	}

	if len(selected) == 0 {
		best := ranked[0]
		best.text = strings.Join(strings.Fields(best.text)[:budget], " ") + ellipsis
		selected = append(selected, best)
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].index < selected[j].index })

	parts := make([]string, len(selected))
	for i, sentence := range selected {
		parts[i] = sentence.text
	}

	if style == StyleStructured {
		return "• " + strings.Join(parts, "\n• "), nil
	}

	return strings.Join(parts, " "), nil
}

func scoreSentence(sentence string, position, total int) float64 {
	score := 0.0

	switch {
	case position == 0:
		score += 2
	case position == total-1:
		score++
	}

	if words := len(strings.Fields(sentence)); words >= 8 && words <= 25 {
		score++
	}

	lower := strings.ToLower(sentence)

	for _, keyword := range importanceKeywords {
		if strings.Contains(lower, keyword) {
			score += 0.5
		}
	}

	for _, keyword := range emailKeywords {
		if strings.Contains(lower, keyword) {
			score += 0.3
		}
	}

	return score
}

// splitSentences breaks on ., ! or ? followed by whitespace, and on line breaks.
func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	flush := func() {
		if sentence := strings.Join(strings.Fields(current.String()), " "); sentence != "" {
			sentences = append(sentences, sentence)
		}

		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()

			continue
		}

		current.WriteRune(r)

		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}

	flush()

	return sentences
}
