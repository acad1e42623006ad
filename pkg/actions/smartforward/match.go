package smartforward

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/dukex/tripwire/pkg/models"
)

// Match is a rule that met its minimum keyword count.
type Match struct {
	Rule     models.KeywordForwardingRule
	Keywords []string
	order    int
}

// SelectRule returns the best matching rule: highest priority, then most keywords
// matched, then earliest in the list.
func SelectRule(rules []models.KeywordForwardingRule, text string) (Match, bool) {
	tokens := tokenize(text)
	lower := strings.ToLower(text)

	var (
		best  Match
		found bool
	)

	for i, rule := range rules {
		matched := matchKeywords(rule, lower, tokens)
		if len(matched) == 0 || len(matched) < max(rule.MinMatches, 1) {
			continue
		}

		candidate := Match{Rule: rule, Keywords: matched, order: i}
		if !found || better(candidate, best) {
			best = candidate
			found = true
		}
	}

	return best, found
}

func better(a, b Match) bool {
	if a.Rule.Priority != b.Rule.Priority {
		return a.Rule.Priority > b.Rule.Priority
	}

	if len(a.Keywords) != len(b.Keywords) {
		return len(a.Keywords) > len(b.Keywords)
	}

	return a.order < b.order
}

func matchKeywords(rule models.KeywordForwardingRule, lower string, tokens []string) []string {
	var matched []string

	for _, keyword := range rule.Keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}

		if containsPhrase(tokens, tokenize(keyword)) ||
			(rule.MatchType == models.MatchFuzzy && fuzzyContains(lower, tokens, keyword)) {
			matched = append(matched, keyword)
		}
	}

	return matched
}

// containsPhrase reports whether phrase appears as consecutive whole tokens.
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}

	for i := 0; i+len(phrase) <= len(tokens); i++ {
		equal := true

		for j := range phrase {
			if tokens[i+j] != phrase[j] {
				equal = false

				break
			}
		}

		if equal {
			return true
		}
	}

	return false
}

func fuzzyContains(lower string, tokens []string, keyword string) bool {
	if strings.Contains(lower, keyword) {
		return true
	}

	if strings.ContainsFunc(keyword, unicode.IsSpace) {
		return false
	}

	allowed := tolerance(keyword)
	length := utf8.RuneCountInString(keyword)

	for _, token := range tokens {
		if abs(utf8.RuneCountInString(token)-length) > allowed {
			continue
		}

		if levenshtein.ComputeDistance(token, keyword) <= allowed {
			return true
		}
	}

	return false
}

// tolerance is the edit distance accepted for a keyword of the given length.
func tolerance(keyword string) int {
	switch n := len([]rune(keyword)); {
	case n <= 3:
		return 0
	case n <= 6:
		return 1
	default:
		return 2
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
