package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var ErrInvalidExpression = errors.New("invalid conditional expression")

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// EvaluateCondition evaluates a small boolean expression against variables.
// Supported: ==, !=, >, <, >=, <=, contains, &&, ||, !, parentheses and quoted
// literals. A bare word resolves to the variable of that name when one exists,
// otherwise to itself. A {{name}} placeholder is always a single operand, also
// inside quotes, and resolves to the variable's value or "" when unset. Values
// are resolved after parsing, so they never change the expression's structure.
// A lone operand is judged by Truthy.
func EvaluateCondition(expression string, variables map[string]string) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return false, err
	}

	p := &conditionParser{tokens: tokens, variables: variables}

	result, err := p.parseOr()
	if err != nil {
		return false, err
	}

	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, p.tokens[p.pos].text)
	}

	return result, nil
}

// Truthy converts a variable value to a boolean: empty, "false", "no", "off"
// and numeric zero are false, anything else is true.
func Truthy(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}

	switch strings.ToLower(v) {
	case "no", "off", "null", "nil":
		return false
	}

	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f != 0
	}

	return true
}

type tokenKind int

const (
	tokenOperand tokenKind = iota
	tokenOperator
	tokenLParen
	tokenRParen
)

type token struct {
	kind        tokenKind
	text        string
	quoted      bool
	placeholder bool
}

var operators = []string{"==", "!=", ">=", "<=", "&&", "||", ">", "<", "!"}

func tokenize(input string) ([]token, error) {
	var tokens []token

	runes := []rune(input)
	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")"})
			i++
		case r == '"' || r == '\'':
			end := i + 1
			for end < len(runes) && runes[end] != r {
				end++
			}

			if end >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated string", ErrInvalidExpression)
			}

			tokens = append(tokens, token{kind: tokenOperand, text: string(runes[i+1 : end]), quoted: true})
			i = end + 1
		case openPlaceholder(runes[i:]):
			end := strings.Index(string(runes[i+2:]), "}}")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated placeholder", ErrInvalidExpression)
			}

			body := string(runes[i+2:])[:end]

			name := strings.TrimSpace(body)
			if name == "" {
				return nil, fmt.Errorf("%w: empty placeholder", ErrInvalidExpression)
			}

			tokens = append(tokens, token{kind: tokenOperand, text: name, placeholder: true})
			i += 2 + len([]rune(body)) + 2
		default:
			if op := matchOperator(runes[i:]); op != "" {
				tokens = append(tokens, token{kind: tokenOperator, text: op})
				i += len(op)

				continue
			}

			end := i
			for end < len(runes) && !unicode.IsSpace(runes[end]) && !strings.ContainsRune("()\"'", runes[end]) &&
				matchOperator(runes[end:]) == "" && !openPlaceholder(runes[end:]) {
				end++
			}

			word := string(runes[i:end])
			if strings.EqualFold(word, "contains") {
				tokens = append(tokens, token{kind: tokenOperator, text: "contains"})
			} else {
				tokens = append(tokens, token{kind: tokenOperand, text: word})
			}

			i = end
		}
	}

	return tokens, nil
}

func openPlaceholder(runes []rune) bool {
	return len(runes) >= 2 && runes[0] == '{' && runes[1] == '{'
}

func matchOperator(runes []rune) string {
	for _, op := range operators {
		if len(runes) >= len(op) && string(runes[:len(op)]) == op {
			return op
		}
	}

	return ""
}

type conditionParser struct {
	tokens    []token
	pos       int
	variables map[string]string
}

func (p *conditionParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}

	return p.tokens[p.pos], true
}

func (p *conditionParser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokenOperator || tok.text != "||" {
			return left, nil
		}

		p.pos++

		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}

		left = left || right
	}
}

func (p *conditionParser) parseAnd() (bool, error) {
	left, err := p.parseUnary()
	if err != nil {
		return false, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokenOperator || tok.text != "&&" {
			return left, nil
		}

		p.pos++

		right, err := p.parseUnary()
		if err != nil {
			return false, err
		}

		left = left && right
	}
}

func (p *conditionParser) parseUnary() (bool, error) {
	tok, ok := p.peek()
	if !ok {
		return false, fmt.Errorf("%w: unexpected end", ErrInvalidExpression)
	}

	switch {
	case tok.kind == tokenOperator && tok.text == "!":
		p.pos++

		value, err := p.parseUnary()

		return !value, err
	case tok.kind == tokenLParen:
		p.pos++

		value, err := p.parseOr()
		if err != nil {
			return false, err
		}

		closing, ok := p.peek()
		if !ok || closing.kind != tokenRParen {
			return false, fmt.Errorf("%w: missing )", ErrInvalidExpression)
		}

		p.pos++

		return value, nil
	default:
		return p.parseComparison()
	}
}

func (p *conditionParser) parseComparison() (bool, error) {
	left, err := p.operand()
	if err != nil {
		return false, err
	}

	tok, ok := p.peek()
	if !ok || tok.kind != tokenOperator || tok.text == "&&" || tok.text == "||" || tok.text == "!" {
		return Truthy(left), nil
	}

	p.pos++

	right, err := p.operand()
	if err != nil {
		return false, err
	}

	return compare(left, tok.text, right), nil
}

func (p *conditionParser) operand() (string, error) {
	tok, ok := p.peek()
	if !ok || tok.kind != tokenOperand {
		return "", fmt.Errorf("%w: expected operand", ErrInvalidExpression)
	}

	p.pos++

	switch {
	case tok.placeholder:
		return p.variables[tok.text], nil
	case tok.quoted:
		return expandPlaceholders(tok.text, p.variables), nil
	}

	if value, found := p.variables[tok.text]; found {
		return value, nil
	}

	return tok.text, nil
}

// expandPlaceholders resolves {{name}} inside a quoted literal.
func expandPlaceholders(literal string, variables map[string]string) string {
	if !strings.Contains(literal, "{{") {
		return literal
	}

	return placeholderPattern.ReplaceAllStringFunc(literal, func(match string) string {
		return variables[placeholderPattern.FindStringSubmatch(match)[1]]
	})
}

func compare(left, op, right string) bool {
	if op == "contains" {
		return strings.Contains(strings.ToLower(left), strings.ToLower(right))
	}

	lf, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	rf, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	numeric := lerr == nil && rerr == nil

	switch op {
	case "==":
		if numeric {
			return lf == rf
		}

		return left == right
	case "!=":
		if numeric {
			return lf != rf
		}

		return left != right
	case ">":
		if numeric {
			return lf > rf
		}

		return left > right
	case "<":
		if numeric {
			return lf < rf
		}

		return left < right
	case ">=":
		if numeric {
			return lf >= rf
		}

		return left >= right
	case "<=":
		if numeric {
			return lf <= rf
		}

		return left <= right
	}

	return false
}
