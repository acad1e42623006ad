package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCondition(t *testing.T) {
	variables := map[string]string{
		"email_subject": "Invoice #42 overdue",
		"priority":      "7",
		"is_read":       "false",
		"sender":        "billing@example.com",
		"empty":         "",
	}

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"empty expression", "", true},
		{"literal true", "true", true},
		{"literal false", "false", false},
		{"truthy variable", "sender", true},
		{"falsy variable", "is_read", false},
		{"empty variable", "empty", false},
		{"negation", "!is_read", true},
		{"string equality", "sender == 'billing@example.com'", true},
		{"string inequality", "sender != \"billing@example.com\"", false},
		{"contains is case insensitive", "email_subject contains invoice", true},
		{"contains miss", "email_subject contains refund", false},
		{"numeric greater", "priority > 5", true},
		{"numeric not lexical", "priority < 10", true},
		{"numeric greater equal", "priority >= 7", true},
		{"numeric less equal", "priority <= 6", false},
		{"and", "priority > 5 && email_subject contains overdue", true},
		{"or", "priority > 50 || sender contains example", true},
		{"grouping", "!(priority > 5 && is_read)", true},
		{"and binds tighter than or", "false && false || true", true},
		{"unknown bare word is literal", "status == status", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EvaluateCondition(tt.expression, variables)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluateCondition_Placeholders(t *testing.T) {
	variables := map[string]string{
		"email_subject": "Quarterly report (draft) && more",
		"email_from":    `evil@x.com" || "1`,
		"priority":      "7",
	}

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"multi word value is one operand", "{{email_subject}} contains report", true},
		{"operators in value stay data", "{{ email_subject }} contains refund", false},
		{"quoted placeholder cannot close the quote", `"{{email_from}}" == "boss@corp.com"`, false},
		{"quoted placeholder compares whole value", `'{{email_from}}' == 'evil@x.com" || "1'`, true},
		{"numeric placeholder", "{{priority}} >= 7", true},
		{"unset placeholder is empty", "{{missing}}", false},
		{"adjacent to word", "priority>{{priority}}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EvaluateCondition(tt.expression, variables)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluateCondition_Errors(t *testing.T) {
	for _, expression := range []string{"(a == b", "a == 'open", "a ==", "a b", "&& a", "{{a == b", "{{ }} == b"} {
		_, err := EvaluateCondition(expression, nil)
		assert.ErrorIs(t, err, ErrInvalidExpression, expression)
	}
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy("yes please"))
	assert.True(t, Truthy("1"))
	assert.True(t, Truthy("TRUE"))
	assert.False(t, Truthy(" "))
	assert.False(t, Truthy("0"))
	assert.False(t, Truthy("0.0"))
	assert.False(t, Truthy("off"))
}
