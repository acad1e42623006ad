package models

import (
	"fmt"
	"strings"
)

// ActionType tags the effect an Action performs.
type ActionType string

const (
	ActionSendChat              ActionType = "send_chat"
	ActionSendEmail             ActionType = "send_email"
	ActionReplyEmail            ActionType = "reply_email"
	ActionForward               ActionType = "forward"
	ActionAIAnalyze             ActionType = "ai_analyze"
	ActionAISummarize           ActionType = "ai_summarize"
	ActionAITranslate           ActionType = "ai_translate"
	ActionAISmartReply          ActionType = "ai_smart_reply"
	ActionSmartSummarizeForward ActionType = "smart_summarize_forward"
	ActionDelay                 ActionType = "delay"
	ActionConditional           ActionType = "conditional"
	ActionLog                   ActionType = "log"
	ActionNotify                ActionType = "notify"
)

var actionTypes = map[ActionType]bool{
	ActionSendChat:              true,
	ActionSendEmail:             true,
	ActionReplyEmail:            true,
	ActionForward:               true,
	ActionAIAnalyze:             true,
	ActionAISummarize:           true,
	ActionAITranslate:           true,
	ActionAISmartReply:          true,
	ActionSmartSummarizeForward: true,
	ActionDelay:                 true,
	ActionConditional:           true,
	ActionLog:                   true,
	ActionNotify:                true,
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	return actionTypes[t]
}

// RequiresOutput reports whether actions of this type must name an output variable.
func (t ActionType) RequiresOutput() bool {
	switch t {
	case ActionForward, ActionAIAnalyze, ActionAISummarize, ActionAITranslate,
		ActionAISmartReply, ActionSmartSummarizeForward:
		return true
	default:
		return false
	}
}

// Action is one step of a workflow pipeline. Configuration is decoded by the
// executor registered for Type; Then and Else are only meaningful for conditionals.
type Action struct {
	ID             string         `json:"id"                        validate:"required"`
	Type           ActionType     `json:"type"                      validate:"required"`
	Name           string         `json:"name"`
	OutputVariable string         `json:"output_variable,omitempty"`
	Configuration  map[string]any `json:"configuration,omitempty"`
	Then           *Action        `json:"then,omitempty"`
	Else           *Action        `json:"else,omitempty"`
}

// Validate checks type, output variable and branch structure.
func (a *Action) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}

	if a.Type.RequiresOutput() && strings.TrimSpace(a.OutputVariable) == "" {
		return fmt.Errorf("%w: %s requires an output variable", ErrInvalidAction, a.Type)
	}

	if a.Type != ActionConditional {
		if a.Then != nil || a.Else != nil {
			return fmt.Errorf("%w: only conditionals carry branches", ErrInvalidAction)
		}

		return nil
	}

	if a.Then == nil {
		return fmt.Errorf("%w: conditional requires a then branch", ErrInvalidAction)
	}

	if err := a.Then.Validate(); err != nil {
		return fmt.Errorf("then: %w", err)
	}

	if a.Else != nil {
		if err := a.Else.Validate(); err != nil {
			return fmt.Errorf("else: %w", err)
		}
	}

	return nil
}
