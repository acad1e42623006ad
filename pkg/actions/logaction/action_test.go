package logaction

import (
	"bytes"
	"testing"

	tlog "github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAction_Execute(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		logged   bool
		expected string
	}{
		{
			name:     "message at info",
			config:   map[string]any{"message": "new mail from bob"},
			logged:   true,
			expected: "new mail from bob",
		},
		{
			name:     "debug filtered by handler level",
			config:   map[string]any{"message": "noise", "level": "debug"},
			logged:   false,
			expected: "noise",
		},
		{
			name:     "no message logs variables",
			config:   nil,
			logged:   true,
			expected: "workflow log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := tlog.New(&buf, "info", "text")
			execCtx := models.NewExecutionContext("exec-1", &models.Workflow{ID: "wf-1"}, "u1", models.TriggerKindManual, map[string]string{"k": "v"})

			output, err := NewLogAction().Execute(t.Context(), execCtx, models.Action{ID: "l", Type: models.ActionLog, Configuration: tt.config}, logger)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, output.Value)

			if tt.logged {
				assert.Contains(t, buf.String(), tt.expected)
				assert.Contains(t, buf.String(), "execution_id=exec-1")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}
