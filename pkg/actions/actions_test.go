package actions

import (
	"testing"
	"time"

	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	var target struct {
		Duration time.Duration      `json:"duration"`
		Count    int                `json:"count"`
		Dest     models.Destination `json:"destination"`
	}

	err := Decode(models.Action{ID: "a1", Configuration: map[string]any{
		"duration":    "90s",
		"count":       "3",
		"destination": map[string]any{"type": "user", "user_id": "u2"},
	}}, &target)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, target.Duration)
	assert.Equal(t, 3, target.Count)
	assert.Equal(t, "u2", target.Dest.UserID)

	err = Decode(models.Action{ID: "a1", Configuration: map[string]any{"count": "three"}}, &target)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestRequireUser(t *testing.T) {
	_, err := RequireUser(&models.ExecutionContext{ID: "e"})
	assert.ErrorIs(t, err, protocol.ErrContextCritical)

	user, err := RequireUser(&models.ExecutionContext{ID: "e", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user)
}

func TestFirstHelpers(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", "b", "c"))
	assert.Empty(t, FirstNonEmpty())
	assert.Equal(t, 7, FirstPositive(0, -1, 7))
}
