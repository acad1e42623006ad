package ollama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/tripwire/pkg/log"
	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			var req generateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "tiny", req.Model)
			assert.False(t, req.Stream)

			_ = json.NewEncoder(w).Encode(generateResponse{Response: "  summary of " + req.Prompt + "\n"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "tiny", log.Discard())

	require.NoError(t, client.Available(t.Context()))

	text, err := client.Generate(t.Context(), "mail")
	require.NoError(t, err)
	assert.Equal(t, "summary of mail", text)
}

func TestClient_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewClient(server.URL, "", log.Discard()).Available(t.Context())
	assert.ErrorIs(t, err, protocol.ErrInferenceUnavailable)
}

func TestClient_GenerateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(generateResponse{Error: "model not found"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "missing", log.Discard()).Generate(t.Context(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}
