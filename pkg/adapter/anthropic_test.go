package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnthropicAdapter(t *testing.T, server *httptest.Server) *AnthropicAdapter {
	t.Helper()
	const envVar = "PMM_TEST_ANTHROPIC_KEY"
	require.NoError(t, os.Setenv(envVar, "test-key"))
	t.Cleanup(func() { os.Unsetenv(envVar) })

	a := NewAnthropicAdapter(AnthropicConfig{APIKeyEnv: envVar})
	a.OverrideEndpointForTest(server.URL)
	return a
}

func TestAnthropicAdapter_GenerateReply_ConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}],"model":"claude-sonnet-4-5"}`))
	}))
	defer server.Close()

	a := newTestAnthropicAdapter(t, server)
	reply, meta, err := a.GenerateReply(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello world", reply)
	assert.Equal(t, "anthropic", meta.Provider)
}

func TestAnthropicAdapter_GenerateReply_SurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad model"}}`))
	}))
	defer server.Close()

	a := newTestAnthropicAdapter(t, server)
	_, _, err := a.GenerateReply(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
}

func TestAnthropicAdapter_GenerateReply_MissingAPIKeyErrors(t *testing.T) {
	a := NewAnthropicAdapter(AnthropicConfig{APIKeyEnv: "PMM_NONEXISTENT_ENV_VAR"})
	_, _, err := a.GenerateReply(context.Background(), "sys", "hi")
	require.Error(t, err)
}
