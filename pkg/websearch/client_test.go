package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
)

func newTestClient(t *testing.T, provider string, server *httptest.Server) *Client {
	t.Helper()
	const envVar = "PMM_TEST_WEB_SEARCH_KEY"
	require.NoError(t, os.Setenv(envVar, "test-key"))
	t.Cleanup(func() { os.Unsetenv(envVar) })

	c := NewClient(config.WebSearchConfig{Provider: provider, APIKeyEnv: envVar, DefaultCap: 5})
	c.OverrideEndpointsForTest(server.URL, server.URL, server.URL)
	return c
}

func TestClient_SearchBrave_RendersResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"Go docs","url":"https://go.dev","description":"official docs"}]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, "brave", server)
	result, err := client.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	assert.Contains(t, result, "Go docs")
	assert.Contains(t, result, "https://go.dev")
}

func TestClient_Search_CachesSecondCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"cached","url":"u","description":"d"}]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, "brave", server)
	_, err := client.Search(context.Background(), "repeat query", 5)
	require.NoError(t, err)
	_, err = client.Search(context.Background(), "repeat query", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_Search_EmptyQueryErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, "brave", server)
	_, err := client.Search(context.Background(), "  ", 5)
	require.Error(t, err)
}

func TestClient_Search_UnknownProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := newTestClient(t, "unknown-provider", server)
	_, err := client.Search(context.Background(), "query", 5)
	require.Error(t, err)
}

func TestClient_Search_MissingAPIKeyErrors(t *testing.T) {
	c := NewClient(config.WebSearchConfig{Provider: "brave", APIKeyEnv: "PMM_NONEXISTENT_ENV_VAR"})
	_, err := c.Search(context.Background(), "query", 5)
	require.Error(t, err)
}
