package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
)

func newTestProxy(t *testing.T, handler http.HandlerFunc) *ProxyGenerator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewProxyGenerator(&common.LLMConfig{
		BaseURL:    server.URL + "/",
		ProxyToken: "secret",
		Model:      "llama3.3:70b",
		NumCtx:     32768,
		RateLimit:  "1ms",
	}, arbor.NewLogger())
}

func TestProxyGenerator_Generate(t *testing.T) {
	var got proxyChatRequest
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(ProxyAuthHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"АРТЕФАКТ: x"}}`))
	})

	reply, err := proxy.Generate(context.Background(), "prompt text")
	require.NoError(t, err)

	assert.Equal(t, "АРТЕФАКТ: x", reply)
	assert.Equal(t, "llama3.3:70b", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "prompt text", got.Messages[0].Content)
	assert.Equal(t, 32768, got.Options["num_ctx"])
	assert.Equal(t, "llama3.3:70b", proxy.ModelName())
}

func TestProxyGenerator_OpenAIShapedReply(t *testing.T) {
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	reply, err := proxy.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestProxyGenerator_HTTPError(t *testing.T) {
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	_, err := proxy.Generate(context.Background(), "p")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Contains(t, statusErr.Body, "bad token")
}

func TestProxyGenerator_ListModels(t *testing.T) {
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(ProxyAuthHeader))
		_, _ = w.Write([]byte(`{"data":[{"id":"llama3.3:70b"},{"id":""},{"id":"qwen2.5:32b"}]}`))
	})

	models, err := proxy.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.3:70b", "qwen2.5:32b"}, models)
}

func TestNewGenerator_SelectsProvider(t *testing.T) {
	cfg := common.NewDefaultConfig()
	logger := arbor.NewLogger()

	gen, err := NewGenerator(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &ProxyGenerator{}, gen)

	cfg.LLM.Provider = common.LLMProviderClaude
	_, err = NewGenerator(context.Background(), cfg, logger)
	assert.Error(t, err, "missing API key")

	cfg.Claude.APIKey = "key"
	gen, err = NewGenerator(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, cfg.Claude.Model, gen.ModelName())

	cfg.LLM.Provider = "unknown"
	_, err = NewGenerator(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func TestConvertMessages(t *testing.T) {
	_, _, err := convertMessagesToClaude(nil)
	assert.Error(t, err)

	msgs, system, err := convertMessagesToGemini([]interfaces.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sys", system)
	assert.Len(t, msgs, 1)
}
