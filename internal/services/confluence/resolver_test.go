package confluence

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func listing(ids ...string) map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		results = append(results, map[string]interface{}{
			"id":    id,
			"title": "Page " + id,
			"_links": map[string]interface{}{
				"tinyui": "/x/other" + id,
			},
		})
	}
	return map[string]interface{}{"results": results, "size": len(results)}
}

func TestResolver_PaginatedScanThirdPage(t *testing.T) {
	var starts []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/content/TOKEN1":
			http.NotFound(w, r)
		case "/rest/api/content":
			start, _ := strconv.Atoi(r.URL.Query().Get("start"))
			starts = append(starts, start)
			body := listing(fmt.Sprintf("%d", start+1), fmt.Sprintf("%d", start+2))
			if start == 200 {
				body["results"] = append(body["results"].([]map[string]interface{}), map[string]interface{}{
					"id":     "987654",
					"title":  "Target",
					"_links": map[string]interface{}{"tinyui": "/x/TOKEN1"},
				})
			}
			_ = json.NewEncoder(w).Encode(body)
		default:
			t.Errorf("unexpected request %s", r.URL.String())
			http.Error(w, "unexpected", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "secret", WithRateLimit(0))
	resolver := NewResolver(client, nil, arbor.NewLogger())

	id, err := resolver.Resolve(t.Context(), server.URL+"/x/TOKEN1")

	require.NoError(t, err)
	assert.Equal(t, "987654", id)
	assert.Equal(t, []int{0, 100, 200}, starts)
}

func TestResolver_TinyAsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		if r.URL.Path == "/rest/api/content/12345" {
			_, _ = w.Write([]byte(`{"id":"12345","title":"T"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "secret", WithRateLimit(0))
	resolver := NewResolver(client, nil, arbor.NewLogger())

	id, err := resolver.Resolve(t.Context(), server.URL+"/x/12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", id)
}

func TestResolver_KnownMappingsAndDirectID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "secret", WithRateLimit(0))
	resolver := NewResolver(client, map[string]string{"E_7iGQ": "434302483"}, arbor.NewLogger())

	id, err := resolver.Resolve(t.Context(), server.URL+"/x/E_7iGQ")
	require.NoError(t, err)
	assert.Equal(t, "434302483", id)

	id, err = resolver.Resolve(t.Context(), server.URL+"/spaces/PRJ/pages/555/Name")
	require.NoError(t, err)
	assert.Equal(t, "555", id)

	_, err = resolver.Resolve(t.Context(), server.URL+"/x/UNKNOWN")
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Contains(t, resErr.Strategies, "paginated-scan")
	assert.Contains(t, resErr.Strategies, "direct-id")
}

func TestResolver_OfflineWithoutCredentials(t *testing.T) {
	client := NewClient("https://wiki.example.com", "", "")
	resolver := NewResolver(client, nil, arbor.NewLogger())

	id, err := resolver.Resolve(t.Context(), "https://wiki.example.com/x/ABC")
	require.NoError(t, err)
	assert.Equal(t, "ABC", id)

	id, err = resolver.Resolve(t.Context(), "https://wiki.example.com/pages/42")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = resolver.Resolve(t.Context(), "https://wiki.example.com/display/SPACE")
	assert.Error(t, err)
}
