package mattermost

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/models"
)

func newTestClient(t *testing.T, mux *http.ServeMux, cfg common.MattermostConfig) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg.URL = server.URL + "/"
	cfg.SSLVerify = true
	cfg.RateLimit = "1ms"
	return NewClient(&cfg, arbor.NewLogger()), server
}

func TestClient_LoginWithPassword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/users/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bot", body["login_id"])
		assert.Equal(t, "pw", body["password"])
		w.Header().Set("Token", "session-token")
		_, _ = w.Write([]byte(`{"id":"u1","username":"bot"}`))
	})
	mux.HandleFunc("/api/v4/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u1","username":"bot"}`))
	})

	client, _ := newTestClient(t, mux, common.MattermostConfig{Username: "bot", Password: "pw"})

	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, "session-token", client.Token())
}

func TestClient_GetPostsSinceSortsByCreateAt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/channels/c1/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`{"order":["p2","p1"],"posts":{
			"p2":{"id":"p2","channel_id":"c1","create_at":3000,"message":"second"},
			"p1":{"id":"p1","channel_id":"c1","create_at":2000,"message":"first","file_ids":["f1"]}}}`))
	})

	client, _ := newTestClient(t, mux, common.MattermostConfig{Token: "t"})

	posts, err := client.GetPostsSince(context.Background(), "c1", 1000)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, []string{"f1"}, posts[0].FileIDs)
	assert.Equal(t, "p2", posts[1].ID)
}

func TestClient_CreatePostWithAttachments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/posts", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["channel_id"])
		assert.Equal(t, "hello", body["message"])

		props := body["props"].(map[string]any)
		attachments := props["attachments"].([]any)
		require.Len(t, attachments, 1)
		assert.Equal(t, "Card", attachments[0].(map[string]any)["title"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"new-post"}`))
	})

	client, _ := newTestClient(t, mux, common.MattermostConfig{Token: "t"})

	id, err := client.CreatePost(context.Background(), models.OutgoingPost{
		ChannelID:   "c1",
		Message:     "hello",
		Attachments: []models.MessageAttachment{{Title: "Card", Color: "#36a64f"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-post", id)
}

func TestClient_UploadAndDownloadFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/files", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "c1", r.FormValue("channel_id"))
		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"file_infos":[{"id":"f9","name":"report.pdf"}]}`))
	})
	mux.HandleFunc("/api/v4/files/f9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content"))
	})
	mux.HandleFunc("/api/v4/files/f9/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"f9","name":"plan.docx","extension":"docx","size":7}`))
	})

	client, _ := newTestClient(t, mux, common.MattermostConfig{Token: "t"})
	ctx := context.Background()

	id, err := client.UploadFile(ctx, "c1", "report.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "f9", id)

	data, err := client.GetFile(ctx, "f9")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	info, err := client.GetFileInfo(ctx, "f9")
	require.NoError(t, err)
	assert.Equal(t, "plan.docx", info.Name)
	assert.Equal(t, int64(7), info.Size)
}

func TestClient_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"id":"api.context.session_expired.app_error","message":"Invalid or expired session","status_code":401}`))
	})

	client, _ := newTestClient(t, mux, common.MattermostConfig{Token: "expired"})

	_, err := client.GetMe(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid or expired session", apiErr.Message)
	assert.Equal(t, "/users/me", apiErr.Endpoint)
}

func TestClient_Ping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/system/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})
	client, _ := newTestClient(t, mux, common.MattermostConfig{Token: "t"})
	assert.NoError(t, client.Ping(context.Background()))
}

func TestClient_ListenDeliversPostedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/websocket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var challenge wsChallenge
		require.NoError(t, conn.ReadJSON(&challenge))
		assert.Equal(t, "authentication_challenge", challenge.Action)
		assert.Equal(t, "tok", challenge.Data["token"])

		post, _ := json.Marshal(models.Post{ID: "p1", ChannelID: "c1", UserID: "u2", Message: "привет"})
		_ = conn.WriteJSON(map[string]any{"event": "hello", "data": map[string]any{}, "seq": 0})
		_ = conn.WriteJSON(map[string]any{
			"event": "posted",
			"seq":   1,
			"data": map[string]any{
				"channel_type": "D",
				"post":         string(post),
				"mentions":     `["bot-id"]`,
			},
		})
		time.Sleep(200 * time.Millisecond)
	})

	client, _ := newTestClient(t, mux, common.MattermostConfig{Token: "tok"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan PostedEvent, 1)
	go func() {
		_ = client.Listen(ctx, func(e PostedEvent) { received <- e })
	}()

	select {
	case e := <-received:
		assert.Equal(t, "p1", e.Post.ID)
		assert.Equal(t, "привет", e.Post.Message)
		assert.Equal(t, "D", e.ChannelType)
		assert.Equal(t, []string{"bot-id"}, e.Mentions)
	case <-ctx.Done():
		t.Fatal("no posted event received")
	}
}

func TestClient_WebSocketURL(t *testing.T) {
	client := NewClient(&common.MattermostConfig{URL: "https://chat.example.com/"}, arbor.NewLogger())
	assert.Equal(t, "wss://chat.example.com/api/v4/websocket", client.WebSocketURL())
}
