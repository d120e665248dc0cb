package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmelo/parley/internal/creds"
	"github.com/dmelo/parley/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Tokens:  tokens,
	})
}

func TestLogin(t *testing.T) {
	var gotAuth, gotRequestID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "alice", body["username"])
		require.Equal(t, "pw", body["password"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LoginResponse{
			User:        model.User{ID: 1, Username: "alice"},
			AccessToken: "tok-1",
		})
	})

	c := newTestClient(t, handler, &creds.MemStore{})

	out, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", out.AccessToken)
	assert.Equal(t, "alice", out.User.Username)
	// No token yet, so the call goes out unauthenticated.
	assert.Empty(t, gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestBearerAttachedWhenTokenPresent(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"username":"alice"}`))
	})

	tokens := &creds.MemStore{}
	require.NoError(t, tokens.Save("tok-xyz"))
	c := newTestClient(t, handler, tokens)

	_, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-xyz", gotAuth)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind Kind
	}{
		{"unauthorized", http.StatusUnauthorized, Unauthorized},
		{"not_found", http.StatusNotFound, NotFound},
		{"bad_request", http.StatusBadRequest, Validation},
		{"unprocessable", http.StatusUnprocessableEntity, Validation},
		{"server_error", http.StatusInternalServerError, Server},
		{"bad_gateway", http.StatusBadGateway, Server},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			c := newTestClient(t, handler, &creds.MemStore{})

			_, err := c.GetConversations(context.Background())
			require.Error(t, err)

			apiErr, ok := err.(*Error)
			require.True(t, ok, "error type = %T", err)
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestNetworkUnavailable(t *testing.T) {
	c := New(Options{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Timeout: time.Second,
		Tokens:  &creds.MemStore{},
	})

	_, err := c.GetConversations(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkUnavailable(err), "got %v", err)
}

func TestSendMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages/7", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "hello", body["content"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Message{
			ID: 42, ConversationID: 7, SenderID: 1,
			Content: "hello", ContentType: model.ContentText,
			Timestamp: "2026-01-02T03:04:05Z",
		})
	})

	c := newTestClient(t, handler, &creds.MemStore{})

	msg, err := c.SendMessage(context.Background(), 7, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, "2026-01-02T03:04:05Z", msg.Timestamp)
}

func TestGetMessagesPath(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"conversationId":123,"senderId":2,"content":"hi","contentType":"TEXT","timestamp":"t"}]`))
	})

	c := newTestClient(t, handler, &creds.MemStore{})

	msgs, err := c.GetMessages(context.Background(), 123)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(123), msgs[0].ConversationID)
}

func TestUpdateProfileMultipart(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/profile", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "alice2", r.FormValue("username"))
		assert.Equal(t, "a@b.c", r.FormValue("email"))
		assert.Equal(t, "new bio", r.FormValue("bio"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"username":"alice2"}`))
	})

	c := newTestClient(t, handler, &creds.MemStore{})

	user, err := c.UpdateProfile(context.Background(), ProfileUpdate{
		Username: "alice2", Email: "a@b.c", Bio: "new bio",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)
}

func TestUpdateSettings(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/profile/settings", r.URL.Path)

		var s model.Settings
		require.NoError(t, json.NewDecoder(r.Body).Decode(&s))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	})

	c := newTestClient(t, handler, &creds.MemStore{})

	out, err := c.UpdateSettings(context.Background(), model.Settings{
		NotificationsEnabled: true, DarkModeEnabled: false, Language: "fr",
	})
	require.NoError(t, err)
	assert.True(t, out.NotificationsEnabled)
	assert.Equal(t, "fr", out.Language)
}
