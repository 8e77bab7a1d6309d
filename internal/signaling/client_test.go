package signaling_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arcadenet/netplay/internal/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *signaling.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return signaling.NewClient(server.URL, "test-key", 2*time.Second)
}

func TestClient_Configured(t *testing.T) {
	assert.True(t, signaling.NewClient("http://example.com", "key", time.Second).Configured())
	assert.False(t, signaling.NewClient("", "key", time.Second).Configured())
	assert.False(t, signaling.NewClient("http://example.com", "", time.Second).Configured())
}

func TestClient_IncompleteConfiguration(t *testing.T) {
	client := signaling.NewClient("", "", time.Second)

	_, err := client.CreateSession(context.Background(), signaling.CreateSessionRequest{})
	var extErr *signaling.ExternalError
	require.ErrorAs(t, err, &extErr)
	assert.Contains(t, extErr.Error(), "configuration is incomplete")
}

func TestClient_CreateSession(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus int
		wantID     string
	}{
		{
			name:   "externalSessionId preferred",
			status: http.StatusOK,
			body:   `{"externalSessionId":"ext-1","sessionId":"s-1","id":"raw-1"}`,
			wantID: "ext-1",
		},
		{
			name:   "sessionId fallback",
			status: http.StatusCreated,
			body:   `{"sessionId":"s-1","id":"raw-1"}`,
			wantID: "s-1",
		},
		{
			name:   "id fallback",
			status: http.StatusOK,
			body:   `{"id":"raw-1"}`,
			wantID: "raw-1",
		},
		{
			name:   "empty-string fields are skipped",
			status: http.StatusOK,
			body:   `{"externalSessionId":"","sessionId":"s-1"}`,
			wantID: "s-1",
		},
		{
			name:   "empty body is valid, no id",
			status: http.StatusOK,
			body:   "",
			wantID: "",
		},
		{
			name:   "json without any id field",
			status: http.StatusOK,
			body:   `{"region":"us-east"}`,
			wantID: "",
		},
		{
			name:       "non-2xx is an external error",
			status:     http.StatusServiceUnavailable,
			body:       `{"error":"overloaded"}`,
			wantErr:    true,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "malformed json body",
			status:     http.StatusOK,
			body:       `{"sessionId":`,
			wantErr:    true,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/sessions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			res, err := client.CreateSession(context.Background(), signaling.CreateSessionRequest{
				SessionID: "local-1",
				Code:      "ABC123",
				TTLMs:     60000,
				ExpiresAt: time.Now().Add(time.Minute),
			})

			if tt.wantErr {
				var extErr *signaling.ExternalError
				require.ErrorAs(t, err, &extErr)
				assert.Equal(t, tt.wantStatus, extErr.StatusCode)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, res.ExternalSessionID)
		})
	}
}

func TestClient_AddParticipant(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions/ext-1/participants", r.URL.Path)
		w.Write([]byte(`{"participantId":"peer-9"}`))
	})

	res, err := client.AddParticipant(context.Background(), "ext-1", signaling.Participant{
		UserID: "guest-1",
		Role:   "guest",
	})
	require.NoError(t, err)
	assert.Equal(t, "peer-9", res.ExternalParticipantID)
}

func TestClient_DeleteSession(t *testing.T) {
	t.Run("success on empty 2xx", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/sessions/ext-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		})
		assert.NoError(t, client.DeleteSession(context.Background(), "ext-1"))
	})

	t.Run("non-2xx carries status and body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such session", http.StatusNotFound)
		})

		err := client.DeleteSession(context.Background(), "ext-1")
		var extErr *signaling.ExternalError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, http.StatusNotFound, extErr.StatusCode)
		assert.Contains(t, extErr.Body, "no such session")
	})
}

func TestClient_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	// Shrink the deadline below the handler's sleep via context.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreateSession(ctx, signaling.CreateSessionRequest{})
	var extErr *signaling.ExternalError
	require.ErrorAs(t, err, &extErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
