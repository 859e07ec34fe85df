package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUpdatesPassesOffset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok123/getUpdates", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.EqualValues(t, 42, payload["offset"])

		w.Write([]byte(`{"ok": true, "result": [
			{"update_id": 42, "message": {"message_id": 1, "chat": {"id": 777, "type": "private"}, "text": "/list"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok123", srv.URL)
	updates, err := c.GetUpdates(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.EqualValues(t, 42, updates[0].UpdateID)
	assert.EqualValues(t, 777, updates[0].Message.Chat.ID)
	assert.Equal(t, "/list", updates[0].Message.Text)
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/sendMessage", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.EqualValues(t, 555, payload["chat_id"])
		assert.Equal(t, "hello", payload["text"])

		w.Write([]byte(`{"ok": true, "result": {}}`))
	}))
	defer srv.Close()

	err := NewClientWithBaseURL("tok", srv.URL).SendMessage(context.Background(), 555, "hello")
	require.NoError(t, err)
}

func TestAPIErrorSurfacesDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewClientWithBaseURL("tok", srv.URL).SendMessage(context.Background(), 1, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
