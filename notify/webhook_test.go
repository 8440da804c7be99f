package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamropay/ledger-engine/notify"
)

func TestWebhook_PostsNotificationPayload(t *testing.T) {
	// GIVEN: A webhook endpoint
	// WHEN: Notify is called
	// THEN: One JSON POST with recipient, subject and body arrives

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook := notify.NewWebhook(srv.URL, nil)
	err := hook.Notify(context.Background(), "alice@example.com", "Transaction Notification", "hello")

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got["recipient"])
	assert.Equal(t, "Transaction Notification", got["subject"])
	assert.Equal(t, "hello", got["body"])
}

func TestWebhook_NonSuccessStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := notify.NewWebhook(srv.URL, nil)
	err := hook.Notify(context.Background(), "alice@example.com", "s", "b")

	assert.Error(t, err)
}
