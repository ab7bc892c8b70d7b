package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firmbeat/recurflow/internal/notify"
)

func sampleNotification() *notify.Notification {
	return &notify.Notification{
		FirmID:    "firm-1",
		Recipient: "user-7",
		TaskID:    "task-42",
		Title:     "GSTR-3B filing",
		DueDate:   time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestWebhookChannel_PostsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(srv.URL)
	require.NoError(t, ch.Send(context.Background(), sampleNotification()))

	assert.Equal(t, "task-42", got["task_id"])
	assert.Equal(t, "GSTR-3B filing", got["title"])
	assert.Equal(t, "user-7", got["recipient"])
}

func TestWebhookChannel_BadStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(srv.URL)
	err := ch.Send(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestRegistry_GetUnknownChannel(t *testing.T) {
	reg := notify.NewRegistry()
	_, err := reg.Get("pigeon")
	require.Error(t, err)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := notify.NewRegistry()
	reg.Register(notify.NewWebhookChannel("http://example.invalid"))

	ch, err := reg.Get("webhook")
	require.NoError(t, err)
	assert.Equal(t, "webhook", ch.Name())
	assert.Equal(t, []string{"webhook"}, reg.Names())
}
