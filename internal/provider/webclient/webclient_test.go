package webclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regnotify/internal/provider"
	"regnotify/pkg/sentinel"
)

func TestAddress(t *testing.T) {
	c := New("http://bridge", "91")
	assert.Equal(t, "919876543210@c.us", c.Address("9876543210"))
}

func TestConnected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]bool{"connected": true})
	}))
	defer srv.Close()

	c := New(srv.URL, "91")
	assert.True(t, c.Connected(context.Background()))
}

func TestConnectedFalseWhenBridgeDown(t *testing.T) {
	c := New("http://127.0.0.1:1", "91")
	assert.False(t, c.Connected(context.Background()))
}

func TestStatusReportsQRWhilePairing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"connected": false, "qr": "qr-payload"})
	}))
	defer srv.Close()

	c := New(srv.URL, "91")
	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "qr-payload", status.QR)
}

func TestSendText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/send-message", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "919876543210@c.us", body["chatId"])
		assert.Equal(t, "hello", body["message"])
		json.NewEncoder(w).Encode(map[string]string{"id": "msg-1"})
	}))
	defer srv.Close()

	c := New(srv.URL, "91")
	id, err := c.SendText(context.Background(), c.Address("9876543210"), "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
}

func TestSendTextClassifiesErrors(t *testing.T) {
	t.Run("4xx is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid chat id", http.StatusBadRequest)
		}))
		defer srv.Close()

		c := New(srv.URL, "91")
		_, err := c.SendText(context.Background(), "bogus", "hello")
		require.Error(t, err)
		assert.True(t, provider.IsPermanent(err))
	})

	t.Run("5xx is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "session restarting", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := New(srv.URL, "91")
		_, err := c.SendText(context.Background(), "919876543210@c.us", "hello")
		require.Error(t, err)
		assert.False(t, provider.IsPermanent(err))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestSendTemplateUnsupported(t *testing.T) {
	c := New("http://bridge", "91")
	_, err := c.SendTemplate(context.Background(), "919876543210@c.us", "welcome", nil)
	require.Error(t, err)
	assert.True(t, provider.IsPermanent(err))
}
