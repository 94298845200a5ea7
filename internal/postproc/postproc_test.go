package postproc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/api"
)

func TestNotify_Endpoint(t *testing.T) {
	var got api.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	ok := Notify(context.Background(), zap.NewNop(), srv.URL, "complete/abc")
	assert.True(t, ok)
	assert.Equal(t, api.NotificationEvent, got.Event)
	assert.Equal(t, "complete/abc", got.Location)
}

func TestNotify_EndpointUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ok := Notify(context.Background(), zap.NewNop(), srv.URL, "complete/abc")
	assert.False(t, ok)
}

func TestNotify_Command(t *testing.T) {
	assert.True(t, Notify(context.Background(), zap.NewNop(), "true --flag", "complete/abc"))
	assert.False(t, Notify(context.Background(), zap.NewNop(), "/no/such/command", "complete/abc"))
	assert.False(t, Notify(context.Background(), zap.NewNop(), "   ", "complete/abc"))
}
