package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path string
	form url.Values
}

func slackServer(t *testing.T, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err == nil {
			got.path = r.URL.Path
			got.form = r.PostForm
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewSlackNotifier_RequiresToken(t *testing.T) {
	_, err := NewSlackNotifier(SlackConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSlackNotifier_Post(t *testing.T) {
	var req captured
	srv := slackServer(t, `{"ok":true,"channel":"C123","ts":"1700000000.000100"}`, &req)

	n, err := NewSlackNotifier(SlackConfig{Token: "xoxb-test", APIURL: srv.URL}, nil)
	require.NoError(t, err)

	text := "AI Agent Results:\n```{\"q\": {}}```"
	d, err := n.Post(context.Background(), "#qa", text)
	require.NoError(t, err)
	assert.Equal(t, Delivery{Channel: "C123", Timestamp: "1700000000.000100"}, d)

	assert.Equal(t, "/chat.postMessage", req.path)
	assert.Equal(t, "#qa", req.form.Get("channel"))
	assert.Equal(t, text, req.form.Get("text"))
}

func TestSlackNotifier_PostError(t *testing.T) {
	var req captured
	srv := slackServer(t, `{"ok":false,"error":"channel_not_found"}`, &req)

	n, err := NewSlackNotifier(SlackConfig{Token: "xoxb-test", APIURL: srv.URL + "/"}, nil)
	require.NoError(t, err)

	_, err = n.Post(context.Background(), "#missing", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestNopNotifier(t *testing.T) {
	d, err := NopNotifier{}.Post(context.Background(), "#qa", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "#qa", d.Channel)
}
