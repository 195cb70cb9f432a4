package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPassesBodyThrough(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	relay := NewRelay(Config{Endpoint: srv.URL, APIKey: "sk-test"}, srv.Client())
	in := `{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}],"max_tokens":50}`
	resp, err := relay.Forward(context.Background(), []byte(in))
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, in, gotBody)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, `{"choices":[]}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)
}

func TestForwardWithoutKey(t *testing.T) {
	relay := NewRelay(Config{}, nil)
	assert.False(t, relay.Configured())
	_, err := relay.Forward(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, ErrNotConfigured)
}
