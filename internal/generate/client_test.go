package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lore/internal/apperr"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"hello there","done":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL + "/"))
	text, err := c.Generate(context.Background(), "llama3", "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, generateRequest{Model: "llama3", Prompt: "say hi", Stream: false}, got)
}

func TestGenerate_StreamFalseOnTheWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, false, raw["stream"])
		_, _ = w.Write([]byte(`{"response":""}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Generate(context.Background(), "m", "p")
	require.NoError(t, err)
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Generate(context.Background(), "nope", "p")
	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.NotErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "not found")
}

func TestGenerate_LongErrorBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 4*maxErrorBody)))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Generate(context.Background(), "m", "p")
	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Less(t, len(err.Error()), 2*maxErrorBody)
}

func TestGenerate_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Generate(context.Background(), "m", "p")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestGenerate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(url)).Generate(context.Background(), "m", "p")
	require.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrUpstream)
}

func TestGenerate_Deadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(WithBaseURL(srv.URL)).Generate(ctx, "m", "p")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}
