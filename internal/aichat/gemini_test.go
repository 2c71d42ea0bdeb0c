package aichat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Try "},{"text":"Hades."}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "secret", Model: "gemini-test", BaseURL: srv.URL})
	reply, err := c.Generate(context.Background(), "recommend a roguelike")
	require.NoError(t, err)
	assert.Equal(t, "Try Hades.", reply)

	assert.Equal(t, SystemInstruction, got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "recommend a roguelike", got.Contents[0].Parts[0].Text)
}

func TestGenerate_NotConfigured(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("empty candidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()

		_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}).Generate(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}).Generate(context.Background(), "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 429")
	})
}
