package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/margin/pkg/llm"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func sseServer(t *testing.T, deltas []string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		for _, d := range deltas {
			payload, _ := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"delta": map[string]any{"content": d}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestProvider_Ask(t *testing.T) {
	var captured capturedRequest
	srv := sseServer(t, []string{"<think>", "pondering", "</think>", "The answer ", "is 42.\n"}, &captured)
	defer srv.Close()

	p, err := NewProvider("test-key", WithBaseURL(srv.URL+"/"), WithModel("local-model"))
	require.NoError(t, err)

	answer, err := p.Ask(context.Background(), llm.Request{
		Question:  "What is it?",
		Selection: "some text",
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", answer)

	assert.Equal(t, "local-model", captured.Model)
	assert.True(t, captured.Stream)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "What is it?")
	assert.Contains(t, captured.Messages[1].Content, "some text")
}

func TestProvider_StreamKeepsThinkingChunks(t *testing.T) {
	srv := sseServer(t, []string{"<thinking>plan</thinking>done"}, nil)
	defer srv.Close()

	p, err := NewProvider("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	stream, err := p.Stream(context.Background(), llm.Request{Question: "q"})
	require.NoError(t, err)

	var thinking, message string
	finished := false
	for chunk := range stream {
		require.False(t, chunk.IsError())
		switch {
		case chunk.Finished:
			finished = true
		case chunk.IsThinking():
			thinking += chunk.Content
		default:
			message += chunk.Content
		}
	}
	assert.True(t, finished)
	assert.Equal(t, "plan", thinking)
	assert.Equal(t, "done", message)
}

func TestProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewProvider("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Ask(context.Background(), llm.Request{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "bad key")
}

func TestProvider_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"error\": {\"message\": \"overloaded\"}}\n\n")
	}))
	defer srv.Close()

	p, err := NewProvider("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Ask(context.Background(), llm.Request{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestNewProvider_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")

	_, err := NewProvider("")
	require.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1/")
	p, err := NewProvider("", WithModel(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.Model())
	assert.Equal(t, "http://localhost:1234/v1", p.BaseURL())
	assert.Equal(t, "env-key", p.apiKey)
}
