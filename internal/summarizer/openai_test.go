package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatStub fakes the chat completion endpoint.
func chatStub(t *testing.T, reply string, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for _, m := range req.Messages {
			prompts = append(prompts, m.Content)
		}

		if status != http.StatusOK {
			http.Error(w, "backend down", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func TestSummarize(t *testing.T) {
	srv, prompts := chatStub(t, "  a cat passed by twice  ", http.StatusOK)
	s := New("test-key", srv.URL, "test-model")

	out, err := s.Summarize(context.Background(), []string{"cat near door", "cat at door"})
	require.NoError(t, err)
	assert.Equal(t, "a cat passed by twice", out, "summary is trimmed")

	joined := strings.Join(*prompts, "\n")
	assert.Contains(t, joined, "cat near door")
	assert.Contains(t, joined, "cat at door")
}

func TestSummarizeErrors(t *testing.T) {
	srv, _ := chatStub(t, "", http.StatusBadGateway)
	s := New("test-key", srv.URL, "")

	_, err := s.Summarize(context.Background(), []string{"something"})
	assert.Error(t, err)
}

func TestSummarizeRejectsEmptyInput(t *testing.T) {
	s := New("test-key", "", "")
	_, err := s.Summarize(context.Background(), nil)
	assert.Error(t, err)
}

func TestSummarizeRejectsBlankReply(t *testing.T) {
	srv, _ := chatStub(t, "   ", http.StatusOK)
	s := New("test-key", srv.URL, "")

	_, err := s.Summarize(context.Background(), []string{"something"})
	assert.Error(t, err)
}
