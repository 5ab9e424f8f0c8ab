package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompatibleResponse is the minimal chat completions response for tests.
type OpenAICompatibleResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   usage              `json:"usage"`
}

type chunkChoice struct {
	Index        int         `json:"index"`
	Delta        chatMessage `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

// NewOpenAICompatibleServer starts an httptest.Server that answers
// POST /v1/chat/completions with a plain text completion. Requests with
// "stream": true get the same content as server-sent event chunks, one per
// word. Caller must call server.Close() or register t.Cleanup(server.Close).
func NewOpenAICompatibleServer(content string, inputTokens, outputTokens int) *httptest.Server {
	if content == "" {
		content = "mock response"
	}
	if inputTokens == 0 {
		inputTokens = 10
	}
	if outputTokens == 0 {
		outputTokens = 20
	}
	resp := OpenAICompatibleResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  "gpt-4o",
		Choices: []completionChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: usage{
			PromptTokens:     inputTokens,
			CompletionTokens: outputTokens,
			TotalTokens:      inputTokens + outputTokens,
		},
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSuffix(r.URL.Path, "/") != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range strings.SplitAfter(content, " ") {
			writeChunk(w, chunkChoice{Delta: chatMessage{Content: word}})
		}
		stop := "stop"
		writeChunk(w, chunkChoice{FinishReason: &stop})
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})
	return httptest.NewServer(handler)
}

func writeChunk(w http.ResponseWriter, choice chunkChoice) {
	b, _ := json.Marshal(streamChunk{
		ID:      "chatcmpl-test",
		Object:  "chat.completion.chunk",
		Model:   "gpt-4o",
		Choices: []chunkChoice{choice},
	})
	_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
