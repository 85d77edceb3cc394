package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/domain"
)

type chatRequest struct {
	Model          string  `json:"model"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float32 `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, content string, choices int, got *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		out := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-chat",
			"usage":  map[string]int{"prompt_tokens": 120, "completion_tokens": 40, "total_tokens": 160},
		}
		list := make([]map[string]any, 0, choices)
		for i := 0; i < choices; i++ {
			list = append(list, map[string]any{
				"index":         i,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			})
		}
		out["choices"] = list
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
}

func TestGenerator_Generate(t *testing.T) {
	var req chatRequest
	server := chatServer(t, "Three HVAC targets fit a platform play.", 1, &req)
	defer server.Close()

	gen := NewGenerator(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-chat", Provider: "test", Logger: zap.NewNop()})

	res, err := gen.Generate(context.Background(), domain.GenerationRequest{
		System:      "You are an analyst.",
		Prompt:      "Summarize.",
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != "Three HVAC targets fit a platform play." {
		t.Errorf("text = %q", res.Text)
	}
	if res.PromptTokens != 120 || res.CompletionTokens != 40 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.CompletionTokens)
	}

	if req.Model != "test-chat" || req.MaxTokens != 500 || req.Temperature != 0.3 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "Summarize." {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.ResponseFormat != nil {
		t.Errorf("response_format should be omitted, got %+v", req.ResponseFormat)
	}
}

func TestGenerator_ZeroTemperatureSent(t *testing.T) {
	var req chatRequest
	server := chatServer(t, "ok", 1, &req)
	defer server.Close()

	gen := NewGenerator(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-chat", Provider: "test", Logger: zap.NewNop()})
	if _, err := gen.Generate(context.Background(), domain.GenerationRequest{Prompt: "Summarize.", Temperature: 0}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if req.Temperature <= 0 || req.Temperature > 1e-6 {
		t.Errorf("temperature = %v, want a near-zero value on the wire", req.Temperature)
	}
}

func TestGenerator_JSONMode(t *testing.T) {
	var req chatRequest
	server := chatServer(t, `{"business_strategy":"platform"}`, 1, &req)
	defer server.Close()

	gen := NewGenerator(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-chat", Provider: "test", Logger: zap.NewNop()})

	if _, err := gen.Generate(context.Background(), domain.GenerationRequest{Prompt: "classify", JSON: true}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", req.ResponseFormat)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestGenerator_EmptyChoices(t *testing.T) {
	server := chatServer(t, "", 0, nil)
	defer server.Close()

	gen := NewGenerator(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-chat", Provider: "test", Logger: zap.NewNop()})

	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
	if !errors.Is(err, domain.ErrGenerationProviderError) {
		t.Fatalf("expected ErrGenerationProviderError, got %v", err)
	}
}

func TestGenerator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	gen := NewGenerator(&Config{APIKey: "k", BaseURL: server.URL, Model: "test-chat", Provider: "test", Logger: zap.NewNop()})

	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
	if !errors.Is(err, domain.ErrGenerationProviderError) {
		t.Fatalf("expected ErrGenerationProviderError, got %v", err)
	}
}
