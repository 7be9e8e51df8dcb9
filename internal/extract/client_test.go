package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleAnswer = `{"tasks":[{"title":"Send invoice","priority":"high"}],"meetings":[],"projects":[],"research":[],"messages":[]}`

func chatHandler(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ChatResponse{
			Choices: []struct {
				Message ChatMessage `json:"message"`
			}{
				{Message: ChatMessage{Role: "assistant", Content: content}},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode: %v", err)
		}
	}
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		apiKey   string
		opts     []LLMOption
		wantErr  bool
	}{
		{name: "openai with key", provider: "openai", apiKey: "sk-test"},
		{name: "anthropic with key", provider: "anthropic", apiKey: "sk-ant-test"},
		{name: "ollama no key needed", provider: "ollama"},
		{name: "empty provider defaults to openai", provider: "", apiKey: "sk-test"},
		{name: "openai without key fails", provider: "openai", wantErr: true},
		{name: "unknown provider without base_url fails", provider: "custom", apiKey: "key", wantErr: true},
		{
			name:     "unknown provider with base_url and model works",
			provider: "custom",
			apiKey:   "key",
			opts: []LLMOption{
				WithLLMBaseURL("http://localhost:8080/v1/chat/completions"),
				WithLLMModel("my-model"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewLLMClient(tt.provider, tt.apiKey, tt.opts...)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client == nil {
				t.Error("expected client, got nil")
			}
		})
	}
}

func TestLLMClientBaseURLPathAppended(t *testing.T) {
	client, err := NewLLMClient("custom", "key", WithLLMBaseURL("http://llm.local:9000"), WithLLMModel("m"))
	if err != nil {
		t.Fatal(err)
	}
	if client.baseURL != "http://llm.local:9000/v1/chat/completions" {
		t.Errorf("unexpected base URL %q", client.baseURL)
	}

	client, err = NewLLMClient("custom", "key", WithLLMBaseURL("http://llm.local"), WithLLMModel("m"), WithLLMAPIFormat("anthropic"))
	if err != nil {
		t.Fatal(err)
	}
	if client.baseURL != "http://llm.local/v1/messages" {
		t.Errorf("unexpected anthropic base URL %q", client.baseURL)
	}
}

func TestLLMClientCompleteOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("expected Bearer auth, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		var req ChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		chatHandler(t, sampleAnswer)(w, r)
	}))
	defer server.Close()

	client, _ := NewLLMClient("openai", "sk-test", WithLLMBaseURL(server.URL))
	got, err := client.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != sampleAnswer {
		t.Errorf("unexpected content %q", got)
	}
}

func TestLLMClientCompleteAnthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			t.Errorf("expected x-api-key header, got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("expected anthropic-version header, got %q", r.Header.Get("anthropic-version"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no Authorization header for anthropic, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var req AnthropicRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("failed to parse request body: %v", err)
		}
		if req.System != "sys" || req.MaxTokens == 0 {
			t.Errorf("unexpected anthropic request: %+v", req)
		}

		resp := AnthropicResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{
				{Type: "text", Text: sampleAnswer},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, _ := NewLLMClient("anthropic", "sk-ant-test", WithLLMBaseURL(server.URL))
	got, err := client.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != sampleAnswer {
		t.Errorf("unexpected content %q", got)
	}
}

func TestLLMClient4xxNoRetry(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, _ := NewLLMClient("openai", "sk-test", WithLLMBaseURL(server.URL), WithLLMRetryDelay(time.Millisecond))
	_, err := client.Complete(context.Background(), "sys", "user")
	if err == nil {
		t.Fatal("expected error on 401 response")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call (no retry for 4xx), got %d", callCount)
	}
	if !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("expected parsed error message, got %q", err.Error())
	}
}

func TestLLMClientNonJSONResponse(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Not Found</body></html>"))
	}))
	defer server.Close()

	client, _ := NewLLMClient("openai", "sk-test", WithLLMBaseURL(server.URL), WithLLMRetryDelay(time.Millisecond))
	_, err := client.Complete(context.Background(), "sys", "user")
	if err == nil || !strings.Contains(err.Error(), "not JSON") {
		t.Errorf("expected 'not JSON' error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call (no retry for non-JSON), got %d", callCount)
	}
}

func TestLLMClientRetriesServerErrors(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream"))
			return
		}
		chatHandler(t, sampleAnswer)(w, r)
	}))
	defer server.Close()

	client, _ := NewLLMClient("openai", "sk-test", WithLLMBaseURL(server.URL), WithLLMRetryDelay(time.Millisecond))
	if _, err := client.Complete(context.Background(), "sys", "user"); err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if callCount != 2 {
		t.Errorf("expected 2 calls (1 retry), got %d", callCount)
	}
}

func TestLLMClientGivesUpAfterRetries(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewLLMClient("openai", "sk-test", WithLLMBaseURL(server.URL), WithLLMRetryDelay(time.Millisecond))
	if _, err := client.Complete(context.Background(), "sys", "user"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if callCount != defaultMaxRetries {
		t.Errorf("expected %d calls, got %d", defaultMaxRetries, callCount)
	}
}

func TestLLMClientNoAuthForOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("expected no auth header for ollama, got %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "response_format") {
			t.Error("ollama requests should not force json mode")
		}
		chatHandler(t, sampleAnswer)(w, r)
	}))
	defer server.Close()

	client, err := NewLLMClient("ollama", "", WithLLMBaseURL(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Complete(context.Background(), "sys", "user"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}
