//
// Copyright (c) 2026, Přemysl Eric Janouch <p@janouch.name>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION
// OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN
// CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
//

package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"janouch.name/mcpd/config"
	"janouch.name/mcpd/logbook"
)

func TestClaude(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/messages" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if r.Header.Get("x-api-key") != "sk-ant-test" {
				t.Errorf("x-api-key = %s", r.Header.Get("x-api-key"))
			}
			if r.Header.Get("anthropic-version") == "" {
				t.Error("missing anthropic-version")
			}

			var req claudeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Error(err)
			}
			if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
				t.Errorf("messages = %+v", req.Messages)
			}

			json.NewEncoder(w).Encode(claudeResponse{Content: []struct {
				Text string `json:"text"`
			}{{Text: "analysis of " + req.Messages[0].Content}}})
		}))
	defer server.Close()

	p := NewClaude()
	p.SetBaseURL(server.URL)
	p.SetAPIKey("sk-ant-test")

	content, err := p.Complete(Request{Prompt: "xor eax, eax"})
	if err != nil {
		t.Fatal(err)
	}
	if content != "analysis of xor eax, eax" {
		t.Errorf("content = %q", content)
	}
}

func TestOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/chat/completions" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				t.Errorf("authorization = %s", r.Header.Get("Authorization"))
			}

			var req openAIRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Error(err)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("messages = %+v", req.Messages)
			}

			json.NewEncoder(w).Encode(openAIResponse{Choices: []struct {
				Message openAIMessage `json:"message"`
			}{{Message: openAIMessage{Role: "assistant", Content: "done"}}}})
		}))
	defer server.Close()

	p := NewOpenAI()
	p.SetBaseURL(server.URL)
	p.SetAPIKey("sk-test")

	content, err := p.Complete(Request{Prompt: "explain"})
	if err != nil {
		t.Fatal(err)
	}
	if content != "done" {
		t.Errorf("content = %q", content)
	}
}

func TestGemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.URL.Path, ":generateContent") {
				t.Errorf("path = %s", r.URL.Path)
			}
			if r.URL.Query().Get("key") != "g-test" {
				t.Errorf("key = %s", r.URL.Query().Get("key"))
			}
			json.NewEncoder(w).Encode(geminiResponse{Candidates: []struct {
				Content geminiContent `json:"content"`
			}{{Content: geminiContent{
				Parts: []geminiPart{{Text: "gemini says"}}}}}})
		}))
	defer server.Close()

	p := NewGemini()
	p.SetBaseURL(server.URL)
	p.SetAPIKey("g-test")

	content, err := p.Complete(Request{Prompt: "explain"})
	if err != nil {
		t.Fatal(err)
	}
	if content != "gemini says" {
		t.Errorf("content = %q", content)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "no such model"}`, 404)
		}))
	defer server.Close()

	p := NewOpenAI()
	p.SetBaseURL(server.URL)
	if _, err := p.Complete(Request{Prompt: "x"}); err == nil ||
		!strings.Contains(err.Error(), "404") {
		t.Errorf("expected a status error, got %v", err)
	}
}

func TestEngine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var req claudeRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(claudeResponse{Content: []struct {
				Text string `json:"text"`
			}{{Text: req.Messages[0].Content}}})
		}))
	defer server.Close()

	e := NewEngine(logbook.Discard)
	if err := e.Configure(&config.Config{
		Providers: map[string]config.Provider{
			"claude": {APIKey: "k", BaseURL: server.URL},
		},
		DefaultProvider: "claude",
	}); err != nil {
		t.Fatal(err)
	}

	// The default provider handles requests naming none, and request
	// context rides along in the prompt.
	resp, err := e.Complete(Request{
		Prompt:  "explain this",
		Context: []string{"mov eax, 1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "claude" {
		t.Errorf("provider = %q", resp.Provider)
	}
	if !strings.Contains(resp.Content, "mov eax, 1") {
		t.Errorf("context did not ride along: %q", resp.Content)
	}

	if _, err := e.Complete(Request{
		Provider: "nonsense", Prompt: "x"}); err == nil {
		t.Error("unknown provider accepted")
	}
	if err := e.SetDefault("nonsense"); err == nil {
		t.Error("unknown default accepted")
	}

	want := []string{"claude", "gemini", "openai"}
	got := e.Providers()
	if len(got) != len(want) {
		t.Fatalf("providers = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("providers = %v, want %v", got, want)
		}
	}
}
