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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	systemPrompt     = "You are a reverse engineering assistant."
	defaultMaxTokens = 4096
)

// base carries what all HTTP providers share.
type base struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newBase(name, baseURL, model string) base {
	return base{
		name:    name,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *base) Name() string           { return b.name }
func (b *base) SetAPIKey(key string)   { b.apiKey = key }
func (b *base) SetBaseURL(url string)  { b.baseURL = url }
func (b *base) SetModel(model string)  { b.model = model }

func (b *base) pickModel(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return b.model
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

// post sends a JSON payload and decodes a JSON reply, treating any
// non-200 status as an error carrying the response body.
func (b *base) post(path string, headers map[string]string,
	payload, reply interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(
		http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d: %s",
			resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.Unmarshal(body, reply)
}

// --- Claude ------------------------------------------------------------------

// Claude talks to the Anthropic Messages API.
type Claude struct{ base }

// NewClaude returns a Claude provider with stock settings.
func NewClaude() *Claude {
	return &Claude{newBase(
		"claude", "https://api.anthropic.com", "claude-3-sonnet-20240229")}
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Claude) Complete(req Request) (string, error) {
	payload := claudeRequest{
		Model:     c.pickModel(req),
		MaxTokens: maxTokens(req),
		Messages:  []claudeMessage{{Role: "user", Content: req.Prompt}},
	}
	var reply claudeResponse
	err := c.post("/v1/messages", map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}, &payload, &reply)
	if err != nil {
		return "", err
	}
	if len(reply.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return reply.Content[0].Text, nil
}

// --- OpenAI ------------------------------------------------------------------

// OpenAI talks to the chat completions API.
type OpenAI struct{ base }

// NewOpenAI returns an OpenAI provider with stock settings.
func NewOpenAI() *OpenAI {
	return &OpenAI{newBase(
		"openai", "https://api.openai.com", "gpt-4-turbo")}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(req Request) (string, error) {
	payload := openAIRequest{
		Model: o.pickModel(req),
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens: maxTokens(req),
	}
	var reply openAIResponse
	err := o.post("/v1/chat/completions", map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, &payload, &reply)
	if err != nil {
		return "", err
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return reply.Choices[0].Message.Content, nil
}

// --- Gemini ------------------------------------------------------------------

// Gemini talks to the Google generative language API.
type Gemini struct{ base }

// NewGemini returns a Gemini provider with stock settings.
func NewGemini() *Gemini {
	return &Gemini{newBase("gemini",
		"https://generativelanguage.googleapis.com", "gemini-1.5-pro-latest")}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Complete(req Request) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	var reply geminiResponse
	// Gemini authenticates through the query string rather than a header.
	err := g.post(fmt.Sprintf("/v1beta/models/%s:generateContent?key=%s",
		g.pickModel(req), g.apiKey), nil, &payload, &reply)
	if err != nil {
		return "", err
	}
	if len(reply.Candidates) == 0 ||
		len(reply.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return reply.Candidates[0].Content.Parts[0].Text, nil
}
