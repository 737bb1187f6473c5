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

// Package llm talks to external AI model providers over HTTP.
package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"janouch.name/mcpd/config"
	"janouch.name/mcpd/logbook"
)

// Request is a single completion request.
type Request struct {
	Prompt    string
	Provider  string // empty for the engine's default
	Model     string // empty for the provider's default
	MaxTokens int
	Context   []string // extra material appended to the prompt
}

// Response is a completed request.
type Response struct {
	Content  string
	Provider string
	Elapsed  time.Duration
}

// Provider is a single AI model endpoint.
type Provider interface {
	Name() string
	Complete(req Request) (string, error)
	SetAPIKey(key string)
	SetBaseURL(url string)
	SetModel(model string)
}

// Engine routes requests to named providers. Safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	providers map[string]Provider
	fallback  string
	log       *logbook.Logger
}

// NewEngine returns an Engine with the stock providers registered.
func NewEngine(log *logbook.Logger) *Engine {
	e := &Engine{
		providers: make(map[string]Provider),
		fallback:  "claude",
		log:       log,
	}
	e.Register(NewClaude())
	e.Register(NewOpenAI())
	e.Register(NewGemini())
	return e
}

// Register adds a provider, replacing any previous one of the same name.
func (e *Engine) Register(p Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers[p.Name()] = p
	e.log.Infof("llm: registered provider %s", p.Name())
}

// SetDefault selects the provider used when a request names none.
func (e *Engine) SetDefault(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.providers[name]; !ok {
		return fmt.Errorf("unknown provider: %s", name)
	}
	e.fallback = name
	return nil
}

// Providers lists registered provider names, sorted.
func (e *Engine) Providers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.providers))
	for name := range e.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetAPIKey sets the credential of a named provider.
func (e *Engine) SetAPIKey(name, key string) error {
	p, err := e.provider(name)
	if err != nil {
		return err
	}
	p.SetAPIKey(key)
	return nil
}

// Validate checks that a provider of that name is registered.
func (e *Engine) Validate(name string) error {
	_, err := e.provider(name)
	return err
}

func (e *Engine) provider(name string) (Provider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		name = e.fallback
	}
	p, ok := e.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Complete resolves the provider and executes the request synchronously.
func (e *Engine) Complete(req Request) (Response, error) {
	p, err := e.provider(req.Provider)
	if err != nil {
		e.log.Warnf("llm: %s", err)
		return Response{}, err
	}

	if len(req.Context) > 0 {
		req.Prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n")
	}

	e.log.Debugf("llm: sending request to %s", p.Name())
	start := time.Now()
	content, err := p.Complete(req)
	if err != nil {
		e.log.Errorf("llm: %s: %s", p.Name(), err)
		return Response{}, fmt.Errorf("%s: %w", p.Name(), err)
	}
	return Response{
		Content:  content,
		Provider: p.Name(),
		Elapsed:  time.Since(start),
	}, nil
}

// Configure applies keys, endpoints and models from the configuration,
// and selects the default provider.
func (e *Engine) Configure(c *config.Config) error {
	for name, pc := range c.Providers {
		p, err := e.provider(name)
		if err != nil {
			e.log.Warnf("llm: ignoring configuration for %s", name)
			continue
		}
		if pc.APIKey != "" {
			p.SetAPIKey(pc.APIKey)
		}
		if pc.BaseURL != "" {
			p.SetBaseURL(pc.BaseURL)
		}
		if pc.Model != "" {
			p.SetModel(pc.Model)
		}
	}
	if c.DefaultProvider != "" {
		return e.SetDefault(c.DefaultProvider)
	}
	return nil
}
