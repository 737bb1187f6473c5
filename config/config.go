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

// Package config loads and stores mcpd's on-disk configuration.
// Files are parsed as YAML, of which the historical JSON configs
// are a subset, so both load the same way.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider configures one AI model endpoint.
type Provider struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Debugger configures the debugger bridge connection.
type Debugger struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TimeoutMS int    `yaml:"connection_timeout_ms"`
}

// Log configures the logbook.
type Log struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// Config is the root of the configuration tree.
type Config struct {
	Providers       map[string]Provider `yaml:"llm_providers"`
	DefaultProvider string              `yaml:"default_provider"`
	Debugger        Debugger            `yaml:"debug_config"`
	Log             Log                 `yaml:"log_config"`
}

// Default returns the configuration used in the absence of a file.
func Default() *Config {
	return &Config{
		Providers: map[string]Provider{
			"claude": {
				BaseURL: "https://api.anthropic.com",
				Model:   "claude-3-sonnet-20240229",
			},
			"openai": {
				BaseURL: "https://api.openai.com",
				Model:   "gpt-4-turbo",
			},
			"gemini": {
				BaseURL: "https://generativelanguage.googleapis.com",
				Model:   "gemini-1.5-pro-latest",
			},
		},
		DefaultProvider: "claude",
		Debugger: Debugger{
			Host:      "127.0.0.1",
			Port:      27042,
			TimeoutMS: 5000,
		},
		Log: Log{
			Level:     "INFO",
			FilePath:  "mcpd.log",
			MaxSizeMB: 10,
		},
	}
}

// Load reads configuration from a file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return c, nil
}

// Save writes the configuration back out.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}

// GetString retrieves a value by a dotted path,
// e.g. "llm_providers.claude.model".
func (c *Config) GetString(key string) (string, error) {
	node, err := c.resolve(key)
	if err != nil {
		return "", err
	}
	switch v := node.(type) {
	case string:
		return v, nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%s is not a scalar", key)
	}
}

// SetString updates a value by a dotted path. The final path element must
// address a scalar or a missing map key.
func (c *Config) SetString(key, value string) error {
	tree := map[string]interface{}{}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	node := tree
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value

	data, err = yaml.Marshal(tree)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) resolve(key string) (interface{}, error) {
	tree := map[string]interface{}{}
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	var node interface{} = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("config key not found: %s", key)
		}
		if node, ok = m[part]; !ok {
			return nil, fmt.Errorf("config key not found: %s", key)
		}
	}
	return node, nil
}
