// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConfigMissing means the backend cannot be built from the given Config.
	ErrConfigMissing = errors.New("llm configuration missing")

	// ErrEmptyContent means the backend answered without any text.
	ErrEmptyContent = errors.New("llm returned no content")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm backend returned status %d: %s", e.StatusCode, e.Body)
}

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// System is sent as the system message when non-empty.
	System string `json:"system"`

	// JSONMode asks the backend to constrain its output to a JSON object.
	JSONMode bool `json:"json_mode"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "openai" (any OpenAI-compatible chat API) or "ollama".
	Backend string `yaml:"backend"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`

	// Timeout bounds a single HTTP round trip. Zero means no client timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// NewClient builds the backend named by cfg.Backend.
func NewClient(cfg Config) (LLMClient, error) {
	switch cfg.Backend {
	case "", "openai":
		c, err := NewOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		c, err := NewOllamaClient(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
