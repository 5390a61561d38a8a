// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forecast

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianHorizon/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	content string
	err     error
	params  llm.GenerationParams
	prompt  string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	s.prompt = prompt
	s.params = params
	return s.content, s.err
}

func TestLLMOracle_Success(t *testing.T) {
	client := &stubLLM{content: `{"p50":[1,2]}`}
	oracle := NewLLMOracle(client, 0.2)

	c, err := oracle.Forecast(context.Background(), "the prompt")

	require.NoError(t, err)
	assert.Contains(t, c, "p50")
	assert.Equal(t, "the prompt", client.prompt)
	assert.True(t, client.params.JSONMode)
	assert.Equal(t, systemPrompt, client.params.System)
	require.NotNil(t, client.params.Temperature)
	assert.InDelta(t, 0.2, *client.params.Temperature, 1e-6)
}

func TestLLMOracle_StripsCodeFence(t *testing.T) {
	client := &stubLLM{content: "```json\n{\"p50\":[1]}\n```"}

	c, err := NewLLMOracle(client, 0).Forecast(context.Background(), "p")

	require.NoError(t, err)
	assert.Contains(t, c, "p50")
}

func TestLLMOracle_ErrorReasons(t *testing.T) {
	tests := []struct {
		name   string
		client llm.LLMClient
		want   OracleReason
	}{
		{"nil client", nil, ReasonConfigMissing},
		{"config missing", &stubLLM{err: llm.ErrConfigMissing}, ReasonConfigMissing},
		{"status", &stubLLM{err: &llm.StatusError{StatusCode: 503, Body: "busy"}}, ReasonNonSuccessStatus},
		{"empty from backend", &stubLLM{err: llm.ErrEmptyContent}, ReasonEmptyContent},
		{"whitespace content", &stubLLM{content: "  \n"}, ReasonEmptyContent},
		{"prose", &stubLLM{content: "Here is your forecast!"}, ReasonNonJSONContent},
		{"array", &stubLLM{content: "[1,2,3]"}, ReasonNonJSONContent},
		{"transport", &stubLLM{err: errors.New("dial tcp: connection refused")}, ReasonUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMOracle(tt.client, 0).Forecast(context.Background(), "p")

			var oerr *OracleError
			require.ErrorAs(t, err, &oerr)
			assert.Equal(t, tt.want, oerr.Reason)
		})
	}
}

func TestOracleError_Retryable(t *testing.T) {
	assert.False(t, (&OracleError{Reason: ReasonConfigMissing}).Retryable())
	assert.True(t, (&OracleError{Reason: ReasonUnreachable}).Retryable())
	assert.True(t, (&OracleError{Reason: ReasonNonJSONContent}).Retryable())
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, stripCodeFence(in), "input %q", in)
	}
}
