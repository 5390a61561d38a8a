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
	"strings"

	"github.com/AleutianAI/AleutianHorizon/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.horizon.forecast")

// Oracle produces one raw forecast candidate per call. Implementations make
// no attempt to validate the candidate and never retry.
type Oracle interface {
	Forecast(ctx context.Context, prompt string) (RawCandidate, error)
}

// LLMOracle is an Oracle backed by an llm.LLMClient.
type LLMOracle struct {
	client      llm.LLMClient
	temperature float32
}

// NewLLMOracle wraps client. A nil client yields an oracle that fails every
// call with ReasonConfigMissing.
func NewLLMOracle(client llm.LLMClient, temperature float32) *LLMOracle {
	return &LLMOracle{client: client, temperature: temperature}
}

// Forecast sends prompt to the model in JSON mode and decodes the reply.
func (o *LLMOracle) Forecast(ctx context.Context, prompt string) (RawCandidate, error) {
	ctx, span := tracer.Start(ctx, "LLMOracle.Forecast")
	defer span.End()
	span.SetAttributes(attribute.Int("prompt.length", len(prompt)))

	if o.client == nil {
		err := &OracleError{Reason: ReasonConfigMissing, Err: llm.ErrConfigMissing}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	temp := o.temperature
	content, err := o.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temp,
		System:      systemPrompt,
		JSONMode:    true,
	})
	if err != nil {
		oerr := classifyLLMError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(oerr.Reason))
		return nil, oerr
	}

	content = stripCodeFence(content)
	if content == "" {
		span.SetStatus(codes.Error, string(ReasonEmptyContent))
		return nil, &OracleError{Reason: ReasonEmptyContent, Err: llm.ErrEmptyContent}
	}

	candidate, err := ParseCandidate(content)
	if err != nil {
		span.SetStatus(codes.Error, string(ReasonNonJSONContent))
		return nil, &OracleError{Reason: ReasonNonJSONContent, Err: err}
	}
	span.SetStatus(codes.Ok, "")
	return candidate, nil
}

func classifyLLMError(err error) *OracleError {
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrConfigMissing):
		return &OracleError{Reason: ReasonConfigMissing, Err: err}
	case errors.As(err, &statusErr):
		return &OracleError{Reason: ReasonNonSuccessStatus, Err: err}
	case errors.Is(err, llm.ErrEmptyContent):
		return &OracleError{Reason: ReasonEmptyContent, Err: err}
	default:
		return &OracleError{Reason: ReasonUnreachable, Err: err}
	}
}

// stripCodeFence removes a surrounding ```json ... ``` block, which some
// models emit even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
