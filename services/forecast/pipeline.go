// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forecast turns raw sensor readings into a validated quantile
// forecast: clean, build a prompt, call the oracle, validate, retry once.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Constants
// =============================================================================

const (
	DefaultMaxHorizonSteps  = 2000
	DefaultContextWindow    = 1024
	DefaultMinContextPoints = 10

	// maxAttempts is the initial oracle call plus one retry.
	maxAttempts = 2
)

// State is a step of one pipeline run.
type State string

const (
	StateReceived      State = "RECEIVED"
	StateCleaned       State = "CLEANED"
	StateContextReady  State = "CONTEXT_READY"
	StateOracleCalled1 State = "ORACLE_CALLED_1"
	StateOracleCalled2 State = "ORACLE_CALLED_2"
	StateValidated     State = "VALIDATED"
	StateFailed        State = "FAILED"
	StateAssembled     State = "ASSEMBLED"
)

// Attempt results reported to the Recorder.
const (
	AttemptValid       = "valid"
	AttemptInvalid     = "invalid"
	AttemptOracleError = "oracle_error"
)

// =============================================================================
// Result Types
// =============================================================================

// Meta describes how the series was interpreted and how trustworthy the
// forecast is.
type Meta struct {
	DetectedFreqSeconds float64       `json:"detected_freq_seconds"`
	UsedFreqSeconds     int64         `json:"used_freq_seconds"`
	HorizonSteps        int           `json:"horizon_steps"`
	StartTimestamp      time.Time     `json:"start_timestamp"`
	QualityFlags        []QualityFlag `json:"quality_flags"`
	Notes               string        `json:"notes,omitempty"`
}

// History is the cleaned context window the oracle saw, oldest first.
type History struct {
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
}

// Series is the forecast on the grid after the last history point. P10 and
// P90 are set only when uncertainty was requested.
type Series struct {
	Timestamps []time.Time `json:"timestamps"`
	P50        []float64   `json:"p50"`
	P10        []float64   `json:"p10,omitempty"`
	P90        []float64   `json:"p90,omitempty"`
}

// RunConfig echoes the effective settings of a run for reproducibility.
type RunConfig struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Config    Settings  `json:"config"`
	Model     string    `json:"model"`
}

// Result is a completed forecast run.
type Result struct {
	Meta      Meta      `json:"meta"`
	History   History   `json:"history"`
	Forecast  Series    `json:"forecast"`
	RunConfig RunConfig `json:"run_config"`
}

// =============================================================================
// Pipeline
// =============================================================================

// Config holds the pipeline knobs. Zero values fall back to defaults.
type Config struct {
	MaxHorizonSteps  int
	ContextWindow    int
	MinContextPoints int

	// MaxGridBuckets bounds the resampled grid. Zero means
	// timeseries.DefaultMaxGridBuckets.
	MaxGridBuckets int64

	// MaxGap bounds linear interpolation. Zero means timeseries.DefaultMaxGap.
	MaxGap time.Duration

	// OracleTimeout bounds each oracle attempt. Zero means unbounded.
	OracleTimeout time.Duration

	// ModelName is echoed in run_config.model.
	ModelName string
}

// Recorder receives run and attempt outcomes for metrics.
type Recorder interface {
	ObserveAttempt(result string)
	ObserveRun(success bool, kind string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string)                  {}
func (nopRecorder) ObserveRun(bool, string, time.Duration) {}

// Pipeline runs forecast requests. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	cfg      Config
	oracle   Oracle
	audit    AuditSink
	recorder Recorder
	now      func() time.Time
	newRunID func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

func WithAuditSink(sink AuditSink) Option {
	return func(p *Pipeline) { p.audit = sink }
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithRunIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newRunID = gen }
}

// NewRunID returns a fresh "fc_" prefixed identifier.
func NewRunID() string {
	return "fc_" + uuid.NewString()
}

func NewPipeline(cfg Config, oracle Oracle, opts ...Option) *Pipeline {
	if cfg.MaxHorizonSteps <= 0 {
		cfg.MaxHorizonSteps = DefaultMaxHorizonSteps
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.MinContextPoints <= 0 {
		cfg.MinContextPoints = DefaultMinContextPoints
	}
	if cfg.MaxGridBuckets <= 0 {
		cfg.MaxGridBuckets = timeseries.DefaultMaxGridBuckets
	}
	if cfg.MaxGap <= 0 {
		cfg.MaxGap = timeseries.DefaultMaxGap
	}
	p := &Pipeline{
		cfg:      cfg,
		oracle:   oracle,
		audit:    nopAuditSink{},
		recorder: nopRecorder{},
		now:      time.Now,
		newRunID: NewRunID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run tracks one invocation.
type run struct {
	id         string
	state      State
	history    []State
	dataPoints int
	horizon    int
	span       trace.Span
}

func (r *run) transition(s State) {
	r.state = s
	r.history = append(r.history, s)
	r.span.AddEvent("state", trace.WithAttributes(attribute.String("state", string(s))))
}

// Run executes one forecast request end to end.
//
// # Description
//
// Resolves the bucket width and horizon, cleans the series, caps the
// context, then calls the oracle at most twice with the same prompt. Exactly
// one audit record is emitted whatever the outcome.
//
// # Outputs
//
//   - *Result: The assembled forecast on success.
//   - error: Always a *PipelineError on failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := p.now()
	ctx, span := tracer.Start(ctx, "Pipeline.Run")
	defer span.End()

	r := &run{id: p.newRunID(), span: span}
	span.SetAttributes(attribute.String("run.id", r.id))
	r.transition(StateReceived)

	result, err := p.execute(ctx, r, req)
	duration := p.now().Sub(start)

	rec := AuditRecord{
		RunID:      r.id,
		Endpoint:   req.Endpoint,
		DurationMs: duration.Milliseconds(),
		DataPoints: r.dataPoints,
		Horizon:    r.horizon,
		Success:    err == nil,
	}
	kind := ""
	if err != nil {
		rec.Error = err.Error()
		kind = errorKindLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	p.recordAudit(rec)
	p.recorder.ObserveRun(err == nil, kind, duration)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject audits a request that failed before Run could start, such as a
// malformed body or a failed history lookup, and returns it as a
// *PipelineError of the given kind.
func (p *Pipeline) Reject(endpoint string, kind error, details []string, format string, args ...any) *PipelineError {
	perr := newPipelineError(kind, details, format, args...)
	p.recordAudit(AuditRecord{
		RunID:    p.newRunID(),
		Endpoint: endpoint,
		Success:  false,
		Error:    perr.Error(),
	})
	p.recorder.ObserveRun(false, errorKindLabel(perr), 0)
	return perr
}

func (p *Pipeline) recordAudit(rec AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("audit sink failed", "run_id", rec.RunID, "panic", r)
		}
	}()
	p.audit.Record(rec)
}

func (p *Pipeline) execute(ctx context.Context, r *run, req Request) (*Result, error) {
	settings := req.Settings.withDefaults()

	readings := timeseries.SortReadings(timeseries.FilterSensor(req.Readings, settings.SensorID))
	if len(readings) == 0 {
		r.transition(StateFailed)
		return nil, newPipelineError(ErrInsufficientData, nil, "no readings to forecast")
	}

	var profile *timeseries.FrequencyProfile
	if fp, err := timeseries.ProfileFrequency(timeseries.Timestamps(readings)); err == nil {
		profile = &fp
	}

	width, err := resolveBucketWidth(settings.ResampleFreq, profile)
	if err != nil {
		r.transition(StateFailed)
		return nil, err
	}

	horizon, err := resolveHorizon(settings, width)
	if err != nil {
		r.transition(StateFailed)
		return nil, err
	}
	r.horizon = horizon
	if horizon > p.cfg.MaxHorizonSteps {
		r.transition(StateFailed)
		return nil, newPipelineError(ErrHorizonExceeded, nil,
			"horizon of %d steps exceeds the maximum of %d", horizon, p.cfg.MaxHorizonSteps)
	}

	grid, err := timeseries.ResampleBounded(readings, width, settings.Aggregation, p.cfg.MaxGridBuckets)
	if err != nil {
		r.transition(StateFailed)
		return nil, newPipelineError(ErrRequestShape, nil, "resample: %v", err)
	}
	filled, err := timeseries.Fill(grid, settings.MissingPolicy, p.cfg.MaxGap)
	if err != nil {
		r.transition(StateFailed)
		return nil, newPipelineError(ErrRequestShape, nil, "missing_policy: %v", err)
	}
	clipped, err := timeseries.Clip(filled, settings.OutlierPolicy)
	if err != nil {
		r.transition(StateFailed)
		return nil, newPipelineError(ErrRequestShape, nil, "outlier_policy: %v", err)
	}
	r.transition(StateCleaned)

	cleaned := clipped.Points
	if len(cleaned) < p.cfg.MinContextPoints {
		r.transition(StateFailed)
		return nil, newPipelineError(ErrInsufficientData, nil,
			"insufficient data after processing: %d points, need at least %d", len(cleaned), p.cfg.MinContextPoints)
	}

	window := cleaned
	if len(window) > p.cfg.ContextWindow {
		window = window[len(window)-p.cfg.ContextWindow:]
	}
	r.dataPoints = len(window)
	r.transition(StateContextReady)

	prompt := BuildPrompt(window, horizon, settings.Uncertainty)
	valid, err := p.consultOracle(ctx, r, prompt, horizon, settings.Uncertainty)
	if err != nil {
		r.transition(StateFailed)
		return nil, err
	}
	r.transition(StateValidated)

	quality := dataQuality{
		contextPoints:   len(window),
		missingFraction: timeseries.MissingFraction(grid),
		clipped:         clipped.Clipped,
		horizon:         horizon,
	}
	detected := float64(width)
	if profile != nil {
		quality.irregularityPct = profile.IrregularityPct
		detected = profile.DetectedFreqSeconds
	}

	last := window[len(window)-1].Timestamp
	stamps := forecastTimestamps(last, width, horizon)

	history := History{
		Timestamps: make([]time.Time, len(window)),
		Values:     make([]float64, len(window)),
	}
	for i, pt := range window {
		history.Timestamps[i] = pt.Timestamp.UTC()
		history.Values[i] = pt.Value
	}

	result := &Result{
		Meta: Meta{
			DetectedFreqSeconds: detected,
			UsedFreqSeconds:     width,
			HorizonSteps:        horizon,
			StartTimestamp:      stamps[0],
			QualityFlags:        mergeFlags(valid.QualityFlags, quality.flags()),
			Notes:               valid.Notes,
		},
		History: history,
		Forecast: Series{
			Timestamps: stamps,
			P50:        valid.Forecast.P50,
			P10:        valid.Forecast.P10,
			P90:        valid.Forecast.P90,
		},
		RunConfig: RunConfig{
			RunID:     r.id,
			Timestamp: p.now().UTC(),
			Config:    settings,
			Model:     p.cfg.ModelName,
		},
	}
	r.transition(StateAssembled)
	return result, nil
}

// consultOracle makes the initial call and at most one retry with the same
// prompt. The failure surfaced is always the last attempt's.
func (p *Pipeline) consultOracle(ctx context.Context, r *run, prompt string, horizon int, uncertainty bool) (Valid, error) {
	var (
		lastOracleErr  *OracleError
		lastViolations []string
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt == 1 {
			r.transition(StateOracleCalled1)
		} else {
			r.transition(StateOracleCalled2)
		}

		candidate, err := p.callOracle(ctx, prompt)
		if err != nil {
			lastOracleErr, lastViolations = err, nil
			p.recorder.ObserveAttempt(AttemptOracleError)
			if !err.Retryable() || ctx.Err() != nil {
				break
			}
			continue
		}

		switch outcome := ValidateCandidate(candidate, horizon, uncertainty).(type) {
		case Valid:
			p.recorder.ObserveAttempt(AttemptValid)
			return outcome, nil
		case Invalid:
			lastOracleErr, lastViolations = nil, outcome.Violations
			p.recorder.ObserveAttempt(AttemptInvalid)
		}
	}

	if lastOracleErr != nil {
		perr := newPipelineError(ErrOracle, []string{string(lastOracleErr.Reason)},
			"forecast oracle failed: %v", lastOracleErr)
		perr.Cause = lastOracleErr
		return Valid{}, perr
	}
	return Valid{}, newPipelineError(ErrResponseValidation, lastViolations,
		"oracle returned an invalid response after retry")
}

func (p *Pipeline) callOracle(ctx context.Context, prompt string) (RawCandidate, *OracleError) {
	if p.oracle == nil {
		return nil, &OracleError{Reason: ReasonConfigMissing}
	}
	if p.cfg.OracleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.OracleTimeout)
		defer cancel()
	}
	candidate, err := p.oracle.Forecast(ctx, prompt)
	if err != nil {
		var oerr *OracleError
		if errors.As(err, &oerr) {
			return nil, oerr
		}
		return nil, &OracleError{Reason: ReasonUnreachable, Err: err}
	}
	if candidate == nil {
		return nil, &OracleError{Reason: ReasonEmptyContent}
	}
	return candidate, nil
}

// errorKindLabel names the sentinel kind of err for metrics labels.
func errorKindLabel(err error) string {
	switch {
	case errors.Is(err, ErrRequestShape):
		return "request_shape"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrHorizonExceeded):
		return "horizon_exceeded"
	case errors.Is(err, ErrOracle):
		return "oracle"
	case errors.Is(err, ErrResponseValidation):
		return "response_validation"
	case errors.Is(err, ErrHistoryUnavailable):
		return "history_unavailable"
	default:
		return fmt.Sprintf("%T", err)
	}
}
