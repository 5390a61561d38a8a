// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHorizon/pkg/ux"
	"github.com/AleutianAI/AleutianHorizon/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"github.com/spf13/cobra"
)

type forecastOptions struct {
	sensorID      string
	resampleFreq  string
	aggregation   string
	missingPolicy string
	outlierPolicy string
	horizonSteps  int
	horizonValue  float64
	horizonUnit   string
	uncertainty   bool
	timeout       time.Duration
}

func newForecastCmd(root *rootOptions) *cobra.Command {
	opts := &forecastOptions{}
	cmd := &cobra.Command{
		Use:   "forecast FILE",
		Short: "Send a CSV file to a Horizon server and print the forecast",
		Long: `forecast reads FILE locally, posts its readings to the server's
/v1/timeseries/forecast endpoint and prints the p50 forecast, plus p10/p90
when --uncertainty is set.

The horizon is either a number of steps (--horizon) or a span of time
(--horizon-value with --horizon-unit min, hour or day).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, skipped, err := buildForecastRequest(args[0], *opts)
			if err != nil {
				return err
			}
			p := root.printer(cmd)
			if len(skipped) > 0 {
				p.Warning(fmt.Sprintf("Skipped %d unreadable rows in %s (first: %s)", len(skipped), args[0], skipped[0]))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := postForecast(ctx, root.baseURL(), req)
			if err != nil {
				return err
			}
			renderForecast(p, args[0], resp)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sensorID, "sensor", "", "Forecast only this sensor when the file holds several")
	f.StringVar(&opts.resampleFreq, "freq", "AUTO", "Resample frequency: AUTO, 1s, 5s, 10s, 30s, 1m, 5m, 15m, 1h or 1d")
	f.StringVar(&opts.aggregation, "aggregation", "MEAN", "Bucket aggregation: MEAN or LAST")
	f.StringVar(&opts.missingPolicy, "missing", "LINEAR", "Missing-value policy: LINEAR, FFILL or DROP")
	f.StringVar(&opts.outlierPolicy, "outliers", "OFF", "Outlier policy: OFF or WINSORIZE_P1_P99")
	f.IntVar(&opts.horizonSteps, "horizon", 0, "Forecast horizon in steps")
	f.Float64Var(&opts.horizonValue, "horizon-value", 0, "Forecast horizon as a span of time, with --horizon-unit")
	f.StringVar(&opts.horizonUnit, "horizon-unit", "", "Unit of --horizon-value: min, hour or day")
	f.BoolVar(&opts.uncertainty, "uncertainty", false, "Request p10/p90 quantiles")
	f.DurationVar(&opts.timeout, "timeout", defaultForecastTimeout, "Request timeout")
	return cmd
}

// buildForecastRequest turns a local CSV file into a forecast request body.
// Rows the parser rejects are dropped and returned as skipped; the server
// sees only clean rows.
func buildForecastRequest(path string, opts forecastOptions) (req datatypes.ForecastRequest, skipped []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return req, nil, err
	}
	defer f.Close()

	parsed, err := timeseries.ParseCSV(f)
	if err != nil {
		return req, nil, fmt.Errorf("invalid CSV %s: %w", path, err)
	}
	if len(parsed.Readings) == 0 {
		return req, nil, fmt.Errorf("%s has no readable rows", path)
	}

	req = datatypes.ForecastRequest{
		Data:          make([]datatypes.DataPoint, 0, len(parsed.Readings)),
		SensorID:      opts.sensorID,
		ResampleFreq:  opts.resampleFreq,
		Aggregation:   strings.ToUpper(opts.aggregation),
		MissingPolicy: strings.ToUpper(opts.missingPolicy),
		OutlierPolicy: strings.ToUpper(opts.outlierPolicy),
		Uncertainty:   opts.uncertainty,
	}
	if opts.horizonUnit != "" {
		req.HorizonMode = "TIME"
		req.HorizonTime = &datatypes.HorizonTime{Value: opts.horizonValue, Unit: opts.horizonUnit}
	} else {
		req.HorizonMode = "STEPS"
		req.HorizonSteps = opts.horizonSteps
	}

	for _, r := range parsed.Readings {
		dp := datatypes.DataPoint{
			Timestamp: datatypes.RawTimestamp{Text: r.Timestamp.UTC().Format(time.RFC3339Nano)},
			SensorID:  r.SensorID,
		}
		if r.Usable() {
			v := r.Value
			dp.Value = &v
		}
		req.Data = append(req.Data, dp)
	}

	if err := req.Validate(); err != nil {
		return datatypes.ForecastRequest{}, nil, fmt.Errorf("invalid forecast options: %s",
			strings.Join(datatypes.ValidationDetails(err), "; "))
	}
	return req, parsed.Errors, nil
}

// postForecast sends req and decodes either envelope.
func postForecast(ctx context.Context, baseURL string, req datatypes.ForecastRequest) (*datatypes.ForecastResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/timeseries/forecast", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp datatypes.ErrorResponse
		if jsonErr := json.Unmarshal(raw, &errResp); jsonErr != nil || errResp.Error == "" {
			return nil, fmt.Errorf("server returned %s", resp.Status)
		}
		msg := fmt.Sprintf("server returned %d: %s", resp.StatusCode, errResp.Error)
		if len(errResp.Details) > 0 {
			msg += " (" + strings.Join(errResp.Details, "; ") + ")"
		}
		return nil, errors.New(msg)
	}

	var out datatypes.ForecastResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode forecast: %w", err)
	}
	if out.Result == nil {
		return nil, fmt.Errorf("server returned an empty forecast")
	}
	return &out, nil
}

func renderForecast(p *ux.Printer, path string, resp *datatypes.ForecastResponse) {
	meta := resp.Meta
	run := resp.RunConfig

	summary := fmt.Sprintf("%s %d steps of %ds from %s\nrun %s, model %s",
		ux.IconArrow, meta.HorizonSteps, meta.UsedFreqSeconds,
		meta.StartTimestamp.UTC().Format(time.RFC3339), run.RunID, run.Model)
	p.Box("Forecast for "+path, summary)

	if len(meta.QualityFlags) > 0 {
		flags := make([]string, len(meta.QualityFlags))
		for i, f := range meta.QualityFlags {
			flags[i] = string(f)
		}
		p.WarningBox("Quality flags", strings.Join(flags, ", "))
	}
	if meta.Notes != "" {
		p.Info(meta.Notes)
	}

	fc := resp.Forecast
	withBands := len(fc.P10) == len(fc.P50) && len(fc.P90) == len(fc.P50) && len(fc.P50) > 0
	headers := []string{"timestamp", "p50"}
	if withBands {
		headers = append(headers, "p10", "p90")
	}

	rows := make([][]string, 0, len(fc.P50))
	for i, v := range fc.P50 {
		ts := ""
		if i < len(fc.Timestamps) {
			ts = fc.Timestamps[i].UTC().Format(time.RFC3339)
		}
		row := []string{ts, formatFloat(v)}
		if withBands {
			row = append(row, formatFloat(fc.P10[i]), formatFloat(fc.P90[i]))
		}
		rows = append(rows, row)
	}
	p.Table(headers, rows)
	p.Success(strconv.Itoa(len(rows)) + " forecast steps")
}
