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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHorizon/pkg/ux"
	"github.com/AleutianAI/AleutianHorizon/services/timeseries"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type profileOptions struct {
	sensorID string
	workers  int
}

// profileResult is the outcome for one file. Per-file failures do not stop
// the other files.
type profileResult struct {
	path    string
	profile timeseries.DatasetProfile
	err     error
}

func newProfileCmd(root *rootOptions) *cobra.Command {
	opts := &profileOptions{}
	cmd := &cobra.Command{
		Use:   "profile FILE...",
		Short: "Profile CSV files locally: row count, sampling frequency and statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := profileFiles(cmd, args, *opts)
			if err != nil {
				return err
			}
			return renderProfiles(root.printer(cmd), results)
		},
	}
	cmd.Flags().StringVar(&opts.sensorID, "sensor", "", "Profile only this sensor when a file holds several")
	cmd.Flags().IntVar(&opts.workers, "workers", defaultProfileWorkers, "Files profiled concurrently")
	return cmd
}

// profileFiles profiles every path concurrently, keeping argument order.
func profileFiles(cmd *cobra.Command, paths []string, opts profileOptions) ([]profileResult, error) {
	results := make([]profileResult, len(paths))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(opts.workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			profile, err := profileFile(path, opts.sensorID)
			results[i] = profileResult{path: path, profile: profile, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func profileFile(path, sensorID string) (timeseries.DatasetProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return timeseries.DatasetProfile{}, err
	}
	defer f.Close()

	parsed, err := timeseries.ParseCSV(f)
	if err != nil {
		return timeseries.DatasetProfile{}, fmt.Errorf("invalid CSV: %w", err)
	}
	return timeseries.BuildProfile(parsed, sensorID)
}

func renderProfiles(p *ux.Printer, results []profileResult) error {
	failed := 0
	for i, res := range results {
		if i > 0 {
			p.Newline()
		}
		if res.err != nil {
			failed++
			renderProfileError(p, res)
			continue
		}
		renderProfile(p, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be profiled", failed, len(results))
	}
	return nil
}

func renderProfile(p *ux.Printer, res profileResult) {
	prof := res.profile
	stats := prof.Statistics
	freq := prof.Frequency

	p.Title(res.path)
	if p.Level() == ux.PersonalityMachine {
		p.Field("file", res.path)
	}
	p.Field("rows", strconv.Itoa(prof.RowCount))
	if len(prof.Sensors) > 0 {
		p.Field("sensors", strings.Join(prof.Sensors, ","))
	}
	p.Field("start", prof.TimeRange.Start.Format(time.RFC3339))
	p.Field("end", prof.TimeRange.End.Format(time.RFC3339))
	p.Field("detected freq seconds", formatFloat(freq.DetectedFreqSeconds))
	p.Field("suggested resample freq", freq.SuggestedResampleFreq)
	p.Field("irregularity pct", formatFloat(freq.IrregularityPct))
	p.Field("missing intervals", strconv.Itoa(freq.MissingIntervals))
	p.Field("min", formatFloat(stats.Min))
	p.Field("max", formatFloat(stats.Max))
	p.Field("mean", formatFloat(stats.Mean))
	p.Field("std", formatFloat(stats.Std))
	p.Field("missing pct", formatFloat(stats.MissingPct))
}

func renderProfileError(p *ux.Printer, res profileResult) {
	var rowErrs *timeseries.RowErrorsError
	if errors.As(res.err, &rowErrs) {
		p.Error(fmt.Sprintf("%s: %d rows could not be parsed", res.path, rowErrs.Total))
		for _, line := range rowErrs.Sample {
			p.Info(line)
		}
		return
	}
	p.Error(fmt.Sprintf("%s: %v", res.path, res.err))
}
