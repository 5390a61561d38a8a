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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianHorizon/pkg/ux"
	"github.com/spf13/cobra"
)

const (
	DefaultServerURL       = "http://localhost:12210"
	defaultForecastTimeout = 90 * time.Second
	defaultProfileWorkers  = 4
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	personality string
	serverURL   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "horizon",
		Short: "Profile sensor CSV files and request forecasts from a Horizon server",
		Long: `horizon works with IoT time-series exported as CSV
(timestamp,value or timestamp,sensor_id,value).

profile runs locally and needs no server. forecast posts the readings to a
running Horizon orchestrator and prints the predicted quantiles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.personality, "personality", "",
		"Output style: standard, minimal or machine (default: detected from the terminal)")
	rootCmd.PersistentFlags().StringVar(&opts.serverURL, "server", "",
		"Horizon server base URL (default: $HORIZON_SERVER_URL or "+DefaultServerURL+")")

	rootCmd.AddCommand(newProfileCmd(opts), newForecastCmd(opts))
	return rootCmd
}

// printer builds the output printer for cmd, honoring --personality.
func (o *rootOptions) printer(cmd *cobra.Command) *ux.Printer {
	out := cmd.OutOrStdout()
	if o.personality != "" {
		return ux.NewPrinter(out, ux.ParsePersonalityLevel(o.personality))
	}
	level := ux.PersonalityMachine
	if f, ok := out.(*os.File); ok {
		level = ux.DetectPersonality(f)
	}
	return ux.NewPrinter(out, level)
}

// baseURL resolves the server address: flag, then environment, then default.
func (o *rootOptions) baseURL() string {
	if o.serverURL != "" {
		return strings.TrimRight(o.serverURL, "/")
	}
	if url := os.Getenv("HORIZON_SERVER_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return DefaultServerURL
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
