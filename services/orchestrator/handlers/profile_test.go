// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilePath = "/v1/timeseries/profile"

func postProfile(t *testing.T, router *gin.Engine, csv string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if csv != "" {
		part, err := mw.CreateFormFile("file", "readings.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(csv))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, profilePath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func minuteCSV(n int, sensors ...string) string {
	var b strings.Builder
	if len(sensors) == 0 {
		b.WriteString("timestamp,value\n")
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "2024-01-01T00:%02d:00Z,%d\n", i, i)
		}
		return b.String()
	}
	b.WriteString("timestamp,sensor_id,value\n")
	for i := 0; i < n; i++ {
		for _, s := range sensors {
			fmt.Fprintf(&b, "2024-01-01T00:%02d:00Z,%s,%d\n", i, s, i)
		}
	}
	return b.String()
}

type profileBody struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	Details   []string `json:"details"`
	RowCount  int      `json:"row_count"`
	Sensors   []string `json:"sensors"`
	Frequency struct {
		DetectedFreqSeconds   float64 `json:"detected_freq_seconds"`
		SuggestedResampleFreq string  `json:"suggested_resample_freq"`
	} `json:"frequency"`
	Statistics struct {
		Min        float64 `json:"min"`
		Max        float64 `json:"max"`
		MissingPct float64 `json:"missing_pct"`
	} `json:"statistics"`
	Preview []json.RawMessage `json:"preview"`
}

func decodeProfile(t *testing.T, w *httptest.ResponseRecorder) profileBody {
	t.Helper()
	var pb profileBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pb), w.Body.String())
	return pb
}

func TestHandleProfile_Success(t *testing.T) {
	metrics := newTestMetrics()
	router := gin.New()
	router.POST(profilePath, HandleProfile(metrics))

	w := postProfile(t, router, minuteCSV(60), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pb := decodeProfile(t, w)
	assert.True(t, pb.Success)
	assert.Equal(t, 60, pb.RowCount)
	assert.Empty(t, pb.Sensors)
	assert.Equal(t, 60.0, pb.Frequency.DetectedFreqSeconds)
	assert.Equal(t, "1m", pb.Frequency.SuggestedResampleFreq)
	assert.Equal(t, 0.0, pb.Statistics.Min)
	assert.Equal(t, 59.0, pb.Statistics.Max)
	assert.Len(t, pb.Preview, 50, "preview is capped")
	assert.Equal(t, 60.0, testutil.ToFloat64(metrics.ProfiledRowsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("profile", "success")))
}

func TestHandleProfile_SensorFilter(t *testing.T) {
	router := gin.New()
	router.POST(profilePath, HandleProfile(nil))

	w := postProfile(t, router, minuteCSV(10, "pump-1", "pump-2"), map[string]string{"sensor_id": "pump-2"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pb := decodeProfile(t, w)
	assert.Equal(t, 10, pb.RowCount)
	assert.ElementsMatch(t, []string{"pump-1", "pump-2"}, pb.Sensors)
}

func TestHandleProfile_MissingMarkersCountAsMissing(t *testing.T) {
	router := gin.New()
	router.POST(profilePath, HandleProfile(nil))

	csv := "timestamp,value\n" +
		"2024-01-01T00:00:00Z,1\n" +
		"2024-01-01T00:01:00Z,NaN\n" +
		"2024-01-01T00:02:00Z,\n" +
		"2024-01-01T00:03:00Z,4\n"
	w := postProfile(t, router, csv, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pb := decodeProfile(t, w)
	assert.Equal(t, 4, pb.RowCount)
	assert.Equal(t, 50.0, pb.Statistics.MissingPct)
}

func TestHandleProfile_TooManyRowErrors(t *testing.T) {
	router := gin.New()
	router.POST(profilePath, HandleProfile(nil))

	var b strings.Builder
	b.WriteString("timestamp,value\n")
	for i := 0; i < 101; i++ {
		fmt.Fprintf(&b, "not-a-time-%d,%d\n", i, i)
	}
	w := postProfile(t, router, b.String(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	pb := decodeProfile(t, w)
	assert.False(t, pb.Success)
	assert.Equal(t, "Too many parsing errors", pb.Error)
	assert.Len(t, pb.Details, 10)
}

func TestHandleProfile_BadUploads(t *testing.T) {
	tests := []struct {
		name      string
		csv       string
		wantError string
	}{
		{"no file", "", "A CSV file is required in the 'file' field"},
		{"missing value column", "timestamp,reading\n2024-01-01T00:00:00Z,1\n", "Invalid CSV"},
		{"single row", "timestamp,value\n2024-01-01T00:00:00Z,1\n", "Not enough readings to profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newTestMetrics()
			router := gin.New()
			router.POST(profilePath, HandleProfile(metrics))

			w := postProfile(t, router, tt.csv, map[string]string{"note": "x"})

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.wantError, decodeProfile(t, w).Error)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("profile", "error")))
		})
	}
}
