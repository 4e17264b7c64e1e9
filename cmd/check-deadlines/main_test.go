package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/dto"
)

func TestExitCodeReflectsFailures(t *testing.T) {
	require.Zero(t, exitCode(dto.SweepReport{AutoGraded: 3, Failures: []dto.SweepFailure{}}))

	partial := dto.SweepReport{
		AutoGraded: 1,
		Failures:   []dto.SweepFailure{{HomeworkID: 1, StudentID: 5, Stage: "deadline_warning", Error: "boom"}},
	}
	require.Equal(t, exitPartialFailures, exitCode(partial))
}

func TestWriteReportEmitsJSON(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	report := dto.SweepReport{
		AutoGraded:   2,
		WarningsSent: 1,
		Failures:     []dto.SweepFailure{{HomeworkID: 1, StudentID: 5, Stage: "deadline_warning", Error: "boom"}},
		StartedAt:    now,
		FinishedAt:   now.Add(time.Second),
	}

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, report))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.EqualValues(t, 2, decoded["auto_graded"])
	require.EqualValues(t, 1, decoded["warnings_sent"])
	require.Len(t, decoded["failures"], 1)
	require.Equal(t, "2024-03-01T12:00:00Z", decoded["started_at"])
}
