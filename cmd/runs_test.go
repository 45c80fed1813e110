package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medahead/targeting-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Key:       model.RunKey{UserID: "user-1", ConferenceID: "himss-2025"},
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{ContactsAccepted: 12, Suggestions: 5},
			CreatedAt: now,
			UpdatedAt: now.Add(time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Key:       model.RunKey{UserID: "user-2", ConferenceID: "bio-2025"},
			Status:    model.RunStatusScoring,
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "himss-2025")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "12")
	assert.Contains(t, output, "bio-2025")
	assert.Contains(t, output, "scoring")
	assert.Contains(t, output, "2026-03-15 10:30")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{ContactsAccepted: 10, Suggestions: 4},
			CreatedAt: now,
			UpdatedAt: now.Add(20 * time.Second),
		},
		{
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{ContactsAccepted: 6, Suggestions: 2},
			CreatedAt: now,
			UpdatedAt: now.Add(40 * time.Second),
		},
		{Status: model.RunStatusFailed},
		{Status: model.RunStatusScoring},
	}

	s := computeRunStats(runs)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Other)
	assert.Equal(t, 16, s.Contacts)
	assert.Equal(t, 6, s.Suggestions)
	assert.InDelta(t, 30.0, s.AvgDurSecs, 0.01)
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.AvgDurSecs)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
