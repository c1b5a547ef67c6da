package freshness

import (
	"encoding/json"
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadline_AddsCalendarDays(t *testing.T) {
	now := time.Date(2026, time.January, 31, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, time.February, 1, 9, 30, 0, 0, time.UTC), Deadline(now, 1))
	assert.Equal(t, now, Deadline(now, 0))
	assert.Equal(t, time.Date(2026, time.January, 24, 9, 30, 0, 0, time.UTC), Deadline(now, -7))
}

func TestDeadline_KeepsTimeOfDayAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Clocks spring forward on 2026-03-08.
	now := time.Date(2026, time.March, 7, 12, 0, 0, 0, loc)
	d := Deadline(now, 1)

	assert.Equal(t, 12, d.Hour())
	assert.Equal(t, 23*time.Hour, d.Sub(now))
}

func TestEvaluate(t *testing.T) {
	deadline := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		notAfter time.Time
		days     int64
		seconds  int64
		ok       bool
	}{
		{"exactly at deadline", deadline, 0, 0, true},
		{"one and a half days after", deadline.Add(36 * time.Hour), 1, 129600, true},
		{"one and a half days before truncates toward zero", deadline.Add(-36 * time.Hour), -1, -129600, false},
		{"half a second before", deadline.Add(-500 * time.Millisecond), 0, -1, false},
		{"half a second after", deadline.Add(500 * time.Millisecond), 0, 0, true},
		{"ten days after", deadline.AddDate(0, 0, 10), 10, 864000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, seconds, ok := Evaluate(tt.notAfter, deadline)
			assert.Equal(t, tt.days, days)
			assert.Equal(t, tt.seconds, seconds)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, ok, seconds >= 0)
		})
	}
}

func TestEvaluate_ThresholdsBeyondDurationRange(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	notAfter := now.AddDate(1, 0, 0)

	tests := []struct {
		name    string
		days    int
		wantD   int64
		wantSec int64
	}{
		{"two hundred thousand days", 200_000, -199_635, -17_248_464_000},
		{"maximum threshold", MaxThresholdDays, -3_649_635, -315_328_464_000},
		{"huge threshold is clamped", math.MaxInt, -3_649_635, -315_328_464_000},
		{"huge negative threshold is clamped", math.MinInt, 3_650_365, 315_391_536_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deadline := Deadline(now, tt.days)
			days, seconds, ok := Evaluate(notAfter, deadline)
			assert.Equal(t, tt.wantD, days)
			assert.Equal(t, tt.wantSec, seconds)
			assert.Equal(t, seconds >= 0, ok)
			assert.Equal(t, !notAfter.Before(deadline), ok)
		})
	}
}

func TestResult_JSONShape(t *testing.T) {
	fresh := Verdict{Hostname: "example.com", Status: StatusFresh, Days: 0, Seconds: 42}
	b, err := json.Marshal(fresh.Result())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"days":0,"seconds":42}`, string(b))

	failed := Verdict{Hostname: "expired.example", Status: StatusHandshakeFailed}
	b, err = json.Marshal(failed.Result())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false}`, string(b))

	b, err = json.Marshal(failed.NamedResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"hostname":"expired.example","ok":false}`, string(b))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "fresh", StatusFresh.String())
	assert.Equal(t, "stale", StatusStale.String())
	assert.Equal(t, "handshake_failed", StatusHandshakeFailed.String())
	assert.Equal(t, "unknown", Status(99).String())
}
