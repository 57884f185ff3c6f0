package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCheck(t *testing.T) {
	c := NewCheck("treefmt", ".", "x86_64-linux")
	assert.Equal(t, "treefmt", c.Name)
	assert.Equal(t, ".#checks.x86_64-linux.treefmt", c.Installable)
}

func TestNewRunID(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 34, 56, 0, time.UTC)
	assert.Equal(t, "run_20260830T123456Z", NewRunID(ts))
}

func TestComputeDigest(t *testing.T) {
	outcomes := []CheckOutcome{
		{Name: "a", Status: StatusPassed, DurationMs: 100},
		{Name: "b", Status: StatusPassed, DurationMs: 300, Cached: true},
		{Name: "c", Status: StatusFailed, DurationMs: 200},
		{Name: "d", Status: StatusError},
		{Name: "e", Status: StatusSkipped},
	}

	digest := ComputeDigest(outcomes, 5000)

	assert.Equal(t, 5, digest.TotalChecks)
	assert.Equal(t, 2, digest.Passed)
	assert.Equal(t, 1, digest.Failed)
	assert.Equal(t, 1, digest.Errors)
	assert.Equal(t, 1, digest.Skipped)
	assert.Equal(t, 1, digest.Cached)
	assert.Equal(t, int64(5000), digest.DurationMs)
	// Skipped entries are excluded from the rate denominator.
	assert.InDelta(t, 0.5, digest.SuccessRate, 0.001)
	assert.False(t, digest.AllPassed())

	// Durations cover only entries that actually built.
	if assert.NotNil(t, digest.Durations) {
		assert.Equal(t, int64(0), digest.Durations.MinMs)
		assert.Equal(t, int64(200), digest.Durations.MaxMs)
	}
}

func TestComputeDigestAllPassed(t *testing.T) {
	outcomes := []CheckOutcome{
		{Name: "a", Status: StatusPassed, DurationMs: 10},
		{Name: "b", Status: StatusPassed, DurationMs: 20},
	}

	digest := ComputeDigest(outcomes, 30)
	assert.True(t, digest.AllPassed())
	assert.InDelta(t, 1.0, digest.SuccessRate, 0.001)
}

func TestComputeDigestEmptyMatrix(t *testing.T) {
	digest := ComputeDigest(nil, 42)

	// Zero discovered checks expand to zero builds and count as success.
	assert.Equal(t, 0, digest.TotalChecks)
	assert.True(t, digest.AllPassed())
	assert.InDelta(t, 1.0, digest.SuccessRate, 0.001)
	assert.Nil(t, digest.Durations)
}

func TestAllPassedSkippedFails(t *testing.T) {
	digest := OutcomeDigest{TotalChecks: 2, Passed: 1, Skipped: 1}
	// A fail-fast run that skipped entries did not verify the whole matrix.
	assert.False(t, digest.AllPassed())
}
