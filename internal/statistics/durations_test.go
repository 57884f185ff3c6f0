package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeDurations(t *testing.T) {
	summary := SummarizeDurations([]int64{300, 100, 200})
	require.NotNil(t, summary)

	assert.Equal(t, int64(100), summary.MinMs)
	assert.Equal(t, int64(300), summary.MaxMs)
	assert.Equal(t, int64(200), summary.MeanMs)
	assert.Equal(t, int64(200), summary.MedianMs)
	assert.Equal(t, int64(600), summary.TotalMs)
}

func TestSummarizeDurationsEvenCount(t *testing.T) {
	summary := SummarizeDurations([]int64{10, 20, 30, 40})
	require.NotNil(t, summary)
	assert.Equal(t, int64(25), summary.MedianMs)
}

func TestSummarizeDurationsSingle(t *testing.T) {
	summary := SummarizeDurations([]int64{42})
	require.NotNil(t, summary)
	assert.Equal(t, int64(42), summary.MinMs)
	assert.Equal(t, int64(42), summary.MaxMs)
	assert.Equal(t, int64(42), summary.MedianMs)
}

func TestSummarizeDurationsEmpty(t *testing.T) {
	assert.Nil(t, SummarizeDurations(nil))
	assert.Nil(t, SummarizeDurations([]int64{}))
}

func TestSummarizeDurationsDoesNotMutateInput(t *testing.T) {
	in := []int64{3, 1, 2}
	_ = SummarizeDurations(in)
	assert.Equal(t, []int64{3, 1, 2}, in)
}
