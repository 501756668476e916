package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDeltaIdenticalSnapshots(t *testing.T) {
	snapshot := map[string]any{
		"tasks":  []any{map[string]any{"id": "soil-test", "status": "pending"}},
		"fields": map[string]any{"north-paddock": 12.5},
	}

	result, err := CreateDelta(snapshot, snapshot)
	require.NoError(t, err)

	assert.Empty(t, result.Delta)
	assert.Equal(t, 0, result.DeltaSize)
	assert.Equal(t, 100.0, result.ReductionPercent)
	assert.Greater(t, result.OriginalSize, 0)
}

func TestCreateDeltaChangedKey(t *testing.T) {
	previous := map[string]any{
		"tasks":  map[string]any{"soil-test": "pending"},
		"fields": map[string]any{"north-paddock": 12.5},
	}
	current := map[string]any{
		"tasks":  map[string]any{"soil-test": "done"},
		"fields": map[string]any{"north-paddock": 12.5},
	}

	result, err := CreateDelta(previous, current)
	require.NoError(t, err)

	require.Len(t, result.Delta, 1)
	assert.Contains(t, result.Delta, "tasks")
	assert.Greater(t, result.DeltaSize, 0)
	assert.Less(t, result.DeltaSize, result.OriginalSize)
	assert.Greater(t, result.ReductionPercent, 0.0)
	assert.Less(t, result.ReductionPercent, 100.0)
}

func TestCreateDeltaNewKeyAlwaysIncluded(t *testing.T) {
	previous := map[string]any{"tasks": "unchanged"}
	current := map[string]any{"tasks": "unchanged", "weather": "sunny"}

	result, err := CreateDelta(previous, current)
	require.NoError(t, err)

	require.Len(t, result.Delta, 1)
	assert.Contains(t, result.Delta, "weather")
}

func TestCreateDeltaEmptyCurrent(t *testing.T) {
	result, err := CreateDelta(map[string]any{"tasks": "x"}, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, result.Delta)
	assert.Equal(t, 100.0, result.ReductionPercent)
}

func TestEstimateBandwidth(t *testing.T) {
	payload := map[string]any{"tasks": []any{"a", "b", "c"}}

	estimate, err := EstimateBandwidth(payload)
	require.NoError(t, err)

	assert.Greater(t, estimate.PayloadBytes, 0)
	require.Len(t, estimate.Links, 3)

	assert.Equal(t, "slow", estimate.Links[0].Class)
	assert.Equal(t, ThroughputSlow, estimate.Links[0].ThroughputBytesSec)
	assert.Equal(t, "medium", estimate.Links[1].Class)
	assert.Equal(t, ThroughputMedium, estimate.Links[1].ThroughputBytesSec)
	assert.Equal(t, "fast", estimate.Links[2].Class)
	assert.Equal(t, ThroughputFast, estimate.Links[2].ThroughputBytesSec)

	// Slower links always take longer on the same payload.
	assert.Greater(t, estimate.Links[0].TransferTime, estimate.Links[1].TransferTime)
	assert.Greater(t, estimate.Links[1].TransferTime, estimate.Links[2].TransferTime)

	// Same payload, same estimate.
	again, err := EstimateBandwidth(payload)
	require.NoError(t, err)
	assert.Equal(t, estimate, again)
}

func TestEstimateBandwidthExactDivision(t *testing.T) {
	// A 32 KiB payload takes one second on the slow link. The JSON
	// string adds two quote bytes, so build the payload to land exactly.
	payload := make([]byte, ThroughputSlow)
	for i := range payload {
		payload[i] = 'a'
	}
	// json.Marshal of a string of n bytes yields n+2 bytes.
	estimate, err := EstimateBandwidth(string(payload[:ThroughputSlow-2]))
	require.NoError(t, err)

	assert.Equal(t, ThroughputSlow, estimate.PayloadBytes)
	assert.Equal(t, time.Second, estimate.Links[0].TransferTime)
}

func TestCalculateSize(t *testing.T) {
	snapshot := map[string]any{
		"tasks":  map[string]any{"soil-test": "pending"},
		"fields": map[string]any{},
	}

	breakdown, err := CalculateSize(snapshot)
	require.NoError(t, err)

	assert.Greater(t, breakdown.TotalBytes, 0)
	require.Len(t, breakdown.PerKey, 2)
	assert.Equal(t, len(`{"soil-test":"pending"}`), breakdown.PerKey["tasks"])
	assert.Equal(t, len(`{}`), breakdown.PerKey["fields"])
}
