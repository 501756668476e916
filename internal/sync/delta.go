package sync

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DeltaResult is the minimal changed subset of a snapshot plus the
// size accounting used to decide sync granularity.
type DeltaResult struct {
	Delta            map[string]any
	DeltaSize        int
	OriginalSize     int
	ReductionPercent float64
}

// CreateDelta computes the subset of current that changed since
// previous. A top-level key is included iff its serialized form differs
// byte for byte from the previous value; keys absent from previous are
// always included. Sizes come from the serialized byte lengths, not
// estimates.
func CreateDelta(previous, current map[string]any) (*DeltaResult, error) {
	delta := map[string]any{}

	for key, value := range current {
		currentJSON, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("serialize current %q: %w", key, err)
		}

		prevValue, ok := previous[key]
		if !ok {
			delta[key] = value
			continue
		}

		prevJSON, err := json.Marshal(prevValue)
		if err != nil {
			return nil, fmt.Errorf("serialize previous %q: %w", key, err)
		}

		if string(currentJSON) != string(prevJSON) {
			delta[key] = value
		}
	}

	originalJSON, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}

	result := &DeltaResult{
		Delta:        delta,
		OriginalSize: len(originalJSON),
	}

	if len(delta) == 0 {
		// Nothing to transmit.
		result.ReductionPercent = 100
		return result, nil
	}

	deltaJSON, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("serialize delta: %w", err)
	}
	result.DeltaSize = len(deltaJSON)
	if result.OriginalSize > 0 {
		reduction := float64(result.OriginalSize-result.DeltaSize) / float64(result.OriginalSize) * 100
		result.ReductionPercent = math.Round(reduction*100) / 100
	}
	return result, nil
}

// Nominal link throughputs in bytes per second. These are presentation
// constants for deterministic estimates, not measurements.
const (
	ThroughputSlow   = 32 * 1024   // ~2G
	ThroughputMedium = 256 * 1024  // ~3G
	ThroughputFast   = 1024 * 1024 // ~WiFi
)

// LinkEstimate is the transfer time for one nominal link class.
type LinkEstimate struct {
	Class              string
	ThroughputBytesSec int
	TransferTime       time.Duration
}

// BandwidthEstimate is the payload size with per-link transfer times.
type BandwidthEstimate struct {
	PayloadBytes int
	Links        []LinkEstimate
}

// EstimateBandwidth computes the payload's serialized size once and
// divides it by the three nominal throughput constants. Purely a
// presentation helper; no network I/O.
func EstimateBandwidth(payload any) (*BandwidthEstimate, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}

	size := len(data)
	classes := []struct {
		name       string
		throughput int
	}{
		{"slow", ThroughputSlow},
		{"medium", ThroughputMedium},
		{"fast", ThroughputFast},
	}

	estimate := &BandwidthEstimate{PayloadBytes: size}
	for _, c := range classes {
		seconds := float64(size) / float64(c.throughput)
		estimate.Links = append(estimate.Links, LinkEstimate{
			Class:              c.name,
			ThroughputBytesSec: c.throughput,
			TransferTime:       time.Duration(seconds * float64(time.Second)),
		})
	}
	return estimate, nil
}

// SizeBreakdown is a payload's total serialized size with per-key
// contributions.
type SizeBreakdown struct {
	TotalBytes int
	PerKey     map[string]int
}

// CalculateSize measures the serialized size of a snapshot and of each
// top-level key.
func CalculateSize(snapshot map[string]any) (*SizeBreakdown, error) {
	total, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}

	breakdown := &SizeBreakdown{
		TotalBytes: len(total),
		PerKey:     make(map[string]int, len(snapshot)),
	}
	for key, value := range snapshot {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("serialize %q: %w", key, err)
		}
		breakdown.PerKey[key] = len(data)
	}
	return breakdown, nil
}
