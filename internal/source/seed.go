// Package source supplies batches of source records for migration runs.
package source

import (
	"fmt"

	"github.com/farmkonnect/reconcile/internal/migration"
)

// seedTemplates are the standard farm task templates migrated for every
// farm that has no live upstream feed yet.
var seedTemplates = []migration.SourceRecord{
	{ID: "soil-test", Title: "Soil test", Description: "Collect and submit soil samples", Category: "crops", Status: "pending", EstimatedHours: 4},
	{ID: "irrigation-check", Title: "Irrigation check", Description: "Inspect drip lines and emitters", Category: "infrastructure", Status: "pending", EstimatedHours: 3},
	{ID: "fertilizer-application", Title: "Fertilizer application", Description: "Apply base fertilizer per soil report", Category: "crops", Status: "pending", EstimatedHours: 6},
	{ID: "livestock-vaccination", Title: "Livestock vaccination", Description: "Administer scheduled vaccines", Category: "livestock", Status: "pending", EstimatedHours: 5},
	{ID: "equipment-maintenance", Title: "Equipment maintenance", Description: "Service tractors and implements", Category: "equipment", Status: "pending", EstimatedHours: 8},
	{ID: "pest-scouting", Title: "Pest scouting", Description: "Walk fields and log pest pressure", Category: "crops", Status: "pending", EstimatedHours: 2},
	{ID: "fence-inspection", Title: "Fence inspection", Description: "Check perimeter fencing", Category: "infrastructure", Status: "pending", EstimatedHours: 3},
	{ID: "harvest-planning", Title: "Harvest planning", Description: "Draft the harvest labor schedule", Category: "planning", Status: "pending", EstimatedHours: 4},
}

// SeedProvider returns a deterministic batch of seed records per farm.
// It stands in for a live upstream feed behind the same interface.
type SeedProvider struct{}

// NewSeedProvider creates a seed provider.
func NewSeedProvider() *SeedProvider {
	return &SeedProvider{}
}

// Records returns the seed batch for a farm. The batch is a fresh copy
// on every call; callers may mutate it freely.
func (p *SeedProvider) Records(farmID string) ([]migration.SourceRecord, error) {
	if farmID == "" {
		return nil, fmt.Errorf("source: farm id is required")
	}

	records := make([]migration.SourceRecord, len(seedTemplates))
	copy(records, seedTemplates)
	return records, nil
}

var _ migration.SourceRecordProvider = (*SeedProvider)(nil)
