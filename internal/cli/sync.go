package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/farmkonnect/reconcile/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Offline-sync tooling: deltas and bandwidth estimates",
}

var syncDeltaCmd = &cobra.Command{
	Use:   "delta <previous.json> <current.json>",
	Short: "Compute the changed subset between two snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		previous, err := readSnapshotFile(args[0])
		if err != nil {
			return err
		}
		current, err := readSnapshotFile(args[1])
		if err != nil {
			return err
		}

		result, err := sync.CreateDelta(previous, current)
		if err != nil {
			return err
		}

		fmt.Printf("Changed keys:  %d of %d\n", len(result.Delta), len(current))
		fmt.Printf("Delta size:    %d bytes (original %d bytes)\n",
			result.DeltaSize, result.OriginalSize)
		fmt.Printf("Reduction:     %.2f%%\n", result.ReductionPercent)
		for key := range result.Delta {
			fmt.Printf("  changed: %s\n", key)
		}
		return nil
	},
}

var syncMergeCmd = &cobra.Command{
	Use:   "merge <server.json> <changes.json>",
	Short: "Fold a batch of offline changes into a server snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := readTypedSnapshotFile(args[0])
		if err != nil {
			return err
		}
		changes, err := readChangesFile(args[1])
		if err != nil {
			return err
		}

		result := sync.NewMerger(logger).Merge(server, changes)

		fmt.Printf("Merged:    %d of %d changes\n", result.MergedCount, len(changes))
		fmt.Printf("Conflicts: %d\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Printf("  %s %s/%s: %s\n", c.Type, c.Entity, c.Key, c.Reason)
		}

		out, err := json.MarshalIndent(result.Merged, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var syncConflictsCmd = &cobra.Command{
	Use:   "conflicts <offline.json> <server.json>",
	Short: "Detect timestamp conflicts between two snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, err := readTypedSnapshotFile(args[0])
		if err != nil {
			return err
		}
		server, err := readTypedSnapshotFile(args[1])
		if err != nil {
			return err
		}

		result := sync.NewMerger(logger).DetectConflicts(offline, server)

		fmt.Printf("Conflicts: %d\n", result.ConflictCount)
		for _, c := range result.Conflicts {
			fmt.Printf("  %s/%s: offline %s vs server %s\n",
				c.Entity, c.Key,
				c.OfflineTimestamp.Format(time.RFC3339),
				c.ServerTimestamp.Format(time.RFC3339))
		}
		return nil
	},
}

var syncEstimateCmd = &cobra.Command{
	Use:   "estimate <payload.json>",
	Short: "Estimate transfer times for a payload per link class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readSnapshotFile(args[0])
		if err != nil {
			return err
		}

		estimate, err := sync.EstimateBandwidth(payload)
		if err != nil {
			return err
		}

		fmt.Printf("Payload: %d bytes\n", estimate.PayloadBytes)
		for _, link := range estimate.Links {
			fmt.Printf("  %-7s %8d B/s  %s\n",
				link.Class, link.ThroughputBytesSec, link.TransferTime)
		}
		return nil
	},
}

func readSnapshotFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return snapshot, nil
}

func readTypedSnapshotFile(path string) (sync.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var snapshot sync.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return snapshot, nil
}

func readChangesFile(path string) ([]sync.SyncChange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var changes []sync.SyncChange
	if err := json.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return changes, nil
}

func init() {
	syncCmd.AddCommand(syncDeltaCmd)
	syncCmd.AddCommand(syncMergeCmd)
	syncCmd.AddCommand(syncConflictsCmd)
	syncCmd.AddCommand(syncEstimateCmd)
}
