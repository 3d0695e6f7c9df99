package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/mastersync/internal/logging"
)

// ResetReport describes one Reset call.
type ResetReport struct {
	ToolID       string `json:"toolId"`
	Cleared      int64  `json:"cleared"`
	FilesRemoved int    `json:"filesRemoved"`
}

// Reset empties toolID's tables, removes its freshness record and clears
// its working directory, so the next EnsureUpdated refreshes it. It holds
// the tool's lease while doing so.
func (s *Service) Reset(ctx context.Context, toolID string) (*ResetReport, error) {
	tool, err := s.tool(ctx, toolID, "reset")
	if err != nil {
		return nil, err
	}

	release, err := s.leases.Acquire(ctx, tool.ID)
	if err != nil {
		return nil, fmt.Errorf("reset %s: %w", tool.ID, err)
	}
	defer release()

	report := &ResetReport{ToolID: tool.ID}
	for _, model := range tool.Models() {
		n, err := s.store.DeleteAll(ctx, model)
		if err != nil {
			return report, s.fail(ctx, KindPersistence, tool.ID, "", "deleteAll", err)
		}
		report.Cleared += n
	}
	if err := s.store.ClearFreshness(ctx, tool.ID); err != nil {
		return report, s.fail(ctx, KindPersistence, tool.ID, "", "clearFreshness", err)
	}

	n, err := s.snapshots.Clear(tool.ID)
	report.FilesRemoved = n
	if err != nil {
		s.fail(ctx, KindArtifact, tool.ID, "", "clearWorkDir", err)
	}

	logging.WithFields(ctx, "tool", tool.ID).Info("tool reset", "cleared", report.Cleared, "files", n)
	return report, nil
}
