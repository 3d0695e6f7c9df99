package core

import (
	"context"
	"time"
)

// Status reports the freshness of a tool or one of its masters.
type Status struct {
	ToolID      string     `json:"toolId"`
	MasterID    string     `json:"masterId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	RecordCount int64      `json:"recordCount"`
	NeedsUpdate bool       `json:"needsUpdate"`
	Refreshing  bool       `json:"refreshing"`
}

// GetStatus reports when toolID was last committed and how many rows it
// holds. With a masterID the count is limited to that master's rows.
func (s *Service) GetStatus(ctx context.Context, toolID, masterID string) (Status, error) {
	tool, err := s.tool(ctx, toolID, "getStatus")
	if err != nil {
		return Status{}, err
	}
	if masterID != "" && !tool.Includes(masterID) {
		return Status{}, s.record(ctx, configError(toolID, masterID, "getStatus", ErrUnknownMaster))
	}

	st := Status{ToolID: tool.ID, MasterID: masterID, Refreshing: s.leases.Refreshing(tool.ID)}
	if !tool.HasMasters() {
		return st, nil
	}

	fr, ok, err := s.store.Freshness(ctx, tool.ID)
	if err != nil {
		return Status{}, s.fail(ctx, KindPersistence, tool.ID, masterID, "getFreshness", err)
	}
	if ok {
		last := fr.LastUpdated
		st.LastUpdated = &last
	}
	st.NeedsUpdate = !ok || !sameDay(fr.LastUpdated, s.now())

	if masterID != "" {
		st.RecordCount, err = s.store.CountMaster(ctx, tool.Model, masterID)
	} else {
		st.RecordCount, err = s.store.Count(ctx, tool.Model)
	}
	if err != nil {
		return Status{}, s.fail(ctx, KindPersistence, tool.ID, masterID, "count", err)
	}
	return st, nil
}

// IsAvailable reports whether toolID can answer lookups: it has no masters,
// or its table holds at least one row.
func (s *Service) IsAvailable(ctx context.Context, toolID string) (bool, error) {
	tool, err := s.tool(ctx, toolID, "isAvailable")
	if err != nil {
		return false, err
	}
	if !tool.HasMasters() {
		return true, nil
	}

	for _, model := range tool.Models() {
		n, err := s.store.Count(ctx, model)
		if err != nil {
			return false, s.fail(ctx, KindPersistence, tool.ID, "", "count", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ToolInfo describes a tool for listings.
type ToolInfo struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Model     string   `json:"model"`
	Masters   []string `json:"masters"`
	Available bool     `json:"available"`
}

// ListTools returns every tool with its availability. Availability errors
// are logged and reported as unavailable.
func (s *Service) ListTools(ctx context.Context) []ToolInfo {
	tools := s.catalog.Tools()
	infos := make([]ToolInfo, len(tools))
	for i, t := range tools {
		avail, _ := s.IsAvailable(ctx, t.ID)
		infos[i] = ToolInfo{
			ID:        t.ID,
			Label:     t.Label,
			Model:     t.Model,
			Masters:   t.Masters,
			Available: avail,
		}
	}
	return infos
}

// Ping checks that the instrument store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ActiveRefreshes returns how many tools are being refreshed.
func (s *Service) ActiveRefreshes() int {
	return s.leases.ActiveCount()
}
