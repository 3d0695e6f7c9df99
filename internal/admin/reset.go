// Package admin provides administrative operations on synchronized tools.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/mastersync/internal/core"
)

// ResetTimeout is the maximum duration for a reset operation.
const ResetTimeout = 30 * time.Second

// Resetter empties tools so their next lookup triggers a full refresh.
type Resetter struct {
	Service *core.Service
}

// ResetTools resets each tool in order. It keeps going after a failure and
// returns every error joined.
func (r *Resetter) ResetTools(ctx context.Context, toolIDs ...string) ([]*core.ResetReport, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	var (
		reports []*core.ResetReport
		errs    []error
	)
	for _, id := range toolIDs {
		report, err := r.Service.Reset(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// ResetAll resets every tool in the catalogue.
// This is a destructive operation - use with caution.
func (r *Resetter) ResetAll(ctx context.Context) ([]*core.ResetReport, error) {
	tools := r.Service.Catalog().Tools()
	ids := make([]string, len(tools))
	for i, t := range tools {
		ids[i] = t.ID
	}
	return r.ResetTools(ctx, ids...)
}
