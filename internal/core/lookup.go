package core

import (
	"context"

	"github.com/JonMunkholm/mastersync/internal/logging"
	"github.com/JonMunkholm/mastersync/internal/store"
)

// LookupResult is the outcome of Resolve. A miss echoes the original term.
type LookupResult struct {
	Found     bool   `json:"found"`
	Term      string `json:"term"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name,omitempty"`
	Market    string `json:"market,omitempty"`
	MasterID  string `json:"masterId,omitempty"`
	MatchType string `json:"matchType,omitempty"`
}

// Resolve maps term to a trading code using toolID's table. It never fails:
// unknown tools and store errors are logged and reported as a miss.
func (s *Service) Resolve(ctx context.Context, toolID, term string) LookupResult {
	result := LookupResult{Term: term}

	needle := stripSpace(term)
	if needle == "" {
		return result
	}

	tool, err := s.tool(ctx, toolID, "resolve")
	if err != nil {
		return result
	}

	for _, tier := range store.Tiers {
		for _, model := range tool.Models() {
			rec, ok, err := s.store.FindFirst(ctx, model, tier, needle)
			if err != nil {
				s.fail(ctx, KindPersistence, tool.ID, "", "resolve", err)
				return result
			}
			if !ok {
				continue
			}

			logging.WithFields(ctx, "tool", tool.ID).Debug("resolved",
				"term", term, "code", rec.Code, "match", tier.String())
			return LookupResult{
				Found:     true,
				Term:      term,
				Code:      rec.Code,
				Name:      rec.Name,
				Market:    rec.Market,
				MasterID:  rec.MasterID,
				MatchType: tier.String(),
			}
		}
	}
	return result
}
