// Package master defines the master-file catalogue: which files exist, how
// each one is parsed and normalized, and which tool each one feeds.
//
// A [Catalog] is built once at process start and never mutated; it is handed
// to every component that needs it.
package master

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/JonMunkholm/mastersync/internal/format"
)

// Descriptor describes one master file.
type Descriptor struct {
	ID          string        // "kospi"
	URL         string        // download location
	Member      string        // preferred archive member suffix: ".mst"
	Format      format.Format // layout used to parse the file
	NameField   string        // parsed column holding the instrument name
	CodeField   string        // parsed column holding the trading code
	MarketTag   string        // fixed market literal stamped on every row
	Description string
}

// Tool is a logical category of lookups backed by one persisted model.
type Tool struct {
	ID      string
	Model   string   // table holding the tool's instruments
	Masters []string // descriptor ids refreshed in order
	Label   string
}

// Models lists every persisted model backing the tool.
func (t Tool) Models() []string {
	return []string{t.Model}
}

// HasMasters reports whether the tool is backed by any master file.
func (t Tool) HasMasters() bool {
	return len(t.Masters) > 0
}

// Includes reports whether masterID belongs to the tool.
func (t Tool) Includes(masterID string) bool {
	return slices.Contains(t.Masters, masterID)
}

// Catalog is the immutable registry of descriptors and tools.
type Catalog struct {
	masters map[string]Descriptor
	tools   map[string]Tool
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NewCatalog validates and indexes descriptors and tools.
func NewCatalog(descriptors []Descriptor, tools []Tool) (*Catalog, error) {
	c := &Catalog{
		masters: make(map[string]Descriptor, len(descriptors)),
		tools:   make(map[string]Tool, len(tools)),
	}

	var errs []string
	for _, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if _, dup := c.masters[d.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate master %q", d.ID))
			continue
		}
		c.masters[d.ID] = d
	}

	for _, t := range tools {
		if !identRe.MatchString(t.ID) {
			errs = append(errs, fmt.Sprintf("tool id %q is not a plain identifier", t.ID))
			continue
		}
		if _, dup := c.tools[t.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate tool %q", t.ID))
			continue
		}
		if !identRe.MatchString(t.Model) {
			errs = append(errs, fmt.Sprintf("tool %q: model %q is not a plain identifier", t.ID, t.Model))
		}
		for _, id := range t.Masters {
			if _, ok := c.masters[id]; !ok {
				errs = append(errs, fmt.Sprintf("tool %q: unknown master %q", t.ID, id))
			}
		}
		t.Masters = slices.Clone(t.Masters)
		c.tools[t.ID] = t
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return c, nil
}

func validateDescriptor(d Descriptor) error {
	if !identRe.MatchString(d.ID) {
		return fmt.Errorf("master id %q is not a plain identifier", d.ID)
	}
	if d.URL == "" {
		return fmt.Errorf("master %q: url is required", d.ID)
	}
	if d.Format == nil {
		return fmt.Errorf("master %q: format is required", d.ID)
	}
	if d.MarketTag == "" {
		return fmt.Errorf("master %q: market tag is required", d.ID)
	}
	cols := d.Format.Columns()
	for _, field := range []string{d.NameField, d.CodeField} {
		if !slices.Contains(cols, field) {
			return fmt.Errorf("master %q: field %q is not produced by format %s", d.ID, field, d.Format.Name())
		}
	}
	return nil
}

// Master returns the descriptor for id.
func (c *Catalog) Master(id string) (Descriptor, bool) {
	d, ok := c.masters[id]
	return d, ok
}

// Tool returns the tool for id.
func (c *Catalog) Tool(id string) (Tool, bool) {
	t, ok := c.tools[id]
	if ok {
		t.Masters = slices.Clone(t.Masters)
	}
	return t, ok
}

// Tools returns every tool sorted by id.
func (c *Catalog) Tools() []Tool {
	result := make([]Tool, 0, len(c.tools))
	for _, t := range c.tools {
		t.Masters = slices.Clone(t.Masters)
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Models returns every distinct persisted model, sorted.
func (c *Catalog) Models() []string {
	seen := make(map[string]bool)
	for _, t := range c.tools {
		for _, m := range t.Models() {
			seen[m] = true
		}
	}
	models := make([]string, 0, len(seen))
	for m := range seen {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// MasterCount returns the number of registered descriptors.
func (c *Catalog) MasterCount() int {
	return len(c.masters)
}
