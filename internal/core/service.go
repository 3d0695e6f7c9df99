package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/mastersync/internal/fetch"
	"github.com/JonMunkholm/mastersync/internal/format"
	"github.com/JonMunkholm/mastersync/internal/logging"
	"github.com/JonMunkholm/mastersync/internal/master"
	"github.com/JonMunkholm/mastersync/internal/store"
)

// Downloader fetches one master file to a local path.
type Downloader interface {
	Download(ctx context.Context, url, suffix, destPath string) error
}

// Options wires a Service. Catalog, Store and Downloader are required.
type Options struct {
	Catalog    *master.Catalog
	Store      store.Store
	Downloader Downloader
	WorkDir    string
	ErrorLog   *ErrorLog
	LeaseWait  time.Duration
	// RefreshTimeout bounds a refresh once its lease is held. The refresh
	// outlives its caller's context up to this limit.
	RefreshTimeout time.Duration
	// Now defaults to time.Now. Freshness dates are compared in its location.
	Now func() time.Time
}

// Service synchronizes tools and answers lookups.
type Service struct {
	catalog    *master.Catalog
	store      store.Store
	downloader Downloader
	snapshots  *Snapshots
	errors     *ErrorLog
	leases     *Leases
	timeout    time.Duration
	now        func() time.Time
}

// DefaultRefreshTimeout applies when Options.RefreshTimeout is unset.
const DefaultRefreshTimeout = 10 * time.Minute

// NewService creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Downloader == nil {
		return nil, errors.New("downloader is required")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "masters"
	}
	if opts.ErrorLog == nil {
		l, err := OpenErrorLog("", 0)
		if err != nil {
			return nil, err
		}
		opts.ErrorLog = l
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		catalog:    opts.Catalog,
		store:      opts.Store,
		downloader: opts.Downloader,
		snapshots:  NewSnapshots(opts.WorkDir),
		errors:     opts.ErrorLog,
		leases:     NewLeases(opts.LeaseWait),
		timeout:    opts.RefreshTimeout,
		now:        opts.Now,
	}, nil
}

// Catalog returns the catalogue the service was built with.
func (s *Service) Catalog() *master.Catalog {
	return s.catalog
}

// RefreshState is the terminal state of one EnsureUpdated call.
type RefreshState string

const (
	StateFresh     RefreshState = "fresh"     // nothing to do
	StateCommitted RefreshState = "committed" // refreshed, freshness written
	StateEmpty     RefreshState = "empty"     // refreshed without rows, still stale
	StateAborted   RefreshState = "aborted"   // hard failure
)

// MasterReport describes one master's contribution to a refresh.
type MasterReport struct {
	MasterID string        `json:"masterId"`
	Status   format.Status `json:"-"`
	Parse    string        `json:"parse"`
	Encoding string        `json:"encoding,omitempty"`
	Parsed   int           `json:"parsed"`
	Inserted int64         `json:"inserted"`
}

// RefreshReport summarizes one EnsureUpdated call.
type RefreshReport struct {
	ToolID   string         `json:"toolId"`
	RunID    string         `json:"runId,omitempty"`
	State    RefreshState   `json:"state"`
	Cleared  int64          `json:"cleared"`
	Inserted int64          `json:"inserted"`
	Masters  []MasterReport `json:"masters,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// EnsureUpdated refreshes toolID when it is stale or force is set. It
// returns an error only for hard failures: configuration, download, decode
// and persistence.
//
// ctx bounds the wait for the tool's lease. Once a refresh starts it runs
// to completion under its own timeout even if ctx is cancelled, so the
// tool is never left cleared.
func (s *Service) EnsureUpdated(ctx context.Context, toolID string, force bool) (*RefreshReport, error) {
	tool, err := s.tool(ctx, toolID, "ensureUpdated")
	if err != nil {
		return nil, err
	}

	report := &RefreshReport{ToolID: tool.ID, State: StateFresh}
	if !tool.HasMasters() {
		return report, nil
	}

	if !force {
		fresh, err := s.isFresh(ctx, tool)
		if err != nil {
			return nil, s.fail(ctx, KindPersistence, tool.ID, "", "getFreshness", err)
		}
		if fresh {
			return report, nil
		}
	}

	release, err := s.leases.Acquire(ctx, tool.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", tool.ID, err)
	}
	defer release()

	// Another refresh may have completed while this one waited.
	if !force {
		fresh, err := s.isFresh(ctx, tool)
		if err != nil {
			return nil, s.fail(ctx, KindPersistence, tool.ID, "", "getFreshness", err)
		}
		if fresh {
			return report, nil
		}
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	report.RunID = uuid.NewString()
	rctx = logging.ContextWithRunID(rctx, report.RunID)
	err = s.refresh(rctx, tool, report)
	return report, err
}

// refresh runs CLEARING and REFRESHING and commits freshness.
func (s *Service) refresh(ctx context.Context, tool master.Tool, report *RefreshReport) error {
	log := logging.WithFields(ctx, "tool", tool.ID)
	start := s.now()
	defer func() { report.Duration = s.now().Sub(start) }()

	log.Info("refresh started", "masters", len(tool.Masters))
	report.State = StateAborted

	for _, model := range tool.Models() {
		n, err := s.store.DeleteAll(ctx, model)
		if err != nil {
			return s.fail(ctx, KindPersistence, tool.ID, "", "deleteAll", err)
		}
		report.Cleared += n
	}
	if _, err := s.snapshots.Clear(tool.ID); err != nil {
		s.fail(ctx, KindArtifact, tool.ID, "", "clearWorkDir", err)
	}

	for _, id := range tool.Masters {
		mr, err := s.refreshMaster(ctx, tool, id)
		report.Masters = append(report.Masters, mr)
		report.Inserted += mr.Inserted
		if err != nil {
			log.Error("refresh aborted", "master", id, "inserted", report.Inserted, "error", err)
			return err
		}
	}

	if report.Inserted == 0 {
		report.State = StateEmpty
		log.Warn("refresh produced no rows, freshness not committed")
		return nil
	}

	if err := s.store.SetFreshness(ctx, tool.ID, report.Inserted, s.now()); err != nil {
		return s.fail(ctx, KindPersistence, tool.ID, "", "setFreshness", err)
	}
	report.State = StateCommitted
	log.Info("refresh committed", "inserted", report.Inserted, "cleared", report.Cleared)
	return nil
}

// refreshMaster handles one master. Only hard failures are returned.
func (s *Service) refreshMaster(ctx context.Context, tool master.Tool, masterID string) (MasterReport, error) {
	mr := MasterReport{MasterID: masterID}
	log := logging.WithFields(ctx, "tool", tool.ID, "master", masterID)

	d, ok := s.catalog.Master(masterID)
	if !ok {
		return mr, s.record(ctx, configError(tool.ID, masterID, "resolveMaster", ErrUnknownMaster))
	}

	input, enc, err := s.fetch(ctx, tool.ID, d)
	if err != nil {
		return mr, s.fail(ctx, KindDownload, tool.ID, masterID, "download", err)
	}
	mr.Encoding = enc

	res := d.Format.Parse(input)
	mr.Status = res.Status
	mr.Parse = res.Status.String()
	if !res.OK() {
		s.fail(ctx, KindParse, tool.ID, masterID, "parse", res.Err)
		res.Rows = nil
	}
	mr.Parsed = len(res.Rows)

	records := Normalize(res.Rows, d)
	if err := s.snapshots.Write(tool.ID, masterID, records); err != nil {
		s.fail(ctx, KindArtifact, tool.ID, masterID, "snapshot", err)
	}

	n, err := s.store.BulkInsert(ctx, tool.Model, records)
	mr.Inserted = n
	if err != nil {
		return mr, s.fail(ctx, KindPersistence, tool.ID, masterID, "bulkInsert", err)
	}

	log.Info("master loaded", "parse", mr.Parse, "encoding", enc, "parsed", mr.Parsed, "inserted", n)
	return mr, nil
}

// fetch downloads and decodes a master. A missing source is reported as an
// absent input only for formats that allow it.
func (s *Service) fetch(ctx context.Context, toolID string, d master.Descriptor) (format.Input, string, error) {
	path := s.snapshots.RawPath(toolID, d.ID)

	err := s.downloader.Download(ctx, d.URL, d.Member, path)
	if errors.Is(err, fetch.ErrNotFound) && d.Format.AllowsAbsent() {
		logging.WithFields(ctx, "tool", toolID, "master", d.ID).Info("master file absent, treated as empty")
		return format.Input{Absent: true}, "", nil
	}
	if err != nil {
		return format.Input{}, "", err
	}

	text, enc, err := fetch.ReadText(path)
	if err != nil {
		return format.Input{}, "", err
	}
	return format.Input{Text: text, Encoding: enc}, enc, nil
}

// isFresh reports whether tool was committed today.
func (s *Service) isFresh(ctx context.Context, tool master.Tool) (bool, error) {
	if !tool.HasMasters() {
		return true, nil
	}
	fr, ok, err := s.store.Freshness(ctx, tool.ID)
	if err != nil || !ok {
		return false, err
	}
	return sameDay(fr.LastUpdated, s.now()), nil
}

// sameDay compares calendar dates in now's location.
func sameDay(t, now time.Time) bool {
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// tool resolves toolID, recording a configuration error when it is unknown.
func (s *Service) tool(ctx context.Context, toolID, op string) (master.Tool, error) {
	t, ok := s.catalog.Tool(toolID)
	if !ok {
		return master.Tool{}, s.record(ctx, configError(toolID, "", op, ErrUnknownTool))
	}
	return t, nil
}

// fail records a failure in the error log and returns it as a SyncError.
func (s *Service) fail(ctx context.Context, kind Kind, toolID, masterID, op string, err error) *SyncError {
	return s.record(ctx, &SyncError{Kind: kind, ToolID: toolID, MasterID: masterID, Op: op, Err: err})
}

func (s *Service) record(ctx context.Context, se *SyncError) *SyncError {
	s.errors.Record(ctx, se)

	log := logging.WithFields(ctx, "tool", se.ToolID, "master", se.MasterID, "op", se.Op, "kind", se.Kind)
	if se.Kind.Hard() {
		log.Error("sync failure", "error", se.Err)
	} else {
		log.Warn("sync failure", "error", se.Err)
	}
	return se
}

// RecentErrors returns the newest error log entries.
func (s *Service) RecentErrors(filter ErrorLogFilter) []ErrorEntry {
	return s.errors.Recent(filter)
}

// WaitForRefreshes blocks until no refresh is running or ctx is done.
func (s *Service) WaitForRefreshes(ctx context.Context) error {
	return s.leases.WaitForDrain(ctx)
}
