package core

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/korean"

	"github.com/JonMunkholm/mastersync/internal/fetch"
	"github.com/JonMunkholm/mastersync/internal/format"
	"github.com/JonMunkholm/mastersync/internal/master"
	"github.com/JonMunkholm/mastersync/internal/store"
)

// fixtureServer serves master files from an in-memory map. Missing paths
// answer 404; paths listed in broken answer 500.
type fixtureServer struct {
	*httptest.Server

	mu     sync.Mutex
	files  map[string][]byte
	broken map[string]bool
	hits   map[string]int
	gate   map[string]chan struct{}
	seen   chan string
}

func newFixtureServer(t *testing.T) *fixtureServer {
	t.Helper()
	fs := &fixtureServer{
		files:  make(map[string][]byte),
		broken: make(map[string]bool),
		hits:   make(map[string]int),
		gate:   make(map[string]chan struct{}),
		seen:   make(chan string, 64),
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fixtureServer) serve(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.hits[r.URL.Path]++
	body, ok := fs.files[r.URL.Path]
	broken := fs.broken[r.URL.Path]
	gate := fs.gate[r.URL.Path]
	fs.mu.Unlock()

	fs.seen <- r.URL.Path
	if gate != nil {
		<-gate
	}

	switch {
	case broken:
		http.Error(w, "boom", http.StatusInternalServerError)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Write(body)
	}
}

func (fs *fixtureServer) set(path string, body []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = body
	delete(fs.broken, path)
}

func (fs *fixtureServer) remove(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, path)
}

func (fs *fixtureServer) breakPath(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.broken[path] = true
}

func (fs *fixtureServer) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func foLine(code, name string) string {
	return "F|" + code + "|KR4" + code + "|" + name + "|0|0|W09|K2I|KOSPI200"
}

func foFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	svc   *Service
	store store.Store
	srv   *fixtureServer
	clock *clock
	log   *ErrorLog
}

func testCatalog(t *testing.T, baseURL string) *master.Catalog {
	t.Helper()
	fo := func(id string) master.Descriptor {
		return master.Descriptor{
			ID: id, URL: baseURL + "/" + id + ".mst", Member: ".mst",
			Format: format.IndexFutureOption{}, NameField: "name", CodeField: "short_code", MarketTag: "KRX_FO",
		}
	}
	night := master.Descriptor{
		ID: "night", URL: baseURL + "/night.mst", Member: ".mst",
		Format: format.EurexOption{}, NameField: "name", CodeField: "short_code", MarketTag: "EUREX",
	}
	strictNight := master.Descriptor{
		ID: "strict", URL: baseURL + "/night.mst", Member: ".mst",
		Format: format.StockFutureOption{}, NameField: "name", CodeField: "short_code", MarketTag: "KRX_FO",
	}

	c, err := master.NewCatalog(
		[]master.Descriptor{fo("alpha"), fo("beta"), fo("gamma"), night, strictNight},
		[]master.Tool{
			{ID: "auth", Model: "auth_master"},
			{ID: "futures", Model: "futures_master", Masters: []string{"alpha", "beta", "gamma"}},
			{ID: "nightly", Model: "nightly_master", Masters: []string{"alpha", "night"}},
			{ID: "strict", Model: "strict_master", Masters: []string{"strict"}},
		},
	)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return c
}

func newHarness(t *testing.T, wrap func(store.Store) store.Store) *harness {
	t.Helper()
	srv := newFixtureServer(t)
	catalog := testCatalog(t, srv.URL)

	lite, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lite.Close() })
	if err := lite.EnsureSchema(context.Background(), catalog.Models()); err != nil {
		t.Fatal(err)
	}

	var st store.Store = lite
	if wrap != nil {
		st = wrap(lite)
	}

	clk := &clock{t: time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)}
	errLog, _ := OpenErrorLog("", 0)

	svc, err := NewService(Options{
		Catalog:    catalog,
		Store:      st,
		Downloader: fetch.NewDownloader(fetch.Options{Timeout: 5 * time.Second}),
		WorkDir:    t.TempDir(),
		ErrorLog:   errLog,
		Now:        clk.Now,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &harness{svc: svc, store: lite, srv: srv, clock: clk, log: errLog}
}

// seed serves three valid master files for the futures tool.
func (h *harness) seed() {
	h.srv.set("/alpha.mst", foFile(foLine("101W09", "KOSPI200 F 202409"), foLine("101W12", "KOSPI200 F 202412")))
	h.srv.set("/beta.mst", foFile(foLine("105W09", "MINI F 202409")))
	h.srv.set("/gamma.mst", foFile(foLine("106W09", "KOSDAQ150 F 202409")))
}

func (h *harness) count(t *testing.T, model string) int64 {
	t.Helper()
	n, err := h.store.Count(context.Background(), model)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestEnsureUpdated_CommitIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()

	first, err := h.svc.EnsureUpdated(ctx, "futures", true)
	if err != nil {
		t.Fatalf("EnsureUpdated() error = %v", err)
	}
	if first.State != StateCommitted || first.Inserted != 4 {
		t.Fatalf("first report = %+v", first)
	}

	second, err := h.svc.EnsureUpdated(ctx, "futures", true)
	if err != nil {
		t.Fatal(err)
	}
	if second.State != StateCommitted || second.Inserted != first.Inserted || second.Cleared != 4 {
		t.Errorf("second report = %+v", second)
	}
	if got := h.count(t, "futures_master"); got != 4 {
		t.Errorf("row count = %d, want 4", got)
	}
	for _, code := range []string{"101W09", "101W12", "105W09", "106W09"} {
		if res := h.svc.Resolve(ctx, "futures", code); !res.Found || res.MatchType != "code_exact" {
			t.Errorf("Resolve(%s) = %+v", code, res)
		}
	}

	fr, ok, _ := h.store.Freshness(ctx, "futures")
	if !ok || fr.RecordCount != 4 {
		t.Errorf("freshness = %+v, %v", fr, ok)
	}
}

func TestEnsureUpdated_Staleness(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()

	st, err := h.svc.GetStatus(ctx, "futures", "")
	if err != nil || !st.NeedsUpdate || st.LastUpdated != nil {
		t.Fatalf("status before refresh = %+v, %v", st, err)
	}

	if _, err := h.svc.EnsureUpdated(ctx, "futures", false); err != nil {
		t.Fatal(err)
	}

	h.clock.Add(13 * time.Hour) // 23:00 the same day
	st, _ = h.svc.GetStatus(ctx, "futures", "")
	if st.NeedsUpdate || st.RecordCount != 4 {
		t.Errorf("status same day = %+v, want fresh with 4 rows", st)
	}

	report, err := h.svc.EnsureUpdated(ctx, "futures", false)
	if err != nil || report.State != StateFresh {
		t.Errorf("EnsureUpdated() same day = %+v, %v; want fresh", report, err)
	}
	if hits := h.srv.hitCount("/alpha.mst"); hits != 1 {
		t.Errorf("alpha downloaded %d times, want 1", hits)
	}

	h.clock.Add(2 * time.Hour) // 01:00 next day
	st, _ = h.svc.GetStatus(ctx, "futures", "")
	if !st.NeedsUpdate {
		t.Errorf("status next day = %+v, want needsUpdate", st)
	}

	st, err = h.svc.GetStatus(ctx, "futures", "beta")
	if err != nil || st.RecordCount != 1 || st.MasterID != "beta" {
		t.Errorf("master status = %+v, %v", st, err)
	}
	if _, err := h.svc.GetStatus(ctx, "futures", "night"); !errors.Is(err, ErrUnknownMaster) {
		t.Errorf("GetStatus(foreign master) error = %v, want ErrUnknownMaster", err)
	}
}

func TestEnsureUpdated_PartialFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()

	if _, err := h.svc.EnsureUpdated(ctx, "futures", true); err != nil {
		t.Fatal(err)
	}
	before, _, _ := h.store.Freshness(ctx, "futures")

	h.clock.Add(24 * time.Hour)
	h.srv.breakPath("/beta.mst")

	report, err := h.svc.EnsureUpdated(ctx, "futures", false)
	if kind, _ := KindOf(err); kind != KindDownload {
		t.Fatalf("EnsureUpdated() error = %v, want download error", err)
	}
	if report.State != StateAborted {
		t.Errorf("state = %s, want aborted", report.State)
	}

	after, _, _ := h.store.Freshness(ctx, "futures")
	if !after.LastUpdated.Equal(before.LastUpdated) || after.RecordCount != before.RecordCount {
		t.Errorf("freshness changed: before %+v, after %+v", before, after)
	}

	// Rows of the master loaded before the failure stay in place.
	if n, _ := h.store.CountMaster(ctx, "futures_master", "alpha"); n != 2 {
		t.Errorf("alpha rows = %d, want 2", n)
	}
	if n, _ := h.store.CountMaster(ctx, "futures_master", "gamma"); n != 0 {
		t.Errorf("gamma rows = %d, want 0", n)
	}
	if hits := h.srv.hitCount("/gamma.mst"); hits != 1 {
		t.Errorf("gamma downloaded %d times after abort, want 1", hits)
	}

	entries := h.log.Recent(ErrorLogFilter{ToolID: "futures"})
	if len(entries) == 0 || entries[0].MasterID != "beta" || entries[0].Severity != SeverityError {
		t.Errorf("error log = %+v", entries)
	}
}

func TestEnsureUpdated_EmptyRefreshStaysStale(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	for _, p := range []string{"/alpha.mst", "/beta.mst", "/gamma.mst"} {
		h.srv.set(p, []byte("\r\n"))
	}

	report, err := h.svc.EnsureUpdated(ctx, "futures", false)
	if err != nil || report.State != StateEmpty {
		t.Fatalf("EnsureUpdated() = %+v, %v; want empty", report, err)
	}
	if _, ok, _ := h.store.Freshness(ctx, "futures"); ok {
		t.Error("freshness committed for an empty refresh")
	}

	if _, err := h.svc.EnsureUpdated(ctx, "futures", false); err != nil {
		t.Fatal(err)
	}
	if hits := h.srv.hitCount("/alpha.mst"); hits != 2 {
		t.Errorf("alpha downloaded %d times, want retry on every call", hits)
	}
	if ok, _ := h.svc.IsAvailable(ctx, "futures"); ok {
		t.Error("IsAvailable() = true for an empty table")
	}
}

func TestEnsureUpdated_MalformedIsSoft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()
	h.srv.set("/beta.mst", []byte("F|105W09\r\n"))

	report, err := h.svc.EnsureUpdated(ctx, "futures", true)
	if err != nil {
		t.Fatalf("EnsureUpdated() error = %v", err)
	}
	if report.State != StateCommitted || report.Inserted != 3 {
		t.Errorf("report = %+v", report)
	}
	if report.Masters[1].Parse != format.StatusMalformed.String() {
		t.Errorf("beta parse = %q", report.Masters[1].Parse)
	}

	entries := h.log.Recent(ErrorLogFilter{ToolID: "futures"})
	if len(entries) != 1 || entries[0].Kind != KindParse || entries[0].Severity != SeverityWarning {
		t.Errorf("error log = %+v", entries)
	}
}

func TestEnsureUpdated_AbsentSource(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()

	report, err := h.svc.EnsureUpdated(ctx, "nightly", false)
	if err != nil {
		t.Fatalf("EnsureUpdated() error = %v", err)
	}
	if report.State != StateCommitted || report.Masters[1].Parse != format.StatusAbsent.String() {
		t.Errorf("report = %+v", report)
	}
	if len(h.log.Recent(ErrorLogFilter{})) != 0 {
		t.Error("absent source should not be logged as a failure")
	}

	// The same missing file is a hard failure for a format that requires it.
	_, err = h.svc.EnsureUpdated(ctx, "strict", false)
	if !errors.Is(err, fetch.ErrNotFound) {
		t.Errorf("strict EnsureUpdated() error = %v, want ErrNotFound", err)
	}
}

func TestEnsureUpdated_Encodings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()

	cp949, err := korean.EUCKR.NewEncoder().Bytes(foFile(foLine("201W09", "코스피200 C 202409")))
	if err != nil {
		t.Fatal(err)
	}
	h.srv.set("/alpha.mst", cp949)
	h.srv.set("/beta.mst", append([]byte("\xEF\xBB\xBF"), foFile(foLine("301W09", "미니 F 202409"))...))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("gamma.mst")
	w.Write(foFile(foLine("401W09", "KOSDAQ150 F 202409")))
	zw.Close()
	h.srv.set("/gamma.mst", buf.Bytes())

	report, err := h.svc.EnsureUpdated(ctx, "futures", true)
	if err != nil {
		t.Fatalf("EnsureUpdated() error = %v", err)
	}
	if report.Masters[0].Encoding != "cp949" || report.Masters[1].Encoding != "utf-8-sig" {
		t.Errorf("encodings = %s, %s", report.Masters[0].Encoding, report.Masters[1].Encoding)
	}

	tests := []struct{ term, code string }{
		{"코스피200C202409", "201W09"},
		{"미니 F 202409", "301W09"},
		{"KOSDAQ150", "401W09"},
	}
	for _, tt := range tests {
		if res := h.svc.Resolve(ctx, "futures", tt.term); res.Code != tt.code {
			t.Errorf("Resolve(%q) = %+v, want %s", tt.term, res, tt.code)
		}
	}
}

func TestEnsureUpdated_UnknownTool(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.EnsureUpdated(context.Background(), "options", false)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("error = %v, want ErrUnknownTool", err)
	}
	if kind, ok := KindOf(err); !ok || kind != KindConfiguration {
		t.Errorf("KindOf() = %q, %v, want configuration", kind, ok)
	}
	entries := h.log.Recent(ErrorLogFilter{})
	if len(entries) != 1 || entries[0].Severity != SeverityCritical {
		t.Errorf("error log = %+v", entries)
	}
}

// countingStore counts every call reaching the store.
type countingStore struct {
	store.Store
	mu    sync.Mutex
	calls int
}

func (c *countingStore) tick() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingStore) Count(ctx context.Context, model string) (int64, error) {
	c.tick()
	return c.Store.Count(ctx, model)
}

func (c *countingStore) DeleteAll(ctx context.Context, model string) (int64, error) {
	c.tick()
	return c.Store.DeleteAll(ctx, model)
}

func (c *countingStore) BulkInsert(ctx context.Context, model string, r []master.Record) (int64, error) {
	c.tick()
	return c.Store.BulkInsert(ctx, model, r)
}

func (c *countingStore) Freshness(ctx context.Context, category string) (master.Freshness, bool, error) {
	c.tick()
	return c.Store.Freshness(ctx, category)
}

func (c *countingStore) SetFreshness(ctx context.Context, category string, n int64, at time.Time) error {
	c.tick()
	return c.Store.SetFreshness(ctx, category, n, at)
}

func TestEnsureUpdated_ZeroMasters(t *testing.T) {
	ctx := context.Background()
	var counter *countingStore
	h := newHarness(t, func(s store.Store) store.Store {
		counter = &countingStore{Store: s}
		return counter
	})

	for _, force := range []bool{false, true} {
		report, err := h.svc.EnsureUpdated(ctx, "auth", force)
		if err != nil || report.State != StateFresh {
			t.Errorf("EnsureUpdated(auth, %v) = %+v, %v", force, report, err)
		}
	}
	ok, err := h.svc.IsAvailable(ctx, "auth")
	if !ok || err != nil {
		t.Errorf("IsAvailable(auth) = %v, %v", ok, err)
	}
	if counter.calls != 0 {
		t.Errorf("store touched %d times", counter.calls)
	}
}

// failingStore fails BulkInsert for one master.
type failingStore struct {
	store.Store
	master string
}

func (f *failingStore) BulkInsert(ctx context.Context, model string, r []master.Record) (int64, error) {
	if len(r) > 0 && r[0].MasterID == f.master {
		return 0, errors.New("disk I/O error")
	}
	return f.Store.BulkInsert(ctx, model, r)
}

func TestEnsureUpdated_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(s store.Store) store.Store {
		return &failingStore{Store: s, master: "beta"}
	})
	h.seed()

	report, err := h.svc.EnsureUpdated(ctx, "futures", true)
	if kind, _ := KindOf(err); kind != KindPersistence {
		t.Fatalf("error = %v, want persistence error", err)
	}
	if report.State != StateAborted || report.Inserted != 2 {
		t.Errorf("report = %+v", report)
	}
	if _, ok, _ := h.store.Freshness(ctx, "futures"); ok {
		t.Error("freshness committed after a persistence failure")
	}
	if got := h.count(t, "futures_master"); got != 2 {
		t.Errorf("rows left = %d, want 2", got)
	}
}

func TestEnsureUpdated_ConcurrentCallersShareRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()

	gate := make(chan struct{})
	h.srv.mu.Lock()
	h.srv.gate["/alpha.mst"] = gate
	h.srv.mu.Unlock()

	type outcome struct {
		report *RefreshReport
		err    error
	}
	results := make(chan outcome, 2)
	run := func() {
		r, err := h.svc.EnsureUpdated(ctx, "futures", false)
		results <- outcome{r, err}
	}

	go run()
	<-h.srv.seen // first caller is downloading alpha
	go run()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	states := map[RefreshState]int{}
	for i := 0; i < 2; i++ {
		o := <-results
		if o.err != nil {
			t.Fatalf("EnsureUpdated() error = %v", o.err)
		}
		states[o.report.State]++
	}
	if states[StateCommitted] != 1 || states[StateFresh] != 1 {
		t.Errorf("states = %v, want one committed and one fresh", states)
	}
	if got := h.count(t, "futures_master"); got != 4 {
		t.Errorf("row count = %d, want 4", got)
	}
	if hits := h.srv.hitCount("/alpha.mst"); hits != 1 {
		t.Errorf("alpha downloaded %d times, want 1", hits)
	}
}

// cancelOnInsert cancels the caller's context once a master is stored.
type cancelOnInsert struct {
	store.Store
	cancel context.CancelFunc
}

func (c *cancelOnInsert) BulkInsert(ctx context.Context, model string, r []master.Record) (int64, error) {
	n, err := c.Store.BulkInsert(ctx, model, r)
	c.cancel()
	return n, err
}

func TestEnsureUpdated_CallerCancelDoesNotAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, func(s store.Store) store.Store {
		return &cancelOnInsert{Store: s, cancel: cancel}
	})
	h.seed()

	report, err := h.svc.EnsureUpdated(ctx, "futures", true)
	if err != nil {
		t.Fatalf("EnsureUpdated() error = %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("caller context still live after the first master")
	}
	if report.State != StateCommitted || report.Inserted != 4 || len(report.Masters) != 3 {
		t.Errorf("report = %+v, want committed with 4 rows from 3 masters", report)
	}
	if got := h.count(t, "futures_master"); got != 4 {
		t.Errorf("row count = %d, want 4", got)
	}
	st, err := h.svc.GetStatus(context.Background(), "futures", "")
	if err != nil || st.NeedsUpdate {
		t.Errorf("status = %+v, %v; want fresh", st, err)
	}
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed()

	reports := h.svc.RefreshAll(ctx)
	byTool := map[string]*RefreshReport{}
	for _, r := range reports {
		byTool[r.ToolID] = r
	}
	if byTool["futures"] == nil || byTool["futures"].State != StateCommitted {
		t.Errorf("futures report = %+v", byTool["futures"])
	}
	if _, ok := byTool["auth"]; ok {
		t.Error("auth has no masters and should not be reported")
	}
	if byTool["strict"] == nil || byTool["strict"].State != StateAborted {
		t.Errorf("strict report = %+v", byTool["strict"])
	}

	if again := h.svc.RefreshAll(ctx); len(again) != 1 || again[0].ToolID != "strict" {
		t.Errorf("second pass reports = %+v, want only the failing tool", again)
	}
}
