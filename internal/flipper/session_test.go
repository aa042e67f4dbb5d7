package flipper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SyfSchydea/osrs-flip/internal/db"
	"github.com/SyfSchydea/osrs-flip/internal/engine"
	"github.com/SyfSchydea/osrs-flip/internal/market"
	"github.com/SyfSchydea/osrs-flip/internal/render"
	"github.com/SyfSchydea/osrs-flip/internal/units"
	"github.com/SyfSchydea/osrs-flip/internal/wiki"
)

func i64(v int64) *int64 { return &v }

type fakeSource struct {
	mu         sync.Mutex
	mappingErr error
	priceErr   error
	volumeErr  error
	resources  []string
	mappings   int

	// FetchPrices for gated blocks until gate is closed; arrived is signalled
	// once the gated fetch has started.
	gated   string
	gate    chan struct{}
	arrived chan struct{}
}

func (f *fakeSource) FetchMapping(ctx context.Context) ([]wiki.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings++
	if f.mappingErr != nil {
		return nil, f.mappingErr
	}
	return []wiki.Item{
		{ID: 1, Name: "Widget", Limit: 100},
		{ID: 2, Name: "Gadget", Limit: 1000},
		{ID: engine.BondItemID, Name: "Old school bond", Limit: 100},
	}, nil
}

func (f *fakeSource) FetchPrices(ctx context.Context, resource string) (wiki.PriceSnapshot, error) {
	f.mu.Lock()
	f.resources = append(f.resources, resource)
	gate := f.gate
	if resource != f.gated {
		gate = nil
	}
	f.mu.Unlock()
	if gate != nil {
		f.arrived <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return wiki.PriceSnapshot{}, f.priceErr
	}
	return wiki.PriceSnapshot{
		Resource: resource,
		Items: map[int]wiki.Price{
			1:                 {AvgLow: i64(100), AvgHigh: i64(150)},
			2:                 {AvgLow: i64(10), AvgHigh: i64(12)},
			engine.BondItemID: {AvgLow: i64(5_000_000), AvgHigh: i64(6_000_000)},
		},
	}, nil
}

func (f *fakeSource) FetchVolumes(ctx context.Context) (wiki.VolumeSnapshot, error) {
	if f.volumeErr != nil {
		return wiki.VolumeSnapshot{}, f.volumeErr
	}
	return wiki.VolumeSnapshot{
		Resource:      wiki.VolumeResource,
		LookbackHours: wiki.LookbackHours,
		Items: map[int]wiki.Volume{
			1:                 {Low: 600, High: 600},
			2:                 {Low: 100000, High: 100000},
			engine.BondItemID: {Low: 1000, High: 1000},
		},
	}, nil
}

func (f *fakeSource) setMappingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappingErr = err
}

func (f *fakeSource) mappingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mappings
}

func (f *fakeSource) priceResources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resources...)
}

type recordingPresenter struct {
	mu    sync.Mutex
	calls [][]render.Row
	seen  chan struct{}
}

func (p *recordingPresenter) Render(rows []render.Row) error {
	p.mu.Lock()
	p.calls = append(p.calls, rows)
	p.mu.Unlock()
	if p.seen != nil {
		select {
		case p.seen <- struct{}{}:
		default:
		}
	}
	return nil
}

func (p *recordingPresenter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeRecorder struct {
	renders   int
	inputErrs map[string]int
}

func (r *fakeRecorder) ObserveRender(candidates, ranked int, topProfit int64) { r.renders++ }
func (r *fakeRecorder) ObserveInputError(field string) {
	if r.inputErrs == nil {
		r.inputErrs = map[string]int{}
	}
	r.inputErrs[field]++
}

type fakeRefresher struct {
	enabled, visible bool
}

func (f *fakeRefresher) SetEnabled(on bool) { f.enabled = on }
func (f *fakeRefresher) SetVisible(v bool)  { f.visible = v }

func newTestSession(t *testing.T, opts Options) (*Session, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	if opts.Source == nil {
		opts.Source = src
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, src
}

func TestNew_Defaults(t *testing.T) {
	s, _ := newTestSession(t, Options{})
	in := s.Inputs()
	if in.CashBudget != engine.DefaultCashBudget {
		t.Errorf("CashBudget = %d, want %d", in.CashBudget, engine.DefaultCashBudget)
	}
	if in.Period != "4h" || in.HoldingHours != 4 {
		t.Errorf("period = %q/%v, want 4h/4", in.Period, in.HoldingHours)
	}
	if in.PricePeriod != wiki.Resource1h {
		t.Errorf("PricePeriod = %q, want 1h", in.PricePeriod)
	}
	if !in.Visible || in.AutoRefresh {
		t.Errorf("visible/auto = %v/%v, want true/false", in.Visible, in.AutoRefresh)
	}
}

func TestNew_RejectsBadInitialInputs(t *testing.T) {
	src := &fakeSource{}
	if _, err := New(Options{Source: src, CashStack: "lots"}); !errors.Is(err, units.ErrInvalidAmount) {
		t.Errorf("bad cash err = %v", err)
	}
	if _, err := New(Options{Source: src, HoldingPeriod: "3 fortnights"}); !errors.Is(err, units.ErrInvalidPeriod) {
		t.Errorf("bad period err = %v", err)
	}
	if _, err := New(Options{Source: src, PricePeriod: "2h"}); !errors.Is(err, ErrUnknownPricePeriod) {
		t.Errorf("bad price period err = %v", err)
	}
	if _, err := New(Options{}); err == nil {
		t.Error("nil source accepted")
	}
}

func TestSetCashBudget(t *testing.T) {
	rec := &fakeRecorder{}
	s, _ := newTestSession(t, Options{Metrics: rec})

	if err := s.SetCashBudget("1.5m"); err != nil {
		t.Fatalf("SetCashBudget: %v", err)
	}
	if got := s.Inputs().CashBudget; got != 1_500_000 {
		t.Errorf("CashBudget = %d, want 1500000", got)
	}

	err := s.SetCashBudget("12q")
	var ie *InputError
	if !errors.As(err, &ie) || ie.Field != "cash" || !errors.Is(err, units.ErrInvalidAmount) {
		t.Fatalf("err = %v, want cash InputError", err)
	}
	if got := s.Inputs(); got.CashBudget != 1_500_000 || got.Cash != "1.5m" {
		t.Errorf("state changed after bad input: %+v", got)
	}
	if rec.inputErrs["cash"] != 1 {
		t.Errorf("input errors = %v", rec.inputErrs)
	}

	if err := s.SetCashBudget(""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := s.Inputs().CashBudget; got != engine.DefaultCashBudget {
		t.Errorf("cleared CashBudget = %d", got)
	}
}

func TestSetCashBudget_ZeroIsUnlimited(t *testing.T) {
	s, _ := newTestSession(t, Options{CashStack: "5m"})
	for _, text := range []string{"0", "0k", "0.0b"} {
		if err := s.SetCashBudget(text); err != nil {
			t.Fatalf("SetCashBudget(%q): %v", text, err)
		}
		if in := s.Inputs(); in.Cash != "" || in.CashBudget != engine.DefaultCashBudget {
			t.Errorf("SetCashBudget(%q) inputs = %q/%d, want \"\"/%d", text, in.Cash, in.CashBudget, engine.DefaultCashBudget)
		}
	}

	s, _ = newTestSession(t, Options{CashStack: "0k"})
	if in := s.Inputs(); in.Cash != "" || in.CashBudget != engine.DefaultCashBudget {
		t.Errorf("initial inputs = %q/%d", in.Cash, in.CashBudget)
	}
}

func TestSetHoldingPeriod(t *testing.T) {
	s, _ := newTestSession(t, Options{})

	got, err := s.SetHoldingPeriod("10 minutes")
	if err != nil {
		t.Fatalf("SetHoldingPeriod: %v", err)
	}
	if got != "10m" {
		t.Errorf("canonical = %q, want 10m", got)
	}
	if got, _ := s.SetHoldingPeriod("24 hours"); got != "1d" {
		t.Errorf("canonical = %q, want 1d", got)
	}

	for _, bad := range []string{"0h", "3 fortnights", "abc"} {
		if _, err := s.SetHoldingPeriod(bad); !errors.Is(err, units.ErrInvalidPeriod) {
			t.Errorf("SetHoldingPeriod(%q) err = %v", bad, err)
		}
	}
	if in := s.Inputs(); in.Period != "1d" || in.HoldingHours != 24 {
		t.Errorf("state changed after bad input: %+v", in)
	}
}

func TestSetPricePeriod(t *testing.T) {
	s, src := newTestSession(t, Options{})
	ctx := context.Background()

	if err := s.SetPricePeriod(ctx, "2h"); !errors.Is(err, ErrUnknownPricePeriod) {
		t.Errorf("err = %v, want ErrUnknownPricePeriod", err)
	}
	if len(src.priceResources()) != 0 {
		t.Error("unknown period triggered a fetch")
	}

	if err := s.SetPricePeriod(ctx, wiki.Resource5m); err != nil {
		t.Fatalf("SetPricePeriod: %v", err)
	}
	if got := src.priceResources(); len(got) != 1 || got[0] != "5m" {
		t.Errorf("fetched resources = %v, want [5m]", got)
	}
	if s.Store().State() != market.PartiallyReady {
		t.Errorf("state = %s, want partially_ready", s.Store().State())
	}
}

func TestRender_NoOpUntilReady(t *testing.T) {
	p := &recordingPresenter{}
	s, _ := newTestSession(t, Options{Presenters: []render.Presenter{p}})
	if err := s.LoadCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Render() {
		t.Error("Render reported success with missing datasets")
	}
	if p.count() != 0 {
		t.Errorf("presenter called %d times, want 0", p.count())
	}
}

func TestRender_EndToEnd(t *testing.T) {
	store, err := db.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := &recordingPresenter{}
	rec := &fakeRecorder{}
	s, _ := newTestSession(t, Options{
		History:    store,
		Metrics:    rec,
		Presenters: []render.Presenter{p},
		CashStack:  "10k",
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Render() {
		t.Fatal("Render = false with all datasets loaded")
	}

	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (bond excluded)", len(rows))
	}
	// Widget: 100 units * 50 = 5000. Gadget: cash and buy limit tie at 1000 units * 2 = 2000.
	if rows[0].Name != "Widget" || rows[0].Profit != 5000 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Name != "Gadget" || rows[1].Profit != 2000 || rows[1].Limit != "Cash Stack" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if p.count() != 1 || rec.renders != 1 {
		t.Errorf("presenter/metrics calls = %d/%d, want 1/1", p.count(), rec.renders)
	}

	history := store.GetHistory(10)
	if len(history) != 1 {
		t.Fatalf("history = %d, want 1", len(history))
	}
	h := history[0]
	if h.Count != 2 || h.TopProfit != 5000 || h.TotalProfit != 7000 || h.CashBudget != 10_000 || h.Candidates != 3 {
		t.Errorf("history record = %+v", h)
	}
	if got := store.GetResults(h.ID); len(got) != 2 || got[0] != rows[0] {
		t.Errorf("stored results = %+v", got)
	}

	st := s.Status()
	if st.State != "all_ready" || st.Renders != 1 || st.Rows != 2 || len(st.FetchedAt) != 3 {
		t.Errorf("status = %+v", st)
	}
}

func TestRender_PrunesHistory(t *testing.T) {
	store, err := db.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s, _ := newTestSession(t, Options{History: store, HistoryLimit: 2})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		s.Render()
	}
	if got := store.GetHistory(10); len(got) != 2 {
		t.Errorf("history = %d, want 2", len(got))
	}
}

func TestRefresh_PartialFailure(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{priceErr: boom}
	s, _ := newTestSession(t, Options{Source: src})

	if err := s.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if s.Store().FetchedAt(market.Volumes).IsZero() {
		t.Error("volume fetch was cancelled by the failing price fetch")
	}
	if !s.Store().FetchedAt(market.Prices).IsZero() {
		t.Error("failed price fetch replaced the snapshot")
	}
}

func TestRefresh_RetriesFailedCatalog(t *testing.T) {
	down := errors.New("mapping unavailable")
	src := &fakeSource{mappingErr: down}
	s, _ := newTestSession(t, Options{Source: src})
	ctx := context.Background()

	if err := s.Start(ctx); !errors.Is(err, down) {
		t.Fatalf("Start err = %v, want mapping error", err)
	}
	if s.Store().State() != market.PartiallyReady {
		t.Fatalf("state = %s, want partially_ready", s.Store().State())
	}

	src.setMappingErr(nil)
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Store().State() != market.AllReady {
		t.Errorf("state = %s, want all_ready", s.Store().State())
	}
	if !s.Render() {
		t.Error("Render = false after the catalog recovered")
	}

	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if n := src.mappingCalls(); n != 2 {
		t.Errorf("mapping fetches = %d, want 2 (none once loaded)", n)
	}
}

func TestRefreshPrices_OlderPeriodNeverWins(t *testing.T) {
	store, err := db.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	src := &fakeSource{
		gated:   wiki.Resource1h,
		gate:    make(chan struct{}),
		arrived: make(chan struct{}, 1),
	}
	s, _ := newTestSession(t, Options{Source: src, History: store})
	ctx := context.Background()
	if err := s.LoadCatalog(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.RefreshVolumes(ctx); err != nil {
		t.Fatal(err)
	}

	slow := make(chan error, 1)
	go func() { slow <- s.RefreshPrices(ctx) }()
	<-src.arrived

	if err := s.SetPricePeriod(ctx, wiki.Resource5m); err != nil {
		t.Fatalf("SetPricePeriod: %v", err)
	}
	close(src.gate)
	if err := <-slow; err != nil {
		t.Fatalf("RefreshPrices: %v", err)
	}

	snap, ok := s.Store().Snapshot()
	if !ok {
		t.Fatal("store not ready")
	}
	if snap.Prices.Resource != wiki.Resource5m {
		t.Errorf("prices resource = %q, want 5m", snap.Prices.Resource)
	}

	if !s.Render() {
		t.Fatal("Render = false")
	}
	if h := store.GetHistory(1); len(h) != 1 || h[0].PricePeriod != wiki.Resource5m {
		t.Errorf("history = %+v, want one 5m record", h)
	}
}

func TestRun_CoalescesTriggers(t *testing.T) {
	p := &recordingPresenter{seen: make(chan struct{}, 1)}
	s, _ := newTestSession(t, Options{Presenters: []render.Presenter{p}})

	// Three store updates and two input changes queue a single render.
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.SetCashBudget("1m")
	s.SetHoldingPeriod("2h")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-p.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("no render")
	}
	cancel()
	<-done

	if got := p.count(); got != 1 {
		t.Errorf("renders = %d, want 1", got)
	}
}

func TestAutoRefresherSync(t *testing.T) {
	s, _ := newTestSession(t, Options{AutoRefresh: true})
	r := &fakeRefresher{}
	s.SetAutoRefresher(r)
	if !r.enabled || !r.visible {
		t.Errorf("refresher = %+v, want enabled and visible", r)
	}

	s.SetVisible(false)
	s.SetAutoRefresh(false)
	if r.enabled || r.visible {
		t.Errorf("refresher = %+v, want disabled and hidden", r)
	}
	if in := s.Inputs(); in.AutoRefresh || in.Visible {
		t.Errorf("inputs = %+v", in)
	}
}
