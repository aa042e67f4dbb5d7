// Package flipper coordinates user inputs, data fetches and render passes.
package flipper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/SyfSchydea/osrs-flip/internal/db"
	"github.com/SyfSchydea/osrs-flip/internal/engine"
	"github.com/SyfSchydea/osrs-flip/internal/logger"
	"github.com/SyfSchydea/osrs-flip/internal/market"
	"github.com/SyfSchydea/osrs-flip/internal/render"
	"github.com/SyfSchydea/osrs-flip/internal/units"
	"github.com/SyfSchydea/osrs-flip/internal/wiki"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownPricePeriod is returned for a price period the API does not serve.
var ErrUnknownPricePeriod = errors.New("unknown price period")

// InputError reports a rejected user input. State is left unchanged.
type InputError struct {
	Field string
	Value string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Source fetches the three datasets. *wiki.Client implements it.
type Source interface {
	FetchMapping(ctx context.Context) ([]wiki.Item, error)
	FetchPrices(ctx context.Context, resource string) (wiki.PriceSnapshot, error)
	FetchVolumes(ctx context.Context) (wiki.VolumeSnapshot, error)
}

// History stores render passes. *db.DB implements it.
type History interface {
	InsertHistory(rec db.RenderRecord) int64
	InsertResults(renderID int64, rows []render.Row)
	PruneHistory(keep int) (int64, error)
}

// Recorder receives render and input statistics. *metrics.Recorder implements it.
type Recorder interface {
	ObserveRender(candidates, ranked int, topProfit int64)
	ObserveInputError(field string)
}

// AutoRefresher is told about auto-refresh and visibility changes.
// *refresh.Scheduler implements it.
type AutoRefresher interface {
	SetEnabled(on bool)
	SetVisible(v bool)
}

// Options configures a Session. Source is required.
type Options struct {
	Source     Source
	Store      *market.Store
	History    History
	Metrics    Recorder
	Presenters []render.Presenter

	CashStack     string // "" = unlimited
	HoldingPeriod string // "" = 4h
	PricePeriod   string // "" = 1h
	AutoRefresh   bool

	PageLimit           int
	LookbackHours       float64
	BuyLimitWindowHours float64
	HistoryLimit        int
}

// Inputs is the current user input state.
type Inputs struct {
	Cash         string  `json:"cash"`
	CashBudget   int64   `json:"cash_budget"`
	Period       string  `json:"period"`
	HoldingHours float64 `json:"holding_hours"`
	PricePeriod  string  `json:"price_period"`
	AutoRefresh  bool    `json:"auto_refresh"`
	Visible      bool    `json:"visible"`
}

// Session owns the user inputs and drives recomputation.
type Session struct {
	src      Source
	store    *market.Store
	history  History
	metrics  Recorder
	pageSize int
	lookback float64
	window   float64
	keep     int

	mu          sync.RWMutex
	cashText    string
	cash        int64
	periodText  string
	holdHours   float64
	pricePeriod string
	autoRefresh bool
	visible     bool
	refresher   AutoRefresher
	presenters  []render.Presenter
	rows        []render.Row
	renders     int
	lastRender  time.Time

	renderMu sync.Mutex
	trigger  chan struct{}
}

// New creates a Session. Invalid initial inputs are reported the same way
// the setters report them.
func New(opts Options) (*Session, error) {
	if opts.Source == nil {
		return nil, errors.New("flipper: nil source")
	}
	s := &Session{
		src:         opts.Source,
		store:       opts.Store,
		history:     opts.History,
		metrics:     opts.Metrics,
		pageSize:    engine.EffectivePageLimit(opts.PageLimit, engine.DefaultPageLimit),
		lookback:    opts.LookbackHours,
		window:      opts.BuyLimitWindowHours,
		keep:        opts.HistoryLimit,
		cash:        engine.DefaultCashBudget,
		holdHours:   engine.DefaultHoldingHours,
		periodText:  units.FormatPeriod(engine.DefaultHoldingHours),
		pricePeriod: wiki.Resource1h,
		autoRefresh: opts.AutoRefresh,
		visible:     true,
		presenters:  append([]render.Presenter(nil), opts.Presenters...),
		trigger:     make(chan struct{}, 1),
	}
	if s.store == nil {
		s.store = market.NewStore()
	}

	if opts.CashStack != "" {
		v, display, err := cashInput(opts.CashStack)
		if err != nil {
			return nil, err
		}
		s.cashText, s.cash = display, v
	}
	if opts.HoldingPeriod != "" {
		h, err := parseHolding(opts.HoldingPeriod)
		if err != nil {
			return nil, err
		}
		s.holdHours, s.periodText = h, units.FormatPeriod(h)
	}
	if opts.PricePeriod != "" {
		if err := checkPricePeriod(opts.PricePeriod); err != nil {
			return nil, err
		}
		s.pricePeriod = opts.PricePeriod
	}

	s.store.OnChange(func(market.Kind) { s.requestRender() })
	return s, nil
}

// Store returns the snapshot store backing the session.
func (s *Session) Store() *market.Store { return s.store }

// SetAutoRefresher attaches the scheduler and syncs it with the current inputs.
func (s *Session) SetAutoRefresher(r AutoRefresher) {
	s.mu.Lock()
	s.refresher = r
	on, vis := s.autoRefresh, s.visible
	s.mu.Unlock()
	if r != nil {
		r.SetVisible(vis)
		r.SetEnabled(on)
	}
}

// AddPresenter registers another render sink.
func (s *Session) AddPresenter(p render.Presenter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presenters = append(s.presenters, p)
}

// Inputs returns the current inputs.
func (s *Session) Inputs() Inputs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Inputs{
		Cash:         s.cashText,
		CashBudget:   s.cash,
		Period:       s.periodText,
		HoldingHours: s.holdHours,
		PricePeriod:  s.pricePeriod,
		AutoRefresh:  s.autoRefresh,
		Visible:      s.visible,
	}
}

func parseCash(text string) (int64, error) {
	v, err := units.ParseAmount(text)
	if err != nil {
		return 0, &InputError{Field: "cash", Value: text, Err: err}
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(math.Round(v)), nil
}

// cashInput returns the budget and its canonical display form for text.
// Empty and zero amounts both mean no budget limit.
func cashInput(text string) (int64, string, error) {
	if strings.TrimSpace(text) == "" {
		return engine.DefaultCashBudget, "", nil
	}
	v, err := parseCash(text)
	if err != nil {
		return 0, "", err
	}
	if v <= 0 {
		return engine.DefaultCashBudget, "", nil
	}
	return v, units.FormatAmount(float64(v)), nil
}

func parseHolding(text string) (float64, error) {
	h, err := units.ParsePeriod(text)
	if err != nil {
		return 0, &InputError{Field: "period", Value: text, Err: err}
	}
	if h <= 0 {
		return 0, &InputError{Field: "period", Value: text, Err: fmt.Errorf("%w: must be positive", units.ErrInvalidPeriod)}
	}
	return h, nil
}

func checkPricePeriod(name string) error {
	if !wiki.IsPriceResource(name) {
		return &InputError{Field: "price_period", Value: name, Err: ErrUnknownPricePeriod}
	}
	return nil
}

func (s *Session) rejected(err error) error {
	var ie *InputError
	if s.metrics != nil && errors.As(err, &ie) {
		s.metrics.ObserveInputError(ie.Field)
	}
	logger.Warn("INPUT", err.Error())
	return err
}

// SetCashBudget parses text as an amount ("5m", "1.2b"). An empty string
// removes the budget limit.
func (s *Session) SetCashBudget(text string) error {
	cash, display, err := cashInput(text)
	if err != nil {
		return s.rejected(err)
	}
	s.mu.Lock()
	s.cashText, s.cash = display, cash
	s.mu.Unlock()
	s.requestRender()
	return nil
}

// SetHoldingPeriod parses text as a duration and returns its normalized form.
func (s *Session) SetHoldingPeriod(text string) (string, error) {
	h, err := parseHolding(text)
	if err != nil {
		return "", s.rejected(err)
	}
	canonical := units.FormatPeriod(h)
	s.mu.Lock()
	s.holdHours, s.periodText = h, canonical
	s.mu.Unlock()
	s.requestRender()
	return canonical, nil
}

// SetPricePeriod switches the price resource and refetches prices only.
// The returned error is an *InputError for an unknown name, otherwise the
// fetch error.
func (s *Session) SetPricePeriod(ctx context.Context, name string) error {
	if err := checkPricePeriod(name); err != nil {
		return s.rejected(err)
	}
	s.mu.Lock()
	s.pricePeriod = name
	s.mu.Unlock()
	return s.RefreshPrices(ctx)
}

// SetAutoRefresh turns periodic refreshing on or off.
func (s *Session) SetAutoRefresh(on bool) {
	s.mu.Lock()
	s.autoRefresh = on
	r := s.refresher
	s.mu.Unlock()
	if r != nil {
		r.SetEnabled(on)
	}
}

// SetVisible records whether the page is visible. Auto-refresh is skipped
// while hidden.
func (s *Session) SetVisible(v bool) {
	s.mu.Lock()
	s.visible = v
	r := s.refresher
	s.mu.Unlock()
	if r != nil {
		r.SetVisible(v)
	}
}

// LoadCatalog fetches the item mapping.
func (s *Session) LoadCatalog(ctx context.Context) error {
	t := s.store.Begin(market.Catalog)
	items, err := s.src.FetchMapping(ctx)
	if err != nil {
		logger.Warn("FETCH", "mapping: "+err.Error())
		return err
	}
	s.store.SetCatalog(t, items)
	logger.Info("FETCH", fmt.Sprintf("Loaded %d catalog items", len(items)))
	return nil
}

// RefreshPrices fetches the selected price resource.
func (s *Session) RefreshPrices(ctx context.Context) error {
	// A ticket must never be newer than the resource it was issued for.
	s.mu.RLock()
	resource := s.pricePeriod
	t := s.store.Begin(market.Prices)
	s.mu.RUnlock()

	snap, err := s.src.FetchPrices(ctx, resource)
	if err != nil {
		logger.Warn("FETCH", resource+": "+err.Error())
		return err
	}
	s.store.SetPrices(t, snap)
	return nil
}

// RefreshVolumes fetches the volume resource.
func (s *Session) RefreshVolumes(ctx context.Context) error {
	t := s.store.Begin(market.Volumes)
	snap, err := s.src.FetchVolumes(ctx)
	if err != nil {
		logger.Warn("FETCH", wiki.VolumeResource+": "+err.Error())
		return err
	}
	s.store.SetVolumes(t, snap)
	return nil
}

// Refresh fetches prices and volumes concurrently, plus the catalog until
// it has loaded once. A failure of one fetch does not cancel the others;
// the first error is returned.
func (s *Session) Refresh(ctx context.Context) error {
	var g errgroup.Group
	if s.store.FetchedAt(market.Catalog).IsZero() {
		g.Go(func() error { return s.LoadCatalog(ctx) })
	}
	g.Go(func() error { return s.RefreshPrices(ctx) })
	g.Go(func() error { return s.RefreshVolumes(ctx) })
	return g.Wait()
}

// Start loads the catalog and the first prices and volumes concurrently.
func (s *Session) Start(ctx context.Context) error {
	return s.Refresh(ctx)
}

func (s *Session) requestRender() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run renders whenever inputs or datasets change until ctx is done.
// Bursts of changes collapse into one render.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			s.Render()
		}
	}
}

// renderInputs snapshots the engine parameters and the inputs recorded with
// a render in one critical section, so history always matches the table.
func (s *Session) renderInputs(lookback float64) (engine.Params, Inputs) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lookback > 0 {
		lookback = s.lookback
	}
	params := engine.Params{
		CashBudget:          s.cash,
		HoldingHours:        s.holdHours,
		LookbackHours:       lookback,
		BuyLimitWindowHours: s.window,
	}.WithDefaults()
	return params, Inputs{Period: s.periodText, PricePeriod: s.pricePeriod, CashBudget: s.cash}
}

// Render computes the ranked table and pushes it to every presenter. It
// reports false without touching any sink while a dataset is missing.
func (s *Session) Render() bool {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	snap, ok := s.store.Snapshot()
	if !ok {
		logger.Debug("RENDER", "Waiting for datasets ("+s.store.State().String()+")")
		return false
	}

	start := time.Now()
	params, inputs := s.renderInputs(snap.Volumes.LookbackHours)
	candidates := engine.ComputeCandidates(snap.Catalog, snap.Prices.Items, snap.Volumes.Items, params)
	ranked := engine.Rank(candidates, s.pageSize)
	rows := render.BuildRows(ranked)
	sum := engine.Summarize(ranked)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.rows = rows
	s.renders++
	s.lastRender = time.Now()
	presenters := append([]render.Presenter(nil), s.presenters...)
	s.mu.Unlock()

	for _, p := range presenters {
		if err := p.Render(rows); err != nil {
			logger.Warn("RENDER", err.Error())
		}
	}

	if s.history != nil {
		id := s.history.InsertHistory(db.RenderRecord{
			PricePeriod:   inputs.PricePeriod,
			HoldingPeriod: inputs.Period,
			CashBudget:    inputs.CashBudget,
			Candidates:    len(candidates),
			Count:         sum.Count,
			TopProfit:     sum.TopProfit,
			TotalProfit:   sum.TotalProfit,
			DurationMs:    elapsed.Milliseconds(),
		})
		s.history.InsertResults(id, rows)
		if s.keep > 0 {
			if _, err := s.history.PruneHistory(s.keep); err != nil {
				logger.Warn("DB", "PruneHistory: "+err.Error())
			}
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveRender(len(candidates), len(rows), sum.TopProfit)
	}
	logger.Debug("RENDER", fmt.Sprintf("%d candidates, %d rows in %s", len(candidates), len(rows), elapsed))
	return true
}

// Rows returns the last rendered table.
func (s *Session) Rows() []render.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]render.Row(nil), s.rows...)
}

// Status summarizes readiness and render progress.
type Status struct {
	State      string               `json:"state"`
	FetchedAt  map[string]time.Time `json:"fetched_at"`
	Renders    int                  `json:"renders"`
	LastRender time.Time            `json:"last_render"`
	Rows       int                  `json:"rows"`
}

// Status reports the current readiness state.
func (s *Session) Status() Status {
	st := Status{
		State:     s.store.State().String(),
		FetchedAt: map[string]time.Time{},
	}
	for _, k := range []market.Kind{market.Catalog, market.Prices, market.Volumes} {
		if t := s.store.FetchedAt(k); !t.IsZero() {
			st.FetchedAt[k.String()] = t
		}
	}
	s.mu.RLock()
	st.Renders, st.LastRender, st.Rows = s.renders, s.lastRender, len(s.rows)
	s.mu.RUnlock()
	return st
}
