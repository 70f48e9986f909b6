// Package dashboard holds the home and date range a session is looking at,
// loads the data for it and composes the chart view models.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/wattwise/wattwise/pkg/log"
	"github.com/wattwise/wattwise/pkg/types"
	"golang.org/x/sync/errgroup"
)

// DefaultRangeDays is how far back the initial range starts from today.
const DefaultRangeDays = 30

// ErrUnknownHome is returned when selecting a home that is not in the list.
var ErrUnknownHome = errors.New("unknown home")

// Fetcher is the subset of the API client a Controller loads data through.
type Fetcher interface {
	Homes(ctx context.Context) ([]types.Home, error)
	LiveHome(ctx context.Context, homeID string) ([]types.LiveReading, error)
	HomeDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.DailyEnergyRow, error)
	PeakOffpeakDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.CostRow, error)
	AllAppliancesDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.AllAppliancesRow, error)
}

// Snapshot is the result of one successful load.
type Snapshot struct {
	Generation uint64
	Selection  types.Selection
	Live       []types.LiveReading
	Daily      []types.DailyEnergyRow
	Cost       []types.CostRow
	Appliances []types.AllAppliancesRow
}

// Controller is the selection state machine of one session. Every change to
// the selection starts a new load tagged with a generation number and only
// the load for the latest generation is ever applied. It is safe for
// concurrent use.
type Controller struct {
	fetcher  Fetcher
	now      func() time.Time
	onLoaded func(ctx context.Context, snap Snapshot)

	mu         sync.Mutex
	homes      []types.Home
	selection  types.Selection
	generation uint64
	loading    bool
	err        error
	snapshot   *Snapshot

	wg sync.WaitGroup
}

// New returns a Controller with the default range ending today and no home
// selected.
func New(fetcher Fetcher) *Controller {
	c := &Controller{
		fetcher: fetcher,
		now:     time.Now,
	}
	c.selection.Range = c.defaultRange()
	return c
}

func (c *Controller) defaultRange() types.DateRange {
	return types.LastNDays(c.now(), DefaultRangeDays)
}

// OnLoaded registers fn to be called with every applied snapshot.
func (c *Controller) OnLoaded(fn func(ctx context.Context, snap Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLoaded = fn
}

// Homes returns the known homes.
func (c *Controller) Homes() []types.Home {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.homes)
}

// Selection returns the current selection.
func (c *Controller) Selection() types.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Generation returns the latest issued generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// LoadHomes fetches the home list and applies it with SetHomes.
func (c *Controller) LoadHomes(ctx context.Context) ([]types.Home, error) {
	homes, err := c.fetcher.Homes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load homes: %w", err)
	}
	c.SetHomes(ctx, homes)
	return homes, nil
}

// SetHomes replaces the home list. The first home is selected when nothing
// is selected yet or the selected home is no longer listed.
func (c *Controller) SetHomes(ctx context.Context, homes []types.Home) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.homes = slices.Clone(homes)
	if c.selection.HomeID != "" && c.hasHomeLocked(c.selection.HomeID) {
		return
	}
	next := ""
	if len(c.homes) > 0 {
		next = c.homes[0].HomeID
	}
	if next == c.selection.HomeID {
		return
	}
	c.selection.HomeID = next
	c.startLocked(ctx)
}

func (c *Controller) hasHomeLocked(homeID string) bool {
	return slices.ContainsFunc(c.homes, func(h types.Home) bool {
		return h.HomeID == homeID
	})
}

// SelectHome changes the selected home.
func (c *Controller) SelectHome(ctx context.Context, homeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasHomeLocked(homeID) {
		return fmt.Errorf("%w: %s", ErrUnknownHome, homeID)
	}
	if homeID == c.selection.HomeID {
		return nil
	}
	c.selection.HomeID = homeID
	c.startLocked(ctx)
	return nil
}

// SetStart changes the start of the range.
func (c *Controller) SetStart(ctx context.Context, start string) error {
	return c.updateRange(ctx, func(r types.DateRange) types.DateRange {
		r.Start = start
		return r
	})
}

// SetEnd changes the end of the range.
func (c *Controller) SetEnd(ctx context.Context, end string) error {
	return c.updateRange(ctx, func(r types.DateRange) types.DateRange {
		r.End = end
		return r
	})
}

// SetRange changes the whole range. A reversed or unparseable range is
// rejected and the selection is left as it was.
func (c *Controller) SetRange(ctx context.Context, r types.DateRange) error {
	return c.updateRange(ctx, func(types.DateRange) types.DateRange {
		return r
	})
}

// updateRange applies fn to the current range under a single lock so
// concurrent bound changes cannot overwrite each other.
func (c *Controller) updateRange(ctx context.Context, fn func(types.DateRange) types.DateRange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := fn(c.selection.Range)
	if err := r.Validate(); err != nil {
		return err
	}
	if r == c.selection.Range {
		return nil
	}
	c.selection.Range = r
	c.startLocked(ctx)
	return nil
}

// SetSelection changes the home and range together, issuing at most one load.
func (c *Controller) SetSelection(ctx context.Context, sel types.Selection) error {
	if err := sel.Range.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasHomeLocked(sel.HomeID) {
		return fmt.Errorf("%w: %s", ErrUnknownHome, sel.HomeID)
	}
	if sel == c.selection {
		return nil
	}
	c.selection = sel
	c.startLocked(ctx)
	return nil
}

// Refresh reloads the current selection.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked(ctx)
}

// Reset forgets everything loaded so far. Loads still in flight are
// discarded when they finish.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.homes = nil
	c.selection = types.Selection{Range: c.defaultRange()}
	c.loading = false
	c.err = nil
	c.snapshot = nil
	log.Ctx(ctx).DebugContext(ctx, "dashboard reset", slog.Uint64("generation", c.generation))
}

// Wait blocks until every started load has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// startLocked invalidates the current data and starts a load for the
// current selection. c.mu must be held.
func (c *Controller) startLocked(ctx context.Context) {
	c.generation++
	c.snapshot = nil
	c.err = nil
	if c.selection.HomeID == "" {
		c.loading = false
		return
	}
	c.loading = true

	gen := c.generation
	sel := c.selection
	// the load outlives the request that triggered it
	ctx = log.WithAttrs(
		context.WithoutCancel(ctx),
		slog.Uint64("generation", gen),
		slog.String("homeID", sel.HomeID),
	)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.load(ctx, gen, sel)
	}()
}

func (c *Controller) load(ctx context.Context, gen uint64, sel types.Selection) {
	start := time.Now()
	snap := Snapshot{
		Generation: gen,
		Selection:  sel,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		snap.Live, err = c.fetcher.LiveHome(egCtx, sel.HomeID)
		if err != nil {
			return fmt.Errorf("failed to load live readings: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		snap.Daily, err = c.fetcher.HomeDaily(egCtx, sel.HomeID, sel.Range)
		if err != nil {
			return fmt.Errorf("failed to load daily energy: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		snap.Cost, err = c.fetcher.PeakOffpeakDaily(egCtx, sel.HomeID, sel.Range)
		if err != nil {
			return fmt.Errorf("failed to load peak/off-peak cost: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		snap.Appliances, err = c.fetcher.AllAppliancesDaily(egCtx, sel.HomeID, sel.Range)
		if err != nil {
			return fmt.Errorf("failed to load appliance energy: %w", err)
		}
		return nil
	})
	err := eg.Wait()

	c.mu.Lock()
	if gen != c.generation {
		latest := c.generation
		c.mu.Unlock()
		log.Ctx(ctx).DebugContext(ctx, "discarding stale dashboard load", slog.Uint64("latest", latest))
		return
	}
	c.loading = false
	if err != nil {
		c.err = err
		c.mu.Unlock()
		log.Ctx(ctx).ErrorContext(ctx, "dashboard load failed", slog.Any("error", err))
		return
	}
	c.err = nil
	c.snapshot = &snap
	onLoaded := c.onLoaded
	c.mu.Unlock()

	log.Ctx(ctx).InfoContext(
		ctx,
		"dashboard loaded",
		slog.Int("live", len(snap.Live)),
		slog.Int("daily", len(snap.Daily)),
		slog.Int("cost", len(snap.Cost)),
		slog.Int("appliances", len(snap.Appliances)),
		slog.Duration("took", time.Since(start)),
	)
	if onLoaded != nil {
		onLoaded(ctx, snap)
	}
}
