package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattwise/wattwise/pkg/aggregate"
	"github.com/wattwise/wattwise/pkg/types"
)

type fetchCall struct {
	name   string
	homeID string
	rng    types.DateRange
}

// fakeFetcher returns rows derived from the home id. A home with a gate
// blocks every data call until the gate is closed.
type fakeFetcher struct {
	mu    sync.Mutex
	homes []types.Home
	gates map[string]chan struct{}
	fail  map[string]error
	calls []fetchCall
}

func (f *fakeFetcher) record(name, homeID string, r types.DateRange) error {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{name, homeID, r})
	gate := f.gates[homeID]
	err := f.fail[name]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func (f *fakeFetcher) Homes(ctx context.Context) ([]types.Home, error) {
	if err := f.record("homes", "", types.DateRange{}); err != nil {
		return nil, err
	}
	return f.homes, nil
}

func (f *fakeFetcher) LiveHome(ctx context.Context, homeID string) ([]types.LiveReading, error) {
	if err := f.record("live", homeID, types.DateRange{}); err != nil {
		return nil, err
	}
	return []types.LiveReading{
		{ApplianceID: homeID + "_fridge", PowerW: 100},
		{ApplianceID: homeID + "_heater", PowerW: 1200},
	}, nil
}

func (f *fakeFetcher) HomeDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.DailyEnergyRow, error) {
	if err := f.record("daily", homeID, r); err != nil {
		return nil, err
	}
	energy := types.Number(1)
	if homeID == "h2" {
		energy = 2
	}
	return []types.DailyEnergyRow{
		{Date: "2024-01-01", EnergyKWH: energy, CostGBP: 0.5},
		{Date: "2024-01-02", EnergyKWH: energy, CostGBP: 0.5},
	}, nil
}

func (f *fakeFetcher) PeakOffpeakDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.CostRow, error) {
	if err := f.record("cost", homeID, r); err != nil {
		return nil, err
	}
	return []types.CostRow{
		{Date: "2024-01-01", TOUPeriod: types.TOUPeak, CostGBP: 0.3},
		{Date: "2024-01-01", TOUPeriod: types.TOUOffPeak, CostGBP: 0.1},
	}, nil
}

func (f *fakeFetcher) AllAppliancesDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.AllAppliancesRow, error) {
	if err := f.record("appliances", homeID, r); err != nil {
		return nil, err
	}
	return []types.AllAppliancesRow{
		{Date: "2024-01-01", ApplianceID: "dishwasher_1", EnergyKWH: 2, CostGBP: 1},
		{Date: "2024-01-01", ApplianceID: "fridge_1", EnergyKWH: 3, CostGBP: 2},
	}, nil
}

var testNow = time.Date(2024, 3, 31, 15, 4, 5, 0, time.UTC)

func newTestController(f Fetcher) *Controller {
	c := New(f)
	c.now = func() time.Time { return testNow }
	c.selection.Range = c.defaultRange()
	return c
}

func dataCalls(calls []fetchCall) []fetchCall {
	var out []fetchCall
	for _, c := range calls {
		if c.name != "homes" {
			out = append(out, c)
		}
	}
	return out
}

func TestController(t *testing.T) {
	ctx := context.Background()

	t.Run("Default Range", func(t *testing.T) {
		c := newTestController(&fakeFetcher{})
		assert.Equal(t, types.DateRange{Start: "2024-03-01", End: "2024-03-31"}, c.Selection().Range)
		assert.Empty(t, c.Selection().HomeID)

		v := c.Compose(aggregate.ViewDay, "")
		assert.False(t, v.Loading)
		assert.Nil(t, v.KPIs)
	})

	t.Run("First Home Becomes Default And Loads", func(t *testing.T) {
		f := &fakeFetcher{homes: []types.Home{{HomeID: "h1", HomeType: "flat"}}}
		c := newTestController(f)

		homes, err := c.LoadHomes(ctx)
		require.NoError(t, err)
		assert.Len(t, homes, 1)
		assert.Equal(t, "h1", c.Selection().HomeID)
		c.Wait()

		want := types.DateRange{Start: "2024-03-01", End: "2024-03-31"}
		assert.ElementsMatch(t, []fetchCall{
			{"live", "h1", types.DateRange{}},
			{"daily", "h1", want},
			{"cost", "h1", want},
			{"appliances", "h1", want},
		}, dataCalls(f.Calls()))

		v := c.Compose(aggregate.ViewDay, "")
		assert.False(t, v.Loading)
		assert.Empty(t, v.Error)
		require.NotNil(t, v.KPIs)
		assert.Equal(t, 1300.0, v.KPIs.CurrentPowerW)
		assert.InDelta(t, 2.0, v.KPIs.TotalEnergyKWH, 1e-9)
	})

	t.Run("Empty Home List", func(t *testing.T) {
		f := &fakeFetcher{}
		c := newTestController(f)
		_, err := c.LoadHomes(ctx)
		require.NoError(t, err)
		c.Wait()
		assert.Empty(t, c.Selection().HomeID)
		assert.Empty(t, dataCalls(f.Calls()))
	})

	t.Run("Home List Error", func(t *testing.T) {
		f := &fakeFetcher{fail: map[string]error{"homes": errors.New("boom")}}
		c := newTestController(f)
		_, err := c.LoadHomes(ctx)
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("Keeps Selected Home When Still Listed", func(t *testing.T) {
		f := &fakeFetcher{}
		c := newTestController(f)
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}, {HomeID: "h2"}})
		require.NoError(t, c.SelectHome(ctx, "h2"))
		c.Wait()
		gen := c.Generation()

		c.SetHomes(ctx, []types.Home{{HomeID: "h3"}, {HomeID: "h2"}})
		assert.Equal(t, "h2", c.Selection().HomeID)
		assert.Equal(t, gen, c.Generation())

		c.SetHomes(ctx, []types.Home{{HomeID: "h3"}})
		assert.Equal(t, "h3", c.Selection().HomeID)
		assert.Equal(t, gen+1, c.Generation())
		c.Wait()
	})

	t.Run("Unknown Home", func(t *testing.T) {
		c := newTestController(&fakeFetcher{})
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})
		c.Wait()
		assert.ErrorIs(t, c.SelectHome(ctx, "nope"), ErrUnknownHome)
		assert.Equal(t, "h1", c.Selection().HomeID)
	})

	t.Run("No-op Changes Issue No Load", func(t *testing.T) {
		f := &fakeFetcher{}
		c := newTestController(f)
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})
		c.Wait()
		gen := c.Generation()
		n := len(f.Calls())

		require.NoError(t, c.SelectHome(ctx, "h1"))
		require.NoError(t, c.SetRange(ctx, c.Selection().Range))
		require.NoError(t, c.SetStart(ctx, "2024-03-01"))
		require.NoError(t, c.SetEnd(ctx, "2024-03-31"))
		c.Wait()

		assert.Equal(t, gen, c.Generation())
		assert.Len(t, f.Calls(), n)
	})

	t.Run("Range Change Reloads", func(t *testing.T) {
		f := &fakeFetcher{}
		c := newTestController(f)
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})
		c.Wait()

		require.NoError(t, c.SetStart(ctx, "2024-02-01"))
		c.Wait()
		calls := dataCalls(f.Calls())
		last := calls[len(calls)-1]
		assert.Equal(t, "2024-02-01", last.rng.Start)
		assert.Equal(t, "2024-03-31", c.Selection().Range.End)
	})

	t.Run("Reversed Range Rejected", func(t *testing.T) {
		c := newTestController(&fakeFetcher{})
		before := c.Selection()
		assert.Error(t, c.SetStart(ctx, "2024-04-10"))
		assert.Error(t, c.SetEnd(ctx, "not-a-date"))
		assert.Equal(t, before, c.Selection())
	})

	t.Run("Batch Fails Together", func(t *testing.T) {
		f := &fakeFetcher{fail: map[string]error{"cost": errors.New("cost exploded")}}
		c := newTestController(f)
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})
		c.Wait()

		v := c.Compose(aggregate.ViewDay, "")
		assert.False(t, v.Loading)
		assert.Contains(t, v.Error, "cost exploded")
		assert.Nil(t, v.KPIs)
		assert.Nil(t, v.Energy)
		assert.Nil(t, v.Live)
		assert.Nil(t, v.Ranking)
	})

	t.Run("Stale Results Are Dropped", func(t *testing.T) {
		gate := make(chan struct{})
		f := &fakeFetcher{gates: map[string]chan struct{}{"h1": gate}}
		c := newTestController(f)

		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}, {HomeID: "h2"}})
		assert.True(t, c.Compose(aggregate.ViewDay, "").Loading)

		require.NoError(t, c.SelectHome(ctx, "h2"))
		assert.Eventually(t, func() bool {
			return !c.Compose(aggregate.ViewDay, "").Loading
		}, time.Second, time.Millisecond)

		// Without a tag every batch simply overwrote the view state when it
		// returned, so the h1 batch issued first but finishing last would
		// replace the h2 data the user asked for afterwards. Each batch now
		// carries the generation it was issued under and is discarded unless
		// that generation is still the latest.
		close(gate)
		c.Wait()

		v := c.Compose(aggregate.ViewDay, "")
		assert.Equal(t, "h2", v.Selection.HomeID)
		require.NotNil(t, v.KPIs)
		assert.InDelta(t, 4.0, v.KPIs.TotalEnergyKWH, 1e-9)
		require.NotEmpty(t, v.Live)
		assert.Equal(t, "h2_heater", v.Live[0].ApplianceID)
	})

	t.Run("Loading Hides Charts", func(t *testing.T) {
		gate := make(chan struct{})
		f := &fakeFetcher{gates: map[string]chan struct{}{"h1": gate}}
		c := newTestController(f)
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})

		v := c.Compose(aggregate.ViewDay, "")
		assert.True(t, v.Loading)
		assert.Nil(t, v.KPIs)
		assert.Nil(t, v.Energy)

		close(gate)
		c.Wait()
		assert.NotNil(t, c.Compose(aggregate.ViewDay, "").KPIs)
	})

	t.Run("Reset Discards In-flight Load", func(t *testing.T) {
		gate := make(chan struct{})
		f := &fakeFetcher{gates: map[string]chan struct{}{"h1": gate}}
		c := newTestController(f)
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})

		c.Reset(ctx)
		close(gate)
		c.Wait()

		v := c.Compose(aggregate.ViewDay, "")
		assert.False(t, v.Loading)
		assert.Nil(t, v.KPIs)
		assert.Empty(t, v.Homes)
		assert.Empty(t, v.Selection.HomeID)
	})

	t.Run("OnLoaded", func(t *testing.T) {
		f := &fakeFetcher{}
		c := newTestController(f)
		var got []Snapshot
		c.OnLoaded(func(ctx context.Context, snap Snapshot) {
			got = append(got, snap)
		})
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})
		c.Wait()
		require.Len(t, got, 1)
		assert.Equal(t, "h1", got[0].Selection.HomeID)
		assert.Equal(t, c.Generation(), got[0].Generation)
	})

	t.Run("Refresh", func(t *testing.T) {
		f := &fakeFetcher{}
		c := newTestController(f)
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})
		c.Wait()
		gen := c.Generation()
		c.Refresh(ctx)
		c.Wait()
		assert.Equal(t, gen+1, c.Generation())
		assert.Len(t, dataCalls(f.Calls()), 8)
	})
}

func TestSetSelection(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{}
	c := newTestController(f)
	c.SetHomes(ctx, []types.Home{{HomeID: "h1"}, {HomeID: "h2"}})
	c.Wait()
	gen := c.Generation()

	next := types.Selection{HomeID: "h2", Range: types.DateRange{Start: "2024-01-01", End: "2024-01-31"}}
	require.NoError(t, c.SetSelection(ctx, next))
	c.Wait()
	assert.Equal(t, gen+1, c.Generation())
	assert.Equal(t, next, c.Selection())

	require.NoError(t, c.SetSelection(ctx, next))
	assert.Equal(t, gen+1, c.Generation())

	err := c.SetSelection(ctx, types.Selection{HomeID: "h9", Range: next.Range})
	assert.ErrorIs(t, err, ErrUnknownHome)
	err = c.SetSelection(ctx, types.Selection{HomeID: "h1", Range: types.DateRange{Start: "2024-02-01", End: "2024-01-01"}})
	assert.Error(t, err)
	assert.Equal(t, next, c.Selection())
}

func TestConcurrentBoundChanges(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		c := newTestController(&fakeFetcher{})
		c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.SetStart(ctx, "2024-02-01"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, c.SetEnd(ctx, "2024-03-15"))
		}()
		wg.Wait()
		c.Wait()

		assert.Equal(t, types.DateRange{Start: "2024-02-01", End: "2024-03-15"}, c.Selection().Range)
	}
}
