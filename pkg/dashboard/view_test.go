package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattwise/wattwise/pkg/aggregate"
	"github.com/wattwise/wattwise/pkg/types"
)

func TestCompose(t *testing.T) {
	ctx := context.Background()
	c := newTestController(&fakeFetcher{})
	c.SetHomes(ctx, []types.Home{{HomeID: "h1"}})
	c.Wait()

	t.Run("Day", func(t *testing.T) {
		v := c.Compose(aggregate.ViewDay, "")
		assert.Equal(t, aggregate.FilterAll, v.Filter)
		assert.Equal(t, []types.EnergyPoint{
			{Date: "2024-01-01", EnergyKWH: 1, Count: 1},
			{Date: "2024-01-02", EnergyKWH: 1, Count: 1},
		}, v.Energy)
		assert.Equal(t, []types.EnergyPoint{
			{Date: "2024-01-01", EnergyKWH: 1, Count: 1},
			{Date: "2024-01-02", EnergyKWH: 1, Count: 1},
		}, v.Daily)
		assert.Equal(t, []types.CostPoint{{Date: "2024-01-01", Peak: 0.3, OffPeak: 0.1}}, v.Cost)
		assert.Equal(t, []string{"all", "dishwasher_1", "fridge_1"}, v.ApplianceOptions)
		assert.Equal(t, "h1_heater", v.Live[0].ApplianceID)
		assert.True(t, v.Live[0].Active)
		assert.Equal(t, 2, v.ActiveCount)

		require.NotNil(t, v.KPIs)
		assert.InDelta(t, 1.0, v.KPIs.TotalCostGBP, 1e-9)
		assert.InDelta(t, 0.4, v.KPIs.BreakdownCostGBP, 1e-9)

		require.NotNil(t, v.Labels)
		assert.Equal(t, "1,300 W", v.Labels.CurrentPower)
		assert.Equal(t, "2.0 kWh", v.Labels.TotalEnergy)
		assert.Equal(t, "£1.00", v.Labels.TotalCost)

		require.NotNil(t, v.Empty)
		assert.False(t, v.Empty.Energy)
		assert.False(t, v.Empty.Live)
	})

	t.Run("Week", func(t *testing.T) {
		v := c.Compose(aggregate.ViewWeek, "")
		assert.Equal(t, []types.EnergyPoint{{Date: "2024-01-01", EnergyKWH: 2, Count: 2}}, v.Energy)
	})

	t.Run("Shiftable Filter", func(t *testing.T) {
		v := c.Compose(aggregate.ViewDay, aggregate.FilterAll)
		assert.Equal(t, []types.ShiftablePoint{{Date: "2024-01-01", Flexible: 2, Fixed: 3}}, v.Shiftable)

		v = c.Compose(aggregate.ViewDay, "fridge_1")
		assert.Equal(t, "fridge_1", v.Filter)
		assert.Equal(t, []types.ShiftablePoint{{Date: "2024-01-01", Flexible: 0, Fixed: 3}}, v.Shiftable)
	})

	t.Run("Ranking", func(t *testing.T) {
		v := c.Compose(aggregate.ViewDay, "")
		assert.Equal(t, []types.ApplianceCost{
			{ApplianceID: "fridge_1", TotalCost: 2},
			{ApplianceID: "dishwasher_1", TotalCost: 1},
		}, v.Ranking)
	})
}

func TestComposeEmptyData(t *testing.T) {
	v := composeSnapshot(View{Mode: aggregate.ViewMonth}, Snapshot{})
	require.NotNil(t, v.Empty)
	assert.True(t, v.Empty.Energy)
	assert.True(t, v.Empty.Cost)
	assert.True(t, v.Empty.Ranking)
	assert.True(t, v.Empty.Shiftable)
	assert.True(t, v.Empty.Live)
	assert.Equal(t, "0 W", v.Labels.CurrentPower)
}

func TestComposeLiveAndDaily(t *testing.T) {
	snap := Snapshot{
		Live: []types.LiveReading{
			{ApplianceID: "tv_1", PowerW: 3},
			{ApplianceID: "kettle_1", PowerW: 0},
			{ApplianceID: "fridge_1", PowerW: 90},
			{ApplianceID: "router_1", PowerW: 5},
		},
		Daily: []types.DailyEnergyRow{
			{Date: "2024-01-02", EnergyKWH: 1},
			{Date: "2024-01-01", EnergyKWH: 2},
			{Date: "2024-01-01", EnergyKWH: 3},
		},
	}
	v := composeSnapshot(View{Mode: aggregate.ViewDay}, snap)

	// only readings above 5 W count as active
	require.Len(t, v.Live, 4)
	assert.Equal(t, "fridge_1", v.Live[0].ApplianceID)
	assert.True(t, v.Live[0].Active)
	for _, item := range v.Live[1:] {
		assert.False(t, item.Active, item.ApplianceID)
	}
	assert.Equal(t, 1, v.ActiveCount)

	// one point per distinct date, ascending
	assert.Equal(t, []types.EnergyPoint{
		{Date: "2024-01-01", EnergyKWH: 5, Count: 2},
		{Date: "2024-01-02", EnergyKWH: 1, Count: 1},
	}, v.Daily)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1,234 W", FormatPower(1234.4))
	assert.Equal(t, "12.3 kWh", FormatEnergy(12.34))
	assert.Equal(t, "1,234.5 kWh", FormatEnergy(1234.5))
	assert.Equal(t, "£4.56", FormatCost(4.56))
}
