package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattwise/wattwise/pkg/types"
)

func TestSummarize(t *testing.T) {
	live := []types.LiveReading{{PowerW: 100}, {PowerW: 250.5}}
	daily := []types.DailyEnergyRow{
		{Date: "2024-01-01", EnergyKWH: 10, CostGBP: 2.5},
		{Date: "2024-01-02", EnergyKWH: 5, CostGBP: 1.25},
	}
	cost := []types.CostRow{
		{Date: "2024-01-01", TOUPeriod: types.TOUPeak, CostGBP: 2},
		{Date: "2024-01-01", TOUPeriod: types.TOUOffPeak, CostGBP: 1},
	}

	k := Summarize(live, daily, cost)
	assert.Equal(t, 350.5, k.CurrentPowerW)
	assert.Equal(t, 15.0, k.TotalEnergyKWH)
	// the headline cost comes from the daily rows; the two sources disagree
	// here on purpose so a change of source shows up
	assert.Equal(t, 3.75, k.TotalCostGBP)
	assert.Equal(t, 3.0, k.BreakdownCostGBP)

	assert.Equal(t, types.KPIs{}, Summarize(nil, nil, nil))
}

func TestSummarizeNonNumeric(t *testing.T) {
	var daily []types.DailyEnergyRow
	require.NoError(t, json.Unmarshal([]byte(`[
		{"date":"2024-01-01","energy_kwh":"n/a","cost_gbp":null},
		{"date":"2024-01-02","energy_kwh":"2.5","cost_gbp":1}
	]`), &daily))
	var live []types.LiveReading
	require.NoError(t, json.Unmarshal([]byte(`[{"appliance_id":"a","power_w":"oops"},{"appliance_id":"b","power_w":40}]`), &live))

	k := Summarize(live, daily, nil)
	assert.Equal(t, 40.0, k.CurrentPowerW)
	assert.Equal(t, 2.5, k.TotalEnergyKWH)
	assert.Equal(t, 1.0, k.TotalCostGBP)
}
