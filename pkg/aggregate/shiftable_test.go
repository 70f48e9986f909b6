package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wattwise/wattwise/pkg/types"
)

func TestIsFlexible(t *testing.T) {
	tests := map[string]bool{
		"dishwasher_1":    true,
		"Washing_Machine": true,
		"tumble_DRYER":    true,
		"water_heater":    true,
		"ev_charger":      true,
		"fridge_1":        false,
		"tv":              false,
		"":                false,
	}
	for id, want := range tests {
		assert.Equal(t, want, IsFlexible(id), id)
	}
}

func TestSplitShiftable(t *testing.T) {
	t.Run("Dishwasher And Fridge", func(t *testing.T) {
		rows := []types.AllAppliancesRow{
			applianceRow("2024-01-01", "dishwasher_1", 2, 0),
			applianceRow("2024-01-01", "fridge_1", 3, 0),
		}
		assert.Equal(t, []types.ShiftablePoint{
			{Date: "2024-01-01", Flexible: 2, Fixed: 3},
		}, SplitShiftable(rows, FilterAll))
	})

	rows := []types.AllAppliancesRow{
		applianceRow("2024-01-02", "heater", 1, 0),
		applianceRow("2024-01-01", "heater", 2, 0),
		applianceRow("2024-01-01", "tv", 4, 0),
		applianceRow("2024-01-02", "tv", 0.5, 0),
		{Date: "2024-01-02", ApplianceID: "fridge"},
	}

	t.Run("Sorted By Date", func(t *testing.T) {
		assert.Equal(t, []types.ShiftablePoint{
			{Date: "2024-01-01", Flexible: 2, Fixed: 4},
			{Date: "2024-01-02", Flexible: 1, Fixed: 0.5},
		}, SplitShiftable(rows, ""))
	})

	t.Run("Exhaustive And Exclusive", func(t *testing.T) {
		var total float64
		for _, r := range rows {
			total += r.EnergyKWH.Float()
		}
		var sum float64
		for _, p := range SplitShiftable(rows, FilterAll) {
			sum += p.Flexible + p.Fixed
		}
		assert.InDelta(t, total, sum, 1e-9)
	})

	t.Run("Appliance Filter", func(t *testing.T) {
		assert.Equal(t, []types.ShiftablePoint{
			{Date: "2024-01-01", Fixed: 4},
			{Date: "2024-01-02", Fixed: 0.5},
		}, SplitShiftable(rows, "tv"))
	})

	t.Run("Filter Is Exact Match", func(t *testing.T) {
		assert.Empty(t, SplitShiftable(rows, "TV"))
		assert.Empty(t, SplitShiftable(rows, "heat"))
	})
}

func TestApplianceOptions(t *testing.T) {
	rows := []types.AllAppliancesRow{
		applianceRow("2024-01-01", "tv", 1, 0),
		applianceRow("2024-01-01", "heater", 1, 0),
		applianceRow("2024-01-02", "tv", 1, 0),
	}
	assert.Equal(t, []string{"all", "tv", "heater"}, ApplianceOptions(rows))
	assert.Equal(t, []string{"all"}, ApplianceOptions(nil))
}
