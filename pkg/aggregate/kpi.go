package aggregate

import "github.com/wattwise/wattwise/pkg/types"

// Summarize computes the header figures. Total cost is taken from the daily
// rows; the peak/off-peak total is reported separately as BreakdownCostGBP
// since the API does not guarantee the two agree.
func Summarize(live []types.LiveReading, daily []types.DailyEnergyRow, cost []types.CostRow) types.KPIs {
	var k types.KPIs
	for _, r := range live {
		k.CurrentPowerW += r.PowerW.Float()
	}
	for _, r := range daily {
		k.TotalEnergyKWH += r.EnergyKWH.Float()
		k.TotalCostGBP += r.CostGBP.Float()
	}
	for _, r := range cost {
		k.BreakdownCostGBP += r.CostGBP.Float()
	}
	return k
}
