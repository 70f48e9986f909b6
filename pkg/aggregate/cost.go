package aggregate

import (
	"slices"
	"sort"

	"github.com/wattwise/wattwise/pkg/types"
)

// maxRanked is how many appliances the cost ranking keeps.
const maxRanked = 6

// CostBreakdown sums cost per date separately for peak and off-peak rows.
// Rows tagged with anything else count towards neither.
func CostBreakdown(rows []types.CostRow) []types.CostPoint {
	byDate := make(map[string]*types.CostPoint)
	for _, r := range rows {
		p, ok := byDate[r.Date]
		if !ok {
			p = &types.CostPoint{Date: r.Date}
			byDate[r.Date] = p
		}
		switch r.TOUPeriod {
		case types.TOUPeak:
			p.Peak += r.CostGBP.Float()
		case types.TOUOffPeak:
			p.OffPeak += r.CostGBP.Float()
		}
	}

	out := make([]types.CostPoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// ApplianceTotals sums cost per appliance across all rows, in the order each
// appliance is first seen.
func ApplianceTotals(rows []types.AllAppliancesRow) []types.ApplianceCost {
	index := make(map[string]int)
	var out []types.ApplianceCost
	for _, r := range rows {
		i, ok := index[r.ApplianceID]
		if !ok {
			i = len(out)
			index[r.ApplianceID] = i
			out = append(out, types.ApplianceCost{ApplianceID: r.ApplianceID})
		}
		out[i].TotalCost += r.CostGBP.Float()
	}
	return out
}

// RankAppliances returns the most expensive appliances, highest first, at
// most six of them. Ties keep first-seen order.
func RankAppliances(rows []types.AllAppliancesRow) []types.ApplianceCost {
	totals := ApplianceTotals(rows)
	slices.SortStableFunc(totals, func(a, b types.ApplianceCost) int {
		switch {
		case a.TotalCost > b.TotalCost:
			return -1
		case a.TotalCost < b.TotalCost:
			return 1
		}
		return 0
	})
	if len(totals) > maxRanked {
		totals = totals[:maxRanked]
	}
	if totals == nil {
		return []types.ApplianceCost{}
	}
	return totals
}
