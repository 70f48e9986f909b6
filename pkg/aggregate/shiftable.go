package aggregate

import (
	"sort"
	"strings"

	"github.com/wattwise/wattwise/pkg/types"
)

// FilterAll disables the appliance filter of SplitShiftable.
const FilterAll = "all"

// flexiblePatterns identify appliances whose running time could be moved.
var flexiblePatterns = []string{"heat", "wash", "dry", "dish", "charger"}

// IsFlexible reports whether an appliance counts as shiftable load.
func IsFlexible(applianceID string) bool {
	id := strings.ToLower(applianceID)
	for _, p := range flexiblePatterns {
		if strings.Contains(id, p) {
			return true
		}
	}
	return false
}

// SplitShiftable sums energy per date into flexible and fixed load. When
// filter is neither empty nor FilterAll only rows of that exact appliance
// are counted.
func SplitShiftable(rows []types.AllAppliancesRow, filter string) []types.ShiftablePoint {
	byDate := make(map[string]*types.ShiftablePoint)
	for _, r := range rows {
		if filter != "" && filter != FilterAll && r.ApplianceID != filter {
			continue
		}
		p, ok := byDate[r.Date]
		if !ok {
			p = &types.ShiftablePoint{Date: r.Date}
			byDate[r.Date] = p
		}
		if IsFlexible(r.ApplianceID) {
			p.Flexible += r.EnergyKWH.Float()
		} else {
			p.Fixed += r.EnergyKWH.Float()
		}
	}

	out := make([]types.ShiftablePoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// ApplianceOptions lists the choices for the shiftable filter: FilterAll
// followed by each appliance in first-seen order.
func ApplianceOptions(rows []types.AllAppliancesRow) []string {
	seen := make(map[string]bool)
	out := []string{FilterAll}
	for _, r := range rows {
		if seen[r.ApplianceID] {
			continue
		}
		seen[r.ApplianceID] = true
		out = append(out, r.ApplianceID)
	}
	return out
}
