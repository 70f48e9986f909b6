package aggregate

import (
	"slices"

	"github.com/wattwise/wattwise/pkg/types"
)

// activeThresholdW is the draw above which an appliance is shown as running.
const activeThresholdW = 5

// SortLive returns a copy of readings ordered by power, highest first.
func SortLive(readings []types.LiveReading) []types.LiveReading {
	out := slices.Clone(readings)
	if out == nil {
		return []types.LiveReading{}
	}
	slices.SortStableFunc(out, func(a, b types.LiveReading) int {
		switch {
		case a.PowerW > b.PowerW:
			return -1
		case a.PowerW < b.PowerW:
			return 1
		}
		return 0
	})
	return out
}

// IsActive reports whether a reading is above standby draw.
func IsActive(r types.LiveReading) bool {
	return r.PowerW.Float() > activeThresholdW
}
