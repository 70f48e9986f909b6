package dashboard

import (
	"math"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/wattwise/wattwise/pkg/aggregate"
	"github.com/wattwise/wattwise/pkg/types"
)

// Labels are the KPI figures formatted for display.
type Labels struct {
	CurrentPower string `json:"current_power"`
	TotalEnergy  string `json:"total_energy"`
	TotalCost    string `json:"total_cost"`
}

// Empty reports which charts have no data to draw.
type Empty struct {
	Energy    bool `json:"energy"`
	Cost      bool `json:"cost"`
	Ranking   bool `json:"ranking"`
	Shiftable bool `json:"shiftable"`
	Live      bool `json:"live"`
}

// LiveItem is one live reading with whether the appliance is drawing power.
type LiveItem struct {
	types.LiveReading
	Active bool `json:"active"`
}

// View is everything the dashboard page renders. Chart fields are only set
// when the latest load succeeded.
type View struct {
	Loading   bool               `json:"loading"`
	Error     string             `json:"error,omitempty"`
	Homes     []types.Home       `json:"homes"`
	Selection types.Selection    `json:"selection"`
	Mode      aggregate.ViewMode `json:"view_mode"`
	Filter    string             `json:"appliance_filter"`

	KPIs             *types.KPIs            `json:"kpis,omitempty"`
	Labels           *Labels                `json:"labels,omitempty"`
	Energy           []types.EnergyPoint    `json:"energy,omitempty"`
	Daily            []types.EnergyPoint    `json:"daily,omitempty"`
	Cost             []types.CostPoint      `json:"cost,omitempty"`
	Ranking          []types.ApplianceCost  `json:"ranking,omitempty"`
	Shiftable        []types.ShiftablePoint `json:"shiftable,omitempty"`
	ApplianceOptions []string               `json:"appliance_options,omitempty"`
	Live             []LiveItem             `json:"live,omitempty"`
	ActiveCount      int                    `json:"active_count"`
	Empty            *Empty                 `json:"empty,omitempty"`
}

// Compose builds the view of the last applied load for mode and the
// appliance filter. It does not fetch anything.
func (c *Controller) Compose(mode aggregate.ViewMode, filter string) View {
	c.mu.Lock()
	v := View{
		Loading:   c.loading,
		Homes:     slices.Clone(c.homes),
		Selection: c.selection,
		Mode:      mode,
		Filter:    filter,
	}
	if c.err != nil {
		v.Error = c.err.Error()
	}
	snap := c.snapshot
	c.mu.Unlock()

	if v.Loading || v.Error != "" || snap == nil {
		return v
	}
	return composeSnapshot(v, *snap)
}

func composeSnapshot(v View, snap Snapshot) View {
	if v.Filter == "" {
		v.Filter = aggregate.FilterAll
	}
	kpis := aggregate.Summarize(snap.Live, snap.Daily, snap.Cost)
	v.KPIs = &kpis
	v.Labels = &Labels{
		CurrentPower: FormatPower(kpis.CurrentPowerW),
		TotalEnergy:  FormatEnergy(kpis.TotalEnergyKWH),
		TotalCost:    FormatCost(kpis.TotalCostGBP),
	}
	v.Energy = aggregate.Rollup(snap.Daily, v.Mode)
	v.Daily = aggregate.MergeDaily(snap.Daily)
	v.Cost = aggregate.CostBreakdown(snap.Cost)
	v.Ranking = aggregate.RankAppliances(snap.Appliances)
	v.Shiftable = aggregate.SplitShiftable(snap.Appliances, v.Filter)
	v.ApplianceOptions = aggregate.ApplianceOptions(snap.Appliances)
	for _, r := range aggregate.SortLive(snap.Live) {
		item := LiveItem{LiveReading: r, Active: aggregate.IsActive(r)}
		if item.Active {
			v.ActiveCount++
		}
		v.Live = append(v.Live, item)
	}
	v.Empty = &Empty{
		Energy:    len(v.Energy) == 0,
		Cost:      len(v.Cost) == 0,
		Ranking:   len(v.Ranking) == 0,
		Shiftable: len(v.Shiftable) == 0,
		Live:      len(v.Live) == 0,
	}
	return v
}

// FormatPower formats watts as a whole number with thousands separators.
func FormatPower(w float64) string {
	return humanize.Comma(int64(math.Round(w))) + " W"
}

// FormatEnergy formats kilowatt-hours with one decimal.
func FormatEnergy(kwh float64) string {
	return humanize.FormatFloat("#,###.#", kwh) + " kWh"
}

// FormatCost formats pounds with two decimals.
func FormatCost(gbp float64) string {
	return "£" + humanize.FormatFloat("#,###.##", gbp)
}
