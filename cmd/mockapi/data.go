package main

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/wattwise/wattwise/pkg/types"
)

const (
	peakGBPPerKWH    = 0.35
	offPeakGBPPerKWH = 0.15
	// share of the day's energy drawn between 16:00 and 19:00
	peakShare = 0.3
)

type mockAppliance struct {
	id       string
	kind     string
	dailyKWH float64
	liveW    float64
}

var mockAppliances = []mockAppliance{
	{"fridge_1", "refrigeration", 1.2, 90},
	{"heater_1", "heating", 6.5, 2000},
	{"washing_machine_1", "laundry", 1.1, 0},
	{"dishwasher_1", "kitchen", 1.4, 0},
	{"ev_charger_1", "transport", 7.2, 0},
	{"lighting_1", "lighting", 0.9, 120},
	{"tv_1", "entertainment", 0.6, 65},
}

// generator produces the same synthetic readings for the same home and
// date on every call.
type generator struct {
	now func() time.Time
}

func (g generator) rng(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (g generator) days(r types.DateRange) []string {
	start, err := time.Parse(types.DateLayout, r.Start)
	if err != nil {
		start = g.now().AddDate(0, 0, -30)
	}
	end, err := time.Parse(types.DateLayout, r.End)
	if err != nil {
		end = g.now()
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(types.DateLayout))
	}
	return out
}

func (g generator) applianceKWH(homeID, date string, a mockAppliance) float64 {
	rng := g.rng(homeID, date, a.id)
	d, _ := time.Parse(types.DateLayout, date)
	kwh := a.dailyKWH * (0.7 + rng.Float64()*0.6)
	// more heating in winter
	if a.kind == "heating" {
		kwh *= 1 + math.Cos(float64(d.YearDay())/365*2*math.Pi)
	}
	return round(kwh, 3)
}

func (g generator) allAppliances(homeID string, r types.DateRange) []types.AllAppliancesRow {
	var out []types.AllAppliancesRow
	for _, date := range g.days(r) {
		for _, a := range mockAppliances {
			kwh := g.applianceKWH(homeID, date, a)
			out = append(out, types.AllAppliancesRow{
				Date:        date,
				ApplianceID: a.id,
				EnergyKWH:   types.Number(kwh),
				CostGBP:     types.Number(round(kwh*blendedRate(), 2)),
			})
		}
	}
	return out
}

func (g generator) homeDaily(homeID string, r types.DateRange) []types.DailyEnergyRow {
	var out []types.DailyEnergyRow
	for _, date := range g.days(r) {
		var kwh float64
		for _, a := range mockAppliances {
			kwh += g.applianceKWH(homeID, date, a)
		}
		out = append(out, types.DailyEnergyRow{
			Date:      date,
			EnergyKWH: types.Number(round(kwh, 3)),
			CostGBP:   types.Number(round(kwh*blendedRate(), 2)),
		})
	}
	return out
}

func (g generator) applianceDaily(homeID, applianceID string, r types.DateRange) []types.DailyEnergyRow {
	var out []types.DailyEnergyRow
	for _, a := range mockAppliances {
		if a.id != applianceID {
			continue
		}
		for _, date := range g.days(r) {
			kwh := g.applianceKWH(homeID, date, a)
			out = append(out, types.DailyEnergyRow{
				Date:      date,
				EnergyKWH: types.Number(kwh),
				CostGBP:   types.Number(round(kwh*blendedRate(), 2)),
			})
		}
	}
	return out
}

func (g generator) peakOffpeak(homeID string, r types.DateRange) []types.CostRow {
	var out []types.CostRow
	for _, d := range g.homeDaily(homeID, r) {
		kwh := d.EnergyKWH.Float()
		peak := kwh * peakShare
		off := kwh - peak
		out = append(out,
			types.CostRow{
				Date:      d.Date,
				TOUPeriod: types.TOUPeak,
				EnergyKWH: types.Number(round(peak, 3)),
				CostGBP:   types.Number(round(peak*peakGBPPerKWH, 2)),
			},
			types.CostRow{
				Date:      d.Date,
				TOUPeriod: types.TOUOffPeak,
				EnergyKWH: types.Number(round(off, 3)),
				CostGBP:   types.Number(round(off*offPeakGBPPerKWH, 2)),
			},
		)
	}
	return out
}

func (g generator) live(homeID string) []types.LiveReading {
	now := g.now()
	rng := g.rng(homeID, now.Format(time.RFC3339))
	hour := now.Hour()
	out := make([]types.LiveReading, 0, len(mockAppliances))
	for _, a := range mockAppliances {
		w := a.liveW
		switch a.id {
		case "ev_charger_1":
			if hour < 6 {
				w = 7000
			}
		case "washing_machine_1":
			if hour >= 9 && hour < 11 {
				w = 500
			}
		}
		if w > 0 {
			w *= 0.9 + rng.Float64()*0.2
		}
		out = append(out, types.LiveReading{
			ApplianceID:   a.id,
			ApplianceType: a.kind,
			PowerW:        types.Number(math.Round(w)),
		})
	}
	return out
}

func blendedRate() float64 {
	return peakShare*peakGBPPerKWH + (1-peakShare)*offPeakGBPPerKWH
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
