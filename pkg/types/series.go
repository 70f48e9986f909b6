package types

// EnergyPoint is one bucket of an energy series. Date is the bucket key: the
// day itself, the Monday starting the week or the first of the month.
type EnergyPoint struct {
	Date      string  `json:"date"`
	EnergyKWH float64 `json:"energy_kwh"`
	Count     int     `json:"count"`
}

// CostPoint is one day of peak/off-peak cost.
type CostPoint struct {
	Date    string  `json:"date"`
	Peak    float64 `json:"peak"`
	OffPeak float64 `json:"offpeak"`
}

// ApplianceCost is one appliance's cost over the whole queried range.
type ApplianceCost struct {
	ApplianceID string  `json:"appliance_id"`
	TotalCost   float64 `json:"total_cost"`
}

// ShiftablePoint is one day of energy split into flexible and fixed load.
type ShiftablePoint struct {
	Date     string  `json:"date"`
	Flexible float64 `json:"flexible"`
	Fixed    float64 `json:"fixed"`
}

// KPIs are the header summary figures.
type KPIs struct {
	CurrentPowerW  float64 `json:"current_power_w"`
	TotalEnergyKWH float64 `json:"total_energy_kwh"`
	TotalCostGBP   float64 `json:"total_cost_gbp"`
	// BreakdownCostGBP is the total from the peak/off-peak rows. It is kept
	// next to TotalCostGBP because the two sources are not guaranteed to agree.
	BreakdownCostGBP float64 `json:"breakdown_cost_gbp"`
}
