package types

// TOUPeriod is a time-of-use tariff period.
type TOUPeriod string

const (
	TOUPeak    TOUPeriod = "peak"
	TOUOffPeak TOUPeriod = "offpeak"
)

// LiveReading is one appliance's instantaneous power draw.
type LiveReading struct {
	ApplianceID   string `json:"appliance_id"`
	ApplianceType string `json:"appliance_type,omitempty"`
	PowerW        Number `json:"power_w"`
}

// DailyEnergyRow is one day of energy for a home or a single appliance.
type DailyEnergyRow struct {
	Date      string `json:"date"`
	EnergyKWH Number `json:"energy_kwh"`
	CostGBP   Number `json:"cost_gbp"`
}

// AllAppliancesRow is one day of energy for one appliance.
type AllAppliancesRow struct {
	Date        string `json:"date"`
	ApplianceID string `json:"appliance_id"`
	EnergyKWH   Number `json:"energy_kwh"`
	CostGBP     Number `json:"cost_gbp"`
}

// CostRow is one day of one time-of-use period.
type CostRow struct {
	Date      string    `json:"date"`
	TOUPeriod TOUPeriod `json:"tou_period"`
	EnergyKWH Number    `json:"energy_kwh"`
	CostGBP   Number    `json:"cost_gbp"`
}

// LoginResult is the body returned by a successful login.
type LoginResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}
