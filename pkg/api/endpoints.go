package api

import (
	"context"

	"github.com/wattwise/wattwise/pkg/types"
)

// LoginResult is the body of a successful login.
type LoginResult = types.LoginResult

// Homes lists the homes visible to the session.
func (c *Client) Homes(ctx context.Context) ([]types.Home, error) {
	var homes types.HomeList
	if err := c.Get(ctx, "/api/v1/homes", nil, &homes); err != nil {
		return nil, err
	}
	return homes, nil
}

// MyHome returns the home of the logged in user.
func (c *Client) MyHome(ctx context.Context) ([]types.Home, error) {
	var homes types.HomeList
	if err := c.Get(ctx, "/api/v1/me/home", nil, &homes); err != nil {
		return nil, err
	}
	return homes, nil
}

// Appliances lists the appliance descriptors.
func (c *Client) Appliances(ctx context.Context) ([]types.Appliance, error) {
	var out []types.Appliance
	if err := c.Get(ctx, "/api/v1/appliances", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LiveHome returns the latest power reading for each appliance.
func (c *Client) LiveHome(ctx context.Context, homeID string) ([]types.LiveReading, error) {
	var out []types.LiveReading
	if err := c.Get(ctx, "/api/v1/live/home", Params{"home_id": homeID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HomeDaily returns whole-home daily energy for r.
func (c *Client) HomeDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.DailyEnergyRow, error) {
	var out []types.DailyEnergyRow
	if err := c.Get(ctx, "/api/v1/timeseries/home-daily", rangeParams(homeID, r), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplianceDaily returns daily energy of a single appliance for r.
func (c *Client) ApplianceDaily(ctx context.Context, homeID, applianceID string, r types.DateRange) ([]types.DailyEnergyRow, error) {
	p := rangeParams(homeID, r)
	p["appliance_id"] = applianceID
	var out []types.DailyEnergyRow
	if err := c.Get(ctx, "/api/v1/timeseries/appliance-daily", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllAppliancesDaily returns daily energy of every appliance for r.
func (c *Client) AllAppliancesDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.AllAppliancesRow, error) {
	var out []types.AllAppliancesRow
	if err := c.Get(ctx, "/api/v1/timeseries/all-appliances-daily", rangeParams(homeID, r), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PeakOffpeakDaily returns the daily cost split by time-of-use period for r.
func (c *Client) PeakOffpeakDaily(ctx context.Context, homeID string, r types.DateRange) ([]types.CostRow, error) {
	var out []types.CostRow
	if err := c.Get(ctx, "/api/v1/cost/peak-offpeak-daily", rangeParams(homeID, r), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func rangeParams(homeID string, r types.DateRange) Params {
	return Params{
		"home_id": homeID,
		"start":   r.Start,
		"end":     r.End,
	}
}
