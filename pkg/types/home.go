package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for every date exchanged with the API.
const DateLayout = "2006-01-02"

// Home is one monitored dwelling.
type Home struct {
	HomeID   string `json:"home_id"`
	HomeType string `json:"home_type,omitempty"`
}

// Appliance describes one monitored device within a home.
type Appliance struct {
	ApplianceID   string `json:"appliance_id"`
	ApplianceType string `json:"appliance_type,omitempty"`
	HomeID        string `json:"home_id,omitempty"`
}

// HomeList decodes either a single Home object or an array of them, since
// /api/v1/me/home and /api/v1/homes disagree on the shape.
type HomeList []Home

// UnmarshalJSON implements json.Unmarshaler.
func (h *HomeList) UnmarshalJSON(b []byte) error {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			var home Home
			if err := json.Unmarshal(b, &home); err != nil {
				return err
			}
			*h = HomeList{home}
			return nil
		case 'n':
			*h = nil
			return nil
		}
		break
	}
	var homes []Home
	if err := json.Unmarshal(b, &homes); err != nil {
		return err
	}
	*h = homes
	return nil
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LastNDays returns the range of n days ending on the day of now, with start
// n days before end.
func LastNDays(now time.Time, n int) DateRange {
	return DateRange{
		Start: now.AddDate(0, 0, -n).Format(DateLayout),
		End:   now.Format(DateLayout),
	}
}

// Validate checks that both bounds parse and that start is not after end.
func (r DateRange) Validate() error {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", r.Start, err)
	}
	end, err := time.Parse(DateLayout, r.End)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", r.End, err)
	}
	if end.Before(start) {
		return errors.New("start date must not be after end date")
	}
	return nil
}

// Selection is the home and range the dashboard is currently showing.
type Selection struct {
	HomeID string    `json:"home_id"`
	Range  DateRange `json:"range"`
}
