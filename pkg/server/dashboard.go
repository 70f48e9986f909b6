package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wattwise/wattwise/pkg/aggregate"
	"github.com/wattwise/wattwise/pkg/dashboard"
	"github.com/wattwise/wattwise/pkg/types"
)

type homesResponse struct {
	Homes     []types.Home    `json:"homes"`
	Selection types.Selection `json:"selection"`
}

// ensureHomes loads the home list when the session has none yet, as happens
// after a session is restored from storage. It writes the error response and
// returns false on failure.
func ensureHomes(w http.ResponseWriter, r *http.Request, dash *dashboard.Controller, force bool) ([]types.Home, bool) {
	homes := dash.Homes()
	if len(homes) > 0 && !force {
		return homes, true
	}
	homes, err := dash.LoadHomes(r.Context())
	if err != nil {
		writeAPIError(w, r, err, "failed to load homes")
		return nil, false
	}
	return homes, true
}

func (s *Server) handleHomes(w http.ResponseWriter, r *http.Request) {
	dash := s.getSession(r).dash

	homes, ok := ensureHomes(w, r, dash, r.URL.Query().Get("refresh") == "true")
	if !ok {
		return
	}
	if homes == nil {
		homes = []types.Home{}
	}
	writeJSON(w, homesResponse{
		Homes:     homes,
		Selection: dash.Selection(),
	})
}

type selectionRequest struct {
	HomeID *string `json:"home_id"`
	Start  *string `json:"start"`
	End    *string `json:"end"`
}

type selectionResponse struct {
	Selection  types.Selection `json:"selection"`
	Generation uint64          `json:"generation"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dash := s.getSession(r).dash

	var req selectionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if _, ok := ensureHomes(w, r, dash, false); !ok {
		return
	}

	sel := dash.Selection()
	if req.HomeID != nil {
		sel.HomeID = *req.HomeID
	}
	if req.Start != nil {
		sel.Range.Start = *req.Start
	}
	if req.End != nil {
		sel.Range.End = *req.End
	}
	if err := dash.SetSelection(ctx, sel); err != nil {
		if errors.Is(err, dashboard.ErrUnknownHome) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, selectionResponse{
		Selection:  dash.Selection(),
		Generation: dash.Generation(),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	mode, err := aggregate.ParseViewMode(r.URL.Query().Get("view"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	dash := s.getSession(r).dash
	if _, ok := ensureHomes(w, r, dash, false); !ok {
		return
	}
	writeJSON(w, dash.Compose(mode, r.URL.Query().Get("appliance")))
}

func (s *Server) handleAppliances(w http.ResponseWriter, r *http.Request) {
	appliances, err := s.getSession(r).client.Appliances(r.Context())
	if err != nil {
		writeAPIError(w, r, err, "failed to load appliances")
		return
	}
	if appliances == nil {
		appliances = []types.Appliance{}
	}
	writeJSON(w, appliances)
}

type applianceDailyResponse struct {
	ApplianceID string              `json:"appliance_id"`
	Selection   types.Selection     `json:"selection"`
	Mode        aggregate.ViewMode  `json:"view_mode"`
	Series      []types.EnergyPoint `json:"series"`
}

func (s *Server) handleApplianceDaily(w http.ResponseWriter, r *http.Request) {
	applianceID := r.URL.Query().Get("appliance_id")
	if applianceID == "" {
		writeJSONError(w, "appliance_id is required", http.StatusBadRequest)
		return
	}
	mode, err := aggregate.ParseViewMode(r.URL.Query().Get("view"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	b := s.getSession(r)
	if _, ok := ensureHomes(w, r, b.dash, false); !ok {
		return
	}
	sel := b.dash.Selection()
	rows, err := b.client.ApplianceDaily(r.Context(), sel.HomeID, applianceID, sel.Range)
	if err != nil {
		writeAPIError(w, r, err, "failed to load appliance energy")
		return
	}
	writeJSON(w, applianceDailyResponse{
		ApplianceID: applianceID,
		Selection:   sel,
		Mode:        mode,
		Series:      aggregate.Rollup(rows, mode),
	})
}
