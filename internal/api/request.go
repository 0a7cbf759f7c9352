package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/swannekim/FURIOUS/internal/fault"
	"github.com/swannekim/FURIOUS/internal/risk"
	"github.com/swannekim/FURIOUS/internal/track"
)

const (
	defaultTimeLength = 30
	maxBodyBytes      = 1 << 20
)

// computeRequest is the JSON body of the POST computation routes.
type computeRequest struct {
	ShipType      string `json:"shipType"`
	ShipID        any    `json:"shipId"`
	Datetime      string `json:"datetime"`
	TimeLength    int    `json:"timeLength"`
	SelectedTsIDs []any  `json:"selectedTsIds"`
}

// decodeRequest validates the body of r and converts it to a risk.Request.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (risk.Request, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return risk.Request{}, fault.Wrap(fault.InvalidRequest, err, "reading request body")
	}
	if err := s.validator.validate(body); err != nil {
		return risk.Request{}, fault.Wrap(fault.InvalidRequest, err, "request body")
	}

	var cr computeRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&cr); err != nil {
		return risk.Request{}, fault.Wrap(fault.InvalidRequest, err, "decoding request body")
	}

	own, err := track.CanonicalID(cr.ShipID)
	if err != nil {
		return risk.Request{}, fault.Wrap(fault.InvalidRequest, err, "shipId")
	}
	at, err := track.ParseTimestamp(cr.Datetime)
	if err != nil {
		return risk.Request{}, err
	}
	minutes := cr.TimeLength
	if minutes == 0 {
		minutes = defaultTimeLength
	}

	var targets []track.ShipID
	seen := make(map[track.ShipID]bool, len(cr.SelectedTsIDs))
	for i, v := range cr.SelectedTsIDs {
		id, err := track.CanonicalID(v)
		if err != nil {
			return risk.Request{}, fault.Wrap(fault.InvalidRequest, err, "selectedTsIds[%d]", i)
		}
		if !seen[id] {
			seen[id] = true
			targets = append(targets, id)
		}
	}

	return risk.Request{
		Fleet:   cr.ShipType,
		OwnID:   own,
		At:      at,
		Minutes: minutes,
		Targets: targets,
	}, nil
}

// computationResponse is the body of POST /api/v1/computation.
type computationResponse struct {
	VOAreaKm2   float64  `json:"vo_area_km2"`
	VAreaKm2    float64  `json:"v_area_km2"`
	CRI         float64  `json:"cri"`
	TCR         float64  `json:"tcr"`
	TCPAMinutes *float64 `json:"tcpa_minutes"` // null when the vessels never close
	Targets     []string `json:"targets"`
	TCPATarget  string   `json:"tcpa_target"`
	Mode        string   `json:"mode"`
	Missing     []string `json:"missing,omitempty"`
}

func newComputationResponse(a *risk.Assessment) computationResponse {
	resp := computationResponse{
		VOAreaKm2:  round(a.Overlap.VOAreaKm2, 5),
		VAreaKm2:   round(a.Overlap.VAreaKm2, 5),
		CRI:        round(a.CRI, 5),
		TCR:        round(a.Overlap.TCR, 7),
		Targets:    idStrings(a.Targets),
		TCPATarget: string(a.TCPATarget),
		Mode:       string(a.Mode),
		Missing:    idStrings(a.VO.Missing),
	}
	if !math.IsInf(a.TCPAMinutes, 0) && !math.IsNaN(a.TCPAMinutes) {
		tcpa := round(a.TCPAMinutes, 5)
		resp.TCPAMinutes = &tcpa
	}
	return resp
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func idStrings(ids []track.ShipID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.UnknownFleet, fault.OwnShipNotFound, fault.TargetShipNotFound,
		fault.NoTargetShips, fault.NoMatchingTargets:
		return http.StatusNotFound
	case fault.InvalidTimestamp, fault.InvalidRequest, fault.InvalidMode:
		return http.StatusBadRequest
	case fault.EmptyWindow, fault.DegenerateSpeed:
		return http.StatusUnprocessableEntity
	case fault.DataSourceUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorBody returns the kind and message reported to the client. Errors
// without a kind are not described.
func errorBody(err error) (kind, msg string) {
	k := fault.KindOf(err)
	if k == "" {
		return "", "internal error"
	}
	return string(k), fmt.Sprint(err)
}
