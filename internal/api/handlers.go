package api

import (
	"context"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/swannekim/FURIOUS/internal/cache"
	"github.com/swannekim/FURIOUS/internal/httputil"
	"github.com/swannekim/FURIOUS/internal/region"
	"github.com/swannekim/FURIOUS/internal/risk"
	"github.com/swannekim/FURIOUS/internal/track"
)

// GET /api/v1/fleets
func (s *Server) handleFleets(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"fleets": s.catalog.Fleets()})
}

// GET /api/v1/fleets/{fleet}/ships
func (s *Server) handleShips(w http.ResponseWriter, r *http.Request) {
	fleet := r.PathValue("fleet")
	ids, err := s.catalog.ListIDs(r.Context(), fleet)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"fleet":    fleet,
		"ship_ids": idStrings(ids),
	})
}

// GET /api/v1/fleets/{fleet}/observations?datetime=2023-06-01T00:00:00
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	fleet := r.PathValue("fleet")

	var (
		obs []track.Observation
		err error
	)
	if v := r.URL.Query().Get("datetime"); v != "" {
		at, perr := track.ParseTimestamp(v)
		if perr != nil {
			s.writeError(w, r, perr)
			return
		}
		obs, err = s.catalog.LoadAt(r.Context(), fleet, at)
	} else {
		var ds *track.Dataset
		ds, err = s.catalog.Snapshot(r.Context(), fleet)
		if ds != nil {
			obs = ds.Observations
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, track.FeatureCollection(obs))
}

// GET /api/v1/cache/stats
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.cache.Stats())
}

// POST /api/v1/domain
func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	req, version, ok := s.begin(w, r)
	if !ok {
		return
	}

	key := cache.NewKey("domain", req.Fleet, req.OwnID, nil, req.At, req.Minutes, version)
	series, _, err := cache.Do(s.cache, key, func() (*region.Series, error) {
		return s.assessor.Regions().DomainSeries(r.Context(), req.Fleet, req.OwnID, req.At, req.Minutes)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, series.FeatureCollection())
}

// POST /api/v1/vo
func (s *Server) handleVO(w http.ResponseWriter, r *http.Request) {
	req, version, ok := s.begin(w, r)
	if !ok {
		return
	}

	targets, err := s.assessor.ResolveTargets(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := cache.NewKey("vo", req.Fleet, req.OwnID, targets, req.At, req.Minutes, version)
	res, _, err := cache.Do(s.cache, key, func() (*region.VOResult, error) {
		return s.assessor.Regions().VO(r.Context(), req.Fleet, targets, req.At, req.Minutes)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fc := res.FeatureCollection()
	if len(res.Missing) > 0 {
		fc.ExtraMembers = geojson.Properties{"missing": idStrings(res.Missing)}
	}
	httputil.WriteJSON(w, http.StatusOK, fc)
}

// POST /api/v1/v
func (s *Server) handleV(w http.ResponseWriter, r *http.Request) {
	req, version, ok := s.begin(w, r)
	if !ok {
		return
	}

	key := cache.NewKey("v", req.Fleet, req.OwnID, nil, req.At, req.Minutes, version)
	res, _, err := cache.Do(s.cache, key, func() (*region.VResult, error) {
		return s.assessor.Regions().V(r.Context(), req.Fleet, req.OwnID, req.At, req.Minutes)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res.Feature())
}

// POST /api/v1/computation
func (s *Server) handleComputation(w http.ResponseWriter, r *http.Request) {
	req, version, ok := s.begin(w, r)
	if !ok {
		return
	}

	key := cache.NewKey("computation", req.Fleet, req.OwnID, req.Targets, req.At, req.Minutes, version)
	a, cached, err := cache.Do(s.cache, key, func() (*risk.Assessment, error) {
		return s.assessor.Assess(r.Context(), req)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cached {
		s.logger.Debug("assessment served from cache", "component", "api", "ship_id", req.OwnID)
	}
	httputil.WriteJSON(w, http.StatusOK, newComputationResponse(a))
}

// begin decodes the request body and resolves the fleet's dataset version.
// On failure it writes the error response and returns ok == false.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (risk.Request, int64, bool) {
	req, err := s.decodeRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return risk.Request{}, 0, false
	}
	version, err := s.datasetVersion(r.Context(), req.Fleet)
	if err != nil {
		s.writeError(w, r, err)
		return risk.Request{}, 0, false
	}
	return req, version, true
}

func (s *Server) datasetVersion(ctx context.Context, fleet string) (int64, error) {
	ds, err := s.catalog.Snapshot(ctx, fleet)
	if err != nil {
		return 0, err
	}
	if ds.ModTime.IsZero() {
		return ds.LoadedAt.UnixNano(), nil
	}
	return ds.ModTime.UnixNano(), nil
}
