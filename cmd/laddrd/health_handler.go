// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"encoding/json"
	"net/http"
	"sync"

	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/health"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/reload"
)

// healthReportRequest is what an external checker process (spec §1: health
// probes are out of scope here, only their up/down verdicts matter) POSTs
// to report one probe's outcome.
type healthReportRequest struct {
	VSID      string `json:"vs_id"`
	RSID      string `json:"rs_id"`
	CheckerID string `json:"checker_id"`
	Alive     bool   `json:"alive"`
	Alpha     bool   `json:"alpha"`
}

// healthHandler bridges the HTTP surface to health.Integrator.Update,
// creating a Checker record on its first report rather than requiring one
// to be pre-declared in the HCL config (spec §3 treats Checker as mostly
// opaque to this module).
type healthHandler struct {
	mu          sync.Mutex
	orch        *reload.Orchestrator
	integrator  *health.Integrator
}

func newHealthHandler(orch *reload.Orchestrator, integrator *health.Integrator) *healthHandler {
	return &healthHandler{orch: orch, integrator: integrator}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req healthReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeHandlerError(w, laddrerrors.Wrap(err, laddrerrors.KindInvalid, "health: decode request"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	vs, rs := h.find(req.VSID, req.RSID)
	if vs == nil || rs == nil {
		writeHandlerError(w, laddrerrors.New(laddrerrors.KindNoService, "health: unknown vs/rs"))
		return
	}

	checker := h.findOrCreateChecker(rs, req.CheckerID, req.Alpha)
	h.integrator.Update(vs, rs, checker, req.Alive)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":              "ok",
		"rs_alive":            rs.Alive,
		"num_failed_checkers": rs.NumFailedCheckers,
	})
}

func (h *healthHandler) find(vsID, rsID string) (*laddrtype.VirtualServer, *laddrtype.RealServer) {
	for _, vs := range h.orch.Current() {
		if vs.ID != vsID {
			continue
		}
		for _, rs := range vs.RS {
			if rs.ID == rsID {
				return vs, rs
			}
		}
		if vs.SorryRS != nil && vs.SorryRS.ID == rsID {
			return vs, vs.SorryRS
		}
	}
	return nil, nil
}

func (h *healthHandler) findOrCreateChecker(rs *laddrtype.RealServer, id string, alpha bool) *laddrtype.Checker {
	for _, c := range rs.Checkers {
		if c.ID == id {
			return c
		}
	}
	c := &laddrtype.Checker{ID: id, Alpha: alpha}
	rs.Checkers = append(rs.Checkers, c)
	return c
}

func writeHandlerError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
