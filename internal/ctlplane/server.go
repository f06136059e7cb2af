// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ctlplane

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
)

// Server is the privileged-operation HTTP endpoint for laddrctl: it
// resolves a request's service selector against Registry, then drives the
// selected VS's laddr.Pool directly (spec §6).
type Server struct {
	registry Registry
	log      *logging.Logger
	router   *mux.Router
	http     *http.Server
}

// New builds a Server bound to addr, routing requests through registry.
func New(registry Registry, addr string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	s := &Server{registry: registry, log: log.WithComponent("ctlplane"), router: mux.NewRouter()}
	s.setupRoutes()
	s.http = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Mux exposes the underlying router so the daemon can mount additional
// routes (e.g. /metrics) alongside the LADDR_* operations without this
// package needing to know about Prometheus.
func (s *Server) Mux() *mux.Router { return s.router }

func (s *Server) ListenAndServe() error { return s.http.ListenAndServe() }

func (s *Server) Close() error { return s.http.Close() }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/laddr", s.handleAdd).Methods(http.MethodPost)
	api.HandleFunc("/laddr", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/laddr/flush", s.handleFlush).Methods(http.MethodPost)
	api.HandleFunc("/laddr", s.handleGetAll).Methods(http.MethodGet)
}

// AddRequest is the body of LADDR_ADD (spec §6).
type AddRequest struct {
	Selector ServiceSelector `json:"selector"`
	AFLaddr  string          `json:"af_laddr"`
	Laddr    string          `json:"laddr"`
	IfName   string          `json:"ifname"`
}

// DeleteRequest is the body of LADDR_DEL.
type DeleteRequest struct {
	Selector ServiceSelector `json:"selector"`
	AFLaddr  string          `json:"af_laddr"`
	Laddr    string          `json:"laddr"`
}

// LaddrRow is one entry of a LADDR_GETALL response.
type LaddrRow struct {
	AF           string `json:"af"`
	Addr         string `json:"addr"`
	NPortConflict int   `json:"nport_conflict"`
	NConns       int64  `json:"nconns"`
}

// GetAllResponse echoes the request selector alongside the laddr rows.
type GetAllResponse struct {
	Selector ServiceSelector `json:"selector"`
	NLaddrs  int             `json:"nladdrs"`
	Laddrs   []LaddrRow      `json:"laddrs"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, laddrerrors.Wrap(err, laddrerrors.KindInvalid, "ctlplane: decode request"))
		return
	}
	svc, ok := s.registry.Resolve(req.Selector)
	if !ok {
		writeError(w, laddrerrors.New(laddrerrors.KindNoService, "ctlplane: no matching service"))
		return
	}
	addr := net.ParseIP(req.Laddr)
	if addr == nil {
		writeError(w, laddrerrors.Errorf(laddrerrors.KindInvalid, "ctlplane: malformed laddr %q", req.Laddr))
		return
	}
	af := parseAF(req.AFLaddr)

	if err := svc.Pool.Add(af, addr, svc.Iface); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, laddrerrors.Wrap(err, laddrerrors.KindInvalid, "ctlplane: decode request"))
		return
	}
	svc, ok := s.registry.Resolve(req.Selector)
	if !ok {
		writeError(w, laddrerrors.New(laddrerrors.KindNoService, "ctlplane: no matching service"))
		return
	}
	addr := net.ParseIP(req.Laddr)
	if addr == nil {
		writeError(w, laddrerrors.Errorf(laddrerrors.KindInvalid, "ctlplane: malformed laddr %q", req.Laddr))
		return
	}
	af := parseAF(req.AFLaddr)

	if err := svc.Pool.Delete(af, addr); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	var sel ServiceSelector
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		writeError(w, laddrerrors.Wrap(err, laddrerrors.KindInvalid, "ctlplane: decode request"))
		return
	}
	svc, ok := s.registry.Resolve(sel)
	if !ok {
		writeError(w, laddrerrors.New(laddrerrors.KindNoService, "ctlplane: no matching service"))
		return
	}
	if err := svc.Pool.Flush(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	var sel ServiceSelector
	sel.VAddr = r.URL.Query().Get("vaddr")
	sel.Proto = r.URL.Query().Get("proto")

	svc, ok := s.registry.Resolve(sel)
	if !ok {
		writeError(w, laddrerrors.New(laddrerrors.KindNoService, "ctlplane: no matching service"))
		return
	}

	rows := make([]LaddrRow, 0)
	for _, snap := range svc.Pool.Enumerate() {
		rows = append(rows, LaddrRow{
			AF:     afString(snap.AF),
			Addr:   snap.Addr.String(),
			NConns: snap.ConnCounts,
		})
	}
	writeOK(w, GetAllResponse{Selector: sel, NLaddrs: len(rows), Laddrs: rows})
}

func parseAF(s string) laddrtype.AddressFamily {
	switch s {
	case "inet6":
		return laddrtype.AFInet6
	default:
		return laddrtype.AFInet
	}
}

func afString(af laddrtype.AddressFamily) string {
	if af == laddrtype.AFInet6 {
		return "inet6"
	}
	return "inet"
}

func writeOK(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForKind(laddrerrors.KindOf(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusForKind maps spec §7's error taxonomy onto HTTP status codes.
func statusForKind(k laddrerrors.Kind) int {
	switch k {
	case laddrerrors.KindInvalid:
		return http.StatusBadRequest
	case laddrerrors.KindNoService, laddrerrors.KindNotFound, laddrerrors.KindNotExist:
		return http.StatusNotFound
	case laddrerrors.KindNotSupported:
		return http.StatusUnprocessableEntity
	case laddrerrors.KindExist:
		return http.StatusConflict
	case laddrerrors.KindBusy:
		return http.StatusConflict
	case laddrerrors.KindExhausted:
		return http.StatusServiceUnavailable
	case laddrerrors.KindOOM:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
