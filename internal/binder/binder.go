// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package binder implements the bind(conn, svc)/unbind(conn) contract of
// spec §4.3, component C4: selecting a laddr, reserving a port against the
// external pool, stamping the connection, and rolling back on any failure.
package binder

import (
	"net"

	laddrerrors "grimm.is/laddrd/internal/errors"
	"grimm.is/laddrd/internal/laddr"
	"grimm.is/laddrd/internal/laddrtype"
	"grimm.is/laddrd/internal/logging"
	"grimm.is/laddrd/internal/portpool"
)

// maxTrials bounds the number of distinct laddrs a single Bind call will
// attempt before giving up (spec §4.3).
const maxTrials = 16

// Conn is the mutable connection handle the binder stamps on success. It
// mirrors the "external" fields spec §3 describes rather than owning flow
// state itself.
type Conn struct {
	Template bool

	// Dest is the remote real-server endpoint this flow targets.
	Dest portpool.Endpoint

	Proto laddrtype.Protocol

	// Fields stamped by Bind on success.
	Laddr *laddrtype.LocalAddress
	LPort uint16
	// ReplyDst is the reply-direction tuple's destination: <Laddr.Addr, LPort>.
	// Its source is Dest, which is not stored separately.
	ReplyDst portpool.Endpoint
	Local    *laddrtype.LocalAddress // ownership reference, == Laddr once bound
}

// Service carries the per-VS inputs Bind needs beyond the connection itself.
type Service struct {
	VSID          string
	Pool          *laddr.Pool
	Worker        int
	Iface         laddrtype.Interface
	SchedulerIsRR bool // gates the 5% perturbation (spec §4.2)
}

// Recorder observes bind/unbind outcomes for metrics export. Binder works
// with a nil Recorder; metrics.Metrics implements this interface.
type Recorder interface {
	BindOK(vs string)
	BindExhausted(vs string)
	Unbind(vs string)
}

// Binder ties a VS's laddr Pool to the external port-pool Reserver.
type Binder struct {
	pp  portpool.Reserver
	log *logging.Logger
	rec Recorder
}

// New builds a Binder against the given port-pool implementation.
func New(pp portpool.Reserver, log *logging.Logger) *Binder {
	if log == nil {
		log = logging.Default()
	}
	return &Binder{pp: pp, log: log.WithComponent("binder")}
}

// WithRecorder attaches a metrics Recorder, returning the same Binder for chaining.
func (b *Binder) WithRecorder(rec Recorder) *Binder {
	b.rec = rec
	return b
}

// Bind selects a laddr, reserves a port, and stamps conn. Template
// connections (persistence parents) are no-ops that always succeed. All
// failures are rolled back before returning; the only errors returned are
// KindInvalid and KindExhausted (spec §4.3, §7 propagation policy).
func (b *Binder) Bind(conn *Conn, svc Service) error {
	if conn == nil || svc.Pool == nil {
		return laddrerrors.New(laddrerrors.KindInvalid, "binder: conn and svc.Pool are required")
	}
	if conn.Template {
		return nil
	}
	if conn.Proto != laddrtype.ProtoTCP && conn.Proto != laddrtype.ProtoUDP {
		return laddrerrors.New(laddrerrors.KindInvalid, "binder: unsupported protocol")
	}

	unlock := svc.Pool.Lock()
	defer unlock()

	trials := maxTrials
	if n := svc.Pool.NumLaddrsLocked(svc.Worker); n < trials {
		trials = n
	}

	var (
		chosen *laddrtype.LocalAddress
		sport  uint16
	)

	for i := 0; i < trials; i++ {
		la := svc.Pool.SelectLocked(svc.Worker, svc.SchedulerIsRR)
		if la == nil {
			break
		}

		if svc.Pool.Mode() == laddrtype.LADDRMode && !svc.Pool.HasWorkerLocked(svc.Worker) {
			la.Unpin()
			continue
		}

		dst := conn.Dest
		sp, err := b.pp.Reserve(svc.Worker, svc.Iface, conn.Proto, dst, la.Addr)
		if err != nil {
			b.log.Debug("trial exhausted", "laddr", la.Addr.String(), "err", err)
			la.Unpin()
			continue
		}

		chosen = la
		sport = sp
		break
	}

	if chosen == nil || sport == 0 {
		if b.rec != nil {
			b.rec.BindExhausted(svc.VSID)
		}
		return laddrerrors.New(laddrerrors.KindExhausted, "binder: no laddr yielded a free port")
	}

	chosen.AcquireConn()
	conn.Laddr = chosen
	conn.LPort = sport
	conn.ReplyDst = portpool.Endpoint{IP: netCopy(chosen.Addr), Port: sport}
	conn.Local = chosen
	if b.rec != nil {
		b.rec.BindOK(svc.VSID)
	}
	return nil
}

// Unbind releases the reservation backing conn and clears its ownership
// reference. It is idempotent: template connections and connections with no
// bound laddr are no-ops (spec §4.3).
func (b *Binder) Unbind(conn *Conn, svc Service) error {
	if conn == nil || conn.Template || conn.Local == nil {
		return nil
	}

	la := conn.Local
	src := portpool.Endpoint{IP: la.Addr, Port: conn.LPort}
	if err := b.pp.Release(svc.Worker, svc.Iface, conn.Proto, conn.Dest, src); err != nil {
		b.log.Warn("release failed", "laddr", la.Addr.String(), "port", conn.LPort, "err", err)
	}

	la.ReleaseConn()
	la.Unpin()
	conn.Local = nil
	if b.rec != nil {
		b.rec.Unbind(svc.VSID)
	}
	return nil
}

func netCopy(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}
