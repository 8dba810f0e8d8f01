// Package router implements the payload-side command router: a
// single-threaded cooperative loop that receives one command datagram per
// iteration, verifies it, tracks the sequence number, dispatches to a
// registered handler, and emits exactly one ack (none when no handler is
// registered for the command's variant).
//
// Grounded on the teacher's server.go Serve/handle loop and handler.go's
// Mux dispatch-by-code table, adapted from modbus's TCP accept-loop model
// to GRIPS's single UDP socket with no connection setup.
package router

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/ackbuilder"
	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/verify"
	"github.com/umn-impish/impisc/internal/wire"
)

// Handler processes one verified command and returns either a success ack
// or an AckError, mirroring RouterCallback in impisc/network/comm.py.
type Handler func(ctx context.Context, rec *verify.CommandRecord) (cmdtable.CommandAcknowledgement, *cmdtable.AckError)

// Router owns a single UDP socket, its handler table, and the expected
// command sequence number.
type Router struct {
	conn       net.PacketConn
	handlers   map[cmdtable.CommandID]Handler
	replyAddr  net.Addr // optional fixed reply address; nil means reply to sender
	expected   *uint8   // nil until the first command is seen
	log        *logrus.Entry
	metrics    *metrics.Collectors
	timeSource func() wire.GondolaTime
}

// New builds a Router bound to conn. log may be nil to use the package
// default logger. timeSource supplies the gondola time stamped on every ack
// (tests can inject a deterministic clock).
func New(conn net.PacketConn, log *logrus.Entry, m *metrics.Collectors, timeSource func() wire.GondolaTime) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Router{
		conn:       conn,
		handlers:   make(map[cmdtable.CommandID]Handler),
		log:        log.WithField("role", "router"),
		metrics:    m,
		timeSource: timeSource,
	}
}

// SetFixedReplyAddress routes every ack to addr instead of the command's
// source address, used when acks must go straight to the gondola relay
// regardless of who sent the command on the payload-facing interface.
func (r *Router) SetFixedReplyAddress(addr net.Addr) {
	r.replyAddr = addr
}

// Register associates a handler with a command variant. handler may return
// an AckError to report a BUSY/invalid-parameter/general failure condition.
func (r *Router) Register(cmd cmdtable.CommandID, handler Handler) {
	r.handlers[cmd] = handler
}

// Serve runs the receive loop until ctx is done or the socket errors.
func (r *Router) Serve(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.WithError(err).Warn("recv failed")
			continue
		}
		r.handleDatagram(ctx, append([]byte(nil), buf[:n]...), addr)
	}
}

func (r *Router) handleDatagram(ctx context.Context, datagram []byte, addr net.Addr) {
	rec, ackErr := verify.Verify(datagram, addr)
	if ackErr != nil {
		r.metrics.CommandRejected(ackErr.Kind.String())
		r.sendErrAck(addr, ackErr)
		return
	}

	if seqErr := r.checkSequence(rec.Header.Counter, rec.CmdType); seqErr != nil {
		r.metrics.CommandRejected(seqErr.Kind.String())
		r.sendErrAck(addr, seqErr)
		return
	}

	handler, ok := r.handlers[rec.CmdType]
	if !ok {
		// spec.md §4.4: programmer error. Log and continue; no ack is sent
		// because the target is unknown.
		r.log.WithField("cmd_type", rec.CmdType).Error("no handler registered for command variant")
		return
	}

	ack, handlerErr := handler(ctx, rec)
	if handlerErr != nil {
		r.metrics.CommandRejected(handlerErr.Kind.String())
		r.sendErrAck(addr, handlerErr)
		return
	}

	ackbuilder.PreSend(&ack, rec.Header.Counter, rec.CmdType)
	r.metrics.CommandAccepted(rec.CmdType.String())
	r.send(addr, ack)
}

// checkSequence implements the SeqCheck state of spec.md §4.4's table,
// including the documented-buggy behavior: on mismatch, expected is never
// advanced, so a single dropped command causes permanent skew until the
// router process restarts. This is preserved intentionally (spec.md §9
// Open Questions) and is exercised by TestRouter_SequenceMismatchDoesNotAdvance
// in router_test.go.
func (r *Router) checkSequence(counter uint8, cmdType cmdtable.CommandID) *cmdtable.AckError {
	if r.expected == nil {
		next := counter + 1 // wraps modulo 256 by virtue of the uint8 type
		r.expected = &next
		return nil
	}
	if *r.expected == counter {
		next := *r.expected + 1 // wraps modulo 256 by virtue of the uint8 type
		r.expected = &next
		return nil
	}
	data := append([]byte("badsqn"), *r.expected)
	return cmdtable.NewAckError(cmdtable.GeneralFailure, data, cmdType, counter)
}

func (r *Router) sendErrAck(sender net.Addr, ackErr *cmdtable.AckError) {
	ack := ackbuilder.FromError(ackErr)
	r.send(sender, ack)
}

func (r *Router) send(sender net.Addr, ack cmdtable.CommandAcknowledgement) {
	dest := sender
	if r.replyAddr != nil {
		dest = r.replyAddr
	}
	buf := wire.EncodeTelemetry(ack.Encode(), uint8(1), 0, r.timeSource())
	wire.StampAndSeal(buf, true, r.timeSource())
	if _, err := r.conn.WriteTo(buf, dest); err != nil {
		r.log.WithError(err).Warn("failed to send ack")
	}
}
