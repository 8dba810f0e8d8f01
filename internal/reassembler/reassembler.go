// Package reassembler implements the ground-side shell-reply fragment
// reassembler: a stream of 130-byte fragments delivered by the
// discriminator is grouped into bursts ("sessions"), each closed by a
// T_done idle timeout, ordered per spec.md §4.7, and handed to Parse.
// Grounded on the teacher's Serve loop for the receive side, and on
// telemetry_sorter.py/support.py for the "accumulate then act" shape; the
// per-session xid tagging is grounded on runZeroInc-sockstats' connection
// labeling idiom.
package reassembler

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/wire"
)

// DefaultTDone is the idle duration after which an open session is
// considered complete, per spec.md §4.7.
const DefaultTDone = 1 * time.Second

// Result is a successfully reassembled and parsed shell-command reply.
type Result struct {
	SessionID string
	Reply     Reply
}

// MalformedResult is delivered to the diagnostics channel when a session's
// assembled byte stream fails to parse.
type MalformedResult struct {
	SessionID string
	Err       error
	Raw       []byte
}

// Reassembler owns the ingress socket fragments arrive on.
type Reassembler struct {
	conn    net.PacketConn
	tDone   time.Duration
	log     *logrus.Entry
	metrics *metrics.Collectors
}

// New builds a Reassembler. tDone of zero uses DefaultTDone.
func New(conn net.PacketConn, tDone time.Duration, log *logrus.Entry, m *metrics.Collectors) *Reassembler {
	if tDone <= 0 {
		tDone = DefaultTDone
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reassembler{
		conn:    conn,
		tDone:   tDone,
		log:     log.WithField("role", "reassembler"),
		metrics: m,
	}
}

// Run receives fragments, maintains one open session at a time (the wire
// protocol carries no session identifier, so a burst is delimited purely by
// the idle gap between fragments per spec.md §4.7), and emits a Result or
// MalformedResult whenever a session closes. Both channels are closed when
// ctx is done and the current session (if any) has been flushed.
func (r *Reassembler) Run(ctx context.Context) (<-chan Result, <-chan MalformedResult) {
	results := make(chan Result)
	malformed := make(chan MalformedResult)

	go func() {
		defer close(results)
		defer close(malformed)

		var current *session

		flush := func() {
			if current == nil || len(current.fragments) == 0 {
				current = nil
				return
			}
			raw := current.assemble()
			reply, err := Parse(raw)
			id := current.id.String()
			if err != nil {
				r.log.WithField("session", id).WithError(err).Warn("malformed shell reply")
				select {
				case malformed <- MalformedResult{SessionID: id, Err: err, Raw: raw}:
				case <-ctx.Done():
				}
			} else {
				select {
				case results <- Result{SessionID: id, Reply: reply}:
				case <-ctx.Done():
				}
			}
			current = nil
		}

		buf := make([]byte, 65536)
		for {
			// A deadline is always armed, even with no session open: this
			// is what lets the loop notice ctx.Done() promptly instead of
			// blocking forever on a quiet ingress socket.
			r.conn.SetReadDeadline(time.Now().Add(r.tDone))

			n, _, err := r.conn.ReadFrom(buf)
			if err != nil {
				if ctx.Err() != nil {
					flush()
					return
				}
				if isTimeout(err) {
					if current != nil {
						r.metrics.SessionTimedOut()
					}
					flush()
					continue
				}
				r.log.WithError(err).Warn("recv failed")
				continue
			}

			telemType, ok := wire.PeekTelemetryType(buf[:n])
			if !ok || cmdtable.TelemetryID(telemType) != cmdtable.ShellReplyFragment {
				r.log.Warn("dropping non-fragment datagram on reassembler ingress")
				continue
			}

			body := buf[wire.TelemetryHeaderSize:n]
			switch {
			case n == wire.TelemetryHeaderSize+cmdtable.ShellReplyFragmentSize:
				now := time.Now()
				fragPayload := cmdtable.DecodeShellReplyFragment(body)
				if current == nil {
					current = newSession(now)
					r.metrics.SessionOpened()
				}
				current.add(fragPayload, now)
			case n == wire.TelemetryHeaderSize+len(cmdtable.FinishedSentinel) && string(body) == cmdtable.FinishedSentinel:
				// The shell executor has sent its last fragment; close the
				// session now instead of waiting out the idle timeout.
				flush()
			default:
				r.log.Warn("shell-reply fragment has unexpected size, dropping")
			}
		}
	}()

	return results, malformed
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}
