// Package discriminator implements the ground-side ack/telemetry fan-out:
// every downlinked datagram is inspected only far enough to tell an ack
// from everything else, then copied out to every endpoint registered for
// that category. One endpoint failing to receive never affects the others.
// Grounded on the teacher's Mux dispatch in handler.go, generalized from
// "pick one handler" to "fan out to every subscriber in a class".
package discriminator

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/wire"
)

// Discriminator owns the ingress socket receiving everything downlinked
// from the payload, and the two endpoint lists it fans that traffic out to.
type Discriminator struct {
	conn               net.PacketConn
	ackEndpoints       []net.Addr
	telemetryEndpoints []net.Addr
	log                *logrus.Entry
	metrics            *metrics.Collectors
}

// New builds a Discriminator bound to conn, fanning acks out to
// ackEndpoints and everything else out to telemetryEndpoints.
func New(conn net.PacketConn, ackEndpoints, telemetryEndpoints []net.Addr, log *logrus.Entry, m *metrics.Collectors) *Discriminator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Discriminator{
		conn:               conn,
		ackEndpoints:       ackEndpoints,
		telemetryEndpoints: telemetryEndpoints,
		log:                log.WithField("role", "discriminator"),
		metrics:            m,
	}
}

// Run receives one datagram per iteration and fans it out until ctx is
// done.
func (d *Discriminator) Run(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, _, err := d.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.WithError(err).Warn("recv failed")
			continue
		}
		d.dispatch(append([]byte(nil), buf[:n]...))
	}
}

func (d *Discriminator) dispatch(datagram []byte) {
	telemType, ok := wire.PeekTelemetryType(datagram)
	if !ok {
		d.log.Warn("datagram too short to carry a telemetry header, dropping")
		return
	}

	endpoints := d.telemetryEndpoints
	category := "telemetry"
	if cmdtable.TelemetryID(telemType).IsAck() {
		endpoints = d.ackEndpoints
		category = "ack"
	}

	for _, endpoint := range endpoints {
		if _, err := d.conn.WriteTo(datagram, endpoint); err != nil {
			d.log.WithError(err).WithField("endpoint", endpoint).Warn("failed to forward to one endpoint")
			continue
		}
		d.metrics.TelemetrySent(category)
	}
}
