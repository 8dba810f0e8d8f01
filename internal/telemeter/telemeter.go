// Package telemeter implements the payload-side telemetry wrapping loop:
// instruments submit raw payloads on per-variant loopback ports, and the
// telemeter wraps each one in a TelemetryHeader, stamps it, and forwards it
// downlink. Grounded on the teacher's Serve loop in server.go, adapted from
// a connection-oriented accept loop to a single shared UDP ingress socket.
package telemeter

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/wire"
)

// Telemeter owns the ingress socket instruments write raw payloads to, and
// the single downlink address every wrapped datagram is forwarded to.
type Telemeter struct {
	conn       net.PacketConn
	portMap    map[int]cmdtable.TelemetryID
	downlink   net.Addr
	counter    uint16
	log        *logrus.Entry
	metrics    *metrics.Collectors
	timeSource func() wire.GondolaTime
}

// New builds a Telemeter. portMap associates the source port an instrument's
// datagram was sent from with the telemetry variant it should be wrapped as;
// datagrams from unmapped source ports are dropped and logged.
func New(conn net.PacketConn, portMap map[int]cmdtable.TelemetryID, downlink net.Addr, log *logrus.Entry, m *metrics.Collectors, timeSource func() wire.GondolaTime) *Telemeter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Telemeter{
		conn:       conn,
		portMap:    portMap,
		downlink:   downlink,
		log:        log.WithField("role", "telemeter"),
		metrics:    m,
		timeSource: timeSource,
	}
}

// Run receives one raw payload per iteration, looks up its variant by the
// source port it was sent from, wraps and forwards it, until ctx is done.
func (t *Telemeter) Run(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.log.WithError(err).Warn("recv failed")
			continue
		}

		port := sourcePort(addr)
		variant, ok := t.portMap[port]
		if !ok {
			t.log.WithField("port", port).Error("no telemetry variant mapped for source port")
			continue
		}

		t.send(variant, append([]byte(nil), buf[:n]...))
	}
}

func (t *Telemeter) send(variant cmdtable.TelemetryID, payload []byte) {
	out := wire.EncodeTelemetry(payload, uint8(variant), t.counter, t.timeSource())
	wire.StampAndSeal(out, true, t.timeSource())
	t.counter++

	if _, err := t.conn.WriteTo(out, t.downlink); err != nil {
		t.log.WithError(err).Warn("failed to forward telemetry downlink")
		return
	}
	t.metrics.TelemetrySent(variant.String())
}

func sourcePort(addr net.Addr) int {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.Port
	}
	return -1
}
