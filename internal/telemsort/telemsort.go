// Package telemsort implements the ground-side per-variant telemetry
// router that sits downstream of one of the discriminator's telemetry
// endpoints: every datagram is always copied to a fixed dump address first
// (redundant archival), then forwarded again to whatever address is mapped
// for its telemetry type, if any. Grounded on telemetry_sorter.py's
// sort_telemetry loop.
package telemsort

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/wire"
)

// Sorter owns the ingress socket, the always-on dump address, and the
// per-variant forwarding map.
type Sorter struct {
	conn      net.PacketConn
	dumpAddr  net.Addr
	routeMap  map[cmdtable.TelemetryID]net.Addr
	log       *logrus.Entry
	metrics   *metrics.Collectors
}

// New builds a Sorter. dumpAddr receives an unconditional copy of every
// datagram, mirroring ground_ports.TELEMETRY_DUMP. routeMap forwards a
// second copy to a variant-specific destination when one is registered.
func New(conn net.PacketConn, dumpAddr net.Addr, routeMap map[cmdtable.TelemetryID]net.Addr, log *logrus.Entry, m *metrics.Collectors) *Sorter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sorter{
		conn:     conn,
		dumpAddr: dumpAddr,
		routeMap: routeMap,
		log:      log.WithField("role", "telemetry-sorter"),
		metrics:  m,
	}
}

// Run receives one datagram per iteration, dumps and routes it, until ctx
// is done.
func (s *Sorter) Run(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Warn("recv failed")
			continue
		}
		s.route(append([]byte(nil), buf[:n]...))
	}
}

func (s *Sorter) route(datagram []byte) {
	if s.dumpAddr != nil {
		if _, err := s.conn.WriteTo(datagram, s.dumpAddr); err != nil {
			s.log.WithError(err).Warn("failed to dump datagram")
		}
	}

	telemType, ok := wire.PeekTelemetryType(datagram)
	if !ok {
		s.log.Warn("datagram too short to carry a telemetry header, not routed")
		return
	}

	variant := cmdtable.TelemetryID(telemType)
	dest, ok := s.routeMap[variant]
	if !ok {
		s.log.WithField("telem_type", variant).Warn("telemetry type not in the forwarding map")
		return
	}

	if _, err := s.conn.WriteTo(datagram, dest); err != nil {
		s.log.WithError(err).WithField("telem_type", variant).Warn("failed to forward to mapped destination")
		return
	}
	s.metrics.TelemetrySent(variant.String())
}
