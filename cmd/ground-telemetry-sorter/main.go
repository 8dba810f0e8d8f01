// Command ground-telemetry-sorter sits downstream of the discriminator's
// telemetry endpoint: it unconditionally archives every telemetry datagram
// to a dump address and additionally routes known variants to their
// dedicated downstream consumer. Grounded on telemetry_sorter.py's
// sort_telemetry loop.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/gconfig"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/telemsort"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort("", gconfig.TelemSorterPort))
	if err != nil {
		log.WithError(err).Fatal("failed to bind telemetry-sorter ingress port")
	}
	defer conn.Close()

	dump, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.TelemetryDumpPort))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve telemetry dump address")
	}
	reassemblerAddr, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.ReassemblerPort))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve reassembler address")
	}
	commandTelemetryAddr, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.CommandTelemetry))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve operator-console telemetry address")
	}

	routeMap := map[cmdtable.TelemetryID]net.Addr{
		cmdtable.ShellReplyFragment: reassemblerAddr,
		cmdtable.Housekeeping:       commandTelemetryAddr,
	}

	m := metrics.New(prometheus.DefaultRegisterer, "telemetry-sorter")
	s := telemsort.New(conn, dump, routeMap, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("addr", conn.LocalAddr()).Info("ground-telemetry-sorter serving")
	if err := s.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("telemsort.Run exited")
	}
}
