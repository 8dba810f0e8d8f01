// Command ground-discriminator runs the ground-side ack/telemetry fan-out:
// everything downlinked from the payload arrives here first and is copied
// out to the command-ack sink or the telemetry sink depending on its
// telemetry type tag.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/discriminator"
	"github.com/umn-impish/impisc/internal/gconfig"
	"github.com/umn-impish/impisc/internal/metrics"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort("", gconfig.DiscriminatorPort))
	if err != nil {
		log.WithError(err).Fatal("failed to bind ground ingress port")
	}
	defer conn.Close()

	ackSink, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.CommandAckDisplay))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve ack sink address")
	}
	telemetrySink, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.TelemSorterPort))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve telemetry sink address")
	}

	m := metrics.New(prometheus.DefaultRegisterer, "discriminator")
	d := discriminator.New(conn, []net.Addr{ackSink}, []net.Addr{telemetrySink}, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("addr", conn.LocalAddr()).Info("ground-discriminator serving")
	if err := d.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("discriminator.Run exited")
	}
}
