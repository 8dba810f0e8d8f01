// Command payload-telemeter runs the payload-side telemetry wrapping
// loop: it accepts raw payloads from on-board producers (the shell
// executor's fragment stream, a housekeeping stand-in) on their assigned
// source ports, wraps each in a telemetry header, and forwards it to the
// ground relay. Grounded on server.go's Serve entry point.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/gconfig"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/telemeter"
	"github.com/umn-impish/impisc/internal/wire"
)

// housekeepingPeriod is the cadence of the synthetic housekeeping stand-in;
// the sensor acquisition itself is out of scope (spec.md §1), but the
// telemetry path that carries it end to end is exercised here.
const housekeepingPeriod = 10 * time.Second

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	ip := gconfig.DefaultGripsIP()

	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.TelemeterPort))
	if err != nil {
		log.WithError(err).Fatal("failed to bind telemetry ingress port")
	}
	defer conn.Close()

	downlink, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort(ip, gconfig.DiscriminatorPort))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve ground relay address")
	}

	portMap := map[int]cmdtable.TelemetryID{
		gconfig.ShellExecSourcePort:   cmdtable.ShellReplyFragment,
		gconfig.HousekeepingSourcePort: cmdtable.Housekeeping,
	}

	clock := wire.NewMonotonicClock()
	m := metrics.New(prometheus.DefaultRegisterer, "telemeter")
	tm := telemeter.New(conn, portMap, downlink, log, m, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runHousekeepingStandIn(ctx, log)

	log.WithField("addr", conn.LocalAddr()).WithField("downlink", downlink).Info("payload-telemeter serving")
	if err := tm.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("telemeter.Run exited")
	}
}

// runHousekeepingStandIn periodically emits a synthetic housekeeping
// record from the fixed source port the telemeter's portMap associates
// with cmdtable.Housekeeping, exercising the science/housekeeping
// telemetry path without a real device driver (spec.md §1 Non-goals).
func runHousekeepingStandIn(ctx context.Context, log *logrus.Entry) {
	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.HousekeepingSourcePort))
	if err != nil {
		log.WithError(err).Warn("failed to bind housekeeping stand-in source port")
		return
	}
	defer conn.Close()

	dest, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.TelemeterPort))
	if err != nil {
		log.WithError(err).Warn("failed to resolve telemeter ingress address")
		return
	}

	start := time.Now()
	ticker := time.NewTicker(housekeepingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := cmdtable.HousekeepingPayload{
				UptimeSeconds: uint32(time.Since(start).Seconds()),
			}
			if _, err := conn.WriteTo(payload.Encode(), dest); err != nil {
				log.WithError(err).Warn("failed to send housekeeping stand-in record")
			}
		}
	}
}
