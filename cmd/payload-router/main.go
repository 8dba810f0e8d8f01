// Command payload-router runs the payload-side command router: it binds
// the well-known command-ingress port, registers a handler per command
// table variant, and serves until terminated. Grounded on server.go's
// Serve entry point, generalized from one TCP listener + Mux to one UDP
// socket + router.Router.
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
	"github.com/umn-impish/impisc/internal/router"
	"github.com/umn-impish/impisc/internal/verify"
	"github.com/umn-impish/impisc/internal/wire"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	ip := gconfig.DefaultGripsIP()

	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort(ip, gconfig.RouterPort))
	if err != nil {
		log.WithError(err).Fatal("failed to bind command ingress port")
	}
	defer conn.Close()

	shellExecAddr, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.ShellExecIngressPort))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve shell-exec ingress address")
	}

	clock := wire.NewMonotonicClock()
	m := metrics.New(prometheus.DefaultRegisterer, "router")
	r := router.New(conn, log, m, clock)

	r.Register(cmdtable.Ping, func(ctx context.Context, rec *verify.CommandRecord) (cmdtable.CommandAcknowledgement, *cmdtable.AckError) {
		return cmdtable.CommandAcknowledgement{}, nil
	})

	r.Register(cmdtable.SetTelemetryRate, func(ctx context.Context, rec *verify.CommandRecord) (cmdtable.CommandAcknowledgement, *cmdtable.AckError) {
		rate := cmdtable.DecodeSetTelemetryRate(rec.Payload)
		log.WithField("period_seconds", rate.PeriodSeconds).Info("telemetry rate change requested")
		return cmdtable.CommandAcknowledgement{}, nil
	})

	// The shell command itself is dispatched to the separate
	// payload-shellexec process over a local loopback datagram, mirroring
	// "Shell executor (local UDP)" in spec.md §2's control-flow diagram.
	// The ack only confirms acceptance; the reply travels back
	// independently via the fragment/telemetry path.
	r.Register(cmdtable.ArbitraryShellCommand, func(ctx context.Context, rec *verify.CommandRecord) (cmdtable.CommandAcknowledgement, *cmdtable.AckError) {
		text := cmdtable.DecodeShellCommand(rec.Payload).String()
		if _, err := conn.WriteTo([]byte(text), shellExecAddr); err != nil {
			log.WithError(err).Warn("failed to forward shell command to payload-shellexec")
			return cmdtable.CommandAcknowledgement{}, cmdtable.NewAckError(cmdtable.GeneralFailure, nil, rec.CmdType, rec.Header.Counter)
		}
		return cmdtable.CommandAcknowledgement{}, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("addr", conn.LocalAddr()).Info("payload-router serving")
	if err := r.Serve(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("router.Serve exited")
	}
}
