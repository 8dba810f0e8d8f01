// Command ground-reassembler runs the ground-side fragment reassembler:
// it receives a burst of shell-reply fragments, reorders and parses them
// into a {exit_code, stdout, stderr} reply, and forwards each finished
// reply to the operator console's reply display. Malformed streams are
// logged and discarded rather than forwarded (spec.md §4.7: "current
// session is discarded").
package main

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/gconfig"
	"github.com/umn-impish/impisc/internal/metrics"
	"github.com/umn-impish/impisc/internal/reassembler"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort("", gconfig.ReassemblerPort))
	if err != nil {
		log.WithError(err).Fatal("failed to bind reassembler ingress port")
	}
	defer conn.Close()

	console, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.ShellReplyInterface))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve operator-console reply address")
	}

	outConn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		log.WithError(err).Fatal("failed to open a socket to forward replies on")
	}
	defer outConn.Close()

	m := metrics.New(prometheus.DefaultRegisterer, "reassembler")
	r := reassembler.New(conn, reassembler.DefaultTDone, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, malformed := r.Run(ctx)

	log.WithField("addr", conn.LocalAddr()).Info("ground-reassembler serving")
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			body, err := json.Marshal(res)
			if err != nil {
				log.WithError(err).Warn("failed to encode reassembled reply")
				continue
			}
			if _, err := outConn.WriteTo(body, console); err != nil {
				log.WithError(err).Warn("failed to forward reply to operator console")
			}
		case mr, ok := <-malformed:
			if !ok {
				continue
			}
			log.WithField("session", mr.SessionID).WithError(mr.Err).Warn("discarding malformed shell reply session")
		}
	}
}
