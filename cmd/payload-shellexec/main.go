// Command payload-shellexec is the standalone arbitrary-shell-command
// executor process. payload-router forwards each accepted command as a raw
// UDP datagram to this process's ingress port; this process runs it and
// streams the reply back to the Telemeter on its own source port, matching
// spec.md §2's "handler → Shell executor (local UDP) → fragment stream"
// control flow.
//
// Execution is synchronous within a single cooperative receive loop, so a
// second command arriving mid-execution simply waits its turn rather than
// running concurrently, matching the single-threaded contract spec.md §4.8
// describes for the executor.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/gconfig"
	"github.com/umn-impish/impisc/internal/shellexec"
	"github.com/umn-impish/impisc/internal/wire"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	ingress, err := net.ListenPacket("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.ShellExecIngressPort))
	if err != nil {
		log.WithError(err).Fatal("failed to bind shell-exec ingress port")
	}
	defer ingress.Close()

	egress, err := net.ListenPacket("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.ShellExecSourcePort))
	if err != nil {
		log.WithError(err).Fatal("failed to bind shell-exec fragment source port")
	}
	defer egress.Close()

	telemeterIngress, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort("127.0.0.1", gconfig.TelemeterPort))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve telemeter ingress address")
	}

	clock := wire.NewMonotonicClock()
	executor := shellexec.New(egress, telemeterIngress, log, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		ingress.Close()
	}()

	log.WithField("addr", ingress.LocalAddr()).Info("payload-shellexec serving")
	buf := make([]byte, 2048)
	for {
		n, _, err := ingress.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("shell-exec ingress read failed")
			continue
		}
		text := string(buf[:n])
		if err := executor.Run(ctx, text); err != nil {
			log.WithError(err).Warn("shell command execution failed")
		}
	}
}
