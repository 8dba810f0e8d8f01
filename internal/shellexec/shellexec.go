// Package shellexec implements the payload-side arbitrary-command
// executor: receives a shell command, runs it, and streams the reply back
// as a sequence of 130-byte shell-reply-fragment datagrams followed by an
// out-of-band completion sentinel. Grounded on
// impisc/processes/command_executor.py's subprocess.run/chunk loop,
// adapted to Go's os/exec and the teacher's per-request goroutine shape in
// server.go.
package shellexec

import (
	"bytes"
	"context"
	"net"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/wire"
)

// FinishedSentinel is sent immediately after the last shell-reply fragment,
// per spec.md §4.8. Like every fragment, it is handed to the Telemeter as a
// raw payload and wrapped exactly once there; see cmdtable.FinishedSentinel
// for how the reassembler recognizes it.
const FinishedSentinel = cmdtable.FinishedSentinel

// Executor owns the loopback socket it sends fragments on.
type Executor struct {
	conn       net.PacketConn
	dest       net.Addr
	log        *logrus.Entry
	timeSource func() wire.GondolaTime
}

// New builds an Executor. Fragments and the completion sentinel are sent to
// dest, which in production is the Telemeter's shell-reply-fragment ingress
// port.
func New(conn net.PacketConn, dest net.Addr, log *logrus.Entry, timeSource func() wire.GondolaTime) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{
		conn:       conn,
		dest:       dest,
		log:        log.WithField("role", "shellexec"),
		timeSource: timeSource,
	}
}

// Run runs text with a shell interpreter, formats the reply exactly as
// spec.md §4.8 specifies, chunks it into 128-byte fragments, and sends each
// one plus the completion sentinel. The subprocess is killed if ctx is done
// before it exits.
func (e *Executor) Run(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	reply := formatReply(exitCode, stdout.Bytes(), stderr.Bytes())
	return e.sendFragments(reply)
}

// formatReply builds the reply byte stream exactly as spec.md §4.8:
// marker line, then retc (a single raw byte, not an ASCII digit), then
// stdout and stderr each prefixed in place, all newline-separated.
func formatReply(exitCode int, stdout, stderr []byte) []byte {
	var buf bytes.Buffer
	if exitCode == 0 {
		buf.WriteString("ack-ok\n")
	} else {
		buf.WriteString("error\n")
	}
	buf.WriteString("retc:")
	buf.WriteByte(byte(exitCode))
	buf.WriteString("\n")
	buf.WriteString("stdout:")
	buf.Write(stdout)
	buf.WriteString("\n")
	buf.WriteString("stderr:")
	buf.Write(stderr)
	return buf.Bytes()
}

// sendFragments sends each chunk as a raw, unwrapped payload to the
// Telemeter's ingress. The Telemeter is what applies the single telemetry
// header (source-port-keyed, per spec.md §4.5); wrapping here too would
// double the header and make every datagram the wrong size by the time it
// reaches the reassembler.
func (e *Executor) sendFragments(reply []byte) error {
	var seq uint16
	for i := 0; i < len(reply); i += cmdtable.FragmentPayloadSize {
		end := i + cmdtable.FragmentPayloadSize
		if end > len(reply) {
			end = len(reply)
		}
		var payload cmdtable.ShellReplyFragmentPayload
		payload.SeqNum = seq
		copy(payload.Payload[:], reply[i:end])

		if _, err := e.conn.WriteTo(payload.Encode(), e.dest); err != nil {
			e.log.WithError(err).Warn("failed to send shell-reply fragment")
			return err
		}
		seq++ // wraps modulo 2^16 by virtue of the uint16 type
	}

	if _, err := e.conn.WriteTo([]byte(FinishedSentinel), e.dest); err != nil {
		e.log.WithError(err).Warn("failed to send completion sentinel")
		return err
	}
	return nil
}
