// Package commander implements the ground-side command client: encodes a
// command variant and payload into a sealed datagram, sends it, and waits
// for the resulting telemetry acknowledgement. Grounded on client.go's
// Request/ReadHoldingRegisters pair, generalized from modbus's single
// TCP/RTU connection to GRIPS's fire-and-wait-for-ack UDP exchange, with the
// increment-after-send ordering taken from comm.py's
// Commander.send_recv_command_packet.
package commander

import (
	"context"
	"errors"
	"net"

	"github.com/GoAethereal/cancel"
	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/wire"
)

// ErrUnknownCommand is returned by Send when asked to encode a variant not
// present in the command table.
var ErrUnknownCommand = errors.New("commander: unknown command variant")

// Commander owns the ground-side UDP socket used to issue commands and
// receive their acknowledgements. It is not safe for concurrent use by
// multiple goroutines issuing Send calls at once, mirroring the teacher's
// single in-flight Request at a time (client.go serializes under c.mtx);
// here the operator console (cmd/ground-commander) naturally issues one
// command at a time from its input loop, so no internal mutex is needed.
type Commander struct {
	conn net.PacketConn
	seq  uint8
	log  *logrus.Entry
}

// New builds a Commander. seq starts at 0, matching comm.py's Commander
// construction.
func New(conn net.PacketConn, log *logrus.Entry) *Commander {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Commander{conn: conn, log: log.WithField("role", "commander")}
}

// Seq reports the next sequence counter Send will stamp onto a datagram, for
// callers that want to display it before issuing a command.
func (c *Commander) Seq() uint8 {
	return c.seq
}

// Send encodes variant and payload into a sealed command datagram addressed
// to addr. The sequence counter is only advanced after a successful write,
// exactly as comm.py's send_recv_command_packet: a failed send must be
// retryable under the same counter value, not skip one.
func (c *Commander) Send(ctx cancel.Context, variant cmdtable.CommandID, payload []byte, addr net.Addr) error {
	if !variant.Valid() {
		return ErrUnknownCommand
	}

	select {
	case <-ctx.Done():
		return context.Canceled
	default:
	}

	datagram := wire.EncodeCommand(payload, uint8(variant), c.seq)
	wire.Seal(datagram)

	if _, err := c.conn.WriteTo(datagram, addr); err != nil {
		c.log.WithError(err).WithField("variant", variant).Warn("failed to send command")
		return err
	}
	c.log.WithField("variant", variant).WithField("seq", c.seq).Debug("sent command")
	c.seq++ // wraps modulo 256 by virtue of the uint8 type
	return nil
}

// RecvAck blocks for exactly one datagram on the Commander's socket,
// verifies and decodes it as a command acknowledgement, and returns it.
// Callers correlate the ack to the command that provoked it by comparing
// CommandAcknowledgement.Counter against the seq value Send used. RecvAck
// races the blocking read against ctx, following the sig/rx composition
// client.go's Request uses to let a caller abandon a wait without closing
// the underlying socket.
func (c *Commander) RecvAck(ctx cancel.Context) (cmdtable.CommandAcknowledgement, error) {
	type result struct {
		ack cmdtable.CommandAcknowledgement
		err error
	}
	done := make(chan result, 1)

	go func() {
		buf := make([]byte, 2048)
		n, _, err := c.conn.ReadFrom(buf)
		if err != nil {
			done <- result{err: err}
			return
		}
		if err := wire.Verify(buf[:n]); err != nil {
			done <- result{err: err}
			return
		}
		telemType, ok := wire.PeekTelemetryType(buf[:n])
		if !ok || !cmdtable.TelemetryID(telemType).IsAck() {
			done <- result{err: errNotAnAck}
			return
		}
		if n < wire.TelemetryHeaderSize+cmdtable.AckPayloadSize {
			done <- result{err: errNotAnAck}
			return
		}
		ack := cmdtable.DecodeAck(buf[wire.TelemetryHeaderSize : wire.TelemetryHeaderSize+cmdtable.AckPayloadSize])
		done <- result{ack: ack}
	}()

	select {
	case res := <-done:
		return res.ack, res.err
	case <-ctx.Done():
		return cmdtable.CommandAcknowledgement{}, context.Canceled
	}
}

var errNotAnAck = errors.New("commander: received datagram is not a command acknowledgement")
