package commander

import (
	"net"
	"testing"
	"time"

	"github.com/GoAethereal/cancel"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/wire"
)

func TestCommander_SendIncrementsSeqOnlyAfterSuccess(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	dest, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket(dest): %v", err)
	}
	defer dest.Close()

	c := New(conn, nil)
	ctx := cancel.New()

	if c.Seq() != 0 {
		t.Fatalf("initial Seq() = %d, want 0", c.Seq())
	}

	if err := c.Send(ctx, cmdtable.Ping, nil, dest.LocalAddr()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if c.Seq() != 1 {
		t.Fatalf("Seq() after one send = %d, want 1", c.Seq())
	}

	buf := make([]byte, 64)
	dest.SetReadDeadline(time.Now().Add(3 * time.Second))
	n, _, err := dest.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if err := wire.Verify(buf[:n]); err != nil {
		t.Fatalf("datagram failed Verify(): %v", err)
	}
	hdr := wire.GetCommandHeader(buf[:n])
	if hdr.CmdType != uint8(cmdtable.Ping) {
		t.Fatalf("CmdType = %d, want Ping", hdr.CmdType)
	}
	if hdr.Counter != 0 {
		t.Fatalf("Counter = %d, want 0 (first send)", hdr.Counter)
	}
}

func TestCommander_SendRejectsUnknownVariant(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	dest, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket(dest): %v", err)
	}
	defer dest.Close()

	c := New(conn, nil)
	ctx := cancel.New()

	if err := c.Send(ctx, cmdtable.Unknown, nil, dest.LocalAddr()); err != ErrUnknownCommand {
		t.Fatalf("Send() error = %v, want ErrUnknownCommand", err)
	}
	if c.Seq() != 0 {
		t.Fatalf("Seq() = %d, want 0 (rejected send must not advance it)", c.Seq())
	}
}

func TestCommander_SeqWrapsAt256(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	dest, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket(dest): %v", err)
	}
	defer dest.Close()
	// Drain the far end in the background so the datagram sent below is
	// consumed.
	go func() {
		buf := make([]byte, 64)
		for {
			if _, _, err := dest.ReadFrom(buf); err != nil {
				return
			}
		}
	}()

	c := New(conn, nil)
	ctx := cancel.New()
	c.seq = 255

	if err := c.Send(ctx, cmdtable.Ping, nil, dest.LocalAddr()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if c.Seq() != 0 {
		t.Fatalf("Seq() after wrap = %d, want 0", c.Seq())
	}
}

func TestCommander_RecvAckDecodesAcknowledgement(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	payloadTx, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket(payloadTx): %v", err)
	}
	defer payloadTx.Close()

	c := New(conn, nil)
	ctx := cancel.New()

	ack := cmdtable.CommandAcknowledgement{Counter: 3, CmdType: cmdtable.Ping, ErrorType: cmdtable.NoError}
	datagram := wire.EncodeTelemetry(ack.Encode(), uint8(cmdtable.Ack), 0, wire.GondolaTimeFrom(0))
	wire.Seal(datagram)
	if _, err := payloadTx.WriteTo(datagram, conn.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := c.RecvAck(ctx)
	if err != nil {
		t.Fatalf("RecvAck() error = %v", err)
	}
	if got.Counter != 3 || got.CmdType != cmdtable.Ping || got.ErrorType != cmdtable.NoError {
		t.Fatalf("RecvAck() = %+v, unexpected", got)
	}
}

func TestCommander_RecvAckAbortsOnCancel(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	c := New(conn, nil)
	sig := cancel.New()

	go func() {
		time.Sleep(50 * time.Millisecond)
		sig.Cancel()
	}()

	start := time.Now()
	_, err = c.RecvAck(sig)
	if err == nil {
		t.Fatalf("RecvAck() error = nil, want a cancellation error")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("RecvAck() took %v, want it to return promptly on cancel", elapsed)
	}
}
