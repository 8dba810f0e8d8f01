package shellexec

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/wire"
)

func testClock() wire.GondolaTime {
	return wire.GondolaTimeFrom(7)
}

func TestFormatReply_SuccessUsesAckOkMarker(t *testing.T) {
	out := formatReply(0, []byte("hi"), nil)
	got := string(out)
	want := "ack-ok\nretc:" + string([]byte{0}) + "\nstdout:hi\nstderr:"
	if got != want {
		t.Fatalf("formatReply() = %q, want %q", got, want)
	}
}

func TestFormatReply_FailureUsesErrorMarker(t *testing.T) {
	out := formatReply(1, nil, []byte("bad"))
	got := string(out)
	want := "error\nretc:" + string([]byte{1}) + "\nstdout:\nstderr:bad"
	if got != want {
		t.Fatalf("formatReply() = %q, want %q", got, want)
	}
}

func TestExecutor_RunSendsFragmentsThenSentinel(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer sink.Close()

	e := New(conn, sink.LocalAddr(), nil, testClock)
	if err := e.Run(context.Background(), "printf hello"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The executor hands the Telemeter a raw, unwrapped payload — wrapping
	// happens exactly once, downstream, in internal/telemeter.
	sink.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 2048)
	n, err := sink.Read(buf)
	if err != nil {
		t.Fatalf("Read(fragment): %v", err)
	}
	if n != cmdtable.ShellReplyFragmentSize {
		t.Fatalf("fragment datagram size = %d, want %d (raw, unwrapped)", n, cmdtable.ShellReplyFragmentSize)
	}
	frag := cmdtable.DecodeShellReplyFragment(buf[:n])
	if frag.SeqNum != 0 {
		t.Fatalf("first fragment SeqNum = %d, want 0", frag.SeqNum)
	}

	n, err = sink.Read(buf)
	if err != nil {
		t.Fatalf("Read(sentinel): %v", err)
	}
	if string(buf[:n]) != FinishedSentinel {
		t.Fatalf("sentinel = %q, want %q", buf[:n], FinishedSentinel)
	}
}

func TestExecutor_NonZeroExitProducesErrorMarker(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer sink.Close()

	e := New(conn, sink.LocalAddr(), nil, testClock)
	if err := e.Run(context.Background(), "exit 3"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sink.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 2048)
	n, err := sink.Read(buf)
	if err != nil {
		t.Fatalf("Read(fragment): %v", err)
	}
	frag := cmdtable.DecodeShellReplyFragment(buf[:n])
	if frag.Payload[0] != 'e' { // "error\n..." begins with 'e'
		t.Fatalf("reply did not start with the error marker: %q", frag.Payload[:16])
	}
}
