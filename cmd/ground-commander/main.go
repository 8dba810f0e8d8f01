// Command ground-commander is the operator console: a CLI stand-in for the
// GUI spec.md §6 describes (a single-line input field, a submit action,
// and two scrolling displays), grounded on client.go's Request-based
// command/response shape and on command_gui.py's ack-display/telemetry-
// display split.
//
// The console reads one shell-command line at a time from stdin, refuses
// or zero-pads it to the fixed 255-byte command payload, sends it, and
// waits for the ack on the Commander's own socket (the discriminator fans
// acks straight back to it), logging it and keeping the last five in an
// ack history. Concurrently, one background listener drains the
// reassembler's finished-reply feed and logs each reply as it arrives.
//
// spec.md's Ctrl-Q shortcut assumes a GUI event loop; a line-buffered
// bufio.Scanner has no way to observe a bare control character before
// Enter is pressed without putting the terminal in raw mode, which no
// example repo in this pack pulls in a library for. EOF (Ctrl-D) or typing
// "quit" both end the session instead.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/GoAethereal/cancel"
	"github.com/sirupsen/logrus"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/commander"
	"github.com/umn-impish/impisc/internal/gconfig"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	ip := gconfig.DefaultGripsIP()

	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort("", gconfig.CommandAckDisplay))
	if err != nil {
		log.WithError(err).Fatal("failed to bind commander ack socket")
	}
	defer conn.Close()

	routerAddr, err := net.ResolveUDPAddr("udp", gconfig.JoinHostPort(ip, gconfig.RouterPort))
	if err != nil {
		log.WithError(err).Fatal("failed to resolve payload command ingress address")
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	root := cancel.New().Propagate(ctx)
	defer root.Cancel()

	var ackHistory gconfig.Ring5
	go runReplyDisplay(root, log)

	c := commander.New(conn, log)
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("grips-commander ready. Type a shell command and press Enter; 'quit' or Ctrl-D to exit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "quit" {
			break
		}
		if line == "" {
			continue
		}

		n := utf8.RuneCountInString(line)
		encoded := []byte(line)
		if len(encoded) > cmdtable.ShellCommandSize {
			fmt.Printf("refused: command is %d bytes (%d runes), exceeds the %d byte limit\n", len(encoded), n, cmdtable.ShellCommandSize)
			continue
		}

		payload := cmdtable.NewShellCommand(line)
		seq := c.Seq()
		if err := c.Send(root, cmdtable.ArbitraryShellCommand, payload.Encode(), routerAddr); err != nil {
			log.WithError(err).Warn("failed to send command")
			continue
		}

		ack, err := c.RecvAck(root)
		if err != nil {
			log.WithError(err).Warn("failed to receive ack")
			continue
		}
		ackHistory.Push(ack)
		log.WithFields(logrus.Fields{
			"seq":        seq,
			"error_type": ack.ErrorType,
		}).Info("ack received")
	}

	fmt.Println("shutting down")
}

// runReplyDisplay listens for reassembled shell-command replies forwarded
// by ground-reassembler and logs each one as they arrive, standing in for
// the GUI's telemetry/reply scrolling display.
func runReplyDisplay(ctx cancel.Context, log *logrus.Entry) {
	conn, err := net.ListenPacket("udp", gconfig.JoinHostPort("", gconfig.ShellReplyInterface))
	if err != nil {
		log.WithError(err).Warn("failed to bind reply display socket")
		return
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var reply struct {
		SessionID string `json:"SessionID"`
		Reply     struct {
			ExitCode int    `json:"ExitCode"`
			Stdout   string `json:"Stdout"`
			Stderr   string `json:"Stderr"`
		} `json:"Reply"`
	}

	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if err := json.Unmarshal(buf[:n], &reply); err != nil {
			log.WithError(err).Warn("failed to decode reassembled reply")
			continue
		}
		log.WithFields(logrus.Fields{
			"session":   reply.SessionID,
			"exit_code": reply.Reply.ExitCode,
		}).Infof("reply stdout=%q stderr=%q", reply.Reply.Stdout, reply.Reply.Stderr)
	}
}
