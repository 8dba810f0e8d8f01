// Package cmdtable defines the position-indexed command and telemetry
// tables (the wire ID of a variant is its position in the table) along with
// the fixed-size payload types that ride inside them, grounded on
// impisc/network/packets.py's all_commands/all_telemetry_packets lists and
// on the teacher's function-code-indexed Mux dispatch in handler.go.
package cmdtable

// CommandID is a wire-level command table index.
type CommandID uint8

// Command table. Index 0 is reserved for Unknown, used in acks for
// datagrams that could not be decoded far enough to know their real type.
const (
	Unknown CommandID = iota
	ArbitraryShellCommand
	Ping
	SetTelemetryRate
	numCommands
)

// CommandSizes gives the exact wire body size expected for each command
// variant's payload, used by the verifier's INVALID_PACKET_LENGTH check.
var CommandSizes = map[CommandID]int{
	ArbitraryShellCommand: ShellCommandSize,
	Ping:                  0,
	SetTelemetryRate:      1,
}

// commandNames is used only for logging.
var commandNames = map[CommandID]string{
	Unknown:               "unknown",
	ArbitraryShellCommand: "arbitrary-shell-command",
	Ping:                  "ping",
	SetTelemetryRate:      "set-telemetry-rate",
}

// String implements fmt.Stringer for logging.
func (c CommandID) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "invalid-command"
}

// Valid reports whether id names an entry in the command table other than
// the reserved Unknown slot.
func (c CommandID) Valid() bool {
	_, ok := CommandSizes[c]
	return ok
}

// ShellCommandSize is the fixed width of an ArbitraryShellCommand payload:
// a UTF-8 string, NUL-terminated or not, per spec.md §3 (255 bytes,
// distinct from the original Python implementation's 1KiB buffer).
const ShellCommandSize = 255

// ShellCommand is the payload of an ArbitraryShellCommand datagram.
type ShellCommand struct {
	Text [ShellCommandSize]byte
}

// String returns the command text, stopping at the first NUL if present.
func (c ShellCommand) String() string {
	for i, b := range c.Text {
		if b == 0 {
			return string(c.Text[:i])
		}
	}
	return string(c.Text[:])
}

// NewShellCommand builds a ShellCommand payload from a UTF-8 string,
// truncating (never panicking) if it doesn't fit.
func NewShellCommand(text string) ShellCommand {
	var c ShellCommand
	n := copy(c.Text[:], text)
	_ = n
	return c
}

// Encode returns the fixed-size wire bytes for the shell command payload.
func (c ShellCommand) Encode() []byte {
	out := make([]byte, ShellCommandSize)
	copy(out, c.Text[:])
	return out
}

// DecodeShellCommand reads a ShellCommand out of exactly ShellCommandSize
// bytes. The caller (the verifier) is responsible for checking the length
// first.
func DecodeShellCommand(buf []byte) ShellCommand {
	var c ShellCommand
	copy(c.Text[:], buf)
	return c
}

// SetTelemetryRatePayload is the payload of a SetTelemetryRate command: a
// requested telemetry period in seconds, 0 meaning "as fast as possible".
type SetTelemetryRatePayload struct {
	PeriodSeconds uint8
}

// Encode returns the single-byte wire representation.
func (p SetTelemetryRatePayload) Encode() []byte {
	return []byte{p.PeriodSeconds}
}

// DecodeSetTelemetryRate reads a SetTelemetryRatePayload out of one byte.
func DecodeSetTelemetryRate(buf []byte) SetTelemetryRatePayload {
	return SetTelemetryRatePayload{PeriodSeconds: buf[0]}
}
