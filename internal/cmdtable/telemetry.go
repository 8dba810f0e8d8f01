package cmdtable

import "encoding/binary"

// TelemetryID is a wire-level telemetry table index. Values 2..15 are
// reserved for housekeeping, 16..255 for science, per spec.md §3; index 0
// is reserved and never sent, index 1 is always the command acknowledgement.
type TelemetryID uint8

const (
	reservedTelemetry TelemetryID = iota
	Ack
	ShellReplyFragment
	Housekeeping
)

var telemetryNames = map[TelemetryID]string{
	reservedTelemetry:  "reserved",
	Ack:                "ack",
	ShellReplyFragment: "shell-reply-fragment",
	Housekeeping:       "housekeeping",
}

// String implements fmt.Stringer for logging.
func (t TelemetryID) String() string {
	if name, ok := telemetryNames[t]; ok {
		return name
	}
	return "invalid-telemetry"
}

// IsAck reports whether id designates the command-acknowledgement variant,
// the discriminator's one routing decision (spec.md §4.6).
func (t TelemetryID) IsAck() bool {
	return t == Ack
}

// FragmentPayloadSize is the size in bytes of the opaque payload carried by
// one shell-reply fragment.
const FragmentPayloadSize = 128

// ShellReplyFragmentSize is the fixed wire size of a ShellReplyFragment
// telemetry payload: 128 bytes of opaque payload plus a 16 bit session-local
// sequence number.
const ShellReplyFragmentSize = FragmentPayloadSize + 2

// ShellReplyFragmentPayload is a single 130-byte chunk of a larger
// shell-command reply stream, ordered within its burst by SeqNum.
type ShellReplyFragmentPayload struct {
	Payload [FragmentPayloadSize]byte
	SeqNum  uint16
}

// Encode returns the fixed-size wire bytes for the fragment.
func (f ShellReplyFragmentPayload) Encode() []byte {
	out := make([]byte, ShellReplyFragmentSize)
	copy(out, f.Payload[:])
	binary.LittleEndian.PutUint16(out[FragmentPayloadSize:], f.SeqNum)
	return out
}

// DecodeShellReplyFragment reads a ShellReplyFragmentPayload out of exactly
// ShellReplyFragmentSize bytes.
func DecodeShellReplyFragment(buf []byte) ShellReplyFragmentPayload {
	var f ShellReplyFragmentPayload
	copy(f.Payload[:], buf[:FragmentPayloadSize])
	f.SeqNum = binary.LittleEndian.Uint16(buf[FragmentPayloadSize:])
	return f
}

// FinishedSentinel is the payload the shell executor sends immediately
// after a reply's last fragment. It is wrapped into a ShellReplyFragment
// telemetry datagram like any other chunk the executor emits, but its
// length never matches ShellReplyFragmentSize, which is how the
// reassembler tells it apart from a real fragment and uses it to close
// the current session without waiting out the idle timeout.
const FinishedSentinel = "arb-cmd-finished"

// HousekeepingSize is the fixed wire size of a Housekeeping telemetry
// payload.
const HousekeepingSize = 16

// HousekeepingPayload is a stand-in science/housekeeping record: the sensor
// acquisition itself is out of scope (spec.md §1 excludes device drivers),
// but the telemetry path that carries it end to end is in scope.
type HousekeepingPayload struct {
	UptimeSeconds    uint32
	FreeMemoryKiB    uint32
	CPUTempMilliDegC int32
	TelemetryRateSet uint8
	// Reserved pads the record out to HousekeepingSize.
	Reserved [3]byte
}

// Encode returns the fixed-size wire bytes for the housekeeping record.
func (h HousekeepingPayload) Encode() []byte {
	out := make([]byte, HousekeepingSize)
	binary.LittleEndian.PutUint32(out[0:4], h.UptimeSeconds)
	binary.LittleEndian.PutUint32(out[4:8], h.FreeMemoryKiB)
	binary.LittleEndian.PutUint32(out[8:12], uint32(h.CPUTempMilliDegC))
	out[12] = h.TelemetryRateSet
	copy(out[13:16], h.Reserved[:])
	return out
}

// DecodeHousekeeping reads a HousekeepingPayload out of exactly
// HousekeepingSize bytes.
func DecodeHousekeeping(buf []byte) HousekeepingPayload {
	var h HousekeepingPayload
	h.UptimeSeconds = binary.LittleEndian.Uint32(buf[0:4])
	h.FreeMemoryKiB = binary.LittleEndian.Uint32(buf[4:8])
	h.CPUTempMilliDegC = int32(binary.LittleEndian.Uint32(buf[8:12]))
	h.TelemetryRateSet = buf[12]
	copy(h.Reserved[:], buf[13:16])
	return h
}
