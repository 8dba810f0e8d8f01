package cmdtable

import "fmt"

// AckErrorKind enumerates the command-acknowledgement error codes, exactly
// as spec.md §3's error table (0 = success).
type AckErrorKind uint8

const (
	NoError AckErrorKind = iota
	PartialHeader
	InvalidSync
	IncorrectCRC
	IncorrectSystemID
	InvalidCommandType
	IncorrectPacketLength
	InvalidPacketLength
	InvalidPayloadValue
	Busy
	GeneralFailure
)

var ackErrorNames = map[AckErrorKind]string{
	NoError:               "NO_ERROR",
	PartialHeader:         "PARTIAL_HEADER",
	InvalidSync:           "INVALID_SYNC",
	IncorrectCRC:          "INCORRECT_CRC",
	IncorrectSystemID:     "INCORRECT_SYSTEM_ID",
	InvalidCommandType:    "INVALID_COMMAND_TYPE",
	IncorrectPacketLength: "INCORRECT_PACKET_LENGTH",
	InvalidPacketLength:   "INVALID_PACKET_LENGTH",
	InvalidPayloadValue:   "INVALID_PAYLOAD_VALUE",
	Busy:                  "BUSY",
	GeneralFailure:        "GENERAL_FAILURE",
}

// String implements fmt.Stringer, naming the error per spec.md §7: "the
// human-readable name of the error is obtained by indexing the failure
// table".
func (k AckErrorKind) String() string {
	if name, ok := ackErrorNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
}

// AckError is the fault value threaded from the codec/verifier/handler up
// to whichever code sends the resulting ack, mirroring exceptions.go's
// Exception interface: an error that also exposes its wire code and
// diagnostic payload.
type AckError struct {
	Kind    AckErrorKind
	Data    [7]byte
	CmdType CommandID
	SeqNum  uint8
}

func (e *AckError) Error() string {
	return fmt.Sprintf("ack error %s (cmd_type=%d seq_num=%d)", e.Kind, e.CmdType, e.SeqNum)
}

// NewAckError builds an AckError, clamping data to the fixed 7-byte field:
// zero-padded if shorter, truncated if longer, per spec.md §4.3.
func NewAckError(kind AckErrorKind, data []byte, cmdType CommandID, seqNum uint8) *AckError {
	e := &AckError{Kind: kind, CmdType: cmdType, SeqNum: seqNum}
	copy(e.Data[:], data)
	return e
}

// CommandAcknowledgement is the fixed-size telemetry payload sent in
// response to every validly-routed command.
type CommandAcknowledgement struct {
	Counter   uint8
	CmdType   CommandID
	ErrorType AckErrorKind
	ErrorData [7]byte
}

// AckPayloadSize is the fixed wire size of the ack body (counter, cmd_type,
// error_type, error_data), per spec.md §3 ("size = 8").
const AckPayloadSize = 8

// Encode returns the fixed-size wire bytes for the ack body.
func (a CommandAcknowledgement) Encode() []byte {
	out := make([]byte, AckPayloadSize)
	out[0] = a.Counter
	out[1] = byte(a.CmdType)
	out[2] = byte(a.ErrorType)
	copy(out[3:], a.ErrorData[:])
	return out
}

// DecodeAck reads a CommandAcknowledgement out of exactly AckPayloadSize
// bytes.
func DecodeAck(buf []byte) CommandAcknowledgement {
	a := CommandAcknowledgement{
		Counter:   buf[0],
		CmdType:   CommandID(buf[1]),
		ErrorType: AckErrorKind(buf[2]),
	}
	copy(a.ErrorData[:], buf[3:])
	return a
}
