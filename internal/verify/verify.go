// Package verify implements the strict, order-sensitive validation of an
// incoming command datagram, grounded on impisc/network/comm.py's
// decode_command and on the teacher's Mux request validation in handler.go
// (each check there returns the first applicable Exception; this package
// does the same with AckError).
package verify

import (
	"net"

	"github.com/umn-impish/impisc/internal/cmdtable"
	"github.com/umn-impish/impisc/internal/wire"
)

// CommandRecord is a successfully decoded, fully verified command.
type CommandRecord struct {
	Header  wire.CommandHeader
	CmdType cmdtable.CommandID
	Payload []byte
	Sender  net.Addr
}

// Verify runs the seven checks from spec.md §4.2, strictly in order,
// returning either a CommandRecord or the first failing AckError.
func Verify(datagram []byte, sender net.Addr) (*CommandRecord, *cmdtable.AckError) {
	// 1. Length >= command-header size.
	if len(datagram) < wire.CommandHeaderSize {
		return nil, cmdtable.NewAckError(cmdtable.PartialHeader, nil, cmdtable.Unknown, 255)
	}

	hdr := wire.GetCommandHeader(datagram)

	// 2. sync == 0xEB90.
	if hdr.Base.Sync != wire.Sync {
		data := datagram[0:2]
		return nil, cmdtable.NewAckError(cmdtable.InvalidSync, data, cmdtable.Unknown, hdr.Counter)
	}

	// 3. CRC verifies.
	if err := wire.Verify(datagram); err != nil {
		if crcErr, ok := err.(*wire.BadCRCError); ok {
			data := make([]byte, 4)
			data[0] = byte(crcErr.Received)
			data[1] = byte(crcErr.Received >> 8)
			data[2] = byte(crcErr.Computed)
			data[3] = byte(crcErr.Computed >> 8)
			return nil, cmdtable.NewAckError(cmdtable.IncorrectCRC, data, cmdtable.Unknown, hdr.Counter)
		}
		// ErrShortBuffer cannot occur here: we already checked the length
		// above against a larger minimum than wire.BaseHeaderSize.
		return nil, cmdtable.NewAckError(cmdtable.PartialHeader, nil, cmdtable.Unknown, 255)
	}

	// 4. system_id matches.
	if hdr.Base.SystemID != wire.SystemID {
		return nil, cmdtable.NewAckError(cmdtable.IncorrectSystemID, []byte{hdr.Base.SystemID}, cmdtable.Unknown, hdr.Counter)
	}

	// 5. cmd_type is known.
	cmdType := cmdtable.CommandID(hdr.CmdType)
	if !cmdType.Valid() {
		return nil, cmdtable.NewAckError(cmdtable.InvalidCommandType, []byte{hdr.CmdType}, cmdtable.Unknown, hdr.Counter)
	}

	// 6. actual body length == header.size (both truncated to u8).
	actual := uint8(len(datagram) - wire.CommandHeaderSize)
	if actual != hdr.Size {
		return nil, cmdtable.NewAckError(cmdtable.IncorrectPacketLength, []byte{actual, hdr.Size}, cmdType, hdr.Counter)
	}

	// 7. header.size == sizeof(decoded command variant).
	wantSize := cmdtable.CommandSizes[cmdType]
	if int(hdr.Size) != wantSize {
		return nil, cmdtable.NewAckError(cmdtable.InvalidPacketLength, []byte{hdr.Size}, cmdType, hdr.Counter)
	}

	return &CommandRecord{
		Header:  hdr,
		CmdType: cmdType,
		Payload: datagram[wire.CommandHeaderSize:],
		Sender:  sender,
	}, nil
}
