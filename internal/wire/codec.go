package wire

import "encoding/binary"

// EncodeCommand assembles a full command datagram: base header (sync and
// system ID set, CRC left zero), the three command-specific header fields,
// and payload. The CRC is not computed here; call Seal before sending.
func EncodeCommand(payload []byte, cmdID, counter uint8) []byte {
	buf := make([]byte, CommandHeaderSize+len(payload))
	hdr := CommandHeader{
		Base:    BaseHeader{Sync: Sync, SystemID: SystemID},
		CmdType: cmdID,
		Counter: counter,
		Size:    uint8(len(payload)),
	}
	hdr.Put(buf)
	copy(buf[CommandHeaderSize:], payload)
	return buf
}

// EncodeTelemetry assembles a full telemetry datagram with the given
// gondola time already stamped. Callers that want the freshest possible
// time should call StampAndSeal again immediately before transmission.
func EncodeTelemetry(payload []byte, telemID uint8, counter uint16, t GondolaTime) []byte {
	buf := make([]byte, TelemetryHeaderSize+len(payload))
	hdr := TelemetryHeader{
		Base:        BaseHeader{Sync: Sync, SystemID: SystemID},
		TelemType:   telemID,
		Size:        uint16(len(payload)),
		Counter:     counter,
		GondolaTime: t,
	}
	hdr.Put(buf)
	copy(buf[TelemetryHeaderSize:], payload)
	return buf
}

// Seal zeroes the CRC field, recomputes the Modbus CRC-16 over the whole
// buffer, and writes it back. It must be the last step before a datagram
// is transmitted.
func Seal(buf []byte) {
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint16(buf[2:4], CRC16Modbus(buf))
}

// StampAndSeal rewrites the gondola time on a telemetry datagram (when
// isTelemetry is true, it lives at the fixed offset following the
// telemetry header's fixed fields) and reseals the CRC. Command datagrams
// carry no time field, so isTelemetry must be false for those and only the
// CRC is rewritten.
func StampAndSeal(buf []byte, isTelemetry bool, t GondolaTime) {
	if isTelemetry && len(buf) >= TelemetryHeaderSize {
		off := TelemetryHeaderSize - GondolaTimeSize
		t.Put(buf[off : off+GondolaTimeSize])
	}
	Seal(buf)
}

// Verify checks the base-header invariants common to every datagram: the
// buffer is at least as long as a base header, the sync word matches, and
// the CRC verifies over the full datagram with the CRC field zeroed.
func Verify(buf []byte) error {
	if len(buf) < BaseHeaderSize {
		return ErrShortBuffer
	}
	base := GetBaseHeader(buf)
	if base.Sync != Sync {
		return ErrInvalidSync
	}
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	binary.LittleEndian.PutUint16(scratch[2:4], 0)
	computed := CRC16Modbus(scratch)
	if computed != base.CRC16 {
		return &BadCRCError{Received: base.CRC16, Computed: computed}
	}
	return nil
}
