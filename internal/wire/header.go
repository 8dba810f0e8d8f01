// Package wire implements the GRIPS byte-packed, little-endian datagram
// format: base header, CRC-16/Modbus sealing, and the command/telemetry
// header variants layered on top of it.
//
// Go structs carry compiler-chosen padding, so unlike the teacher's
// modbus framer (which can lean on a TCP-only 8 byte fixed ADU prefix),
// every field here is read and written by explicit offset into a []byte,
// the way soypat/lneto's udp.Frame indexes into a raw buffer rather than
// trusting struct layout.
package wire

import "encoding/binary"

const (
	// Sync is the constant two-byte marker at the front of every datagram.
	Sync uint16 = 0xEB90
	// SystemID identifies the IMPISH payload on the GRIPS bus.
	SystemID uint8 = 0xED

	// BaseHeaderSize is the length in bytes of BaseHeader on the wire.
	BaseHeaderSize = 5
	// GondolaTimeSize is the length in bytes of GondolaTime on the wire.
	GondolaTimeSize = 6
	// CommandHeaderSize is the length in bytes of CommandHeader on the wire.
	CommandHeaderSize = BaseHeaderSize + 3
	// TelemetryHeaderSize is the length in bytes of TelemetryHeader on the wire.
	TelemetryHeaderSize = BaseHeaderSize + 1 + 2 + 2 + GondolaTimeSize
)

// BaseHeader is the 5 byte prefix shared by every command and telemetry
// datagram.
type BaseHeader struct {
	Sync     uint16
	CRC16    uint16
	SystemID uint8
}

// Put writes the base header into buf[0:5].
func (h BaseHeader) Put(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Sync)
	binary.LittleEndian.PutUint16(buf[2:4], h.CRC16)
	buf[4] = h.SystemID
}

// GetBaseHeader reads a BaseHeader out of buf[0:5].
func GetBaseHeader(buf []byte) BaseHeader {
	return BaseHeader{
		Sync:     binary.LittleEndian.Uint16(buf[0:2]),
		CRC16:    binary.LittleEndian.Uint16(buf[2:4]),
		SystemID: buf[4],
	}
}

// GondolaTime is the 48 bit logical monotonic clock value stamped onto
// outgoing telemetry, stored as a u32 low half followed by a u16 high half.
type GondolaTime struct {
	LS32 uint32
	MS16 uint16
}

// Compute reassembles the 48 bit value: high<<32 | low.
func (t GondolaTime) Compute() uint64 {
	return uint64(t.LS32) | uint64(t.MS16)<<32
}

// GondolaTimeFrom builds a GondolaTime from a 48 bit monotonic value.
func GondolaTimeFrom(v uint64) GondolaTime {
	return GondolaTime{
		LS32: uint32(v & 0xFFFFFFFF),
		MS16: uint16((v >> 32) & 0xFFFF),
	}
}

// Put writes the gondola time into buf[0:6].
func (t GondolaTime) Put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], t.LS32)
	binary.LittleEndian.PutUint16(buf[4:6], t.MS16)
}

// GetGondolaTime reads a GondolaTime out of buf[0:6].
func GetGondolaTime(buf []byte) GondolaTime {
	return GondolaTime{
		LS32: binary.LittleEndian.Uint32(buf[0:4]),
		MS16: binary.LittleEndian.Uint16(buf[4:6]),
	}
}

// CommandHeader is the base header plus the 3 bytes identifying a command
// datagram: which command, its sequence number, and the size of the body
// that follows.
type CommandHeader struct {
	Base    BaseHeader
	CmdType uint8
	Counter uint8
	Size    uint8
}

// Put writes the command header into buf[0:CommandHeaderSize].
func (h CommandHeader) Put(buf []byte) {
	h.Base.Put(buf[0:BaseHeaderSize])
	buf[BaseHeaderSize] = h.CmdType
	buf[BaseHeaderSize+1] = h.Counter
	buf[BaseHeaderSize+2] = h.Size
}

// GetCommandHeader reads a CommandHeader out of buf[0:CommandHeaderSize].
// Callers must ensure len(buf) >= CommandHeaderSize.
func GetCommandHeader(buf []byte) CommandHeader {
	return CommandHeader{
		Base:    GetBaseHeader(buf[0:BaseHeaderSize]),
		CmdType: buf[BaseHeaderSize],
		Counter: buf[BaseHeaderSize+1],
		Size:    buf[BaseHeaderSize+2],
	}
}

// TelemetryHeader is the base header plus the fields needed to route and
// order a telemetry datagram: its type, body size, monotonic counter and
// the time it was stamped.
type TelemetryHeader struct {
	Base        BaseHeader
	TelemType   uint8
	Size        uint16
	Counter     uint16
	GondolaTime GondolaTime
}

// Put writes the telemetry header into buf[0:TelemetryHeaderSize].
func (h TelemetryHeader) Put(buf []byte) {
	h.Base.Put(buf[0:BaseHeaderSize])
	off := BaseHeaderSize
	buf[off] = h.TelemType
	off++
	binary.LittleEndian.PutUint16(buf[off:off+2], h.Size)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:off+2], h.Counter)
	off += 2
	h.GondolaTime.Put(buf[off : off+GondolaTimeSize])
}

// GetTelemetryHeader reads a TelemetryHeader out of buf[0:TelemetryHeaderSize].
// Callers must ensure len(buf) >= TelemetryHeaderSize.
func GetTelemetryHeader(buf []byte) TelemetryHeader {
	off := BaseHeaderSize
	telemType := buf[off]
	off++
	size := binary.LittleEndian.Uint16(buf[off : off+2])
	off += 2
	counter := binary.LittleEndian.Uint16(buf[off : off+2])
	off += 2
	gt := GetGondolaTime(buf[off : off+GondolaTimeSize])
	return TelemetryHeader{
		Base:        GetBaseHeader(buf[0:BaseHeaderSize]),
		TelemType:   telemType,
		Size:        size,
		Counter:     counter,
		GondolaTime: gt,
	}
}

// PeekTelemetryType reads only the telem_type field, for callers (the
// discriminator, the telemetry sorter) that route on type without decoding
// the full header.
func PeekTelemetryType(buf []byte) (uint8, bool) {
	if len(buf) < TelemetryHeaderSize {
		return 0, false
	}
	return buf[BaseHeaderSize], true
}
