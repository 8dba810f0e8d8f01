// Package ackbuilder constructs command-acknowledgement telemetry payloads,
// grounded on impisc's grips_given.CommandAcknowledgement constructors and
// on the teacher's Exception-to-response mapping in server.go's handle().
package ackbuilder

import "github.com/umn-impish/impisc/internal/cmdtable"

// NewSuccess returns a zero-initialized success ack: ErrorType is
// cmdtable.NoError and ErrorData is all zero. Counter/CmdType are filled in
// by PreSend immediately before transmission.
func NewSuccess() cmdtable.CommandAcknowledgement {
	return cmdtable.CommandAcknowledgement{}
}

// FromError builds an ack from an AckError, copying its kind, data,
// sequence number and command type onto the ack fields.
func FromError(e *cmdtable.AckError) cmdtable.CommandAcknowledgement {
	return cmdtable.CommandAcknowledgement{
		Counter:   e.SeqNum,
		CmdType:   e.CmdType,
		ErrorType: e.Kind,
		ErrorData: e.Data,
	}
}

// PreSend stamps the originating command's sequence number and type onto a
// success ack immediately before it is sent; the wire codec stamps time and
// CRC after this, last (spec.md §4.3).
func PreSend(a *cmdtable.CommandAcknowledgement, seqNum uint8, cmdType cmdtable.CommandID) {
	a.Counter = seqNum
	a.CmdType = cmdType
}
