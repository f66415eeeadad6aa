// Package pmerr defines the error taxonomy shared by the wire codec,
// expression engine, archive store, and connection plane. Each kind is a
// sentinel error; call sites wrap it with fmt.Errorf("...: %w", kind) so
// errors.Is still matches the kind while the message carries detail.
package pmerr

import "errors"

// Kinds, not concrete types: callers compare with errors.Is, never by
// asserting a particular wrapper type.
var (
	// ErrIPC covers framing/length/type mismatches, short reads/writes,
	// unknown flags, and unknown PDU types.
	ErrIPC = errors.New("ipc error")

	// ErrProtocol covers a decoded record that is semantically invalid:
	// duplicate port, negative count, sub-structure length mismatch.
	ErrProtocol = errors.New("protocol error")

	// ErrResource covers out-of-memory, out-of-fd, and bind failures.
	ErrResource = errors.New("resource error")

	// ErrConv is a derived-metric operand type-conversion failure.
	ErrConv = errors.New("unit conversion error")

	// ErrType is a derived-metric operand type mismatch.
	ErrType = errors.New("type error")

	// ErrLogRec is a corrupt or unreadable archive metadata record.
	ErrLogRec = errors.New("archive log record error")

	// ErrPMID is an unresolvable or malformed metric identifier.
	ErrPMID = errors.New("unknown metric id")

	// ErrIndom is an unresolvable instance-domain identifier.
	ErrIndom = errors.New("unknown instance domain")

	// ErrInstLog is a missing instance in an archive instance domain.
	ErrInstLog = errors.New("instance not in archive log")

	// ErrLogChangeType, ErrLogChangeSem, ErrLogChangeIndom and
	// ErrLogChangeUnits fire when a descriptor is rebound with
	// conflicting fields (see pkg/archive).
	ErrLogChangeType  = errors.New("metric type changed across archive load")
	ErrLogChangeSem   = errors.New("metric semantics changed across archive load")
	ErrLogChangeIndom = errors.New("metric instance domain changed across archive load")
	ErrLogChangeUnits = errors.New("metric units changed across archive load")

	// ErrTimeout is distinct from ErrIPC: a deadline elapsed, nothing
	// was necessarily malformed.
	ErrTimeout = errors.New("timeout")

	// ErrNotSupported marks a feature probed but unavailable on this
	// platform/build.
	ErrNotSupported = errors.New("not supported")

	// ErrTooBig is the LIMIT_SIZE oversize-frame rejection (§4.B).
	ErrTooBig = errors.New("pdu exceeds size limit")
)
