// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package trace turns raw tracer output from a debug_traceTransaction call
// into a flat, ordered stream of typed events that the profile builder can
// consume without knowing anything about tracer schemas.
package trace

// InkPerGas is the Stylus scaling factor between gas and Ink units.
const InkPerGas = 10_000

// Kind identifies what a single trace event represents.
type Kind uint8

const (
	// KindCallEnter opens a new frame in the call tree.
	KindCallEnter Kind = iota
	// KindCallExit closes the innermost open call frame. Its Gas/Ink carry
	// the frame's direct overhead (total span minus nested spans), not the
	// cumulative cost of the subtree.
	KindCallExit
	// KindHostIOEnter marks the start of a host boundary crossing.
	KindHostIOEnter
	// KindHostIOExit marks the end of a host boundary crossing and carries
	// the cost of the whole crossing.
	KindHostIOExit
)

func (k Kind) String() string {
	switch k {
	case KindCallEnter:
		return "call_enter"
	case KindCallExit:
		return "call_exit"
	case KindHostIOEnter:
		return "hostio_enter"
	case KindHostIOExit:
		return "hostio_exit"
	default:
		return "unknown"
	}
}

// Event is one observed occurrence during transaction execution. Events are
// immutable once produced; Seq preserves the original stream order because
// HostIO crossings carry no global timestamps.
type Event struct {
	Kind  Kind
	Label string
	Gas   uint64
	// Ink is nil when Ink accounting was not requested for the capture.
	// Absent Ink means "not measured", never zero.
	Ink *uint64
	Seq int
}

// inkPtr returns a pointer to v, for building optional Ink values.
func inkPtr(v uint64) *uint64 { return &v }
