// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"encoding/json"
	"fmt"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

// DefaultTracer is the tracer registered by Arbitrum Nitro for Stylus
// transactions.
const DefaultTracer = "stylusTracer"

// Options controls normalization behavior.
type Options struct {
	// Ink enables Ink-unit accounting. When false every produced event has
	// a nil Ink field even if the tracer reported Ink values.
	Ink bool
}

// stylusFrame mirrors one HostioTraceInfo entry emitted by the Nitro
// stylusTracer. Frames with a non-nil Steps slice are nested calls
// (call_contract and friends); all others are plain HostIO crossings.
type stylusFrame struct {
	Name     string        `json:"name"`
	Args     string        `json:"args"`
	Outs     string        `json:"outs"`
	StartInk uint64        `json:"startInk"`
	EndInk   uint64        `json:"endInk"`
	Address  *string       `json:"address,omitempty"`
	Steps    []stylusFrame `json:"steps,omitempty"`
}

// flatEvent is the generic schema accepted for tracers other than
// stylusTracer: a pre-flattened enter/exit stream.
type flatEvent struct {
	Kind  string  `json:"kind"`
	Label string  `json:"label"`
	Gas   uint64  `json:"gas"`
	Ink   *uint64 `json:"ink,omitempty"`
}

// Normalize parses raw tracer output into an ordered event stream.
// The tracer name selects the schema: stylusTracer output is the nested
// HostioTraceInfo array produced by Nitro, anything else must already be a
// flat {kind,label,gas,ink} array. Unparseable input and exit events with no
// matching open enter yield ErrMalformedTrace.
func Normalize(raw json.RawMessage, tracerName string, opts Options) ([]Event, error) {
	if tracerName == "" {
		tracerName = DefaultTracer
	}
	if len(raw) == 0 {
		return nil, errors.WrapMalformedTrace("", fmt.Errorf("empty tracer output"))
	}

	if tracerName == DefaultTracer {
		return normalizeStylus(raw, opts)
	}
	return normalizeFlat(raw, opts)
}

func normalizeStylus(raw json.RawMessage, opts Options) ([]Event, error) {
	var frames []stylusFrame
	if err := json.Unmarshal(raw, &frames); err != nil {
		return nil, errors.WrapMalformedTrace("", fmt.Errorf("decoding stylusTracer output: %w", err))
	}

	var events []Event
	seq := 0
	for i := range frames {
		var err error
		events, seq, err = appendFrame(events, &frames[i], seq, opts)
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

// appendFrame flattens one stylusTracer frame. Nested-call frames become a
// CallEnter/CallExit pair around their steps; the exit carries the frame's
// direct overhead so nested costs are never counted twice. Plain frames
// become a HostIOEnter/HostIOExit pair.
func appendFrame(events []Event, f *stylusFrame, seq int, opts Options) ([]Event, int, error) {
	if f.EndInk > f.StartInk {
		return nil, seq, errors.WrapMalformedTrace("",
			fmt.Errorf("hostio %q: endInk %d exceeds startInk %d", f.Name, f.EndInk, f.StartInk))
	}
	spanInk := f.StartInk - f.EndInk

	if f.Steps == nil {
		events = append(events, Event{Kind: KindHostIOEnter, Label: f.Name, Seq: seq})
		seq++
		ev := Event{Kind: KindHostIOExit, Label: f.Name, Gas: spanInk / InkPerGas, Seq: seq}
		if opts.Ink {
			ev.Ink = inkPtr(spanInk)
		}
		events = append(events, ev)
		seq++
		return events, seq, nil
	}

	label := callLabel(f)
	events = append(events, Event{Kind: KindCallEnter, Label: label, Seq: seq})
	seq++

	var nestedInk uint64
	for i := range f.Steps {
		step := &f.Steps[i]
		if step.EndInk <= step.StartInk {
			nestedInk += step.StartInk - step.EndInk
		}
		var err error
		events, seq, err = appendFrame(events, step, seq, opts)
		if err != nil {
			return nil, seq, err
		}
	}

	overheadInk := uint64(0)
	if spanInk > nestedInk {
		overheadInk = spanInk - nestedInk
	}
	ev := Event{Kind: KindCallExit, Label: label, Gas: overheadInk / InkPerGas, Seq: seq}
	if opts.Ink {
		ev.Ink = inkPtr(overheadInk)
	}
	events = append(events, ev)
	seq++
	return events, seq, nil
}

func callLabel(f *stylusFrame) string {
	if f.Address != nil && *f.Address != "" {
		return fmt.Sprintf("%s[%s]", f.Name, shortAddress(*f.Address))
	}
	return f.Name
}

// shortAddress abbreviates a 0x-prefixed address for display labels.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + ".." + addr[len(addr)-4:]
}

func normalizeFlat(raw json.RawMessage, opts Options) ([]Event, error) {
	var flat []flatEvent
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, errors.WrapMalformedTrace("", fmt.Errorf("decoding flat tracer output: %w", err))
	}

	events := make([]Event, 0, len(flat))
	var open []Kind
	for i, fe := range flat {
		kind, err := parseKind(fe.Kind)
		if err != nil {
			return nil, errors.WrapMalformedTrace("", fmt.Errorf("event %d: %w", i, err))
		}
		if fe.Label == "" {
			return nil, errors.WrapMalformedTrace("", fmt.Errorf("event %d: missing label", i))
		}

		switch kind {
		case KindCallEnter, KindHostIOEnter:
			open = append(open, kind)
		case KindCallExit:
			if len(open) == 0 || open[len(open)-1] != KindCallEnter {
				return nil, errors.WrapMalformedTrace("",
					fmt.Errorf("event %d: call_exit with no matching open call_enter", i))
			}
			open = open[:len(open)-1]
		case KindHostIOExit:
			if len(open) == 0 || open[len(open)-1] != KindHostIOEnter {
				return nil, errors.WrapMalformedTrace("",
					fmt.Errorf("event %d: hostio_exit with no matching open hostio_enter", i))
			}
			open = open[:len(open)-1]
		}

		ev := Event{Kind: kind, Label: fe.Label, Gas: fe.Gas, Seq: i}
		if opts.Ink && fe.Ink != nil {
			v := *fe.Ink
			ev.Ink = &v
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "call_enter":
		return KindCallEnter, nil
	case "call_exit":
		return KindCallExit, nil
	case "hostio_enter":
		return KindHostIOEnter, nil
	case "hostio_exit":
		return KindHostIOExit, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}
