// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"fmt"

	"github.com/stylus-tools/stylus-trace/internal/errors"
	"github.com/stylus-tools/stylus-trace/internal/trace"
)

// BuildOptions carries capture metadata attached to the finished profile.
type BuildOptions struct {
	TransactionHash string
	TracerName      string
	// Ink marks the profile as Ink-accounted. When false, all Ink fields
	// stay nil regardless of what the events carry.
	Ink bool
	// TopPaths is how many hot paths to precompute on the profile.
	// Zero means DefaultTopPaths.
	TopPaths int
	// HotPathMetric selects the ranking metric for the precomputed hot
	// paths. Defaults to MetricGas.
	HotPathMetric Metric
}

// DefaultTopPaths is the hot-path count used when the caller does not ask
// for a specific one.
const DefaultTopPaths = 20

// arenaNode is the in-progress representation used during reconstruction.
// Nodes live in a flat slice and reference each other by index, so the
// builder never recurses over the trace and survives pathological depth.
type arenaNode struct {
	label       string
	parent      int
	children    []int
	selfGas     uint64
	selfInk     uint64
	inkSeen     bool
	hostioCount uint64
	callCount   uint64
	// openCount is how many stack entries currently reference this node.
	// Collapsed recursive re-entries share one node, so a bool is not enough.
	openCount int
}

// Build reconstructs a call tree from a normalized event stream. The stream
// must be completely materialized; partial input is not supported. Any
// structural imbalance aborts the build with ErrUnbalancedTrace — a partial
// profile is never returned.
func Build(events []trace.Event, opts BuildOptions) (*Profile, error) {
	if opts.TracerName == "" {
		opts.TracerName = trace.DefaultTracer
	}

	arena := []arenaNode{{label: RootLabel, parent: -1, callCount: 1, openCount: 1}}
	// stack holds arena indices of currently open nodes, root included.
	stack := []int{0}
	// hostioStack tracks open HostIO crossings so excess exits are caught.
	var hostioStack []string

	for _, ev := range events {
		top := stack[len(stack)-1]

		switch ev.Kind {
		case trace.KindCallEnter:
			// Direct recursion with no intervening siblings collapses
			// into the node being recursed on, and consecutive re-entry
			// of the same label under the same parent collapses into the
			// previous sibling. Both keep flamegraphs readable under
			// loops and recursion. Indirect recursion never collapses:
			// once the open node has accumulated children, a same-label
			// re-entry (f calling g calling f) nests a fresh node under
			// the intervening frame.
			if top != 0 && arena[top].label == ev.Label && len(arena[top].children) == 0 {
				arena[top].callCount++
				arena[top].openCount++
				stack = append(stack, top)
				break
			}
			if prev := lastChild(arena, top); prev >= 0 &&
				arena[prev].label == ev.Label && arena[prev].openCount == 0 {
				arena[prev].callCount++
				arena[prev].openCount++
				stack = append(stack, prev)
				break
			}
			arena = append(arena, arenaNode{
				label:     ev.Label,
				parent:    top,
				callCount: 1,
				openCount: 1,
			})
			idx := len(arena) - 1
			arena[top].children = append(arena[top].children, idx)
			stack = append(stack, idx)

		case trace.KindCallExit:
			if len(stack) <= 1 {
				return nil, errors.WrapUnbalancedTrace(
					fmt.Sprintf("call_exit %q at seq %d underflows the call stack", ev.Label, ev.Seq))
			}
			// Call overhead reported on the exit is direct cost of the
			// popped frame.
			arena[top].selfGas += ev.Gas
			if opts.Ink && ev.Ink != nil {
				arena[top].selfInk += *ev.Ink
				arena[top].inkSeen = true
			}
			arena[top].openCount--
			stack = stack[:len(stack)-1]

		case trace.KindHostIOEnter:
			hostioStack = append(hostioStack, ev.Label)

		case trace.KindHostIOExit:
			if len(hostioStack) == 0 {
				return nil, errors.WrapUnbalancedTrace(
					fmt.Sprintf("hostio_exit %q at seq %d has no open hostio_enter", ev.Label, ev.Seq))
			}
			hostioStack = hostioStack[:len(hostioStack)-1]
			// HostIO spans are leaf cost on the innermost open call,
			// never tree nodes of their own.
			arena[top].selfGas += ev.Gas
			if opts.Ink && ev.Ink != nil {
				arena[top].selfInk += *ev.Ink
				arena[top].inkSeen = true
			}
			arena[top].hostioCount++
		}
	}

	if len(stack) != 1 {
		return nil, errors.WrapUnbalancedTrace(
			fmt.Sprintf("%d call frame(s) left open at end of stream", len(stack)-1))
	}
	if len(hostioStack) != 0 {
		return nil, errors.WrapUnbalancedTrace(
			fmt.Sprintf("hostio %q left open at end of stream", hostioStack[len(hostioStack)-1]))
	}

	// Ink stays "not measured" unless some event actually reported it:
	// asking for Ink accounting from a tracer that omits the fields must
	// yield null, not a measured zero.
	inkMeasured := false
	if opts.Ink {
		for i := range arena {
			if arena[i].inkSeen {
				inkMeasured = true
				break
			}
		}
	}

	root := materialize(arena, 0, inkMeasured)

	p := &Profile{
		SchemaVersion:    SchemaVersion,
		TransactionHash:  opts.TransactionHash,
		TracerName:       opts.TracerName,
		TotalGas:         root.CumulativeGas,
		TotalHostIOCalls: root.HostIOCount,
		Root:             root,
	}
	if inkMeasured {
		total := uint64(0)
		if root.CumulativeInk != nil {
			total = *root.CumulativeInk
		}
		p.TotalInk = &total
	}

	n := opts.TopPaths
	if n <= 0 {
		n = DefaultTopPaths
	}
	metric := opts.HotPathMetric
	if metric == "" {
		metric = MetricGas
	}
	paths, err := TopPaths(p, n, metric)
	if err != nil {
		return nil, err
	}
	p.HotPaths = paths

	return p, nil
}

// lastChild returns the index of the most recently added child of parent,
// or -1 when parent has none.
func lastChild(arena []arenaNode, parent int) int {
	kids := arena[parent].children
	if len(kids) == 0 {
		return -1
	}
	return kids[len(kids)-1]
}

// materialize converts the arena into an owned node tree. Children always
// sit at higher indices than their parent, so one reverse sweep computes the
// cumulative rollup without recursing, and a forward sweep links the tree.
func materialize(arena []arenaNode, rootIdx int, ink bool) *Node {
	nodes := make([]*Node, len(arena))
	for i := range arena {
		a := &arena[i]
		nodes[i] = &Node{
			Label:         a.label,
			SelfGas:       a.selfGas,
			CumulativeGas: a.selfGas,
			HostIOCount:   a.hostioCount,
			CallCount:     a.callCount,
		}
		if ink {
			self := a.selfInk
			cum := a.selfInk
			nodes[i].SelfInk = &self
			nodes[i].CumulativeInk = &cum
		}
	}

	// Bottom-up rollup: fold each node into its parent, deepest first.
	for i := len(arena) - 1; i > rootIdx; i-- {
		parent := arena[i].parent
		nodes[parent].CumulativeGas += nodes[i].CumulativeGas
		nodes[parent].HostIOCount += nodes[i].HostIOCount
		if ink && nodes[parent].CumulativeInk != nil && nodes[i].CumulativeInk != nil {
			*nodes[parent].CumulativeInk += *nodes[i].CumulativeInk
		}
	}

	for i := range arena {
		for _, childIdx := range arena[i].children {
			nodes[i].Children = append(nodes[i].Children, nodes[childIdx])
		}
	}
	return nodes[rootIdx]
}
