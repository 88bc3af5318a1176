// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile reconstructs a cost-annotated call tree from a normalized
// trace event stream and extracts the costliest execution paths from it.
package profile

// RootLabel names the synthetic top-level node that represents the whole
// transaction.
const RootLabel = "transaction"

// Node is one call-tree node. Children are owned exclusively by their parent
// and kept in first-seen order, which downstream flamegraph layout relies on.
type Node struct {
	Label string `json:"label"`

	// SelfGas is the cost attributed directly to this node, excluding
	// children: HostIO crossings that happened while this frame was the
	// innermost open call, plus the frame's own call overhead.
	SelfGas uint64 `json:"self_gas"`
	// CumulativeGas is SelfGas plus the cumulative gas of all descendants.
	CumulativeGas uint64 `json:"cumulative_gas"`

	// SelfInk and CumulativeInk are nil when Ink accounting was not
	// requested; nil means "not measured" and is never folded as zero.
	SelfInk       *uint64 `json:"self_ink,omitempty"`
	CumulativeInk *uint64 `json:"cumulative_ink,omitempty"`

	// HostIOCount is the number of host boundary crossings inside this
	// node's subtree.
	HostIOCount uint64 `json:"hostio_count"`

	// CallCount is how many times this exact path recurred; consecutive
	// same-label re-entries collapse into one node instead of producing
	// sibling duplicates.
	CallCount uint64 `json:"call_count"`

	Children []*Node `json:"children,omitempty"`
}

// IsLeaf returns true if this node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk visits every node in depth-first preorder together with its full
// root-to-node label path. Traversal order is deterministic because child
// order is first-seen order.
func (n *Node) Walk(fn func(path []string, node *Node)) {
	n.walk(nil, fn)
}

func (n *Node) walk(prefix []string, fn func(path []string, node *Node)) {
	path := append(append([]string{}, prefix...), n.Label)
	fn(path, n)
	for _, child := range n.Children {
		child.walk(path, fn)
	}
}

// Equal reports deep equality of two subtrees, treating nil and missing Ink
// identically.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Label != other.Label ||
		n.SelfGas != other.SelfGas ||
		n.CumulativeGas != other.CumulativeGas ||
		n.HostIOCount != other.HostIOCount ||
		n.CallCount != other.CallCount ||
		!optEqual(n.SelfInk, other.SelfInk) ||
		!optEqual(n.CumulativeInk, other.CumulativeInk) ||
		len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

func optEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// HotPath is one ranked root-to-node chain.
type HotPath struct {
	// NodePath is the ordered label sequence from root to the node.
	NodePath []string `json:"node_path"`
	// MetricValue is the cost value that earned this path its rank.
	MetricValue uint64 `json:"metric_value"`
	// Rank is 1-based, densest first.
	Rank int `json:"rank"`
}

// Profile is the serializable representation of a finished capture. It is
// built once and never mutated afterward; diffing works on copies of the
// numbers only.
type Profile struct {
	SchemaVersion   string `json:"schema_version"`
	TransactionHash string `json:"transaction_hash"`
	TracerName      string `json:"tracer_name"`

	TotalGas uint64 `json:"total_gas"`
	// TotalInk is null in serialized form when Ink accounting was off.
	TotalInk         *uint64 `json:"total_ink"`
	TotalHostIOCalls uint64  `json:"total_hostio_calls"`

	// HotPaths is derived from Root; it is persisted for display but can
	// always be recomputed.
	HotPaths []HotPath `json:"hot_paths"`

	Root *Node `json:"root"`
}

// Equal reports whether two profiles are semantically identical.
func (p *Profile) Equal(other *Profile) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.SchemaVersion != other.SchemaVersion ||
		p.TransactionHash != other.TransactionHash ||
		p.TracerName != other.TracerName ||
		p.TotalGas != other.TotalGas ||
		p.TotalHostIOCalls != other.TotalHostIOCalls ||
		!optEqual(p.TotalInk, other.TotalInk) ||
		len(p.HotPaths) != len(other.HotPaths) {
		return false
	}
	for i := range p.HotPaths {
		if !hotPathEqual(p.HotPaths[i], other.HotPaths[i]) {
			return false
		}
	}
	return p.Root.Equal(other.Root)
}

func hotPathEqual(a, b HotPath) bool {
	if a.MetricValue != b.MetricValue || a.Rank != b.Rank || len(a.NodePath) != len(b.NodePath) {
		return false
	}
	for i := range a.NodePath {
		if a.NodePath[i] != b.NodePath[i] {
			return false
		}
	}
	return true
}
