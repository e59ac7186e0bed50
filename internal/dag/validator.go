// Package dag validates that adding an edge to a directed graph keeps it
// acyclic and within a bounded depth. One validator serves every relation
// that needs the guarantee (product composition, collection hierarchy);
// relations differ only in the edge accessor and the configured depth.
package dag

import (
	"context"
	"errors"
)

var (
	ErrSelfReference = errors.New("dag: self reference")
	ErrCycle         = errors.New("dag: cycle detected")
	ErrDepthExceeded = errors.New("dag: max depth exceeded")
)

// EdgeFunc returns the current outgoing-edge targets of a node. It sees the
// graph as it exists before the proposed edge is added; when validation runs
// inside a write transaction the accessor must read through that transaction.
type EdgeFunc[ID comparable] func(ctx context.Context, id ID) ([]ID, error)

// Validator checks a proposed edge against the bounded-DAG invariant.
type Validator[ID comparable] struct {
	edges    EdgeFunc[ID]
	maxDepth int
}

// New builds a validator over the given accessor. maxDepth counts node
// levels on the longest path including the proposed edge: the edge source is
// level 1, its direct target level 2, and so on. A chain exactly at the
// bound is accepted.
func New[ID comparable](edges EdgeFunc[ID], maxDepth int) *Validator[ID] {
	return &Validator[ID]{edges: edges, maxDepth: maxDepth}
}

// Validate decides whether adding the edge source -> target keeps the graph
// a valid bounded DAG. It returns nil, or one of ErrSelfReference, ErrCycle,
// ErrDepthExceeded (or an accessor error).
func (v *Validator[ID]) Validate(ctx context.Context, source, target ID) error {
	if source == target {
		return ErrSelfReference
	}
	return v.walk(ctx, source, target, 2)
}

func (v *Validator[ID]) walk(ctx context.Context, source, node ID, depth int) error {
	if node == source {
		return ErrCycle
	}
	// Depth is checked before descending, so the traversal is bounded even
	// if stored data already violates the invariant.
	if depth > v.maxDepth {
		return ErrDepthExceeded
	}
	children, err := v.edges(ctx, node)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := v.walk(ctx, source, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
