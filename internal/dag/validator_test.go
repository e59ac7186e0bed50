package dag

import (
	"context"
	"errors"
	"testing"
)

// mapEdges builds an accessor over a static adjacency map.
func mapEdges(adj map[string][]string) EdgeFunc[string] {
	return func(ctx context.Context, id string) ([]string, error) {
		return adj[id], nil
	}
}

func TestValidateSelfReference(t *testing.T) {
	v := New(mapEdges(nil), 5)

	err := v.Validate(context.Background(), "a", "a")
	if !errors.Is(err, ErrSelfReference) {
		t.Errorf("expected ErrSelfReference, got %v", err)
	}
}

func TestValidateDirectCycle(t *testing.T) {
	// b already points at a; adding a -> b closes the loop
	v := New(mapEdges(map[string][]string{
		"b": {"a"},
	}), 5)

	err := v.Validate(context.Background(), "a", "b")
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestValidateIndirectCycle(t *testing.T) {
	// b -> c -> d -> a, so a -> b would close a four-node loop
	v := New(mapEdges(map[string][]string{
		"b": {"c"},
		"c": {"d"},
		"d": {"a"},
	}), 10)

	err := v.Validate(context.Background(), "a", "b")
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestValidateAcceptsValidEdge(t *testing.T) {
	v := New(mapEdges(map[string][]string{
		"b": {"c"},
		"c": {"d"},
	}), 5)

	if err := v.Validate(context.Background(), "a", "b"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestValidateDiamondIsNotACycle(t *testing.T) {
	// b and c both point at d; a -> b and a -> c share the d node without
	// forming a loop
	v := New(mapEdges(map[string][]string{
		"a": {"c"},
		"b": {"d"},
		"c": {"d"},
	}), 5)

	if err := v.Validate(context.Background(), "a", "b"); err != nil {
		t.Errorf("diamond rejected: %v", err)
	}
}

func TestValidateDepthBound(t *testing.T) {
	// chain b -> c -> d -> e below the proposed edge a -> b
	adj := map[string][]string{
		"b": {"c"},
		"c": {"d"},
		"d": {"e"},
	}

	// a,b,c,d,e is five levels; accepted exactly at the bound
	if err := New(mapEdges(adj), 5).Validate(context.Background(), "a", "b"); err != nil {
		t.Errorf("chain at the bound rejected: %v", err)
	}

	// one level tighter and the same chain exceeds the bound
	err := New(mapEdges(adj), 4).Validate(context.Background(), "a", "b")
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestValidateDepthBoundsTraversalOverCorruptData(t *testing.T) {
	// stored loop not involving the source; the depth check must stop the
	// walk instead of recursing forever
	v := New(mapEdges(map[string][]string{
		"b": {"c"},
		"c": {"b"},
	}), 5)

	err := v.Validate(context.Background(), "a", "b")
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestValidatePropagatesAccessorError(t *testing.T) {
	accessorErr := errors.New("boom")
	v := New(EdgeFunc[string](func(ctx context.Context, id string) ([]string, error) {
		return nil, accessorErr
	}), 5)

	if err := v.Validate(context.Background(), "a", "b"); !errors.Is(err, accessorErr) {
		t.Errorf("expected accessor error, got %v", err)
	}
}

func TestValidateIntKeys(t *testing.T) {
	v := New(EdgeFunc[int](func(ctx context.Context, id int) ([]int, error) {
		if id == 2 {
			return []int{1}, nil
		}
		return nil, nil
	}), 5)

	if err := v.Validate(context.Background(), 1, 2); !errors.Is(err, ErrCycle) {
		t.Error("expected ErrCycle with integer node ids")
	}
}
