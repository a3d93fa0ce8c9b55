// Package graph holds the desired-state dependency graph. Symbolic
// cross-references between resources become explicit edges, resolved and
// ordered here instead of being inferred at apply time.
package graph

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

// Node is one desired resource in the graph.
type Node interface {
	// Key uniquely identifies the node across all resource kinds.
	Key() string
	// Type is the resource type identifier.
	Type() string
	// DependsOn lists keys of nodes that must exist before this one.
	DependsOn() []string
}

// UnresolvedError reports a symbolic reference to a node that was never
// declared. It fails the build before any plan or apply.
type UnresolvedError struct {
	Reference string // missing node key
	Node      string // node that required it
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved reference %q required by %q", e.Reference, e.Node)
}

// CycleError reports a dependency cycle.
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected at %q", e.Node)
}

// Graph is a directed acyclic graph of desired resources. Node insertion
// order is preserved so resolution and ordering are deterministic.
type Graph struct {
	g   graph.Graph[string, Node]
	seq []string
	pos map[string]int
}

// New creates an empty graph. Edges that would close a cycle are rejected
// at resolution time.
func New() *Graph {
	return &Graph{
		g:   graph.New(Node.Key, graph.Directed(), graph.PreventCycles()),
		pos: make(map[string]int),
	}
}

// Add inserts a node. Duplicate keys are rejected.
func (g *Graph) Add(n Node) error {
	if err := g.g.AddVertex(n); err != nil {
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return fmt.Errorf("duplicate resource key %q", n.Key())
		}
		return err
	}
	g.pos[n.Key()] = len(g.seq)
	g.seq = append(g.seq, n.Key())
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.seq)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.seq))
	for _, key := range g.seq {
		node, err := g.g.Vertex(key)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Resolve materializes every dependency as an edge from dependency to
// dependent. A dangling reference comes back as an UnresolvedError, an
// edge that would close a cycle as a CycleError. Resolving twice is a
// no-op for edges already present.
func (g *Graph) Resolve() error {
	for _, key := range g.seq {
		node, err := g.g.Vertex(key)
		if err != nil {
			return err
		}

		for _, dep := range node.DependsOn() {
			err := g.g.AddEdge(dep, key)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrVertexNotFound):
				return &UnresolvedError{Reference: dep, Node: key}
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return &CycleError{Node: key}
			default:
				return fmt.Errorf("failed to add edge %q -> %q: %w", dep, key, err)
			}
		}
	}
	return nil
}

// TopoSort returns the nodes in dependency order: every node appears after
// all of its dependencies. Ties break by insertion order, so the result is
// deterministic given the same input.
func (g *Graph) TopoSort() ([]Node, error) {
	if err := g.Resolve(); err != nil {
		return nil, err
	}

	keys, err := graph.StableTopologicalSort(g.g, func(a, b string) bool {
		return g.pos[a] < g.pos[b]
	})
	if err != nil {
		return nil, fmt.Errorf("failed to order graph: %w", err)
	}

	nodes := make([]Node, 0, len(keys))
	for _, key := range keys {
		node, err := g.g.Vertex(key)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
