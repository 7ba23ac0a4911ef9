// Package graph implements the graph registry (spec.md §4.3): the live,
// extensible union of the static configuration and any dynamic fragments
// inserted during the run, with acyclicity and unique-output-ownership
// maintained on every insert.
//
// Cycle detection is delegated to gonum.org/v1/gonum/graph/topo.Sort, the
// same library the teacher's internal/batch/batch.go uses to order (and
// break cycles in) its package-dependency graph before a batch build — here
// it runs incrementally on every dynamic insert instead of once up front.
package graph

import (
	"fmt"
	"sync"

	"github.com/distr1/taskmill/internal/config"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Error kinds returned by Registry, matching spec.md §7's "Structural"
// error class.
type Error struct {
	Kind   string // "duplicate-output" or "cycle"
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

type node struct {
	id     int64
	target string
}

func (n *node) ID() int64 { return n.id }

// Registry holds the mutable graph. The zero value is not usable;
// construct with New.
type Registry struct {
	mu         sync.Mutex
	g          *simple.DirectedGraph
	nodeByID   map[string]*node
	ownerByOut map[string]string // output name -> owning target id
	nextID     int64
}

// New builds a Registry seeded with the static configuration's targets and
// edges. The driver assumes the static configuration is already free of
// cycles and duplicate outputs (spec.md §6); New re-validates anyway, since
// it is also the code path dynamic fragments go through.
func New(cfg *config.Configuration) (*Registry, error) {
	r := &Registry{
		g:          simple.NewDirectedGraph(),
		nodeByID:   make(map[string]*node),
		ownerByOut: make(map[string]string),
	}
	if err := r.merge(cfg.Outputs); err != nil {
		return nil, err
	}
	return r, nil
}

// Insert merges a dynamic fragment's outputs into the registry. It fails
// with a *Error if the fragment would introduce a duplicate output owner or
// a cycle; on failure the registry is left exactly as it was before the
// call (spec.md I4: a cycle-introducing fragment fails before any command
// runs). Insert is serialized under an exclusive lock so concurrent dynamic
// compilations cannot race (spec.md §4.3).
func (r *Registry) Insert(fragment *config.Fragment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.merge(fragment.Outputs)
}

// merge applies outputs to a scratch copy of the graph and owner map, only
// committing if the result both has no duplicate owners and remains
// acyclic. Callers must hold r.mu.
func (r *Registry) merge(outputs map[string]*config.Target) error {
	scratchGraph := simple.NewDirectedGraph()
	scratchOwner := make(map[string]string, len(r.ownerByOut))
	for k, v := range r.ownerByOut {
		scratchOwner[k] = v
	}
	scratchNodes := make(map[string]*node, len(r.nodeByID))
	for k, v := range r.nodeByID {
		scratchNodes[k] = v
		scratchGraph.AddNode(v)
	}
	for edges := r.g.Edges(); edges.Next(); {
		e := edges.Edge()
		scratchGraph.SetEdge(scratchGraph.NewEdge(e.From(), e.To()))
	}
	nextID := r.nextID

	ensureNode := func(id string) *node {
		if n, ok := scratchNodes[id]; ok {
			return n
		}
		n := &node{id: nextID, target: id}
		nextID++
		scratchNodes[id] = n
		scratchGraph.AddNode(n)
		return n
	}

	// First pass: register ownership for every output this call introduces,
	// so inputs that reference a sibling output in the same fragment
	// resolve even though that sibling hasn't been visited yet.
	for outName, target := range outputs {
		if owner, ok := scratchOwner[outName]; ok && owner != target.ID {
			return &Error{Kind: "duplicate-output", Detail: outName}
		}
		scratchOwner[outName] = target.ID
		ensureNode(target.ID)
	}

	// Second pass: add an edge from each target to the target that
	// produces any of its inputs, for any input that is a known output
	// anywhere in the registry (base configuration or prior/current
	// fragments). Inputs that are not anyone's output are source files and
	// play no part in cycle detection.
	for _, target := range outputs {
		from := scratchNodes[target.ID]
		addEdges := func(ins []string) {
			for _, in := range ins {
				ownerID, ok := scratchOwner[in]
				if !ok {
					continue
				}
				to := scratchNodes[ownerID]
				if to != nil && from.ID() != to.ID() {
					scratchGraph.SetEdge(scratchGraph.NewEdge(from, to))
				}
			}
		}
		addEdges(target.Inputs)
		addEdges(target.OrderOnlyInputs)
	}

	if _, err := topo.Sort(scratchGraph); err != nil {
		return &Error{Kind: "cycle", Detail: err.Error()}
	}

	r.g = scratchGraph
	r.ownerByOut = scratchOwner
	r.nodeByID = scratchNodes
	r.nextID = nextID
	return nil
}

// Len returns the number of distinct targets currently registered, for
// diagnostics (the `taskmill graph` debug verb).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.g.Nodes().Len()
}
