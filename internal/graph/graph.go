// Package graph holds the precedence graph between tasks of one schedule.
//
// Nodes are task IDs. Edges carry the dependency type and lag and are kept
// in both directions so predecessor and successor lookups are O(degree).
// Every mutation that would break acyclicity is rejected before anything
// changes.
package graph

import (
	"fmt"
	"sort"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// Edge is a directed precedence constraint from From to To.
type Edge struct {
	From string
	To   string
	Type models.DependencyType
	Lag  int
}

type edgeKey [2]string

// Graph is an adjacency list with reverse adjacency. Adjacency lists keep
// insertion order.
type Graph struct {
	nodes  []string
	known  map[string]bool
	adj    map[string][]string
	revAdj map[string][]string
	edges  map[edgeKey]Edge
}

func New() *Graph {
	return &Graph{
		known:  make(map[string]bool),
		adj:    make(map[string][]string),
		revAdj: make(map[string][]string),
		edges:  make(map[edgeKey]Edge),
	}
}

// Build constructs a graph from persisted tasks and dependencies. Edges that
// reference unknown tasks are not-found errors; a persisted cycle is an
// invariant error.
func Build(tasks []*models.Task, deps []models.Dependency) (*Graph, error) {
	g := New()
	for _, t := range tasks {
		g.AddNode(t.ID)
	}

	for _, d := range deps {
		for _, id := range []string{d.PredecessorID, d.SuccessorID} {
			if !g.known[id] {
				return nil, apperr.NotFoundf("build graph", "dependency %s -> %s references unknown task %s",
					d.PredecessorID, d.SuccessorID, id)
			}
		}
		if err := g.validateEdge(d.PredecessorID, d.SuccessorID, d.Type); err != nil {
			return nil, err
		}
		g.link(Edge{From: d.PredecessorID, To: d.SuccessorID, Type: d.Type, Lag: d.Lag})
	}

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, apperr.Invariantf("build graph", "dependency cycle detected: %v", cycle)
	}
	return g, nil
}

// AddNode registers a task. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if g.known[id] {
		return
	}
	g.known[id] = true
	g.nodes = append(g.nodes, id)
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id string) bool {
	return g.known[id]
}

// CanAddEdge runs every AddEdge check without mutating the graph.
func (g *Graph) CanAddEdge(from, to string, typ models.DependencyType) error {
	if !g.known[from] {
		return apperr.NotFoundf("add dependency", "task %s not found", from)
	}
	if !g.known[to] {
		return apperr.NotFoundf("add dependency", "task %s not found", to)
	}
	if err := g.validateEdge(from, to, typ); err != nil {
		return err
	}
	if g.reaches(to, from) {
		return apperr.Validationf("add dependency", "%s -> %s would create a cycle", from, to)
	}
	return nil
}

// AddEdge admits a precedence constraint. Self-loops, duplicate ordered
// pairs, unknown types and cycle-closing edges are rejected.
func (g *Graph) AddEdge(from, to string, typ models.DependencyType, lag int) error {
	if err := g.CanAddEdge(from, to, typ); err != nil {
		return err
	}
	g.link(Edge{From: from, To: to, Type: typ, Lag: lag})
	return nil
}

func (g *Graph) validateEdge(from, to string, typ models.DependencyType) error {
	if from == to {
		return apperr.Validationf("add dependency", "task %s cannot depend on itself", from)
	}
	if !typ.IsValid() {
		return apperr.Validationf("add dependency", "unknown dependency type %q", typ)
	}
	if _, ok := g.edges[edgeKey{from, to}]; ok {
		return apperr.Validationf("add dependency", "dependency %s -> %s already exists", from, to)
	}
	return nil
}

func (g *Graph) link(e Edge) {
	g.edges[edgeKey{e.From, e.To}] = e
	g.adj[e.From] = append(g.adj[e.From], e.To)
	g.revAdj[e.To] = append(g.revAdj[e.To], e.From)
}

// reaches reports whether target is reachable from start along successor edges.
func (g *Graph) reaches(start, target string) bool {
	visited := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == target {
			return true
		}
		if visited[node] {
			continue
		}
		visited[node] = true
		stack = append(stack, g.adj[node]...)
	}
	return false
}

// RemoveEdge deletes the edge from -> to.
func (g *Graph) RemoveEdge(from, to string) error {
	if _, ok := g.edges[edgeKey{from, to}]; !ok {
		return apperr.NotFoundf("remove dependency", "dependency %s -> %s not found", from, to)
	}
	delete(g.edges, edgeKey{from, to})
	g.adj[from] = without(g.adj[from], to)
	g.revAdj[to] = without(g.revAdj[to], from)
	return nil
}

// RemoveNode deletes a node together with every edge touching it and
// returns the removed edges.
func (g *Graph) RemoveNode(id string) ([]Edge, error) {
	if !g.known[id] {
		return nil, apperr.NotFoundf("remove task", "task %s not found", id)
	}

	var removed []Edge
	for _, pred := range g.revAdj[id] {
		removed = append(removed, g.edges[edgeKey{pred, id}])
		delete(g.edges, edgeKey{pred, id})
		g.adj[pred] = without(g.adj[pred], id)
	}
	for _, succ := range g.adj[id] {
		removed = append(removed, g.edges[edgeKey{id, succ}])
		delete(g.edges, edgeKey{id, succ})
		g.revAdj[succ] = without(g.revAdj[succ], id)
	}

	delete(g.adj, id)
	delete(g.revAdj, id)
	delete(g.known, id)
	g.nodes = without(g.nodes, id)
	return removed, nil
}

// Edge returns the edge from -> to if present.
func (g *Graph) Edge(from, to string) (Edge, bool) {
	e, ok := g.edges[edgeKey{from, to}]
	return e, ok
}

// Predecessors returns the incoming edges of id.
func (g *Graph) Predecessors(id string) []Edge {
	preds := make([]Edge, 0, len(g.revAdj[id]))
	for _, from := range g.revAdj[id] {
		preds = append(preds, g.edges[edgeKey{from, id}])
	}
	return preds
}

// Successors returns the outgoing edges of id.
func (g *Graph) Successors(id string) []Edge {
	succs := make([]Edge, 0, len(g.adj[id]))
	for _, to := range g.adj[id] {
		succs = append(succs, g.edges[edgeKey{id, to}])
	}
	return succs
}

// Nodes returns the node IDs in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Edges returns every edge, ordered by predecessor insertion order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, id := range g.nodes {
		edges = append(edges, g.Successors(id)...)
	}
	return edges
}

// Roots returns nodes without predecessors.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.nodes {
		if len(g.revAdj[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes without successors.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.nodes {
		if len(g.adj[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Reachable returns the nodes reachable from the seeds along successor
// edges, seeds included, in topological order.
func (g *Graph) Reachable(seeds ...string) []string {
	visited := make(map[string]bool)
	var postorder []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, next := range g.adj[id] {
			visit(next)
		}
		postorder = append(postorder, id)
	}
	for _, id := range seeds {
		if g.known[id] {
			visit(id)
		}
	}

	for i, j := 0, len(postorder)-1; i < j; i, j = i+1, j-1 {
		postorder[i], postorder[j] = postorder[j], postorder[i]
	}
	return postorder
}

// TopoSort orders every node with Kahn's algorithm, ties broken by
// insertion order.
func (g *Graph) TopoSort() ([]string, error) {
	position := make(map[string]int, len(g.nodes))
	inDegree := make(map[string]int, len(g.nodes))
	var queue []string
	for i, id := range g.nodes {
		position[id] = i
		inDegree[id] = len(g.revAdj[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var ready []string
		for _, succ := range g.adj[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Slice(ready, func(a, b int) bool { return position[ready[a]] < position[ready[b]] })
		queue = append(queue, ready...)
	}

	if len(order) != len(g.nodes) {
		return nil, apperr.Invariantf("topological sort", "graph has a cycle (%d of %d tasks sorted)", len(order), len(g.nodes))
	}
	return order, nil
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *Graph) DetectCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, next := range g.adj[node] {
			if color[next] == gray {
				cycle := []string{next, node}
				for cur := node; cur != next; {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range g.nodes {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func (e Edge) String() string {
	if e.Lag == 0 {
		return fmt.Sprintf("%s -%s-> %s", e.From, e.Type.Short(), e.To)
	}
	return fmt.Sprintf("%s -%s%+d-> %s", e.From, e.Type.Short(), e.Lag, e.To)
}

func without(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
