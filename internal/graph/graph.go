// Package graph holds the directed topic graph built by a crawl.
package graph

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrIntegrity is returned when an edge references a topic that is not in the graph.
	ErrIntegrity = errors.New("graph integrity violation")
	// ErrSelfLoop is returned when an edge would point a topic at itself.
	ErrSelfLoop = errors.New("self-loop rejected")
	// ErrFrozen is returned by mutations after Freeze.
	ErrFrozen = errors.New("graph is frozen")
)

// Topic is a node of the graph
type Topic struct {
	Title      string
	Depth      int
	Summary    string
	URL        string
	Categories []string
	Sections   []string
	WordCount  int
}

// Link is a directed edge: Source's page links to Target
type Link struct {
	Source string
	Target string
}

// Direction selects incoming or outgoing neighbours
type Direction int

const (
	Out Direction = iota
	In
)

// Graph is a directed graph of topics keyed by title. Nodes and edges are
// kept in insertion order so iteration is deterministic.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[string]*Topic
	order   []string
	edges   []Link
	edgeSet map[Link]struct{}
	out     map[string][]string
	in      map[string][]string
	frozen  bool
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Topic),
		edgeSet: make(map[Link]struct{}),
		out:     make(map[string][]string),
		in:      make(map[string][]string),
	}
}

// AddNode inserts a topic. It is idempotent by title: if the title already
// exists the stored topic is left untouched and false is returned.
func (g *Graph) AddNode(t Topic) (bool, error) {
	if t.Title == "" {
		return false, errors.New("topic title is empty")
	}
	if t.Depth < 0 {
		return false, fmt.Errorf("topic %q has negative depth %d", t.Title, t.Depth)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return false, ErrFrozen
	}
	if _, exists := g.nodes[t.Title]; exists {
		return false, nil
	}

	stored := cloneTopic(t)
	g.nodes[t.Title] = &stored
	g.order = append(g.order, t.Title)
	return true, nil
}

// AddEdge inserts the edge source -> target. Duplicate edges collapse and
// return false. Both endpoints must already exist.
func (g *Graph) AddEdge(source, target string) (bool, error) {
	if source == target {
		return false, fmt.Errorf("%w: %q", ErrSelfLoop, source)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return false, ErrFrozen
	}
	if _, exists := g.nodes[source]; !exists {
		return false, fmt.Errorf("%w: source %q not found (edge to %q)", ErrIntegrity, source, target)
	}
	if _, exists := g.nodes[target]; !exists {
		return false, fmt.Errorf("%w: target %q not found (edge from %q)", ErrIntegrity, target, source)
	}

	l := Link{Source: source, Target: target}
	if _, exists := g.edgeSet[l]; exists {
		return false, nil
	}
	g.edgeSet[l] = struct{}{}
	g.edges = append(g.edges, l)
	g.out[source] = append(g.out[source], target)
	g.in[target] = append(g.in[target], source)
	return true, nil
}

// Freeze makes the graph read-only
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Frozen reports whether Freeze has been called
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Has reports whether a topic with the title exists
func (g *Graph) Has(title string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[title]
	return ok
}

// Node returns a copy of the topic with the given title
func (g *Graph) Node(title string) (Topic, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.nodes[title]
	if !ok {
		return Topic{}, false
	}
	return cloneTopic(*t), true
}

// Nodes returns copies of all topics in insertion order
func (g *Graph) Nodes() []Topic {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]Topic, 0, len(g.order))
	for _, title := range g.order {
		nodes = append(nodes, cloneTopic(*g.nodes[title]))
	}
	return nodes
}

// Edges returns a copy of the edge list in insertion order
func (g *Graph) Edges() []Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := make([]Link, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// HasEdge reports whether source -> target exists
func (g *Graph) HasEdge(source, target string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edgeSet[Link{Source: source, Target: target}]
	return ok
}

// Neighbors returns the titles linked from (Out) or linking to (In) title.
func (g *Graph) Neighbors(title string, dir Direction) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var src []string
	if dir == In {
		src = g.in[title]
	} else {
		src = g.out[title]
	}
	result := make([]string, len(src))
	copy(result, src)
	return result
}

// InDegree returns the number of edges pointing at title
func (g *Graph) InDegree(title string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.in[title])
}

// OutDegree returns the number of edges leaving title
func (g *Graph) OutDegree(title string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.out[title])
}

// NodeCount returns the number of topics
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of links
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func cloneTopic(t Topic) Topic {
	c := t
	if t.Categories != nil {
		c.Categories = append([]string(nil), t.Categories...)
	}
	if t.Sections != nil {
		c.Sections = append([]string(nil), t.Sections...)
	}
	return c
}
