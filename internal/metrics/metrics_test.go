package metrics

import (
	"fmt"
	"math"
	"testing"

	"github.com/alvmarrod/topic-weaver/internal/graph"
)

func buildGraph(t *testing.T, nodes []string, edges [][2]string) *graph.Graph {
	t.Helper()
	g := graph.New()
	for i, n := range nodes {
		depth := 1
		if i == 0 {
			depth = 0
		}
		if _, err := g.AddNode(graph.Topic{Title: n, Depth: depth}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range edges {
		if _, err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	g.Freeze()
	return g
}

func compute(t *testing.T, g *graph.Graph) *Table {
	t.Helper()
	table, err := Compute(g, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	return table
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestStarGraphHubRanksFirst(t *testing.T) {
	nodes := []string{"H", "L1", "L2", "L3", "L4", "L5"}
	var edges [][2]string
	for _, l := range nodes[1:] {
		edges = append(edges, [2]string{l, "H"})
	}
	table := compute(t, buildGraph(t, nodes, edges))

	if top := table.Top(1, ByInDegree); top[0].Title != "H" || top[0].InDegree != 5 {
		t.Errorf("top by in-degree = %+v, want H with 5", top[0])
	}
	if top := table.Top(1, ByPageRank); top[0].Title != "H" {
		t.Errorf("top by PageRank = %q, want H", top[0].Title)
	}

	hub, _ := table.Lookup("H")
	for _, l := range nodes[1:] {
		leaf, _ := table.Lookup(l)
		if leaf.PageRank >= hub.PageRank {
			t.Errorf("leaf %s PageRank %v >= hub %v", l, leaf.PageRank, hub.PageRank)
		}
	}
	if !approx(table.PageRankSum(), 1, 1e-9) {
		t.Errorf("PageRank sum = %v, want 1", table.PageRankSum())
	}
}

func TestPageRankReferenceValues(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}, {"C", "A"}})
	table := compute(t, g)

	want := map[string]float64{"A": 0.387790, "B": 0.214811, "C": 0.397400}
	for title, w := range want {
		r, ok := table.Lookup(title)
		if !ok {
			t.Fatalf("%s missing", title)
		}
		if !approx(r.PageRank, w, 1e-4) {
			t.Errorf("PageRank(%s) = %.6f, want %.6f", title, r.PageRank, w)
		}
	}
	if !table.Converged {
		t.Error("expected convergence")
	}
}

func TestPageRankSumsToOne(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
	}{
		{"single node", []string{"A"}, nil},
		{"no edges", []string{"A", "B", "C"}, nil},
		{"cycle", []string{"A", "B"}, [][2]string{{"A", "B"}, {"B", "A"}}},
		{"chain with sink", []string{"A", "B", "C", "D"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}}},
		{"many sinks", []string{"A", "B", "C", "D", "E"}, [][2]string{{"A", "B"}, {"A", "C"}, {"A", "D"}, {"E", "A"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := compute(t, buildGraph(t, tt.nodes, tt.edges))
			if !approx(table.PageRankSum(), 1, 1e-9) {
				t.Errorf("PageRank sum = %v, want 1", table.PageRankSum())
			}
		})
	}
}

func TestPageRankSymmetricCycle(t *testing.T) {
	table := compute(t, buildGraph(t, []string{"A", "B"}, [][2]string{{"A", "B"}, {"B", "A"}}))
	for _, r := range table.Records {
		if !approx(r.PageRank, 0.5, 1e-9) {
			t.Errorf("PageRank(%s) = %v, want 0.5", r.Title, r.PageRank)
		}
	}
}

func TestPageRankNonConvergence(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	opts := DefaultOptions()
	opts.MaxIterations = 1
	opts.Tolerance = 1e-12

	table, err := Compute(g, opts)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if table.Converged {
		t.Error("expected Converged = false")
	}
	if table.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", table.Iterations)
	}
	if !approx(table.PageRankSum(), 1, 1e-9) {
		t.Errorf("estimate should still conserve mass, sum = %v", table.PageRankSum())
	}
}

func TestPageRankDeterministic(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C", "D"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}, {"D", "A"}})
	first := compute(t, g)
	second := compute(t, g)
	for i := range first.Records {
		if first.Records[i] != second.Records[i] {
			t.Errorf("record %d differs: %+v vs %+v", i, first.Records[i], second.Records[i])
		}
	}
}

func TestComputeRejectsBadOptions(t *testing.T) {
	g := buildGraph(t, []string{"A"}, nil)
	for _, opts := range []Options{
		{Damping: 1.5},
		{Damping: -0.1},
		{MaxIterations: -1},
		{Tolerance: -1},
	} {
		if _, err := Compute(g, opts); err == nil {
			t.Errorf("Compute(%+v) should fail", opts)
		}
	}
}

func TestEmptyGraph(t *testing.T) {
	table := compute(t, graph.New())
	if len(table.Records) != 0 || !table.Converged {
		t.Errorf("empty graph table = %+v", table)
	}
}

func TestDegreesAndCentrality(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	table := compute(t, g)

	b, _ := table.Lookup("B")
	if b.Degree != 2 || b.InDegree != 1 || b.OutDegree != 1 {
		t.Errorf("B degrees = %+v", b)
	}
	if !approx(b.DegreeCentrality, 1.0, 1e-12) {
		t.Errorf("B degree centrality = %v, want 1", b.DegreeCentrality)
	}
	if !approx(b.Betweenness, 1.0, 1e-12) {
		t.Errorf("B betweenness = %v, want 1", b.Betweenness)
	}
	a, _ := table.Lookup("A")
	if !approx(a.DegreeCentrality, 0.5, 1e-12) || a.Betweenness != 0 {
		t.Errorf("A = %+v", a)
	}
	if a.Depth != 0 || b.Depth != 1 {
		t.Errorf("depths not carried over: A=%d B=%d", a.Depth, b.Depth)
	}
}

func TestBetweennessStar(t *testing.T) {
	// Undirected star with centre C and four leaves: C lies on every leaf pair.
	nodes := []string{"C", "L1", "L2", "L3", "L4"}
	var edges [][2]string
	for _, l := range nodes[1:] {
		edges = append(edges, [2]string{l, "C"})
	}
	table := compute(t, buildGraph(t, nodes, edges))
	c, _ := table.Lookup("C")
	if !approx(c.Betweenness, 1.0, 1e-12) {
		t.Errorf("centre betweenness = %v, want 1", c.Betweenness)
	}
}

func TestBetweennessDisabled(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	table, err := Compute(g, Options{Damping: 0.85, MaxIterations: 100, Tolerance: 1e-6})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := table.Lookup("B")
	if b.Betweenness != 0 {
		t.Errorf("betweenness should be 0 when disabled, got %v", b.Betweenness)
	}
}

func TestTopBreaksTiesByTitle(t *testing.T) {
	g := buildGraph(t, []string{"Zeta", "Beta", "Alpha", "Gamma"}, nil)
	table := compute(t, g)

	top := table.Top(3, ByPageRank)
	want := []string{"Alpha", "Beta", "Gamma"}
	for i, r := range top {
		if r.Title != want[i] {
			t.Errorf("Top()[%d] = %q, want %q", i, r.Title, want[i])
		}
	}
	if len(table.Top(0, ByDegree)) != 4 {
		t.Error("Top(0) should return all records")
	}
}

func TestParseMetric(t *testing.T) {
	for _, name := range []string{"pagerank", "In_Degree", " out_degree ", "degree", "betweenness", "degree_centrality"} {
		if _, err := ParseMetric(name); err != nil {
			t.Errorf("ParseMetric(%q) error: %v", name, err)
		}
	}
	if _, err := ParseMetric("closeness"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestAtDepthAndSummarize(t *testing.T) {
	nodes := []string{"S", "A", "B", "C"}
	edges := [][2]string{{"S", "A"}, {"S", "B"}, {"A", "C"}, {"B", "C"}, {"C", "S"}}
	g := buildGraph(t, nodes, edges)
	table := compute(t, g)

	if got := len(table.AtDepth(1)); got != 3 {
		t.Errorf("AtDepth(1) returned %d records, want 3", got)
	}

	s := Summarize(g, table)
	if s.Nodes != 4 || s.Edges != 5 {
		t.Errorf("summary counts = %d/%d", s.Nodes, s.Edges)
	}
	if !approx(s.AvgDegree, 2.5, 1e-12) {
		t.Errorf("AvgDegree = %v, want 2.5", s.AvgDegree)
	}
	if !approx(s.Density, 5.0/12.0, 1e-12) {
		t.Errorf("Density = %v", s.Density)
	}
	if s.MostConnected != "C" {
		t.Errorf("MostConnected = %q, want C", s.MostConnected)
	}
	if s.DepthDistribution[0] != 1 || s.DepthDistribution[1] != 3 {
		t.Errorf("DepthDistribution = %v", s.DepthDistribution)
	}
	if got := fmt.Sprint(SortedKeys(s.InDegreeDistribution)); got != "[1 2]" {
		t.Errorf("in-degree keys = %s, want [1 2]", got)
	}
}
