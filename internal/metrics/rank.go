package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alvmarrod/topic-weaver/internal/graph"
)

// Metric names a rankable column of the table
type Metric string

const (
	ByPageRank         Metric = "pagerank"
	ByInDegree         Metric = "in_degree"
	ByOutDegree        Metric = "out_degree"
	ByDegree           Metric = "degree"
	ByDegreeCentrality Metric = "degree_centrality"
	ByBetweenness      Metric = "betweenness"
)

var allMetrics = []Metric{ByPageRank, ByInDegree, ByOutDegree, ByDegree, ByDegreeCentrality, ByBetweenness}

// ParseMetric converts a user-supplied name to a Metric
func ParseMetric(s string) (Metric, error) {
	name := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range allMetrics {
		if m == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q (want one of %v)", s, allMetrics)
}

// Value extracts the metric from a record
func (m Metric) Value(r Record) float64 {
	switch m {
	case ByInDegree:
		return float64(r.InDegree)
	case ByOutDegree:
		return float64(r.OutDegree)
	case ByDegree:
		return float64(r.Degree)
	case ByDegreeCentrality:
		return r.DegreeCentrality
	case ByBetweenness:
		return r.Betweenness
	default:
		return r.PageRank
	}
}

// Rank returns records ordered by the metric, highest first, ties broken by title.
func Rank(records []Record, by Metric) []Record {
	ranked := make([]Record, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		vi, vj := by.Value(ranked[i]), by.Value(ranked[j])
		if vi != vj {
			return vi > vj
		}
		return ranked[i].Title < ranked[j].Title
	})
	return ranked
}

// Top returns the n highest-ranked records (all if n <= 0)
func (t *Table) Top(n int, by Metric) []Record {
	ranked := Rank(t.Records, by)
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// AtDepth returns the records of topics at the given crawl depth
func (t *Table) AtDepth(depth int) []Record {
	var out []Record
	for _, r := range t.Records {
		if r.Depth == depth {
			out = append(out, r)
		}
	}
	return out
}

// Summary describes the overall shape of a graph
type Summary struct {
	Nodes                int
	Edges                int
	AvgDegree            float64
	Density              float64
	MostConnected        string // highest in-degree, ties broken by title
	DepthDistribution    map[int]int
	InDegreeDistribution map[int]int
}

// Summarize computes graph-level statistics
func Summarize(g *graph.Graph, t *Table) Summary {
	s := Summary{
		Nodes:                g.NodeCount(),
		Edges:                g.EdgeCount(),
		DepthDistribution:    make(map[int]int),
		InDegreeDistribution: make(map[int]int),
	}
	if s.Nodes > 0 {
		s.AvgDegree = 2 * float64(s.Edges) / float64(s.Nodes)
	}
	if s.Nodes > 1 {
		s.Density = float64(s.Edges) / float64(s.Nodes*(s.Nodes-1))
	}

	for _, r := range t.Records {
		s.DepthDistribution[r.Depth]++
		s.InDegreeDistribution[r.InDegree]++
	}
	if top := t.Top(1, ByInDegree); len(top) > 0 {
		s.MostConnected = top[0].Title
	}
	return s
}

// SortedKeys returns the keys of a distribution in ascending order
func SortedKeys(dist map[int]int) []int {
	keys := make([]int, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
