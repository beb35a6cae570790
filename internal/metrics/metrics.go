// Package metrics computes importance metrics over a topic graph: degree,
// in/out-degree, degree centrality, PageRank and betweenness centrality.
package metrics

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/topic-weaver/internal/graph"
)

// Options configures metric computation
type Options struct {
	Damping       float64 // PageRank damping factor, default 0.85
	MaxIterations int     // PageRank iteration cap, default 200
	Tolerance     float64 // per-node convergence tolerance, default 1e-6
	Betweenness   bool    // compute betweenness centrality
}

// DefaultOptions returns the conventional PageRank parameters
func DefaultOptions() Options {
	return Options{
		Damping:       0.85,
		MaxIterations: 200,
		Tolerance:     1e-6,
		Betweenness:   true,
	}
}

func (o *Options) applyDefaults() {
	if o.Damping == 0 {
		o.Damping = 0.85
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 200
	}
	if o.Tolerance == 0 {
		o.Tolerance = 1e-6
	}
}

func (o Options) validate() error {
	if o.Damping <= 0 || o.Damping >= 1 {
		return fmt.Errorf("damping must be in (0, 1), got %v", o.Damping)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be >= 1, got %d", o.MaxIterations)
	}
	if o.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be > 0, got %v", o.Tolerance)
	}
	return nil
}

// Record holds the derived metrics of one topic
type Record struct {
	Title            string
	Depth            int
	Degree           int
	InDegree         int
	OutDegree        int
	DegreeCentrality float64
	PageRank         float64
	Betweenness      float64
}

// Table is the metrics of every topic, in graph node order
type Table struct {
	Records []Record

	// PageRank convergence report
	Converged  bool
	Iterations int
	Residual   float64

	index map[string]int
}

// Compute derives the metrics table from a graph. The graph is only read.
// If PageRank does not converge within MaxIterations the best estimate is
// returned with Converged set to false.
func Compute(g *graph.Graph, opts Options) (*Table, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	nodes := g.Nodes()
	n := len(nodes)
	idx := make(map[string]int, n)
	for i, t := range nodes {
		idx[t.Title] = i
	}

	out := make([][]int, n)
	inDeg := make([]int, n)
	for _, e := range g.Edges() {
		s, okS := idx[e.Source]
		d, okD := idx[e.Target]
		if !okS || !okD {
			return nil, fmt.Errorf("%w: edge %s -> %s", graph.ErrIntegrity, e.Source, e.Target)
		}
		out[s] = append(out[s], d)
		inDeg[d]++
	}

	pr := pageRank(out, opts.Damping, opts.MaxIterations, opts.Tolerance)
	if !pr.converged {
		logrus.Warnf("PageRank did not converge after %d iterations (residual %.3g), using best estimate",
			pr.iterations, pr.residual)
	}

	var between []float64
	if opts.Betweenness {
		between = betweenness(out)
	}

	t := &Table{
		Records:    make([]Record, n),
		Converged:  pr.converged,
		Iterations: pr.iterations,
		Residual:   pr.residual,
		index:      idx,
	}
	for i, node := range nodes {
		deg := len(out[i]) + inDeg[i]
		r := Record{
			Title:     node.Title,
			Depth:     node.Depth,
			Degree:    deg,
			InDegree:  inDeg[i],
			OutDegree: len(out[i]),
			PageRank:  pr.scores[i],
		}
		if n > 1 {
			r.DegreeCentrality = float64(deg) / float64(n-1)
		} else {
			r.DegreeCentrality = 1
		}
		if between != nil {
			r.Betweenness = between[i]
		}
		t.Records[i] = r
	}

	logrus.Debugf("Computed metrics for %d topics (PageRank iterations=%d, converged=%v)", n, pr.iterations, pr.converged)
	return t, nil
}

// Lookup returns the record for a title
func (t *Table) Lookup(title string) (Record, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[title]
	if !ok {
		return Record{}, false
	}
	return t.Records[i], true
}

// PageRankSum returns the total PageRank mass
func (t *Table) PageRankSum() float64 {
	var sum float64
	for _, r := range t.Records {
		sum += r.PageRank
	}
	return sum
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Records))
	for i, r := range t.Records {
		t.index[r.Title] = i
	}
}

type pageRankResult struct {
	scores     []float64
	iterations int
	converged  bool
	residual   float64
}

// pageRank runs the power method. Mass held by dangling nodes is spread
// uniformly over all nodes so the scores always sum to 1. Iteration stops when
// the L1 change drops below n*tol.
func pageRank(out [][]int, d float64, maxIter int, tol float64) pageRankResult {
	n := len(out)
	if n == 0 {
		return pageRankResult{converged: true}
	}

	nf := float64(n)
	pr := make([]float64, n)
	for i := range pr {
		pr[i] = 1 / nf
	}
	next := make([]float64, n)

	res := pageRankResult{}
	for iter := 1; iter <= maxIter; iter++ {
		var dangling float64
		for i, targets := range out {
			if len(targets) == 0 {
				dangling += pr[i]
			}
		}

		base := (1-d)/nf + d*dangling/nf
		for i := range next {
			next[i] = base
		}
		for i, targets := range out {
			if len(targets) == 0 {
				continue
			}
			share := d * pr[i] / float64(len(targets))
			for _, j := range targets {
				next[j] += share
			}
		}

		var delta float64
		for i := range pr {
			delta += math.Abs(next[i] - pr[i])
		}
		pr, next = next, pr

		res.iterations = iter
		res.residual = delta
		if delta < nf*tol {
			res.converged = true
			break
		}
	}

	res.scores = pr
	return res
}

// betweenness computes Brandes betweenness centrality over the undirected
// view of the graph, normalized by 1/((n-1)(n-2)) for n > 2.
func betweenness(out [][]int) []float64 {
	n := len(out)
	adj := make([][]int, n)
	seen := make([]map[int]bool, n)
	for i := range seen {
		seen[i] = make(map[int]bool)
	}
	link := func(a, b int) {
		if a == b || seen[a][b] {
			return
		}
		seen[a][b] = true
		adj[a] = append(adj[a], b)
	}
	for s, targets := range out {
		for _, t := range targets {
			link(s, t)
			link(t, s)
		}
	}

	cb := make([]float64, n)
	sigma := make([]float64, n)
	dist := make([]int, n)
	delta := make([]float64, n)
	preds := make([][]int, n)
	stack := make([]int, 0, n)
	queue := make([]int, 0, n)

	for s := 0; s < n; s++ {
		for i := 0; i < n; i++ {
			sigma[i] = 0
			dist[i] = -1
			delta[i] = 0
			preds[i] = preds[i][:0]
		}
		sigma[s] = 1
		dist[s] = 0
		stack = stack[:0]
		queue = append(queue[:0], s)

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	if n > 2 {
		scale := 1 / float64((n-1)*(n-2))
		for i := range cb {
			cb[i] *= scale
		}
	}
	return cb
}
