// Package export writes the metrics table and the topic dataset to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/topic-weaver/internal/graph"
	"github.com/alvmarrod/topic-weaver/internal/metrics"
)

// Header is the CSV column order. The first six columns are the stable
// contract; centrality columns follow.
var Header = []string{
	"title", "depth", "degree", "in_degree", "out_degree", "pagerank",
	"degree_centrality", "betweenness",
}

// WriteCSV writes one row per topic in table order
func WriteCSV(w io.Writer, t *metrics.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range t.Records {
		row := []string{
			r.Title,
			strconv.Itoa(r.Depth),
			strconv.Itoa(r.Degree),
			strconv.Itoa(r.InDegree),
			strconv.Itoa(r.OutDegree),
			formatFloat(r.PageRank),
			formatFloat(r.DegreeCentrality),
			formatFloat(r.Betweenness),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %q: %w", r.Title, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Node is one topic of the JSON dataset
type Node struct {
	ID               string   `json:"id"`
	Depth            int      `json:"depth"`
	Summary          string   `json:"summary"`
	URL              string   `json:"url"`
	Categories       []string `json:"categories"`
	Sections         []string `json:"sections"`
	WordCount        int      `json:"word_count"`
	Degree           int      `json:"degree"`
	InDegree         int      `json:"in_degree"`
	OutDegree        int      `json:"out_degree"`
	DegreeCentrality float64  `json:"degree_centrality"`
	PageRank         float64  `json:"pagerank"`
	Betweenness      float64  `json:"betweenness"`
}

// Edge is one link of the JSON dataset
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Dataset is the graph with its metrics, ready for a presentation layer
type Dataset struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// BuildDataset joins topic attributes with their metric records
func BuildDataset(g *graph.Graph, t *metrics.Table) (*Dataset, error) {
	ds := &Dataset{
		Nodes: make([]Node, 0, g.NodeCount()),
		Edges: make([]Edge, 0, g.EdgeCount()),
	}
	for _, topic := range g.Nodes() {
		r, ok := t.Lookup(topic.Title)
		if !ok {
			return nil, fmt.Errorf("no metrics for topic %q", topic.Title)
		}
		ds.Nodes = append(ds.Nodes, Node{
			ID:               topic.Title,
			Depth:            topic.Depth,
			Summary:          topic.Summary,
			URL:              topic.URL,
			Categories:       orEmpty(topic.Categories),
			Sections:         orEmpty(topic.Sections),
			WordCount:        topic.WordCount,
			Degree:           r.Degree,
			InDegree:         r.InDegree,
			OutDegree:        r.OutDegree,
			DegreeCentrality: r.DegreeCentrality,
			PageRank:         r.PageRank,
			Betweenness:      r.Betweenness,
		})
	}
	for _, e := range g.Edges() {
		ds.Edges = append(ds.Edges, Edge{Source: e.Source, Target: e.Target})
	}
	return ds, nil
}

// WriteJSON writes the dataset as indented JSON
func WriteJSON(w io.Writer, ds *Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return nil
}

// WriteCSVFile writes the metrics table to path
func WriteCSVFile(path string, t *metrics.Table) error {
	if err := writeFile(path, func(w io.Writer) error { return WriteCSV(w, t) }); err != nil {
		return err
	}
	logrus.Infof("Metrics table written to %s (%d rows)", path, len(t.Records))
	return nil
}

// WriteJSONFile builds the dataset and writes it to path
func WriteJSONFile(path string, g *graph.Graph, t *metrics.Table) error {
	ds, err := BuildDataset(g, t)
	if err != nil {
		return err
	}
	if err := writeFile(path, func(w io.Writer) error { return WriteJSON(w, ds) }); err != nil {
		return err
	}
	logrus.Infof("Dataset written to %s (%d topics, %d links)", path, len(ds.Nodes), len(ds.Edges))
	return nil
}

// writeFile writes through a temp file in the same directory and renames it
// into place, so readers never see a half-written export.
func writeFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 8, 64)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
