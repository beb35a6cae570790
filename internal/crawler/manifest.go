package crawler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Diagnostic reasons
const (
	ReasonIrrelevant     = "irrelevant"
	ReasonExcluded       = "excluded"
	ReasonBudget         = "budget"
	ReasonDisambiguation = "disambiguation"
	ReasonRejectedAlias  = "redirect_to_rejected"
)

// Diagnostic records why a topic did not make it into the graph
type Diagnostic struct {
	Title  string `yaml:"title"`
	Depth  int    `yaml:"depth"`
	Reason string `yaml:"reason"`
	Error  string `yaml:"error,omitempty"`
}

// Manifest summarizes a crawl run for diagnostics
type Manifest struct {
	Seeds       []string     `yaml:"seeds"`
	MaxDepth    int          `yaml:"max_depth"`
	Nodes       int          `yaml:"nodes"`
	Edges       int          `yaml:"edges"`
	Rejected    []Diagnostic `yaml:"rejected"`
	Unreachable []Diagnostic `yaml:"unreachable"`
}

func (m *Manifest) reject(title string, depth int, reason string) {
	m.Rejected = append(m.Rejected, Diagnostic{Title: title, Depth: depth, Reason: reason})
}

func (m *Manifest) unreachable(title string, depth int, reason string, err error) {
	d := Diagnostic{Title: title, Depth: depth, Reason: reason}
	if err != nil {
		d.Error = err.Error()
	}
	m.Unreachable = append(m.Unreachable, d)
}

// IsRejected reports whether title was rejected during the crawl
func (m *Manifest) IsRejected(title string) bool {
	for _, d := range m.Rejected {
		if d.Title == title {
			return true
		}
	}
	return false
}

// IsUnreachable reports whether title could not be fetched
func (m *Manifest) IsUnreachable(title string) bool {
	for _, d := range m.Unreachable {
		if d.Title == title {
			return true
		}
	}
	return false
}

// WriteFile writes the manifest as YAML
func (m *Manifest) WriteFile(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
