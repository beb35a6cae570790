package storage

import "time"

// Run describes one persisted crawl snapshot
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Seeds      []string
	MaxDepth   int
	Nodes      int
	Edges      int
	Reason     string // termination reason reported by the crawl
}

// topicRow mirrors a row of the topics table
type topicRow struct {
	Position   int
	Title      string
	Depth      int
	Summary    string
	URL        string
	Categories string // JSON array
	Sections   string // JSON array
	WordCount  int
}
