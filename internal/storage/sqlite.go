// Package storage persists crawl snapshots to SQLite so later commands can
// rank and inspect a graph without crawling again.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/topic-weaver/internal/graph"
)

// ErrNoSnapshot is returned by Load when no crawl has been saved yet
var ErrNoSnapshot = errors.New("no crawl snapshot stored")

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		seeds TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		reason TEXT
	);

	CREATE TABLE IF NOT EXISTS topics (
		position INTEGER NOT NULL,
		title TEXT PRIMARY KEY,
		depth INTEGER NOT NULL,
		summary TEXT,
		url TEXT,
		categories TEXT,
		sections TEXT,
		word_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS links (
		position INTEGER NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		FOREIGN KEY (source) REFERENCES topics(title),
		FOREIGN KEY (target) REFERENCES topics(title),
		PRIMARY KEY (source, target)
	);

	CREATE INDEX IF NOT EXISTS idx_topics_depth ON topics(depth);
	CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the stored snapshot with g in a single transaction. The run
// gets a fresh ID when it has none; the ID is returned.
func (s *Storage) Save(ctx context.Context, g *graph.Graph, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	startTime := time.Now()
	nodes := g.Nodes()
	edges := g.Edges()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM links", "DELETE FROM topics", "DELETE FROM runs"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("failed to clear previous snapshot: %w", err)
		}
	}

	seeds, err := json.Marshal(run.Seeds)
	if err != nil {
		return "", fmt.Errorf("failed to encode seeds: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, finished_at, seeds, max_depth, node_count, edge_count, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), string(seeds), run.MaxDepth, len(nodes), len(edges), run.Reason)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	topicStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO topics (position, title, depth, summary, url, categories, sections, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare topic insert: %w", err)
	}
	defer topicStmt.Close()

	for i, t := range nodes {
		row, err := toRow(i, t)
		if err != nil {
			return "", err
		}
		if _, err := topicStmt.ExecContext(ctx, row.Position, row.Title, row.Depth, row.Summary, row.URL,
			row.Categories, row.Sections, row.WordCount); err != nil {
			return "", fmt.Errorf("failed to insert topic %q: %w", t.Title, err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, "INSERT INTO links (position, source, target) VALUES (?, ?, ?)")
	if err != nil {
		return "", fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer linkStmt.Close()

	for i, e := range edges {
		if _, err := linkStmt.ExecContext(ctx, i, e.Source, e.Target); err != nil {
			return "", fmt.Errorf("failed to insert link %s -> %s: %w", e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}

	logrus.Infof("Snapshot %s saved: %d topics, %d links in %v", run.ID, len(nodes), len(edges), time.Since(startTime))
	return run.ID, nil
}

// Load rebuilds the stored graph. The returned graph is frozen and keeps the
// node and edge order of the crawl that produced it.
func (s *Storage) Load(ctx context.Context) (*graph.Graph, *Run, error) {
	run, err := s.loadRun(ctx)
	if err != nil {
		return nil, nil, err
	}

	g := graph.New()

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, title, depth, summary, url, categories, sections, word_count
		FROM topics
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load topics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row topicRow
		var summary, url, categories, sections sql.NullString
		if err := rows.Scan(&row.Position, &row.Title, &row.Depth, &summary, &url,
			&categories, &sections, &row.WordCount); err != nil {
			return nil, nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		row.Summary, row.URL = summary.String, url.String
		row.Categories, row.Sections = categories.String, sections.String

		t, err := fromRow(row)
		if err != nil {
			return nil, nil, err
		}
		if _, err := g.AddNode(t); err != nil {
			return nil, nil, fmt.Errorf("failed to restore topic %q: %w", row.Title, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating topics: %w", err)
	}

	linkRows, err := s.db.QueryContext(ctx, "SELECT source, target FROM links ORDER BY position ASC")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var source, target string
		if err := linkRows.Scan(&source, &target); err != nil {
			return nil, nil, fmt.Errorf("failed to scan link: %w", err)
		}
		if _, err := g.AddEdge(source, target); err != nil {
			return nil, nil, fmt.Errorf("failed to restore link: %w", err)
		}
	}
	if err := linkRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating links: %w", err)
	}

	g.Freeze()
	logrus.Debugf("Loaded snapshot %s: %d topics, %d links", run.ID, g.NodeCount(), g.EdgeCount())
	return g, run, nil
}

func (s *Storage) loadRun(ctx context.Context) (*Run, error) {
	var run Run
	var seeds string
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, seeds, max_depth, node_count, edge_count, reason
		FROM runs
		ORDER BY finished_at DESC
		LIMIT 1
	`).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &seeds, &run.MaxDepth, &run.Nodes, &run.Edges, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Reason = reason.String
	if err := json.Unmarshal([]byte(seeds), &run.Seeds); err != nil {
		return nil, fmt.Errorf("failed to decode seeds of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func toRow(position int, t graph.Topic) (topicRow, error) {
	categories, err := json.Marshal(nonNil(t.Categories))
	if err != nil {
		return topicRow{}, fmt.Errorf("failed to encode categories of %q: %w", t.Title, err)
	}
	sections, err := json.Marshal(nonNil(t.Sections))
	if err != nil {
		return topicRow{}, fmt.Errorf("failed to encode sections of %q: %w", t.Title, err)
	}
	return topicRow{
		Position:   position,
		Title:      t.Title,
		Depth:      t.Depth,
		Summary:    t.Summary,
		URL:        t.URL,
		Categories: string(categories),
		Sections:   string(sections),
		WordCount:  t.WordCount,
	}, nil
}

func fromRow(row topicRow) (graph.Topic, error) {
	t := graph.Topic{
		Title:     row.Title,
		Depth:     row.Depth,
		Summary:   row.Summary,
		URL:       row.URL,
		WordCount: row.WordCount,
	}
	if row.Categories != "" {
		if err := json.Unmarshal([]byte(row.Categories), &t.Categories); err != nil {
			return t, fmt.Errorf("failed to decode categories of %q: %w", row.Title, err)
		}
	}
	if row.Sections != "" {
		if err := json.Unmarshal([]byte(row.Sections), &t.Sections); err != nil {
			return t, fmt.Errorf("failed to decode sections of %q: %w", row.Title, err)
		}
	}
	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
