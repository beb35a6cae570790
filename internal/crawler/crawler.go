package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/alvmarrod/topic-weaver/internal/graph"
	"github.com/alvmarrod/topic-weaver/internal/stats"
	"github.com/alvmarrod/topic-weaver/internal/wiki"
)

// Options configures a crawl
type Options struct {
	MaxDepth         int           // levels below the seeds to expand
	MaxNodes         int           // topic budget, 0 = unlimited
	MaxOutboundLinks int           // links considered per page, 0 = unlimited
	Workers          int           // concurrent fetches within a level (default: 1)
	RetryAttempts    int           // retries after a transient failure (default: 1, negative disables)
	RetryDelay       time.Duration // fixed delay between attempts
	FetchTimeout     time.Duration // per-fetch deadline, 0 = none
}

func (o *Options) applyDefaults() {
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = 1
	} else if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
}

// Result is the output of a crawl: the frozen graph and its diagnostics
type Result struct {
	Graph    *graph.Graph
	Manifest *Manifest
}

// Crawler performs level-by-level expansion from seed topics
type Crawler struct {
	fetcher wiki.Fetcher
	filter  RelevanceFilter
	opts    Options
	tracker *stats.Tracker
}

// topic state while crawling
type state int

const (
	stateQueued state = iota + 1
	stateAccepted
	stateRejected
	stateUnreachable
)

type fetchResult struct {
	data *wiki.TopicData
	err  error
}

// run holds the mutable state of a single crawl
type run struct {
	g        *graph.Graph
	manifest *Manifest
	states   map[string]state
	aliases  map[string]string
	budget   *NodeBudget
}

// NewCrawler creates a crawler. tracker may be nil.
func NewCrawler(fetcher wiki.Fetcher, filter RelevanceFilter, opts Options, tracker *stats.Tracker) *Crawler {
	opts.applyDefaults()
	if tracker == nil {
		tracker = stats.NewTracker()
	}
	return &Crawler{
		fetcher: fetcher,
		filter:  filter,
		opts:    opts,
		tracker: tracker,
	}
}

// Crawl expands the seeds breadth-first up to MaxDepth. Every topic of a level
// is fetched and classified before the next level starts, so a topic's depth is
// its shortest distance from any seed. Per-topic fetch failures are recorded in
// the manifest; a graph integrity violation or context cancellation aborts the run.
func (c *Crawler) Crawl(ctx context.Context, seeds []string) (*Result, error) {
	r := &run{
		g:        graph.New(),
		manifest: &Manifest{MaxDepth: c.opts.MaxDepth},
		states:   make(map[string]state),
		aliases:  make(map[string]string),
		budget:   NewNodeBudget(c.opts.MaxNodes),
	}

	current := newFrontier(0)
	for _, s := range seeds {
		title := NormalizeTitle(s)
		if title == "" {
			continue
		}
		if current.push(title, "") {
			r.states[title] = stateQueued
			r.manifest.Seeds = append(r.manifest.Seeds, title)
		}
	}
	c.tracker.AddQueued(current.len())

	for current.len() > 0 {
		depth := current.depth
		logrus.Infof("Crawling depth %d: %d topics queued", depth, current.len())

		results, err := c.fetchLevel(ctx, current)
		if err != nil {
			c.tracker.Finish("canceled")
			return nil, err
		}

		accepted, err := c.classifyLevel(r, current, results)
		if err != nil {
			c.tracker.Finish("integrity_error")
			return nil, err
		}

		next := newFrontier(depth + 1)
		if err := c.expandLevel(r, accepted, depth, next); err != nil {
			c.tracker.Finish("integrity_error")
			return nil, err
		}

		c.tracker.IncrementLevels()
		logrus.Infof("Depth %d done: %d accepted, graph has %d topics and %d links",
			depth, len(accepted), r.g.NodeCount(), r.g.EdgeCount())
		logrus.Info(c.tracker.LogProgress())

		c.tracker.AddQueued(next.len())
		current = next
	}

	r.g.Freeze()
	r.manifest.Nodes = r.g.NodeCount()
	r.manifest.Edges = r.g.EdgeCount()
	c.tracker.Finish("completed")

	logrus.Infof("Crawl complete: %d topics, %d links, %d rejected, %d unreachable (budget used: %d)",
		r.manifest.Nodes, r.manifest.Edges, len(r.manifest.Rejected), len(r.manifest.Unreachable), r.budget.Count())

	return &Result{Graph: r.g, Manifest: r.manifest}, nil
}

// fetchLevel fetches every entry of the level and waits for all of them.
// Results are indexed like the frontier so classification order does not
// depend on fetch completion order.
func (c *Crawler) fetchLevel(ctx context.Context, level *frontier) ([]fetchResult, error) {
	results := make([]fetchResult, level.len())

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.opts.Workers)

	for i, e := range level.items {
		eg.Go(func() error {
			data, err := c.fetchWithRetry(egCtx, e.title)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			results[i] = fetchResult{data: data, err: err}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("crawl aborted at depth %d: %w", level.depth, err)
	}
	return results, nil
}

// fetchWithRetry fetches once and retries transient failures with a fixed backoff.
func (c *Crawler) fetchWithRetry(ctx context.Context, title string) (*wiki.TopicData, error) {
	var (
		data    *wiki.TopicData
		attempt int
	)

	op := func() error {
		if attempt > 0 {
			c.tracker.IncrementRetries()
			logrus.Debugf("Retrying %q (attempt %d)", title, attempt+1)
		}
		attempt++

		fetchCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.opts.FetchTimeout > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		}
		defer cancel()

		start := time.Now()
		d, err := c.fetcher.Fetch(fetchCtx, title)
		c.tracker.RecordFetchTime(time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if errors.Is(err, context.DeadlineExceeded) && !wiki.IsTransient(err) {
				return &wiki.FetchError{Title: title, Kind: wiki.ErrTransient, Err: err}
			}
			if wiki.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if d == nil {
			return backoff.Permanent(&wiki.FetchError{Title: title, Kind: wiki.ErrNotFound})
		}
		data = d
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryDelay), uint64(c.opts.RetryAttempts)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	c.tracker.IncrementFetched()
	return data, nil
}

// classifyLevel turns fetch results into accepted nodes, rejections or
// unreachable diagnostics, and links each accepted topic to the parents that
// discovered it. Entries are processed in frontier order.
func (c *Crawler) classifyLevel(r *run, level *frontier, results []fetchResult) ([]acceptedTopic, error) {
	var accepted []acceptedTopic

	for i, e := range level.items {
		res := results[i]

		if res.err != nil {
			if errors.Is(res.err, wiki.ErrDisambiguation) {
				c.markRejected(r, e.title, e.depth, ReasonDisambiguation)
			} else {
				r.states[e.title] = stateUnreachable
				r.manifest.unreachable(e.title, e.depth, wiki.Reason(res.err), res.err)
				c.tracker.IncrementUnreachable()
				logrus.Warnf("Topic %q unreachable: %v", e.title, res.err)
			}
			continue
		}

		canonical := NormalizeTitle(res.data.Title)
		if canonical == "" {
			canonical = e.title
		}
		if canonical != e.title {
			r.aliases[e.title] = canonical
			logrus.Debugf("Topic %q resolved to %q", e.title, canonical)
		}

		// Redirect onto a topic that is already in the graph
		if r.g.Has(canonical) {
			r.states[e.title] = stateAccepted
			if err := c.linkParents(r, e.parents, canonical); err != nil {
				return nil, err
			}
			continue
		}
		if st := r.states[canonical]; canonical != e.title && (st == stateRejected || st == stateUnreachable) {
			c.markRejected(r, e.title, e.depth, ReasonRejectedAlias)
			continue
		}

		if e.depth > 0 && !c.filter.Relevant(canonical, res.data.Categories) {
			c.markRejected(r, e.title, e.depth, ReasonIrrelevant)
			r.states[canonical] = stateRejected
			continue
		}
		if !r.budget.Add() {
			c.markRejected(r, e.title, e.depth, ReasonBudget)
			r.states[canonical] = stateRejected
			continue
		}

		if _, err := r.g.AddNode(graph.Topic{
			Title:      canonical,
			Depth:      e.depth,
			Summary:    res.data.Summary,
			URL:        res.data.URL,
			Categories: res.data.Categories,
			Sections:   res.data.Sections,
			WordCount:  res.data.WordCount,
		}); err != nil {
			return nil, fmt.Errorf("failed to add topic %q: %w", canonical, err)
		}
		r.states[e.title] = stateAccepted
		r.states[canonical] = stateAccepted
		c.tracker.IncrementAccepted()
		logrus.Debugf("Accepted %q (depth=%d)", canonical, e.depth)

		if err := c.linkParents(r, e.parents, canonical); err != nil {
			return nil, err
		}
		accepted = append(accepted, acceptedTopic{title: canonical, links: res.data.Links})
	}

	return accepted, nil
}

type acceptedTopic struct {
	title string
	links []string
}

// expandLevel walks the outgoing links of the topics accepted at depth. Links
// to topics already in the graph become edges right away; unseen titles are
// queued on the next level while depth < MaxDepth.
func (c *Crawler) expandLevel(r *run, accepted []acceptedTopic, depth int, next *frontier) error {
	excluder, _ := c.filter.(titleExcluder)

	for _, a := range accepted {
		for _, link := range FilterLinks(a.title, a.links, c.opts.MaxOutboundLinks) {
			target := r.resolve(link)
			if target == a.title {
				continue
			}

			if r.g.Has(target) {
				if err := c.addEdge(r, a.title, target); err != nil {
					return err
				}
				continue
			}
			if depth >= c.opts.MaxDepth {
				continue
			}
			if next.has(target) {
				next.push(target, a.title)
				continue
			}
			if _, seen := r.states[target]; seen {
				continue
			}
			if excluder != nil && excluder.Excluded(target) {
				c.markRejected(r, target, depth+1, ReasonExcluded)
				continue
			}

			next.push(target, a.title)
			r.states[target] = stateQueued
		}
	}
	return nil
}

func (c *Crawler) linkParents(r *run, parents []string, target string) error {
	for _, p := range parents {
		if p == target {
			continue
		}
		if err := c.addEdge(r, p, target); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crawler) addEdge(r *run, source, target string) error {
	added, err := r.g.AddEdge(source, target)
	if err != nil {
		if errors.Is(err, graph.ErrSelfLoop) {
			return nil
		}
		return fmt.Errorf("crawl aborted: %w", err)
	}
	if added {
		c.tracker.IncrementEdges()
	}
	return nil
}

func (c *Crawler) markRejected(r *run, title string, depth int, reason string) {
	r.states[title] = stateRejected
	r.manifest.reject(title, depth, reason)
	c.tracker.IncrementRejected()
	logrus.Debugf("Rejected %q (depth=%d, reason=%s)", title, depth, reason)
}

func (r *run) resolve(title string) string {
	if canonical, ok := r.aliases[title]; ok {
		return canonical
	}
	return title
}
