package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Crawl holds crawl statistics for export on exit
type Crawl struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	TopicsQueued      int       `json:"topics_queued"`
	TopicsFetched     int       `json:"topics_fetched"`
	TopicsAccepted    int       `json:"topics_accepted"`
	TopicsRejected    int       `json:"topics_rejected"`
	TopicsUnreachable int       `json:"topics_unreachable"`
	EdgesRecorded     int       `json:"edges_recorded"`
	FetchRetries      int       `json:"fetch_retries"`
	LevelsCompleted   int       `json:"levels_completed"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}

// Tracker holds and manages crawl statistics. It is safe for concurrent use.
type Tracker struct {
	mu               sync.Mutex
	data             Crawl
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: Crawl{
			StartTime: time.Now(),
		},
	}
}

// AddQueued adds n to the queued topics counter
func (t *Tracker) AddQueued(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TopicsQueued += n
}

// IncrementFetched increments the successful fetch counter
func (t *Tracker) IncrementFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TopicsFetched++
}

// IncrementAccepted increments the accepted topics counter
func (t *Tracker) IncrementAccepted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TopicsAccepted++
}

// IncrementRejected increments the rejected topics counter
func (t *Tracker) IncrementRejected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TopicsRejected++
}

// IncrementUnreachable increments the unreachable topics counter
func (t *Tracker) IncrementUnreachable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TopicsUnreachable++
}

// IncrementEdges increments the edges counter
func (t *Tracker) IncrementEdges() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EdgesRecorded++
}

// IncrementRetries increments the fetch retry counter
func (t *Tracker) IncrementRetries() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.FetchRetries++
}

// IncrementLevels increments the completed depth levels counter
func (t *Tracker) IncrementLevels() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.LevelsCompleted++
}

// RecordFetchTime records a fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// Finish stamps the end time and termination reason
func (t *Tracker) Finish(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
}

// GetSnapshot returns a copy of current statistics
func (t *Tracker) GetSnapshot() Crawl {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Crawl {
	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports statistics to a JSON file
func (t *Tracker) WriteToFile(path string) error {
	t.mu.Lock()
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal crawl stats: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write crawl stats file: %w", err)
	}

	return nil
}

// LogProgress formats current statistics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Topics: %d queued, %d fetched, %d accepted, %d rejected, %d unreachable | Edges: %d | Retries: %d",
		t.data.TopicsQueued,
		t.data.TopicsFetched,
		t.data.TopicsAccepted,
		t.data.TopicsRejected,
		t.data.TopicsUnreachable,
		t.data.EdgesRecorded,
		t.data.FetchRetries,
	)
}
