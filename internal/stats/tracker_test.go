package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTrackerCounters(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.IncrementFetched()
			tr.IncrementAccepted()
			tr.RecordFetchTime(20 * time.Millisecond)
		}()
	}
	wg.Wait()

	tr.AddQueued(12)
	tr.IncrementRejected()
	tr.IncrementUnreachable()
	tr.IncrementEdges()
	tr.IncrementRetries()
	tr.IncrementLevels()

	s := tr.GetSnapshot()
	if s.TopicsFetched != 10 || s.TopicsAccepted != 10 {
		t.Errorf("fetched/accepted = %d/%d, want 10/10", s.TopicsFetched, s.TopicsAccepted)
	}
	if s.TopicsQueued != 12 || s.TopicsRejected != 1 || s.TopicsUnreachable != 1 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
	if s.TotalFetchTimeMs != 200 || s.AvgFetchTimeMs != 20 {
		t.Errorf("fetch time total/avg = %d/%d, want 200/20", s.TotalFetchTimeMs, s.AvgFetchTimeMs)
	}
	if !strings.Contains(tr.LogProgress(), "10 accepted") {
		t.Errorf("LogProgress() = %q", tr.LogProgress())
	}
}

func TestTrackerWriteToFile(t *testing.T) {
	tr := NewTracker()
	tr.IncrementAccepted()
	tr.Finish("completed")

	path := filepath.Join(t.TempDir(), "stats.json")
	if err := tr.WriteToFile(path); err != nil {
		t.Fatalf("WriteToFile() error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Crawl
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.TerminationReason != "completed" || got.TopicsAccepted != 1 {
		t.Errorf("written stats = %+v", got)
	}
	if got.EndTime.IsZero() {
		t.Error("EndTime not set")
	}
}
