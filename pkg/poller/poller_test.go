package poller

import (
	"errors"
	"testing"
	"time"

	"sunograb/pkg/logger"
	"sunograb/pkg/models"
)

// fakeSource replays a scripted sequence of snapshots, one per Refresh.
type fakeSource struct {
	snapshots  [][]models.Track
	refreshErr []error
	refreshes  int
}

func (f *fakeSource) Refresh() error {
	defer func() { f.refreshes++ }()
	if f.refreshes < len(f.refreshErr) && f.refreshErr[f.refreshes] != nil {
		return f.refreshErr[f.refreshes]
	}
	return nil
}

func (f *fakeSource) ExtractTracks() []models.Track {
	idx := f.refreshes - 1
	if idx < 0 || idx >= len(f.snapshots) {
		return nil
	}
	return f.snapshots[idx]
}

// fakeClock advances a virtual time by a fixed step per sleep, so wait
// budgets elapse without wall-clock delays.
type fakeClock struct {
	current time.Time
	sleeps  int
}

func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps++
	c.current = c.current.Add(d)
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func newTestPoller(source Snapshotter) (*Poller, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	p := New(source, logger.NewNop())
	p.sleep = clock.sleep
	p.now = clock.now
	return p, clock
}

func TestWaitForCompletionAlreadyComplete(t *testing.T) {
	source := &fakeSource{}
	p, clock := newTestPoller(source)

	track := models.Track{ID: "t1", Status: "complete"}
	got := p.WaitForCompletion(track, time.Minute)

	if got.ID != "t1" || !got.IsComplete() {
		t.Errorf("Expected the track back unchanged, got %+v", got)
	}
	if clock.sleeps != 0 {
		t.Errorf("Already-complete track must not sleep, slept %d times", clock.sleeps)
	}
	if source.refreshes != 0 {
		t.Errorf("Already-complete track must not refresh, refreshed %d times", source.refreshes)
	}
}

func TestWaitForCompletionCompletesAfterPolls(t *testing.T) {
	source := &fakeSource{
		snapshots: [][]models.Track{
			{{ID: "t1", Status: "streaming"}},
			{{ID: "t1", Status: "streaming"}},
			{{ID: "t1", Title: "Done Deal", Status: "complete", AudioURL: "https://cdn.example.com/t1.mp3"}},
		},
	}
	p, _ := newTestPoller(source)

	got := p.WaitForCompletion(models.Track{ID: "t1", Status: "queued"}, time.Hour)

	if !got.IsComplete() {
		t.Fatalf("Expected completed track, got status %q", got.Status)
	}
	// The fresh record supersedes the original wholesale.
	if got.Title != "Done Deal" || got.AudioURL == "" {
		t.Errorf("Expected the superseding snapshot record, got %+v", got)
	}
	if source.refreshes != 3 {
		t.Errorf("Expected 3 refreshes, got %d", source.refreshes)
	}
}

func TestWaitForCompletionSoftTimeout(t *testing.T) {
	source := &fakeSource{
		snapshots: [][]models.Track{
			{{ID: "t1", Status: "streaming"}},
			{{ID: "t1", Status: "streaming"}},
		},
	}
	p, _ := newTestPoller(source)

	got := p.WaitForCompletion(models.Track{ID: "t1", Status: "queued"}, 25*time.Second)

	// Timeout is soft: the last-known record comes back, not an error.
	if got.ID != "t1" {
		t.Fatalf("Expected the track back on timeout, got %+v", got)
	}
	if got.IsComplete() {
		t.Error("Timed-out track must not be complete")
	}
	if got.Status != "streaming" {
		t.Errorf("Expected the latest observed status, got %q", got.Status)
	}
}

func TestWaitForCompletionMissingTrackIsPending(t *testing.T) {
	source := &fakeSource{
		snapshots: [][]models.Track{
			{{ID: "other", Status: "complete"}},
			{{ID: "t1", Status: "complete"}},
		},
	}
	p, _ := newTestPoller(source)

	got := p.WaitForCompletion(models.Track{ID: "t1", Status: "queued"}, time.Hour)

	if !got.IsComplete() {
		t.Errorf("Expected completion on the second snapshot, got status %q", got.Status)
	}
	if source.refreshes != 2 {
		t.Errorf("Expected 2 refreshes, got %d", source.refreshes)
	}
}

func TestWaitForCompletionRefreshFailureRetried(t *testing.T) {
	source := &fakeSource{
		refreshErr: []error{errors.New("page reload failed"), nil},
		snapshots: [][]models.Track{
			nil,
			{{ID: "t1", Status: "complete"}},
		},
	}
	p, _ := newTestPoller(source)

	got := p.WaitForCompletion(models.Track{ID: "t1", Status: "queued"}, time.Hour)

	if !got.IsComplete() {
		t.Errorf("Refresh failure must be retried, got status %q", got.Status)
	}
}

func TestWaitForCompletionZeroBudgetUsesDefault(t *testing.T) {
	source := &fakeSource{
		snapshots: [][]models.Track{
			{{ID: "t1", Status: "complete"}},
		},
	}
	p, _ := newTestPoller(source)

	got := p.WaitForCompletion(models.Track{ID: "t1", Status: "queued"}, 0)
	if !got.IsComplete() {
		t.Error("Zero budget should fall back to the default, not return immediately")
	}
}

func TestSetInterval(t *testing.T) {
	p := New(&fakeSource{}, logger.NewNop())

	p.SetInterval(3 * time.Second)
	if p.interval != 3*time.Second {
		t.Errorf("Expected interval 3s, got %v", p.interval)
	}

	p.SetInterval(0)
	if p.interval != 3*time.Second {
		t.Error("Non-positive interval must be ignored")
	}
}
