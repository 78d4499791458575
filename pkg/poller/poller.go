// Package poller waits for a track's generation to reach the terminal
// status by periodically refreshing the listing snapshot.
package poller

import (
	"time"

	"sunograb/pkg/logger"
	"sunograb/pkg/models"
)

// DefaultInterval is the pause between listing refreshes.
const DefaultInterval = 10 * time.Second

// DefaultMaxWait is the default wall-clock budget per track.
const DefaultMaxWait = 5 * time.Minute

// Snapshotter provides fresh listing snapshots. Satisfied by
// session.Session.
type Snapshotter interface {
	Refresh() error
	ExtractTracks() []models.Track
}

// Poller re-evaluates a track's status until it completes or a wall-clock
// budget runs out. Timeouts are soft: the last-known record is returned
// unchanged and downstream renditions simply fail to resolve a URL.
type Poller struct {
	source   Snapshotter
	interval time.Duration
	logger   logger.Logger

	// injectable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a poller refreshing through the given snapshot source.
func New(source Snapshotter, log logger.Logger) *Poller {
	return &Poller{
		source:   source,
		interval: DefaultInterval,
		logger:   log,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// WaitForCompletion blocks until the track reaches the terminal status or
// maxWait elapses. A track already terminal returns immediately with no
// sleeps. A track missing from a fresh snapshot counts as still pending.
func (p *Poller) WaitForCompletion(track models.Track, maxWait time.Duration) models.Track {
	if track.IsComplete() {
		p.logger.DebugWithFields("track already complete", map[string]interface{}{
			"track_id": track.ID,
		})
		return track
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	p.logger.InfoWithFields("waiting for generation", map[string]interface{}{
		"track_id": track.ID,
		"title":    track.Title,
		"status":   track.Status,
		"max_wait": maxWait,
	})

	start := p.now()
	for p.now().Sub(start) < maxWait {
		p.sleep(p.interval)

		if err := p.source.Refresh(); err != nil {
			p.logger.WithError(err).Warn("listing refresh failed, will retry")
			continue
		}

		updated, found := findByID(p.source.ExtractTracks(), track.ID)
		if !found {
			p.logger.DebugWithFields("track absent from snapshot, still pending", map[string]interface{}{
				"track_id": track.ID,
			})
			continue
		}

		// Later snapshots supersede the earlier record wholesale.
		track = updated
		if track.IsComplete() {
			p.logger.InfoWithFields("generation complete", map[string]interface{}{
				"track_id": track.ID,
				"title":    track.Title,
				"elapsed":  p.now().Sub(start),
			})
			return track
		}

		p.logger.DebugWithFields("generation still in progress", map[string]interface{}{
			"track_id": track.ID,
			"status":   track.Status,
			"elapsed":  p.now().Sub(start),
		})
	}

	p.logger.WarnWithFields("generation wait timed out", map[string]interface{}{
		"track_id": track.ID,
		"title":    track.Title,
		"status":   track.Status,
	})
	return track
}

// SetInterval overrides the refresh interval.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

func findByID(tracks []models.Track, id string) (models.Track, bool) {
	for _, t := range tracks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Track{}, false
}
