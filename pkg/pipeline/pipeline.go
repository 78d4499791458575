// Package pipeline orchestrates one extraction-and-download run: session
// setup, authentication, listing stabilization, filtering, per-track
// generation wait and rendition transfer. Processing is strictly
// sequential; the host UI's client-side state is not safe to touch from
// overlapping simulated interactions.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"sunograb/pkg/browser"
	"sunograb/pkg/config"
	"sunograb/pkg/filter"
	"sunograb/pkg/logger"
	"sunograb/pkg/models"
	"sunograb/pkg/poller"
	"sunograb/pkg/ratelimit"
	"sunograb/pkg/session"
	"sunograb/pkg/storage"
	"sunograb/pkg/transfer"
)

// TrackResult is the per-track outcome: one success flag per requested
// rendition.
type TrackResult struct {
	Track      models.Track
	Renditions map[models.Format]bool
	Err        error
}

// Succeeded reports whether at least one rendition transferred.
func (r TrackResult) Succeeded() bool {
	if r.Err != nil {
		return false
	}
	for _, ok := range r.Renditions {
		if ok {
			return true
		}
	}
	return false
}

// Report is the aggregate outcome of one run.
type Report struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     int
	Results    []TrackResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pipeline owns the run's components. Exactly one browser session exists
// per pipeline; it is released unconditionally when Run returns.
type Pipeline struct {
	cfg     *config.Config
	logger  logger.Logger
	sess    *session.Session
	engine  *transfer.Engine
	poll    *poller.Poller
	formats []models.Format
}

// New launches a browser session and assembles a pipeline around it.
func New(cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	driver, err := browser.NewChromeDriver(&cfg.Browser, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	return NewWithSession(cfg, log, session.New(driver, &cfg.Browser, log))
}

// NewWithSession assembles a pipeline around an existing session. Exposed
// for tests driving a fake browser.
func NewWithSession(cfg *config.Config, log logger.Logger, sess *session.Session) (*Pipeline, error) {
	store, err := storage.NewManager(cfg.Download.OutputDir)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to set up output directory: %w", err)
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)

	return &Pipeline{
		cfg:     cfg,
		logger:  log,
		sess:    sess,
		engine:  transfer.NewEngine(store, limiter, cfg, log),
		poll:    poller.New(sess, log),
		formats: models.ParseFormats(cfg.Download.Formats),
	}, nil
}

// SetPollInterval overrides the generation poll interval. Used in tests.
func (p *Pipeline) SetPollInterval(d time.Duration) {
	p.poll.SetInterval(d)
}

// Run executes the full pipeline and reports the aggregate outcome. The
// browser session is torn down before returning, on every path. Errors
// from individual tracks are contained; only authentication and required
// element failures abort the run.
func (p *Pipeline) Run() (report *Report, err error) {
	defer func() {
		if closeErr := p.sess.Close(); closeErr != nil {
			p.logger.WithError(closeErr).Warn("failed to close browser session")
		}
	}()

	report = &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := p.logger.WithField("run_id", report.RunID)

	if err := p.sess.Login(p.cfg.Credentials.Username, p.cfg.Credentials.Password); err != nil {
		log.WithError(err).Error("authentication failed, aborting run")
		return nil, err
	}

	if err := p.sess.LoadLibrary(); err != nil {
		log.WithError(err).Error("failed to load library")
		return nil, err
	}

	tracks := p.sess.ExtractTracks()
	tracks = filter.Apply(tracks, criteriaFromConfig(p.cfg.Filters), log)

	if len(tracks) == 0 {
		log.Warn("no tracks matched the filter criteria")
		report.FinishedAt = time.Now()
		return report, nil
	}

	log.InfoWithFields("starting downloads", map[string]interface{}{
		"tracks":  len(tracks),
		"formats": p.cfg.Download.Formats,
	})

	report.Total = len(tracks)
	for i, track := range tracks {
		log.InfoWithFields("processing track", map[string]interface{}{
			"index":    i + 1,
			"total":    len(tracks),
			"track_id": track.ID,
			"title":    track.Title,
		})

		result := p.processTrack(track)
		report.Results = append(report.Results, result)
		if result.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
			if result.Err != nil {
				log.WithError(result.Err).ErrorWithFields("track failed", map[string]interface{}{
					"track_id": track.ID,
				})
			}
		}
	}

	report.FinishedAt = time.Now()
	log.InfoWithFields("run complete", map[string]interface{}{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"duration":  report.FinishedAt.Sub(report.StartedAt),
	})
	return report, nil
}

// processTrack is the per-item error boundary: nothing below it stops the
// run, failures are recorded on the result instead.
func (p *Pipeline) processTrack(track models.Track) (result TrackResult) {
	defer func() {
		if r := recover(); r != nil {
			result = TrackResult{
				Track: track,
				Err:   fmt.Errorf("panic while processing track %s: %v", track.ID, r),
			}
		}
	}()

	if p.cfg.Download.WaitForGeneration && !track.IsComplete() {
		track = p.poll.WaitForCompletion(track, p.cfg.Download.MaxWaitTime)
	}

	return TrackResult{
		Track:      track,
		Renditions: p.engine.DownloadTrack(track, p.formats),
	}
}

func criteriaFromConfig(f config.FiltersConfig) filter.Criteria {
	return filter.Criteria{
		Title:    f.Title,
		Status:   f.Status,
		HasVideo: f.HasVideo,
		HasAudio: f.HasAudio,
		MinDate:  f.MinDate,
		MaxDate:  f.MaxDate,
	}
}
