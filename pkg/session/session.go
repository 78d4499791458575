// Package session drives one authenticated browser session: login, library
// navigation, lazy-load stabilization and structured track extraction.
package session

import (
	"strings"
	"time"

	"sunograb/pkg/browser"
	"sunograb/pkg/config"
	errs "sunograb/pkg/errors"
	"sunograb/pkg/logger"
	"sunograb/pkg/models"
)

const (
	loginPath   = "/login"
	libraryPath = "/songs"

	// settle pauses allow asynchronous UI updates to finish before the
	// next interaction, mirroring the host's render cadence
	navigationSettle = 3 * time.Second
	postSubmitSettle = 5 * time.Second
	scrollTopSettle  = 1 * time.Second

	// probeTimeout bounds the wait for optional selector candidates past
	// the first field; the page is already rendered by then
	probeTimeout = 2 * time.Second

	gridSelector = "[role='grid']"
)

// Candidate selector chains for the login form. The host UI's exact
// locators drift between deployments, so each field is resolved by walking
// the chain until one matches.
var (
	emailSelectors = browser.Candidates{
		"input[type='email']",
		"input[name='email']",
		"input[placeholder*='email' i]",
		"#email",
		"#username",
	}
	passwordSelectors = browser.Candidates{
		"input[type='password']",
		"input[name='password']",
		"#password",
	}
	submitSelectors = browser.Candidates{
		"button[type='submit']",
		"input[type='submit']",
		"form button",
	}
)

// ErrLoginRejected is returned when authentication was submitted but the
// host kept us on the login view. The run aborts gracefully; the session is
// still torn down by the caller.
var ErrLoginRejected = errs.New(errs.ErrorTypeAuth, "still on login page after submitting credentials")

// Session owns one authenticated browser session. Exactly one session
// exists per run; it is created at run start and closed unconditionally at
// run end.
type Session struct {
	driver browser.Driver
	cfg    *config.BrowserConfig
	logger logger.Logger

	// sleep is swappable so tests run without wall-clock waits
	sleep func(time.Duration)
}

// New wraps an established browser driver in a Session.
func New(driver browser.Driver, cfg *config.BrowserConfig, log logger.Logger) *Session {
	return &Session{
		driver: driver,
		cfg:    cfg,
		logger: log,
		sleep:  time.Sleep,
	}
}

// SetSleep overrides the settle pause function. Used in tests.
func (s *Session) SetSleep(fn func(time.Duration)) {
	if fn != nil {
		s.sleep = fn
	}
}

// Login submits credentials through the login form and verifies the result
// by inspecting the post-submit URL. A form field that resolves through no
// candidate selector is a fatal element error; a rejected login returns
// ErrLoginRejected.
func (s *Session) Login(username, password string) error {
	s.logger.Info("attempting login")

	if err := s.driver.Navigate(s.cfg.BaseURL + loginPath); err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to load login page", err)
	}
	s.sleep(navigationSettle)

	emailSel, err := emailSelectors.Resolve(s.driver, s.cfg.ElementTimeout)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeElement, "email input not found", err)
	}
	s.logger.DebugWithFields("resolved email input", map[string]interface{}{"selector": emailSel})
	if err := s.driver.SendKeys(emailSel, username); err != nil {
		return errs.Wrap(errs.ErrorTypeElement, "failed to fill email input", err)
	}

	passwordSel, err := passwordSelectors.Resolve(s.driver, probeTimeout)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeElement, "password input not found", err)
	}
	s.logger.DebugWithFields("resolved password input", map[string]interface{}{"selector": passwordSel})
	if err := s.driver.SendKeys(passwordSel, password); err != nil {
		return errs.Wrap(errs.ErrorTypeElement, "failed to fill password input", err)
	}

	submitSel, err := submitSelectors.Resolve(s.driver, probeTimeout)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeElement, "login button not found", err)
	}
	if err := s.driver.Click(submitSel); err != nil {
		return errs.Wrap(errs.ErrorTypeElement, "failed to click login button", err)
	}

	s.sleep(postSubmitSettle)

	url, err := s.driver.Location()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to read post-login URL", err)
	}
	if strings.Contains(strings.ToLower(url), "login") {
		s.logger.WarnWithFields("login appears rejected", map[string]interface{}{"url": url})
		return ErrLoginRejected
	}

	s.logger.Info("login successful")
	return nil
}

// LoadLibrary navigates to the listing view and triggers lazy loading
// until the page height stabilizes.
func (s *Session) LoadLibrary() error {
	s.logger.Info("navigating to library")

	if err := s.driver.Navigate(s.cfg.BaseURL + libraryPath); err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to load library page", err)
	}
	s.sleep(navigationSettle)

	if err := s.driver.WaitVisible(gridSelector, s.cfg.ElementTimeout); err != nil {
		// The grid may render late on slow hosts; extraction still has a
		// chance, so this is not fatal.
		s.logger.Warn("timeout waiting for library grid, continuing")
	}

	s.stabilize()
	return nil
}

// stabilize repeatedly scrolls to the bottom and waits a settle interval,
// stopping once the page height stops growing or the attempt cap is
// reached. The cap bounds worst-case wait; a host rendering slower than
// the settle interval may under-load, which is accepted degradation.
func (s *Session) stabilize() {
	lastHeight := s.pageHeight()
	for attempt := 1; attempt <= s.cfg.MaxScrolls; attempt++ {
		if err := s.driver.Evaluate("window.scrollTo(0, document.body.scrollHeight);", nil); err != nil {
			s.logger.WithError(err).Warn("scroll failed, stopping lazy load")
			break
		}
		s.sleep(s.cfg.SettleInterval)

		height := s.pageHeight()
		if height == lastHeight {
			s.logger.DebugWithFields("page height stable", map[string]interface{}{
				"attempts": attempt,
				"height":   height,
			})
			break
		}
		lastHeight = height
	}

	if err := s.driver.Evaluate("window.scrollTo(0, 0);", nil); err == nil {
		s.sleep(scrollTopSettle)
	}
}

func (s *Session) pageHeight() float64 {
	var height float64
	if err := s.driver.Evaluate("document.body.scrollHeight", &height); err != nil {
		return 0
	}
	return height
}

// extractScript recovers the track collection from the listing's internal
// component state. The listing is a virtualized grid whose records are not
// present in visible DOM text, so this is the one place that depends on
// the host's client-side data layout; treat it as a versioned black-box
// contract and update it here when the host changes.
const extractScript = `
(() => {
	try {
		const grid = document.querySelector('[role="grid"]');
		if (!grid) return [];

		const propsKey = Object.keys(grid).find(key => key.startsWith('__reactProps'));
		if (!propsKey) return [];

		const items = grid[propsKey].children[0].props.values[0][1].collection;

		return [...items]
			.filter(x => x.value && x.value.clip && x.value.clip.clip)
			.map(x => {
				const clip = x.value.clip.clip;
				return {
					id: clip.id || '',
					title: clip.title ? clip.title.trim() : (clip.id || ''),
					audio_url: clip.audio_url || '',
					video_url: clip.video_url || '',
					image_url: clip.image_url || '',
					created_at: clip.created_at || '',
					duration: clip.duration || 0,
					status: clip.status || '',
					tags: clip.tags || []
				};
			});
	} catch (e) {
		return [];
	}
})()
`

// ExtractTracks runs the in-page extraction and normalizes the result into
// Track records. Extraction anomalies never propagate: any failure yields
// an empty slice.
func (s *Session) ExtractTracks() []models.Track {
	var raws []map[string]interface{}
	if err := s.driver.Evaluate(extractScript, &raws); err != nil {
		s.logger.WithError(err).Warn("track extraction failed")
		return nil
	}

	tracks := make([]models.Track, 0, len(raws))
	for _, raw := range raws {
		tracks = append(tracks, models.TrackFromRaw(raw))
	}

	s.logger.InfoWithFields("extracted tracks", map[string]interface{}{
		"count": len(tracks),
	})
	return tracks
}

// Refresh reloads the current page and waits for it to settle. Used by the
// completion poller to obtain a fresh listing snapshot.
func (s *Session) Refresh() error {
	if err := s.driver.Reload(); err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to refresh page", err)
	}
	s.sleep(navigationSettle)
	return nil
}

// Close releases the underlying browser session. Always called at run end,
// regardless of success or failure.
func (s *Session) Close() error {
	return s.driver.Close()
}
