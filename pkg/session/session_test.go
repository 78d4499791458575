package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"sunograb/pkg/config"
	errs "sunograb/pkg/errors"
	"sunograb/pkg/logger"
)

// fakeDriver scripts a browser session: which selectors resolve, what the
// current URL is, and what the page scripts return.
type fakeDriver struct {
	visibleSelectors map[string]bool
	location         string
	locationErr      error
	navigateErr      error
	reloadErr        error
	evaluateErr      error

	// heights is consumed one value per scrollHeight query
	heights []float64

	// raw extraction payload returned to the extraction script
	extracted []map[string]interface{}

	typed      map[string]string
	clicked    []string
	navigated  []string
	reloads    int
	scrolls    int
	closed     bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		visibleSelectors: make(map[string]bool),
		typed:            make(map[string]string),
	}
}

func (d *fakeDriver) Navigate(url string) error {
	d.navigated = append(d.navigated, url)
	return d.navigateErr
}

func (d *fakeDriver) WaitVisible(selector string, timeout time.Duration) error {
	if d.visibleSelectors[selector] {
		return nil
	}
	return errors.New("element not visible")
}

func (d *fakeDriver) SendKeys(selector, text string) error {
	d.typed[selector] = text
	return nil
}

func (d *fakeDriver) Click(selector string) error {
	d.clicked = append(d.clicked, selector)
	return nil
}

func (d *fakeDriver) Evaluate(script string, out interface{}) error {
	if d.evaluateErr != nil {
		return d.evaluateErr
	}
	switch {
	case strings.Contains(script, "scrollTo"):
		d.scrolls++
		return nil
	case strings.Contains(script, "scrollHeight"):
		height, _ := out.(*float64)
		if len(d.heights) > 0 {
			*height = d.heights[0]
			if len(d.heights) > 1 {
				d.heights = d.heights[1:]
			}
		}
		return nil
	case strings.Contains(script, "__reactProps"):
		raws, _ := out.(*[]map[string]interface{})
		*raws = d.extracted
		return nil
	}
	return nil
}

func (d *fakeDriver) Location() (string, error) {
	return d.location, d.locationErr
}

func (d *fakeDriver) Reload() error {
	d.reloads++
	return d.reloadErr
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func testBrowserConfig() *config.BrowserConfig {
	return &config.BrowserConfig{
		BaseURL:        "https://host.example.com",
		ElementTimeout: 10 * time.Millisecond,
		SettleInterval: time.Millisecond,
		MaxScrolls:     20,
	}
}

func newTestSession(driver *fakeDriver) *Session {
	s := New(driver, testBrowserConfig(), logger.NewNop())
	s.SetSleep(func(time.Duration) {})
	return s
}

func TestLoginSuccess(t *testing.T) {
	driver := newFakeDriver()
	driver.visibleSelectors["input[type='email']"] = true
	driver.visibleSelectors["input[type='password']"] = true
	driver.visibleSelectors["button[type='submit']"] = true
	driver.location = "https://host.example.com/songs"

	s := newTestSession(driver)
	if err := s.Login("user@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if driver.typed["input[type='email']"] != "user@example.com" {
		t.Error("Username was not typed into the email field")
	}
	if driver.typed["input[type='password']"] != "secret" {
		t.Error("Password was not typed into the password field")
	}
	if len(driver.clicked) != 1 || driver.clicked[0] != "button[type='submit']" {
		t.Errorf("Expected one submit click, got %v", driver.clicked)
	}
	if len(driver.navigated) != 1 || driver.navigated[0] != "https://host.example.com/login" {
		t.Errorf("Expected navigation to the login page, got %v", driver.navigated)
	}
}

func TestLoginResolvesFallbackSelectors(t *testing.T) {
	driver := newFakeDriver()
	// Only the later candidates in each chain resolve.
	driver.visibleSelectors["#username"] = true
	driver.visibleSelectors["#password"] = true
	driver.visibleSelectors["form button"] = true
	driver.location = "https://host.example.com/songs"

	s := newTestSession(driver)
	if err := s.Login("user@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if driver.typed["#username"] != "user@example.com" {
		t.Error("Expected the fallback email selector to be used")
	}
	if driver.typed["#password"] != "secret" {
		t.Error("Expected the fallback password selector to be used")
	}
}

func TestLoginRejectedWhenStillOnLoginPage(t *testing.T) {
	driver := newFakeDriver()
	driver.visibleSelectors["input[type='email']"] = true
	driver.visibleSelectors["input[type='password']"] = true
	driver.visibleSelectors["button[type='submit']"] = true
	driver.location = "https://host.example.com/login?error=invalid"

	s := newTestSession(driver)
	err := s.Login("user@example.com", "wrong")

	if !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("Expected ErrLoginRejected, got %v", err)
	}
}

func TestLoginFatalWhenNoEmailCandidateResolves(t *testing.T) {
	driver := newFakeDriver()
	// Nothing on the page resolves.
	s := newTestSession(driver)

	err := s.Login("user@example.com", "secret")
	if err == nil {
		t.Fatal("Expected an error when no email field resolves")
	}
	if errs.TypeOf(err) != errs.ErrorTypeElement {
		t.Errorf("Expected element classification, got %v", errs.TypeOf(err))
	}
	if len(driver.clicked) != 0 {
		t.Error("Nothing should be clicked after a fatal selector miss")
	}
}

func TestLoadLibraryStabilizesUntilHeightStops(t *testing.T) {
	driver := newFakeDriver()
	driver.visibleSelectors[gridSelector] = true
	// Initial probe, then growth, then two equal heights.
	driver.heights = []float64{1000, 2000, 3000, 3000}

	s := newTestSession(driver)
	if err := s.LoadLibrary(); err != nil {
		t.Fatalf("LoadLibrary failed: %v", err)
	}

	// 3 bottom scrolls until stable plus 1 scroll back to top.
	if driver.scrolls != 4 {
		t.Errorf("Expected 4 scroll evaluations, got %d", driver.scrolls)
	}
	if driver.navigated[0] != "https://host.example.com/songs" {
		t.Errorf("Expected navigation to the listing page, got %v", driver.navigated)
	}
}

func TestLoadLibraryScrollCapBoundsLazyLoad(t *testing.T) {
	driver := newFakeDriver()
	driver.visibleSelectors[gridSelector] = true
	// Strictly growing heights, far more than the cap allows.
	for i := 0; i < 100; i++ {
		driver.heights = append(driver.heights, float64(1000+i*500))
	}

	cfg := testBrowserConfig()
	cfg.MaxScrolls = 5
	s := New(driver, cfg, logger.NewNop())
	s.SetSleep(func(time.Duration) {})

	if err := s.LoadLibrary(); err != nil {
		t.Fatalf("LoadLibrary failed: %v", err)
	}

	// 5 capped bottom scrolls plus the scroll back to top.
	if driver.scrolls != 6 {
		t.Errorf("Expected 6 scroll evaluations with cap 5, got %d", driver.scrolls)
	}
}

func TestLoadLibraryMissingGridIsNotFatal(t *testing.T) {
	driver := newFakeDriver()
	driver.heights = []float64{500, 500}

	s := newTestSession(driver)
	if err := s.LoadLibrary(); err != nil {
		t.Fatalf("Missing grid must not abort the run, got %v", err)
	}
}

func TestExtractTracksNormalizesRecords(t *testing.T) {
	driver := newFakeDriver()
	driver.extracted = []map[string]interface{}{
		{
			"id":        "t1",
			"title":     "First Song",
			"audio_url": "https://cdn.example.com/t1.mp3",
			"status":    "complete",
		},
		{
			"id": "t2",
		},
	}

	s := newTestSession(driver)
	tracks := s.ExtractTracks()

	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].Title != "First Song" || !tracks[0].IsComplete() {
		t.Errorf("Unexpected first track: %+v", tracks[0])
	}
	if tracks[1].Title != "t2" {
		t.Errorf("Expected title fallback to ID, got %q", tracks[1].Title)
	}
}

func TestExtractTracksSwallowsScriptFailure(t *testing.T) {
	driver := newFakeDriver()
	driver.evaluateErr = errors.New("execution context destroyed")

	s := newTestSession(driver)
	if tracks := s.ExtractTracks(); tracks != nil {
		t.Errorf("Extraction failure must yield nil, got %v", tracks)
	}
}

func TestRefresh(t *testing.T) {
	driver := newFakeDriver()
	s := newTestSession(driver)

	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if driver.reloads != 1 {
		t.Errorf("Expected one reload, got %d", driver.reloads)
	}

	driver.reloadErr = errors.New("tab crashed")
	if err := s.Refresh(); err == nil {
		t.Error("Expected reload failure to propagate")
	}
}

func TestCloseReleasesDriver(t *testing.T) {
	driver := newFakeDriver()
	s := newTestSession(driver)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !driver.closed {
		t.Error("Expected the driver to be closed")
	}
}
