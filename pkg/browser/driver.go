// Package browser abstracts the automated browser session behind a small
// capability interface. Any automation surface exposing these operations
// satisfies the contract; the default implementation drives Chrome over the
// DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"sunograb/pkg/config"
	"sunograb/pkg/logger"
)

// Driver is the capability set the pipeline consumes from a browser
// session. Cancellation is coarse: the session runs until Close, matching
// the single-run, single-session resource model.
type Driver interface {
	// Navigate loads the given URL and waits for the page load event.
	Navigate(url string) error
	// WaitVisible blocks until the selector matches a visible element or
	// the timeout expires.
	WaitVisible(selector string, timeout time.Duration) error
	// SendKeys clears the matched input and types text into it.
	SendKeys(selector, text string) error
	// Click clicks the first element matched by the selector.
	Click(selector string) error
	// Evaluate runs a script in page context and unmarshals its JSON
	// result into out. Pass nil to discard the result.
	Evaluate(script string, out interface{}) error
	// Location returns the current page URL.
	Location() (string, error)
	// Reload refreshes the current page.
	Reload() error
	// Close tears down the browser and all its resources.
	Close() error
}

// ChromeDriver implements Driver on a locally launched Chrome instance.
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      logger.Logger
}

// statically ensure the interface is satisfied
var _ Driver = (*ChromeDriver)(nil)

// NewChromeDriver launches a Chrome instance configured per cfg. The
// automation-controlled blink feature is disabled so the host's bot
// heuristics see an ordinary browser.
func NewChromeDriver(cfg *config.BrowserConfig, log logger.Logger) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("start-maximized", true),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	log.InfoWithFields("launching browser", map[string]interface{}{
		"headless": cfg.Headless,
	})

	// Run an empty task list to start the browser eagerly so launch
	// failures surface here instead of on the first navigation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &ChromeDriver{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      log,
	}, nil
}

func (d *ChromeDriver) Navigate(url string) error {
	d.logger.DebugWithFields("navigating", map[string]interface{}{"url": url})
	return chromedp.Run(d.ctx, chromedp.Navigate(url))
}

func (d *ChromeDriver) WaitVisible(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (d *ChromeDriver) SendKeys(selector, text string) error {
	return chromedp.Run(d.ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (d *ChromeDriver) Click(selector string) error {
	return chromedp.Run(d.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (d *ChromeDriver) Evaluate(script string, out interface{}) error {
	return chromedp.Run(d.ctx, chromedp.Evaluate(script, out))
}

func (d *ChromeDriver) Location() (string, error) {
	var url string
	if err := chromedp.Run(d.ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (d *ChromeDriver) Reload() error {
	return chromedp.Run(d.ctx, chromedp.Reload())
}

// Close tears down the tab and the browser process. Safe to call once the
// driver is no longer used; always called at run end.
func (d *ChromeDriver) Close() error {
	d.logger.Debug("closing browser")
	d.cancel()
	d.allocCancel()
	return nil
}
