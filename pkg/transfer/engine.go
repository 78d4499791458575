// Package transfer streams remote renditions to local storage with
// idempotent re-run semantics: existing files are never overwritten and
// failed transfers never leave partial files behind.
package transfer

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"sunograb/pkg/config"
	errs "sunograb/pkg/errors"
	"sunograb/pkg/logger"
	"sunograb/pkg/models"
	"sunograb/pkg/ratelimit"
	"sunograb/pkg/retry"
	"sunograb/pkg/storage"
)

const (
	chunkSize = 8192
	// progressStep is the granularity of progress log lines. Purely
	// observational.
	progressStep = 1 << 20
)

// Engine downloads remote resources into the managed output directory.
type Engine struct {
	client   *http.Client
	store    *storage.Manager
	limiter  ratelimit.Limiter
	retryCfg *retry.Config
	logger   logger.Logger
}

// NewEngine creates a transfer engine writing through the given storage
// manager, paced by the limiter and retrying retryable request failures.
func NewEngine(store *storage.Manager, limiter ratelimit.Limiter, cfg *config.Config, log logger.Logger) *Engine {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Engine{
		client: &http.Client{
			Timeout: cfg.Download.Timeout,
		},
		store:   store,
		limiter: limiter,
		retryCfg: &retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff: &retry.ExponentialBackoff{
				InitialDelay: cfg.Retry.InitialDelay,
				MaxDelay:     cfg.Retry.MaxDelay,
				Multiplier:   cfg.Retry.Multiplier,
				Jitter:       true,
			},
			RetryIf: retry.DefaultRetryIf,
			Logger:  log,
		},
		logger: log,
	}
}

// Transfer streams the resource at url into filename under the output
// directory. Contract:
//   - empty url fails immediately with no I/O,
//   - an existing destination file is a success with no network request,
//   - any request or stream failure deletes the partial file and reports
//     the failure.
func (e *Engine) Transfer(url, filename string) error {
	if url == "" {
		e.logger.WarnWithFields("no URL for rendition", map[string]interface{}{
			"filename": filename,
		})
		return errs.Newf(errs.ErrorTypeMissingURL, "no URL provided for %s", filename)
	}

	if e.store.Exists(filename) {
		e.logger.InfoWithFields("file already exists, skipping", map[string]interface{}{
			"filename": filename,
		})
		return nil
	}

	e.limiter.Wait()

	start := time.Now()
	e.logger.InfoWithFields("downloading", map[string]interface{}{
		"filename": filename,
		"url":      url,
	})

	resp, err := retry.DoWithResult(func() (*http.Response, error) {
		return e.request(url)
	}, e.retryCfg)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeTransfer, fmt.Sprintf("request for %s failed", filename), err)
	}
	defer resp.Body.Close()

	written, err := e.stream(resp, filename)
	if err != nil {
		// Never leave a truncated file on the failure path.
		e.store.Discard(filename)
		return errs.Wrap(errs.ErrorTypeTransfer, fmt.Sprintf("streaming %s failed", filename), err)
	}

	e.store.Commit(filename)
	e.logger.InfoWithFields("download complete", map[string]interface{}{
		"filename": filename,
		"bytes":    written,
		"duration": time.Since(start),
	})
	return nil
}

// request performs the GET, converting non-2xx responses into classified
// errors so the retry predicate can act on the status code.
func (e *Engine) request(url string) (*http.Response, error) {
	resp, err := e.client.Get(url)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errs.Newf(errs.ErrorTypeNetwork, "unexpected status %s", resp.Status).WithCode(resp.StatusCode)
	}
	return resp, nil
}

// stream copies the response body to the destination in fixed-size chunks,
// logging coarse progress about once per megabyte.
func (e *Engine) stream(resp *http.Response, filename string) (int64, error) {
	out, err := e.store.Create(filename)
	if err != nil {
		return 0, err
	}

	var written, lastLogged int64
	total := resp.ContentLength
	buf := make([]byte, chunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return written, fmt.Errorf("write failed: %w", writeErr)
			}
			written += int64(n)

			if written-lastLogged >= progressStep {
				lastLogged = written
				fields := map[string]interface{}{
					"filename": filename,
					"bytes":    written,
				}
				if total > 0 {
					fields["percent"] = fmt.Sprintf("%.1f", float64(written)/float64(total)*100)
				}
				e.logger.DebugWithFields("download progress", fields)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return written, fmt.Errorf("read failed: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("close failed: %w", err)
	}
	return written, nil
}

// DownloadTrack fetches every requested rendition of a track and returns a
// per-format success map. The audio and video locators come straight off
// the record; the WAV locator is derived heuristically, so its failures
// are expected and only logged.
func (e *Engine) DownloadTrack(track models.Track, formats []models.Format) map[models.Format]bool {
	stem := SanitizeTitle(track.Title, track.ID)
	results := make(map[models.Format]bool, len(formats))

	for _, format := range formats {
		var url string
		switch format {
		case models.FormatMP3:
			url = track.AudioURL
		case models.FormatMP4:
			url = track.VideoURL
		case models.FormatWAV:
			url = DeriveWAVURL(track.AudioURL)
		}

		filename := fmt.Sprintf("%s.%s", stem, format.Extension())
		err := e.Transfer(url, filename)
		results[format] = err == nil
		if err != nil && !errs.IsSoft(err) {
			e.logger.WithError(err).WarnWithFields("rendition download failed", map[string]interface{}{
				"track_id": track.ID,
				"format":   string(format),
			})
		}
	}

	return results
}
