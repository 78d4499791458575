package transfer

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"sunograb/pkg/config"
	errs "sunograb/pkg/errors"
	"sunograb/pkg/logger"
	"sunograb/pkg/models"
	"sunograb/pkg/ratelimit"
	"sunograb/pkg/storage"
)

func testConfig(outputDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Download.OutputDir = outputDir
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, dir string) (*Engine, *storage.Manager) {
	t.Helper()
	store, err := storage.NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create storage manager: %v", err)
	}
	return NewEngine(store, ratelimit.Unlimited{}, testConfig(dir), logger.NewNop()), store
}

func TestTransferEmptyURLFailsWithoutIO(t *testing.T) {
	dir := t.TempDir()
	engine, _ := newTestEngine(t, dir)

	err := engine.Transfer("", "track.mp3")
	if err == nil {
		t.Fatal("Expected an error for empty URL")
	}
	if errs.TypeOf(err) != errs.ErrorTypeMissingURL {
		t.Errorf("Expected missing_url classification, got %v", errs.TypeOf(err))
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Error("Empty URL must not create any file")
	}
}

func TestTransferSkipsExistingFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(existing, []byte("original"), 0644); err != nil {
		t.Fatalf("Failed to seed existing file: %v", err)
	}

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte("new content"))
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, dir)

	if err := engine.Transfer(server.URL+"/track.mp3", "track.mp3"); err != nil {
		t.Fatalf("Expected existing file to count as success, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 0 {
		t.Error("Existing file must be skipped without a network request")
	}

	content, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "original" {
		t.Error("Existing file must never be overwritten")
	}
}

func TestTransferDoesNotSkipWhenDirectoryOccupiesName(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "track.mp3"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, dir)

	// The directory is not a downloaded file, so this must not take the
	// silent skip path; writing over a directory then fails loudly.
	err := engine.Transfer(server.URL+"/track.mp3", "track.mp3")
	if err == nil {
		t.Fatal("Expected an error, not a skipped success")
	}
	if atomic.LoadInt32(&requests) == 0 {
		t.Error("Expected the transfer to be attempted, not skipped")
	}
}

func TestTransferDownloadsAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("audio bytes go here")

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write(payload)
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, dir)

	if err := engine.Transfer(server.URL+"/track.mp3", "track.mp3"); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "track.mp3"))
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(content) != string(payload) {
		t.Error("Downloaded content does not match the served payload")
	}

	// Re-running must hit the skip path, not the network.
	if err := engine.Transfer(server.URL+"/track.mp3", "track.mp3"); err != nil {
		t.Fatalf("Second transfer failed: %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("Expected exactly 1 request, got %d", got)
	}
}

func TestTransferNotFoundIsNotRetried(t *testing.T) {
	dir := t.TempDir()

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	engine, store := newTestEngine(t, dir)

	err := engine.Transfer(server.URL+"/gone.wav", "gone.wav")
	if err == nil {
		t.Fatal("Expected an error for 404 response")
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("404 must not be retried, got %d requests", got)
	}
	if store.Exists("gone.wav") {
		t.Error("Failed transfer must not register the file")
	}
	if _, err := os.Stat(filepath.Join(dir, "gone.wav")); !os.IsNotExist(err) {
		t.Error("Failed transfer must not leave a file behind")
	}
}

func TestTransferRetriesServerErrors(t *testing.T) {
	dir := t.TempDir()

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, dir)

	if err := engine.Transfer(server.URL+"/flaky.mp3", "flaky.mp3"); err != nil {
		t.Fatalf("Expected 503s to be retried to success, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
}

func TestTransferMidStreamFailureLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("truncated"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	engine, store := newTestEngine(t, dir)

	err := engine.Transfer(server.URL+"/broken.mp3", "broken.mp3")
	if err == nil {
		t.Fatal("Expected an error for a truncated stream")
	}
	if errs.TypeOf(err) != errs.ErrorTypeTransfer {
		t.Errorf("Expected transfer classification, got %v", errs.TypeOf(err))
	}
	if _, statErr := os.Stat(filepath.Join(dir, "broken.mp3")); !os.IsNotExist(statErr) {
		t.Error("Partial file must be deleted after a mid-stream failure")
	}
	if store.Exists("broken.mp3") {
		t.Error("Failed transfer must not register the file")
	}
}

func TestDownloadTrackRenditionMap(t *testing.T) {
	dir := t.TempDir()

	mux := http.NewServeMux()
	mux.HandleFunc("/song.mp3", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("mp3")) })
	mux.HandleFunc("/song.mp4", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("mp4")) })
	mux.HandleFunc("/song.wav", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("wav")) })
	server := httptest.NewServer(mux)
	defer server.Close()

	engine, _ := newTestEngine(t, dir)

	track := models.Track{
		ID:       "abc123",
		Title:    "My Song",
		AudioURL: server.URL + "/song.mp3",
		VideoURL: server.URL + "/song.mp4",
	}

	results := engine.DownloadTrack(track, []models.Format{models.FormatMP3, models.FormatMP4, models.FormatWAV})

	for _, format := range []models.Format{models.FormatMP3, models.FormatMP4, models.FormatWAV} {
		if !results[format] {
			t.Errorf("Expected %s rendition to succeed", format)
		}
		path := filepath.Join(dir, "My Song."+format.Extension())
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist: %v", path, err)
		}
	}
}

func TestDownloadTrackMissingVideoURL(t *testing.T) {
	dir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, dir)

	track := models.Track{
		ID:       "abc123",
		Title:    "Audio Only",
		AudioURL: server.URL + "/song.mp3",
	}

	results := engine.DownloadTrack(track, []models.Format{models.FormatMP3, models.FormatMP4})

	if !results[models.FormatMP3] {
		t.Error("Expected mp3 rendition to succeed")
	}
	if results[models.FormatMP4] {
		t.Error("Expected mp4 rendition to fail with no video URL")
	}
	if _, err := os.Stat(filepath.Join(dir, "Audio Only.mp4")); !os.IsNotExist(err) {
		t.Error("Missing video URL must not create a file")
	}
}

func TestDownloadTrackWAVDerivedFromAudioURL(t *testing.T) {
	dir := t.TempDir()

	var wavPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if filepath.Ext(r.URL.Path) == ".wav" {
			wavPath = r.URL.Path
		}
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	engine, _ := newTestEngine(t, dir)

	track := models.Track{
		ID:       "abc123",
		Title:    "Songbird",
		AudioURL: server.URL + "/media/abc123.mp3",
	}

	results := engine.DownloadTrack(track, []models.Format{models.FormatWAV})

	if !results[models.FormatWAV] {
		t.Error("Expected wav rendition to succeed")
	}
	if wavPath != "/media/abc123.wav" {
		t.Errorf("Expected wav request at /media/abc123.wav, got %q", wavPath)
	}
}
