package models

import "strings"

// StatusComplete is the terminal generation status. Anything else is
// treated as still in progress.
const StatusComplete = "complete"

// Track is one generated artifact's metadata snapshot, extracted from the
// library listing. Tracks are immutable: a later extraction for the same ID
// supersedes this snapshot rather than mutating it.
type Track struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	AudioURL  string   `json:"audio_url"`
	VideoURL  string   `json:"video_url"`
	ImageURL  string   `json:"image_url"`
	CreatedAt string   `json:"created_at"`
	Duration  float64  `json:"duration"`
	Status    string   `json:"status"`
	Tags      []string `json:"tags"`
}

// IsComplete reports whether generation has reached the terminal status.
func (t Track) IsComplete() bool {
	return strings.EqualFold(t.Status, StatusComplete)
}

// HasAudio reports whether the track carries an audio locator.
func (t Track) HasAudio() bool {
	return t.AudioURL != ""
}

// HasVideo reports whether the track carries a video locator.
func (t Track) HasVideo() bool {
	return t.VideoURL != ""
}

// TrackFromRaw builds a Track from the untyped structure returned by the
// in-page extraction script. Every optional field gets an explicit default
// here, so downstream code never guards against missing keys. A title that
// is blank after trimming falls back to the track ID.
func TrackFromRaw(raw map[string]interface{}) Track {
	t := Track{
		ID:        rawString(raw, "id"),
		Title:     strings.TrimSpace(rawString(raw, "title")),
		AudioURL:  rawString(raw, "audio_url"),
		VideoURL:  rawString(raw, "video_url"),
		ImageURL:  rawString(raw, "image_url"),
		CreatedAt: rawString(raw, "created_at"),
		Duration:  rawFloat(raw, "duration"),
		Status:    rawString(raw, "status"),
		Tags:      rawStrings(raw, "tags"),
	}
	if t.Title == "" {
		t.Title = t.ID
	}
	return t
}

func rawString(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func rawFloat(raw map[string]interface{}, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func rawStrings(raw map[string]interface{}, key string) []string {
	list, ok := raw[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
