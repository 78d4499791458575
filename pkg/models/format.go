package models

import "strings"

// Format is one downloadable rendition kind of a track.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatMP4 Format = "mp4"
	FormatWAV Format = "wav"
)

// Extension returns the filename extension for the format.
func (f Format) Extension() string {
	return string(f)
}

// ParseFormats normalizes a list of format names, dropping duplicates and
// unknown values. Order of first appearance is preserved.
func ParseFormats(names []string) []Format {
	seen := make(map[Format]bool, len(names))
	out := make([]Format, 0, len(names))
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		switch f {
		case FormatMP3, FormatMP4, FormatWAV:
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}
