package models

import (
	"reflect"
	"testing"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []Format
	}{
		{"all formats", []string{"mp3", "mp4", "wav"}, []Format{FormatMP3, FormatMP4, FormatWAV}},
		{"normalizes case and whitespace", []string{" MP3 ", "Wav"}, []Format{FormatMP3, FormatWAV}},
		{"drops duplicates, keeps first order", []string{"mp4", "mp3", "mp4"}, []Format{FormatMP4, FormatMP3}},
		{"drops unknown values", []string{"mp3", "flac", "ogg"}, []Format{FormatMP3}},
		{"empty input", nil, []Format{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := ParseFormats(test.input)
			if !reflect.DeepEqual(got, test.expected) {
				t.Errorf("ParseFormats(%v) = %v, expected %v", test.input, got, test.expected)
			}
		})
	}
}

func TestFormatExtension(t *testing.T) {
	if FormatMP3.Extension() != "mp3" {
		t.Errorf("Expected extension mp3, got %q", FormatMP3.Extension())
	}
	if FormatWAV.Extension() != "wav" {
		t.Errorf("Expected extension wav, got %q", FormatWAV.Extension())
	}
}
