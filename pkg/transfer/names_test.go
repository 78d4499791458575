package transfer

import "testing"

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		fallback string
		expected string
	}{
		{"clean title passes through", "My Song", "id1", "My Song"},
		{"special characters stripped", "Test/Song:With*Special|Chars", "id1", "TestSongWithSpecialChars"},
		{"hyphens and underscores kept", "lo-fi_beats 2", "id1", "lo-fi_beats 2"},
		{"unicode letters kept", "Canción número uno", "id1", "Canción número uno"},
		{"surrounding whitespace trimmed", "  padded  ", "id1", "padded"},
		{"empty falls back to id", "", "id1", "id1"},
		{"only special characters falls back", "///***", "id1", "id1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := SanitizeTitle(test.title, test.fallback)
			if got != test.expected {
				t.Errorf("SanitizeTitle(%q) = %q, expected %q", test.title, got, test.expected)
			}
		})
	}
}

func TestDeriveWAVURL(t *testing.T) {
	tests := []struct {
		name     string
		audioURL string
		expected string
	}{
		{"substitutes extension", "https://cdn.example.com/track.mp3", "https://cdn.example.com/track.wav"},
		{"first occurrence only", "https://cdn.example.com/mix.mp3/track.mp3", "https://cdn.example.com/mix.wav/track.mp3"},
		{"no mp3 segment unchanged", "https://cdn.example.com/track.ogg", "https://cdn.example.com/track.ogg"},
		{"empty stays empty", "", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := DeriveWAVURL(test.audioURL)
			if got != test.expected {
				t.Errorf("DeriveWAVURL(%q) = %q, expected %q", test.audioURL, got, test.expected)
			}
		})
	}
}
