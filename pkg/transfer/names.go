package transfer

import (
	"strings"
	"unicode"
)

// SanitizeTitle reduces an untrusted display title to a filesystem-safe
// stem: alphanumerics, spaces, hyphens and underscores survive, everything
// else is stripped. An empty result falls back to the given id.
func SanitizeTitle(title, fallback string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	stem := strings.TrimSpace(b.String())
	if stem == "" {
		return fallback
	}
	return stem
}

// DeriveWAVURL constructs a WAV locator from the audio URL by substituting
// the file extension. The host does not expose a WAV URL directly, so this
// is best effort: the result may not be fetchable, and a failed transfer
// for it is expected rather than an error condition.
func DeriveWAVURL(audioURL string) string {
	if audioURL == "" {
		return ""
	}
	return strings.Replace(audioURL, ".mp3", ".wav", 1)
}
