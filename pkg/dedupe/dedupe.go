// Package dedupe scans a download directory for files with identical
// content. Re-runs key idempotence off filenames, so retitled tracks can
// leave byte-identical copies behind; this finds them.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"sunograb/pkg/logger"
)

// Group is a set of paths sharing the same content hash.
type Group struct {
	Hash  string
	Size  int64
	Paths []string
}

// Scan walks dir and returns groups of duplicate files, largest first
// ordering is not guaranteed. Unreadable files are logged and skipped.
func Scan(dir string, log logger.Logger) ([]Group, error) {
	byHash := make(map[string][]string)
	sizes := make(map[string]int64)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		hash, size, hashErr := hashFile(path)
		if hashErr != nil {
			log.WithError(hashErr).WarnWithFields("skipping unreadable file", map[string]interface{}{
				"path": path,
			})
			return nil
		}
		byHash[hash] = append(byHash[hash], path)
		sizes[hash] = size
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	var groups []Group
	for hash, paths := range byHash {
		if len(paths) > 1 {
			groups = append(groups, Group{Hash: hash, Size: sizes[hash], Paths: paths})
		}
	}
	return groups, nil
}

// hashFile computes the SHA-256 of a file with chunked reads.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
