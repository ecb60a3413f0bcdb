// Package walker finds the source documents an embedding store is built from.
package walker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the largest document considered (20 MB).
const DefaultMaxFileSize int64 = 20 << 20

// DefaultInclude selects the document types the index builder can read.
var DefaultInclude = []string{"**/*.txt", "**/*.md", "**/*.pdf"}

// Document describes one file found during traversal.
type Document struct {
	Path        string // Absolute path on disk.
	RelPath     string // Slash-separated path relative to the root.
	Size        int64
	Ext         string // Lower-case extension including the dot.
	ContentHash string // SHA-256 hex digest of the file content.
}

// Config controls Walk.
type Config struct {
	RootDir     string
	Include     []string // Glob patterns; empty means DefaultInclude.
	Exclude     []string
	MaxFileSize int64 // 0 means DefaultMaxFileSize.
}

// Walk returns every document under cfg.RootDir that passes the filters,
// in lexical walk order. Files with identical content are reported once.
// Text files containing NUL bytes are skipped. .gitignore and .cveragignore
// at the root are honoured.
func Walk(ctx context.Context, cfg Config) ([]Document, error) {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("walker: %w", err)
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	include := cfg.Include
	if len(include) == 0 {
		include = DefaultInclude
	}

	ignore := loadIgnore(filepath.Join(root, ".gitignore"))
	ignore = append(ignore, loadIgnore(filepath.Join(root, ".cveragignore"))...)

	var docs []Document
	seen := make(map[string]bool)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable entries are skipped rather than aborting the build.
			return nil
		}

		if d.IsDir() {
			if path != root && shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if matchesIgnore(relPath, ignore) ||
			!MatchesInclude(relPath, include) ||
			MatchesExclude(relPath, cfg.Exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSize {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".pdf" && isBinary(path) {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil || seen[hash] {
			return nil
		}
		seen[hash] = true

		docs = append(docs, Document{
			Path:        path,
			RelPath:     relPath,
			Size:        info.Size(),
			Ext:         ext,
			ContentHash: hash,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal: %w", err)
	}

	return docs, nil
}

// isBinary reports whether the first 512 bytes contain a NUL byte.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// loadIgnore returns the non-empty, non-comment lines of an ignore file.
func loadIgnore(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// matchesIgnore applies gitignore-style patterns: a pattern without a slash
// matches any path component, one with a slash matches the whole path.
func matchesIgnore(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if !strings.Contains(pattern, "/") {
			for _, part := range strings.Split(relPath, "/") {
				if matched, _ := filepath.Match(pattern, part); matched {
					return true
				}
			}
			continue
		}
		if matchesAny(relPath, []string{strings.TrimPrefix(pattern, "/")}) {
			return true
		}
	}
	return false
}
