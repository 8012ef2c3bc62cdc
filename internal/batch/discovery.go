package batch

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPattern selects the files processed when no pattern is given.
const DefaultPattern = "*.pdf"

// DiscoverFiles walks root recursively and returns, in lexical order, the
// regular files whose base name matches pattern and no exclude pattern.
// Exclude patterns are matched against base names and against paths relative
// to root.
func DiscoverFiles(root, pattern string, exclude []string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if err := ValidatePatterns(append([]string{pattern}, exclude...)); err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if path != root && matchesAnyPattern(rel, exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if shouldIncludeFile(rel, pattern, exclude) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// ValidatePatterns reports the first malformed glob pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

// shouldIncludeFile determines if a file should be included based on include/exclude patterns.
func shouldIncludeFile(rel, pattern string, exclude []string) bool {
	// Check exclude patterns first
	if matchesAnyPattern(rel, exclude) {
		return false
	}

	matched, _ := filepath.Match(pattern, filepath.Base(rel))
	return matched
}

// matchesAnyPattern checks if a path matches any of the given patterns,
// either by base name or as a whole.
func matchesAnyPattern(rel string, patterns []string) bool {
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
