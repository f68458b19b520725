package mirror

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// ExcludeList decides which relative paths are left out of a mirror.
//
// Patterns are doublestar globs matched against the whole relative path, so
// "*.log" only matches at the top level while "**/*.log" matches anywhere.
// An optional exclude file holds gitignore style rules.
type ExcludeList struct {
	patterns []string
	ignore   *gitignore.GitIgnore
}

// NewExcludeList validates the glob patterns.
func NewExcludeList(patterns ...string) (*ExcludeList, error) {
	clean := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: bad exclude pattern %q", ErrConfig, p)
		}
		clean = append(clean, p)
	}
	return &ExcludeList{patterns: clean}, nil
}

// LoadFile adds the rules of a gitignore style file. Blank lines and
// comments are skipped.
func (e *ExcludeList) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open exclude file: %w", ErrConfig, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: read exclude file: %w", ErrConfig, err)
	}

	e.ignore = gitignore.CompileIgnoreLines(lines...)
	slog.Info("loaded exclude file", "path", path, "rules", len(lines))
	return nil
}

// Excluded reports whether relPath must be left out of the mirror.
func (e *ExcludeList) Excluded(relPath string) bool {
	if e == nil {
		return false
	}
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	return e.ignore != nil && e.ignore.MatchesPath(relPath)
}

// Len returns the number of glob patterns, excluding file rules.
func (e *ExcludeList) Len() int {
	if e == nil {
		return 0
	}
	return len(e.patterns)
}
