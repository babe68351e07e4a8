package docsource

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Expand resolves file patterns (plain paths or ** globs) into a
// de-duplicated list of paths. Pattern order is kept; matches of a single
// pattern are sorted. A pattern that matches nothing is a ReadError.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("docsource: invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("docsource: expand %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, &ReadError{Path: pattern, Err: fmt.Errorf("no files match")}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	return out, nil
}
