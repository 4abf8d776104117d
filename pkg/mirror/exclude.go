package mirror

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether an entry is excluded from mirroring.
// Patterns support:
//   - Base name globs: *.tmp, *.log
//   - Directory-only patterns: .git/, node_modules/
//   - Path globs relative to the tree root: build/*, docs/**/*.pdf
//   - Any depth: **/cache/**
//
// An excluded entry is neither copied to nor deleted from the replica, and an
// excluded directory is not descended into.
type Matcher struct {
	rules []rule
}

type rule struct {
	pattern  string
	dirOnly  bool
	basename bool
}

// NewMatcher validates and compiles exclude patterns
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}

		r := rule{}
		if strings.HasSuffix(p, "/") {
			r.dirOnly = true
			p = strings.TrimSuffix(p, "/")
		}
		p = strings.TrimPrefix(p, "/")
		r.basename = !strings.Contains(p, "/")
		r.pattern = p

		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
		m.rules = append(m.rules, r)
	}
	return m, nil
}

// Match reports whether the entry at relPath is excluded. A nil Matcher
// excludes nothing.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m == nil || len(m.rules) == 0 {
		return false
	}

	rel := strings.TrimPrefix(filepath.ToSlash(relPath), "./")
	base := path.Base(rel)

	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}

		subject := rel
		if r.basename {
			subject = base
		}
		if ok, _ := doublestar.Match(r.pattern, subject); ok {
			return true
		}
	}
	return false
}

// Len returns the number of active patterns
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}
