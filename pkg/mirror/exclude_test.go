package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"*.tmp", ".git/", "/build/*", "docs/**/*.pdf", "**/cache/**", "  "})
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"a.tmp", false, true},
		{"deep/nested/b.tmp", false, true},
		{"a.txt", false, false},
		{".git", true, true},
		{"sub/.git", true, true},
		{".git", false, false},
		{"build/out.bin", false, true},
		{"build", true, false},
		{"src/build/out.bin", false, false},
		{"docs/manual.pdf", false, true},
		{"docs/a/b/manual.pdf", false, true},
		{"docs/manual.md", false, false},
		{"x/cache/y/z", false, true},
		{"./c.tmp", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcherNil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything", false))
	assert.Equal(t, 0, m.Len())

	empty, err := NewMatcher(nil)
	require.NoError(t, err)
	assert.False(t, empty.Match("anything", true))
}

func TestMatcherInvalidPattern(t *testing.T) {
	_, err := NewMatcher([]string{"ok/*", "[unclosed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")
}
