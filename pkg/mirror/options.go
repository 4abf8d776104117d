package mirror

import (
	"io"

	"github.com/sdejongh/foldermirror/pkg/output"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
)

// Options tunes a mirror pass
type Options struct {
	// DryRun logs the actions a pass would take without touching the replica
	DryRun bool
	// Exclude lists patterns for entries that are neither copied nor deleted
	Exclude []string
	// Limiter caps the aggregate copy bandwidth; nil means unlimited
	Limiter *ratelimit.Limiter
	// Formatter receives progress and the pass report; nil means no output
	Formatter output.Formatter
	// Output is handed to the formatter at the start of each pass
	Output io.Writer

	matcher *Matcher
}

func (o Options) withDefaults() Options {
	if o.Formatter == nil {
		o.Formatter = output.NewNullFormatter()
	}
	if o.matcher == nil && len(o.Exclude) > 0 {
		// Patterns are validated by New; ignore errors from direct construction
		o.matcher, _ = NewMatcher(o.Exclude)
	}
	return o
}
