package output

import (
	"io"

	"github.com/sdejongh/foldermirror/pkg/models"
)

// EventType tells a formatter what a progress update describes
type EventType string

const (
	// EventDiscovered reports Count new entries found while listing a directory
	EventDiscovered EventType = "discovered"
	// EventEntry reports that one entry has been handled
	EventEntry EventType = "entry"
)

// ProgressUpdate represents a progress notification during a pass
type ProgressUpdate struct {
	Type   EventType
	Path   string
	Action models.Action
	Bytes  int64
	Count  int
	Error  error
}

// Formatter renders the progress and outcome of one pass.
// A formatter is reused across passes: Start is called again for each pass.
type Formatter interface {
	// Start begins output for a new pass
	Start(writer io.Writer, passID string) error

	// Progress reports progress during the pass
	Progress(update ProgressUpdate) error

	// Complete finalizes output for the pass
	Complete(report *models.PassReport) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter registered under name
func New(name string) (Formatter, error) {
	switch name {
	case "", "none":
		return NewNullFormatter(), nil
	case "human":
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "progress":
		return NewProgressFormatter(), nil
	default:
		return nil, &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'none', 'human', 'json' or 'progress'",
		}
	}
}

// NullFormatter produces no output
type NullFormatter struct{}

// NewNullFormatter creates a formatter that discards everything
func NewNullFormatter() *NullFormatter {
	return &NullFormatter{}
}

func (f *NullFormatter) Start(writer io.Writer, passID string) error { return nil }
func (f *NullFormatter) Progress(update ProgressUpdate) error { return nil }
func (f *NullFormatter) Complete(report *models.PassReport) error { return nil }
func (f *NullFormatter) Name() string { return "none" }
