package output

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/foldermirror/pkg/models"
)

const progressTemplate = `{{string . "pass"}} {{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{string . "path"}}`

// ProgressFormatter draws a bar per pass. The total is unknown up front and
// grows as directories are listed.
type ProgressFormatter struct {
	mu     sync.Mutex
	writer io.Writer
	bar    *pb.ProgressBar
}

// NewProgressFormatter creates a progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{}
}

// Start creates and starts a fresh bar
func (f *ProgressFormatter) Start(writer io.Writer, passID string) error {
	if writer == nil {
		writer = os.Stderr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar != nil {
		f.bar.Finish()
	}

	bar := pb.ProgressBarTemplate(progressTemplate).New(0)
	bar.SetWriter(writer)
	bar.SetRefreshRate(200 * time.Millisecond)
	bar.Set("pass", shortID(passID))

	if file, ok := writer.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			bar.SetWidth(width)
		}
	}

	f.writer = writer
	f.bar = bar.Start()
	return nil
}

// Progress grows the total on discovery and advances on each handled entry
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar == nil {
		return nil
	}

	switch update.Type {
	case EventDiscovered:
		f.bar.AddTotal(int64(update.Count))
	case EventEntry:
		f.bar.Set("path", update.Path)
		f.bar.Increment()
	}
	return nil
}

// Complete stops the bar
func (f *ProgressFormatter) Complete(report *models.PassReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar == nil {
		return nil
	}
	f.bar.Set("path", string(report.Status))
	f.bar.SetTotal(f.bar.Current())
	f.bar.Finish()
	f.bar = nil
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
