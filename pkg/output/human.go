package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/foldermirror/pkg/models"
)

// HumanFormatter prints a summary block after each pass
type HumanFormatter struct {
	writer io.Writer
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(writer io.Writer, passID string) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	return nil
}

// Progress prints only failed entries
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	if f.writer == nil || update.Type != EventEntry || update.Error == nil {
		return nil
	}
	fmt.Fprintf(f.writer, "✗ %s %s: %v\n", update.Action, update.Path, update.Error)
	return nil
}

// Complete displays the pass summary
func (f *HumanFormatter) Complete(report *models.PassReport) error {
	if f.writer == nil {
		f.writer = io.Discard
	}
	w := f.writer
	s := report.Stats

	title := "Pass"
	if report.DryRun {
		title = "Dry run"
	}

	fmt.Fprintf(w, "\n%s %s completed in %s\n", title, report.ID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  %s -> %s\n\n", report.SourceRoot, report.ReplicaRoot)
	fmt.Fprintf(w, "  Scanned:          %d files, %d dirs\n", s.FilesScanned, s.DirsScanned)
	fmt.Fprintf(w, "  Files created:    %d\n", s.FilesCreated)
	fmt.Fprintf(w, "  Files updated:    %d\n", s.FilesUpdated)
	fmt.Fprintf(w, "  Files unchanged:  %d\n", s.FilesUnchanged)
	fmt.Fprintf(w, "  Files deleted:    %d\n", s.FilesDeleted)
	fmt.Fprintf(w, "  Files excluded:   %d\n", s.FilesExcluded)
	fmt.Fprintf(w, "  Files errored:    %d\n", s.FilesErrored)
	fmt.Fprintf(w, "  Dirs created:     %d\n", s.DirsCreated)
	fmt.Fprintf(w, "  Dirs deleted:     %d\n", s.DirsDeleted)
	fmt.Fprintf(w, "  Data copied:      %s\n", humanize.Bytes(uint64(s.BytesCopied)))

	if report.Duration.Seconds() > 0 && s.BytesCopied > 0 {
		speed := float64(s.BytesCopied) / report.Duration.Seconds()
		fmt.Fprintf(w, "  Average speed:    %s/s\n", humanize.Bytes(uint64(speed)))
	}

	fmt.Fprintf(w, "\nStatus: %s\n", report.Status)

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s %s: %s\n", e.Operation, e.FilePath, e.Error)
		}
	}

	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}
