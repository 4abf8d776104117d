package output

import (
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"github.com/sdejongh/foldermirror/pkg/models"
)

// JSONFormatter writes one JSON document per pass, one per line, so a
// long-running mirror produces a stream that tools can consume line by line.
type JSONFormatter struct {
	writer io.Writer
}

// JSONReportData is the document written after each pass
type JSONReportData struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Replica    string          `json:"replica"`
	DryRun     bool            `json:"dry_run,omitempty"`
	Status     string          `json:"status"`
	StartTime  time.Time       `json:"start_time"`
	Duration   string          `json:"duration"`
	DurationMs int64           `json:"duration_ms"`
	Stats      JSONStatsData   `json:"stats"`
	Errors     []JSONErrorData `json:"errors,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	FilesScanned   int    `json:"files_scanned"`
	FilesCreated   int    `json:"files_created"`
	FilesUpdated   int    `json:"files_updated"`
	FilesUnchanged int    `json:"files_unchanged"`
	FilesDeleted   int    `json:"files_deleted"`
	FilesExcluded  int    `json:"files_excluded"`
	FilesErrored   int    `json:"files_errored"`
	DirsScanned    int    `json:"dirs_scanned"`
	DirsCreated    int    `json:"dirs_created"`
	DirsDeleted    int    `json:"dirs_deleted"`
	BytesCopied    int64  `json:"bytes_copied"`
	BytesCopiedStr string `json:"bytes_copied_human"`
}

// JSONErrorData represents an error entry
type JSONErrorData struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, passID string) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	return nil
}

// Progress is not streamed, to keep one document per pass
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	return nil
}

// Complete writes the pass report
func (f *JSONFormatter) Complete(report *models.PassReport) error {
	if f.writer == nil {
		f.writer = io.Discard
	}

	s := report.Stats
	data := JSONReportData{
		ID:         report.ID,
		Source:     report.SourceRoot,
		Replica:    report.ReplicaRoot,
		DryRun:     report.DryRun,
		Status:     string(report.Status),
		StartTime:  report.StartTime.UTC(),
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Stats: JSONStatsData{
			FilesScanned:   s.FilesScanned,
			FilesCreated:   s.FilesCreated,
			FilesUpdated:   s.FilesUpdated,
			FilesUnchanged: s.FilesUnchanged,
			FilesDeleted:   s.FilesDeleted,
			FilesExcluded:  s.FilesExcluded,
			FilesErrored:   s.FilesErrored,
			DirsScanned:    s.DirsScanned,
			DirsCreated:    s.DirsCreated,
			DirsDeleted:    s.DirsDeleted,
			BytesCopied:    s.BytesCopied,
			BytesCopiedStr: humanize.Bytes(uint64(s.BytesCopied)),
		},
	}

	for _, e := range report.Errors {
		data.Errors = append(data.Errors, JSONErrorData{
			Path:      e.FilePath,
			Operation: string(e.Operation),
			Error:     e.Error,
		})
	}

	return json.NewEncoder(f.writer).Encode(data)
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
