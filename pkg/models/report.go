package models

import (
	"sync"
	"time"
)

// PassReport represents the results of one synchronize+clean pass
type PassReport struct {
	// Pass details
	ID          string
	SourceRoot  string
	ReplicaRoot string
	DryRun      bool

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Errors encountered
	Errors []SyncError

	// Overall status
	Status SyncStatus

	mu sync.Mutex
}

// Statistics holds pass metrics
type Statistics struct {
	FilesScanned   int
	FilesCreated   int
	FilesUpdated   int
	FilesUnchanged int // Already identical, no copy made
	FilesDeleted   int
	FilesExcluded  int
	FilesErrored   int

	DirsScanned int
	DirsCreated int
	DirsDeleted int

	BytesCopied int64
}

// SyncStatus represents the overall result
type SyncStatus string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess SyncStatus = "success"
	// StatusPartial indicates some entries failed
	StatusPartial SyncStatus = "partial"
	// StatusFailed indicates a phase aborted
	StatusFailed SyncStatus = "failed"
	// StatusCancelled indicates the pass was interrupted
	StatusCancelled SyncStatus = "cancelled"
)

// SyncError represents an error during a pass
type SyncError struct {
	FilePath  string
	Operation Action
	Error     string
	Timestamp time.Time
}

// NewPassReport starts a report for the given pair
func NewPassReport(id string, pair SyncPair, dryRun bool) *PassReport {
	return &PassReport{
		ID:          id,
		SourceRoot:  pair.SourceRoot,
		ReplicaRoot: pair.ReplicaRoot,
		DryRun:      dryRun,
		StartTime:   time.Now(),
		Status:      StatusSuccess,
	}
}

// Update applies fn to the statistics under the report lock
func (r *PassReport) Update(fn func(s *Statistics)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.Stats)
}

// AddError records a per-entry failure
func (r *PassReport) AddError(path string, op Action, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, SyncError{
		FilePath:  path,
		Operation: op,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	if op != ActionMkdir && op != ActionList {
		r.Stats.FilesErrored++
	}
}

// Fail marks the pass as failed or cancelled. Cancelled wins over failed.
func (r *PassReport) Fail(cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancelled {
		r.Status = StatusCancelled
		return
	}
	if r.Status != StatusCancelled {
		r.Status = StatusFailed
	}
}

// Finish stamps the end time and derives the final status
func (r *PassReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	if r.Status == StatusSuccess && len(r.Errors) > 0 {
		r.Status = StatusPartial
	}
}

// ExitCode returns the appropriate exit code for the sync status
func (s SyncStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}
