package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/storage"
)

// Orchestrator runs one full pass per call: synchronize the replica from the
// source, then clean extras out of the replica. It is bound to a fixed
// source/replica pair for its lifetime.
type Orchestrator struct {
	pair       models.SyncPair
	source     storage.Backend
	replica    storage.Backend
	comparator compare.Comparator
	logger     logging.Logger
	opts       Options
}

// New validates the options and creates an orchestrator
func New(pair models.SyncPair, source, replica storage.Backend, comparator compare.Comparator, logger logging.Logger, opts Options) (*Orchestrator, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}

	matcher, err := NewMatcher(opts.Exclude)
	if err != nil {
		return nil, &models.ValidationError{Field: "exclude", Message: err.Error()}
	}
	opts.matcher = matcher
	opts = opts.withDefaults()

	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if comparator == nil {
		comparator = compare.NewDigestComparator(compare.SHA256, 0)
	}

	return &Orchestrator{
		pair:       pair,
		source:     source,
		replica:    replica,
		comparator: comparator,
		logger:     logger,
		opts:       opts,
	}, nil
}

// Run performs one pass. Every failure is logged and reflected in the
// returned report; Run itself never fails and never panics.
func (o *Orchestrator) Run(ctx context.Context) *models.PassReport {
	id := uuid.NewString()
	report := models.NewPassReport(id, o.pair, o.opts.DryRun)
	log := o.logger.WithFields(logging.Fields{"pass": id[:8]})

	synchronizer := NewSynchronizer(o.source, o.replica, o.comparator, log, o.opts)
	cleaner := NewCleaner(o.source, o.replica, log, o.opts)

	o.opts.Formatter.Start(o.opts.Output, id)

	src, dst := o.pair.SourceRoot, o.pair.ReplicaRoot

	log.Info(ctx, fmt.Sprintf("Starting synchronization from %s to %s", src, dst), nil)
	err := guard(func() error { return synchronizer.Synchronize(ctx, report, ".", ".") })
	if err != nil {
		o.failed(ctx, log, report, err)
	} else {
		log.Info(ctx, fmt.Sprintf("Synchronization from %s to %s completed.", src, dst), nil)
	}

	// Cleanup runs even after a failed synchronization, but not after a stop
	if ctx.Err() == nil {
		log.Info(ctx, fmt.Sprintf("Starting cleanup of extra files and directories in %s", dst), nil)
		err = guard(func() error { return cleaner.Clean(ctx, report, ".", ".") })
		if err != nil {
			o.failed(ctx, log, report, err)
		} else {
			log.Info(ctx, fmt.Sprintf("Cleanup of extra files and directories in %s completed.", dst), nil)
		}
	}

	report.Finish()
	o.summary(ctx, log, report)
	o.opts.Formatter.Complete(report)

	return report
}

func (o *Orchestrator) failed(ctx context.Context, log logging.Logger, report *models.PassReport, err error) {
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	report.Fail(cancelled)
	if cancelled {
		log.Warn(ctx, "Pass interrupted", nil)
		return
	}
	log.Error(ctx, fmt.Sprintf("Error during synchronization: %v", err), nil, nil)
}

func (o *Orchestrator) summary(ctx context.Context, log logging.Logger, report *models.PassReport) {
	s := report.Stats
	msg := fmt.Sprintf("Pass %s: %d created, %d updated, %d unchanged, %d deleted, %d errors, %s copied in %s",
		report.Status,
		s.FilesCreated, s.FilesUpdated, s.FilesUnchanged, s.FilesDeleted+s.DirsDeleted,
		len(report.Errors),
		humanize.Bytes(uint64(s.BytesCopied)),
		report.Duration.Round(time.Millisecond),
	)
	var fields logging.Fields
	if report.DryRun {
		fields = logging.Fields{"dry_run": true}
	}
	if report.Status == models.StatusSuccess {
		log.Info(ctx, msg, fields)
		return
	}
	log.Warn(ctx, msg, fields)
}

// guard turns a panic inside a phase into an error
func guard(phase func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return phase()
}
