package mirror

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/storage"
)

// Cleaner removes replica entries that have no counterpart in the source.
// Directories left empty by cleanup are kept as long as the source still
// has them.
type Cleaner struct {
	source  storage.Backend
	replica storage.Backend
	logger  logging.Logger
	exclude *Matcher
	dryRun  bool
}

// NewCleaner creates a cleaner between two rooted backends
func NewCleaner(source, replica storage.Backend, logger logging.Logger, opts Options) *Cleaner {
	opts = opts.withDefaults()
	return &Cleaner{
		source:  source,
		replica: replica,
		logger:  logger,
		exclude: opts.matcher,
		dryRun:  opts.DryRun,
	}
}

// Clean deletes extras from replicaDir and recurses into subdirectories that
// exist on both sides. A directory is only cleaned when its source
// counterpart could be listed, so an unreadable source never empties the
// replica. The returned error is non-nil only when ctx is done or when the
// top-level directories cannot be listed.
func (c *Cleaner) Clean(ctx context.Context, report *models.PassReport, replicaDir, sourceDir string) error {
	return c.cleanDir(ctx, report, replicaDir, sourceDir, true)
}

func (c *Cleaner) cleanDir(ctx context.Context, report *models.PassReport, replicaDir, sourceDir string, top bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	replicaEntries, err := c.list(ctx, report, c.replica, replicaDir, top, c.dryRun)
	if err != nil || replicaEntries == nil {
		return err
	}

	sourceEntries, err := c.list(ctx, report, c.source, sourceDir, top, false)
	if err != nil || sourceEntries == nil {
		return err
	}

	// name -> isDir
	inSource := make(map[string]bool, len(sourceEntries))
	for _, e := range sourceEntries {
		inSource[e.Name] = e.IsDir
	}

	for _, entry := range replicaEntries {
		if entry.IsDir {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.exclude.Match(entry.RelativePath, false) {
			continue
		}
		if isDir, ok := inSource[entry.Name]; ok && !isDir {
			continue
		}
		c.deleteFile(ctx, report, entry.RelativePath)
	}

	for _, entry := range replicaEntries {
		if !entry.IsDir {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.exclude.Match(entry.RelativePath, true) {
			continue
		}
		if isDir, ok := inSource[entry.Name]; ok && isDir {
			if err := c.cleanDir(ctx, report, entry.RelativePath, filepath.Join(sourceDir, entry.Name), false); err != nil {
				return err
			}
			continue
		}
		c.deleteDir(ctx, report, entry.RelativePath)
	}

	return nil
}

// list returns nil entries with a nil error when a nested directory cannot be
// read; the failure is logged and recorded. With missingOK a directory that
// does not exist is silently skipped.
func (c *Cleaner) list(ctx context.Context, report *models.PassReport, backend storage.Backend, dir string, top, missingOK bool) ([]storage.FileInfo, error) {
	entries, err := backend.ReadDir(ctx, dir)
	if err == nil {
		if entries == nil {
			entries = []storage.FileInfo{}
		}
		return entries, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	// A dry run does not create the directories it reports
	if missingOK && storage.IsNotExist(err) {
		return nil, nil
	}
	if top {
		return nil, fmt.Errorf("failed to list directory %s: %w", backend.Path(dir), err)
	}

	c.logger.Error(ctx, fmt.Sprintf("Error reading directory %s", backend.Path(dir)), err, nil)
	report.AddError(dir, models.ActionList, err)
	return nil, nil
}

func (c *Cleaner) deleteFile(ctx context.Context, report *models.PassReport, relPath string) {
	full := c.replica.Path(relPath)

	if c.dryRun {
		c.logger.Info(ctx, fmt.Sprintf("Would delete file: %s", full), nil)
		report.Update(func(st *models.Statistics) { st.FilesDeleted++ })
		return
	}

	if err := c.replica.Remove(ctx, relPath); err != nil {
		c.logger.Error(ctx, fmt.Sprintf("Error deleting file %s", full), err, nil)
		report.AddError(relPath, models.ActionDelete, err)
		return
	}

	c.logger.Info(ctx, fmt.Sprintf("File deleted: %s", full), nil)
	report.Update(func(st *models.Statistics) { st.FilesDeleted++ })
}

func (c *Cleaner) deleteDir(ctx context.Context, report *models.PassReport, relPath string) {
	full := c.replica.Path(relPath)

	if c.dryRun {
		c.logger.Info(ctx, fmt.Sprintf("Would delete directory: %s", full), nil)
		report.Update(func(st *models.Statistics) { st.DirsDeleted++ })
		return
	}

	if err := c.replica.RemoveAll(ctx, relPath); err != nil {
		c.logger.Error(ctx, fmt.Sprintf("Error deleting directory %s", full), err, nil)
		report.AddError(relPath, models.ActionDelete, err)
		return
	}

	c.logger.Info(ctx, fmt.Sprintf("Directory deleted: %s", full), nil)
	report.Update(func(st *models.Statistics) { st.DirsDeleted++ })
}
