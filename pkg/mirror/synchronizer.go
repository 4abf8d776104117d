package mirror

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sdejongh/foldermirror/pkg/compare"
	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
	"github.com/sdejongh/foldermirror/pkg/output"
	"github.com/sdejongh/foldermirror/pkg/ratelimit"
	"github.com/sdejongh/foldermirror/pkg/storage"
)

// Synchronizer copies new and changed files from the source tree into the
// replica tree, one directory at a time.
type Synchronizer struct {
	source     storage.Backend
	replica    storage.Backend
	comparator compare.Comparator
	logger     logging.Logger
	exclude    *Matcher
	limiter    *ratelimit.Limiter
	formatter  output.Formatter
	dryRun     bool
}

// NewSynchronizer creates a synchronizer between two rooted backends
func NewSynchronizer(source, replica storage.Backend, comparator compare.Comparator, logger logging.Logger, opts Options) *Synchronizer {
	opts = opts.withDefaults()
	return &Synchronizer{
		source:     source,
		replica:    replica,
		comparator: comparator,
		logger:     logger,
		exclude:    opts.matcher,
		limiter:    opts.Limiter,
		formatter:  opts.Formatter,
		dryRun:     opts.DryRun,
	}
}

// Synchronize mirrors sourceDir into replicaDir and recurses into every
// subdirectory. Failures on a single entry are logged and recorded in report
// and never stop the walk. The returned error is non-nil only when ctx is
// done or when sourceDir itself cannot be listed at the top level.
func (s *Synchronizer) Synchronize(ctx context.Context, report *models.PassReport, sourceDir, replicaDir string) error {
	return s.syncDir(ctx, report, sourceDir, replicaDir, true, false)
}

// absent is set during a dry run when replicaDir does not exist yet, so its
// children are known to be missing without asking the replica.
func (s *Synchronizer) syncDir(ctx context.Context, report *models.PassReport, sourceDir, replicaDir string, top, absent bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	absent, err := s.ensureDir(ctx, report, replicaDir, absent)
	if err != nil {
		if top {
			return err
		}
		return nil
	}

	entries, err := s.source.ReadDir(ctx, sourceDir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if top {
			return fmt.Errorf("failed to list source directory %s: %w", s.source.Path(sourceDir), err)
		}
		s.logger.Error(ctx, fmt.Sprintf("Error reading directory %s", s.source.Path(sourceDir)), err, nil)
		report.AddError(sourceDir, models.ActionList, err)
		return nil
	}

	report.Update(func(st *models.Statistics) { st.DirsScanned++ })
	s.formatter.Progress(output.ProgressUpdate{Type: output.EventDiscovered, Path: sourceDir, Count: len(entries)})

	// Files first, then subdirectories
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.syncFile(ctx, report, entry, filepath.Join(replicaDir, entry.Name), absent)
	}

	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		if s.exclude.Match(entry.RelativePath, true) {
			s.skipExcluded(ctx, report, entry.RelativePath)
			continue
		}
		if err := s.syncDir(ctx, report, entry.RelativePath, filepath.Join(replicaDir, entry.Name), false, absent); err != nil {
			return err
		}
		s.formatter.Progress(output.ProgressUpdate{Type: output.EventEntry, Path: entry.RelativePath, Action: models.ActionMkdir})
	}

	return nil
}

// ensureDir creates replicaDir when missing. A file in the way is removed
// first. It reports whether the directory is still absent, which only
// happens during a dry run. Errors are logged and recorded before being
// returned.
func (s *Synchronizer) ensureDir(ctx context.Context, report *models.PassReport, replicaDir string, absent bool) (bool, error) {
	if !absent {
		info, err := s.replica.Stat(ctx, replicaDir)
		switch {
		case err == nil && info.IsDir:
			return false, nil
		case err == nil:
			if s.dryRun {
				s.logger.Info(ctx, fmt.Sprintf("Would delete file: %s", s.replica.Path(replicaDir)), nil)
				break
			}
			if err := s.replica.Remove(ctx, replicaDir); err != nil {
				return false, s.dirFailed(ctx, report, replicaDir, err)
			}
			s.logger.Info(ctx, fmt.Sprintf("File deleted: %s", s.replica.Path(replicaDir)), nil)
			report.Update(func(st *models.Statistics) { st.FilesDeleted++ })
		case !storage.IsNotExist(err):
			return false, s.dirFailed(ctx, report, replicaDir, err)
		}
	}

	if s.dryRun {
		s.logger.Info(ctx, fmt.Sprintf("Would create directory: %s", s.replica.Path(replicaDir)), nil)
		report.Update(func(st *models.Statistics) { st.DirsCreated++ })
		return true, nil
	}

	if err := s.replica.MkdirAll(ctx, replicaDir); err != nil {
		return false, s.dirFailed(ctx, report, replicaDir, err)
	}
	s.logger.Info(ctx, fmt.Sprintf("Directory created: %s", s.replica.Path(replicaDir)), nil)
	report.Update(func(st *models.Statistics) { st.DirsCreated++ })
	return false, nil
}

func (s *Synchronizer) dirFailed(ctx context.Context, report *models.PassReport, replicaDir string, err error) error {
	s.logger.Error(ctx, fmt.Sprintf("Error creating directory %s", s.replica.Path(replicaDir)), err, nil)
	report.AddError(replicaDir, models.ActionMkdir, err)
	return err
}

// syncFile brings one replica file in line with its source.
// Equality is checked before copying, never after.
func (s *Synchronizer) syncFile(ctx context.Context, report *models.PassReport, src storage.FileInfo, replicaPath string, absent bool) {
	if s.exclude.Match(src.RelativePath, false) {
		s.skipExcluded(ctx, report, src.RelativePath)
		return
	}

	report.Update(func(st *models.Statistics) { st.FilesScanned++ })

	action := models.ActionCreate
	var err error
	if !absent {
		action, err = s.plan(ctx, src, replicaPath)
	}
	if err != nil {
		s.logger.Error(ctx, fmt.Sprintf("Error copying file %s to %s", src.Path, s.replica.Path(replicaPath)), err, nil)
		report.AddError(src.RelativePath, models.ActionCreate, err)
		s.progress(src.RelativePath, models.ActionCreate, 0, err)
		return
	}

	if action == models.ActionSkip {
		report.Update(func(st *models.Statistics) { st.FilesUnchanged++ })
		s.progress(src.RelativePath, action, 0, nil)
		return
	}

	if s.dryRun {
		s.logger.Info(ctx, fmt.Sprintf("Would %s file: %s (from %s)", action, s.replica.Path(replicaPath), src.Path), nil)
		s.count(report, action, 0)
		s.progress(src.RelativePath, action, 0, nil)
		return
	}

	written, err := s.copy(ctx, src, replicaPath)
	if err != nil {
		s.logger.Error(ctx, fmt.Sprintf("Error copying file %s to %s", src.Path, s.replica.Path(replicaPath)), err, nil)
		report.AddError(src.RelativePath, action, err)
		s.progress(src.RelativePath, action, written, err)
		return
	}

	verb := "created"
	if action == models.ActionUpdate {
		verb = "updated"
	}
	s.logger.Info(ctx, fmt.Sprintf("File %s: %s (from %s)", verb, s.replica.Path(replicaPath), src.Path), nil)
	s.count(report, action, written)
	s.progress(src.RelativePath, action, written, nil)
}

// plan decides between create, update and skip. A directory occupying the
// replica path is removed so the file can take its place.
func (s *Synchronizer) plan(ctx context.Context, src storage.FileInfo, replicaPath string) (models.Action, error) {
	info, err := s.replica.Stat(ctx, replicaPath)
	if err != nil {
		if storage.IsNotExist(err) {
			return models.ActionCreate, nil
		}
		return "", err
	}

	if info.IsDir {
		if s.dryRun {
			s.logger.Info(ctx, fmt.Sprintf("Would replace directory with file: %s", s.replica.Path(replicaPath)), nil)
			return models.ActionCreate, nil
		}
		if err := s.replica.RemoveAll(ctx, replicaPath); err != nil {
			return "", err
		}
		s.logger.Info(ctx, fmt.Sprintf("Directory deleted: %s", s.replica.Path(replicaPath)), nil)
		return models.ActionCreate, nil
	}

	if s.filesEqual(ctx, src, replicaPath) {
		return models.ActionSkip, nil
	}
	return models.ActionUpdate, nil
}

// filesEqual treats any comparison failure as "not equal" so that an
// unreadable file is re-copied rather than trusted.
func (s *Synchronizer) filesEqual(ctx context.Context, src storage.FileInfo, replicaPath string) bool {
	result, err := s.comparator.Compare(ctx, s.source, s.replica, src.RelativePath, replicaPath)
	if err != nil {
		s.logger.Error(ctx, fmt.Sprintf("Error comparing files %s and %s", src.Path, s.replica.Path(replicaPath)), err, nil)
		return false
	}
	return result.Equal()
}

func (s *Synchronizer) copy(ctx context.Context, src storage.FileInfo, replicaPath string) (int64, error) {
	reader, err := s.source.Open(ctx, src.RelativePath)
	if err != nil {
		return 0, err
	}
	reader = ratelimit.NewReadCloser(ctx, reader, s.limiter)
	defer reader.Close()

	written, err := s.replica.Write(ctx, replicaPath, reader)
	if err != nil {
		return written, err
	}
	if written != src.Size {
		return written, fmt.Errorf("source changed during copy: wrote %d of %d bytes", written, src.Size)
	}
	return written, nil
}

func (s *Synchronizer) count(report *models.PassReport, action models.Action, written int64) {
	report.Update(func(st *models.Statistics) {
		switch action {
		case models.ActionCreate:
			st.FilesCreated++
		case models.ActionUpdate:
			st.FilesUpdated++
		}
		st.BytesCopied += written
	})
}

func (s *Synchronizer) skipExcluded(ctx context.Context, report *models.PassReport, relPath string) {
	s.logger.Debug(ctx, fmt.Sprintf("Excluded: %s", s.source.Path(relPath)), nil)
	report.Update(func(st *models.Statistics) { st.FilesExcluded++ })
	s.progress(relPath, models.ActionSkip, 0, nil)
}

func (s *Synchronizer) progress(relPath string, action models.Action, bytes int64, err error) {
	s.formatter.Progress(output.ProgressUpdate{
		Type:   output.EventEntry,
		Path:   relPath,
		Action: action,
		Bytes:  bytes,
		Error:  err,
	})
}
