package lecture_archiver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/lecture-archiver/download"
	"github.com/alanbriolat/lecture-archiver/internal/api"
	"github.com/alanbriolat/lecture-archiver/internal/journal"
	"github.com/alanbriolat/lecture-archiver/internal/media"
	"github.com/alanbriolat/lecture-archiver/internal/syllabus"
)

var (
	ErrEmptyMedia = errors.New("nothing downloadable")
	ErrSkipRange  = errors.New("skip count out of range")
)

// IsFatal reports whether err means the rest of the run can't succeed either: the session is no longer valid, the
// platform changed its data format, or the run was cancelled.
func IsFatal(err error) bool {
	for _, fatal := range []error{
		api.ErrAuth,
		api.ErrBadResponse,
		syllabus.ErrMalformedSyllabus,
		media.ErrMalformedMedia,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return false
}

// LessonResult is the outcome of archiving one lesson.
type LessonResult struct {
	Label    string
	LessonID string
	Dir      string
	Items    []download.Item
	// Number of items already present from an earlier run.
	Skipped int
	Err     error
}

type Summary struct {
	Lessons []LessonResult
}

func (s *Summary) Completed() []LessonResult {
	var res []LessonResult
	for _, l := range s.Lessons {
		if l.Err == nil {
			res = append(res, l)
		}
	}
	return res
}

func (s *Summary) Failed() []LessonResult {
	var res []LessonResult
	for _, l := range s.Lessons {
		if l.Err != nil {
			res = append(res, l)
		}
	}
	return res
}

// AllFailed is true if at least one lesson was attempted and none succeeded.
func (s *Summary) AllFailed() bool {
	return len(s.Lessons) > 0 && len(s.Completed()) == 0
}

// Err combines the errors of every failed lesson, or returns nil.
func (s *Summary) Err() error {
	var result *multierror.Error
	for _, l := range s.Failed() {
		result = multierror.Append(result, fmt.Errorf("%s: %w", l.Label, l.Err))
	}
	return result.ErrorOrNil()
}

// An Archiver downloads every file of a Target, one lesson at a time.
type Archiver struct {
	Lessons    LessonLister
	Resolver   MediaResolver
	Transferer download.Transferer
	// Optional; files recorded as complete are not downloaded again.
	Journal journal.Journal
	Config  *DownloadConfig
	// Number of lessons at the start of a section to leave out.
	Skip int
	// Stop at the first lesson that fails instead of carrying on with the rest.
	FailFast bool
	// Identifies this run in the journal; generated if empty.
	RunID string
}

// Run archives the target. The returned error is set only if the run was aborted; lessons that failed without
// aborting the run are reported through the Summary.
func (a *Archiver) Run(ctx context.Context, target Target) (*Summary, error) {
	if a.Config == nil {
		a.Config = NewDownloadConfig()
	}
	if a.Journal == nil {
		a.Journal = journal.Nil{}
	}
	if a.RunID == "" {
		a.RunID = uuid.NewString()
	}
	logger := Logger(ctx).Sugar().With("run_id", a.RunID)
	summary := &Summary{}

	switch target.Kind {
	case TargetSection:
		logger.Info("Getting download info...")
		lessonIDs, err := a.Lessons.LessonIDs(ctx, target.ID)
		if err != nil {
			return summary, fmt.Errorf("error getting lectures info: %w", err)
		}
		logger.Infof("%d lecture recordings found.", len(lessonIDs))
		if a.Skip < 0 || a.Skip > len(lessonIDs) {
			return summary, fmt.Errorf("%w: cannot skip %d of %d lessons", ErrSkipRange, a.Skip, len(lessonIDs))
		}
		for i := a.Skip; i < len(lessonIDs); i++ {
			// Numbering comes from the position in the full syllabus so that skipping never renames directories.
			number := i + 1
			result := LessonResult{Label: LessonLabel(number), LessonID: lessonIDs[i]}
			if result.Dir, result.Err = a.Config.GetLessonDir(number, result.LessonID); result.Err != nil {
				return summary, result.Err
			}
			if err := a.runLesson(ctx, logger, &result, summary); err != nil {
				return summary, err
			}
		}
	case TargetLesson:
		result := LessonResult{Label: "Lesson " + target.ID, LessonID: target.ID, Dir: a.Config.TargetDir}
		if err := a.runLesson(ctx, logger, &result, summary); err != nil {
			return summary, err
		}
	default:
		return summary, fmt.Errorf("unknown target %v", target)
	}
	return summary, nil
}

// runLesson archives one lesson and records it in the summary, returning an error only if the run must stop.
func (a *Archiver) runLesson(ctx context.Context, logger *zap.SugaredLogger, result *LessonResult, summary *Summary) error {
	logger = logger.With("lesson", result.Label, "lesson_id", result.LessonID)
	logger.Infof("%s:", result.Label)
	result.Err = a.archiveLesson(ctx, logger, result)
	summary.Lessons = append(summary.Lessons, *result)
	if result.Err == nil {
		return nil
	}
	// A transfer interrupted by cancellation doesn't always wrap the context's error.
	if a.FailFast || IsFatal(result.Err) || ctx.Err() != nil {
		return fmt.Errorf("%s: %w", result.Label, result.Err)
	}
	logger.Errorf("%s failed, continuing: %v", result.Label, result.Err)
	return nil
}

func (a *Archiver) archiveLesson(ctx context.Context, logger *zap.SugaredLogger, result *LessonResult) error {
	items, err := a.Resolver.Resolve(ctx, result.LessonID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrEmptyMedia
	}
	result.Items = items
	for n, item := range items {
		entry := &journal.Entry{
			LessonID: result.LessonID,
			Filename: item.Filename,
			URL:      item.URL,
			Path:     filepath.Join(result.Dir, item.Filename),
			RunID:    a.RunID,
		}
		if done, err := a.isComplete(logger, entry); err != nil {
			return err
		} else if done {
			logger.Infof("    Video %d already downloaded, skipping", n+1)
			result.Skipped++
			continue
		}
		logger.Infof("    Downloading video %d...", n+1)
		if err := a.Transferer.Transfer(ctx, item, result.Dir); err != nil {
			return err
		}
		entry.CompletedAt = time.Now()
		if err := a.Journal.Put(entry); err != nil {
			return fmt.Errorf("failed to record %s in journal: %w", item.Filename, err)
		}
	}
	return nil
}

type journalRecord struct {
	URL  string
	Path string
}

// isComplete checks the journal for an earlier transfer of the same file that is still on disk.
func (a *Archiver) isComplete(logger *zap.SugaredLogger, entry *journal.Entry) (bool, error) {
	previous, err := a.Journal.Get(entry.LessonID, entry.Filename)
	if err != nil {
		return false, fmt.Errorf("failed to read journal: %w", err)
	}
	if previous == nil {
		return false, nil
	}
	changes, err := diff.Diff(
		journalRecord{URL: previous.URL, Path: previous.Path},
		journalRecord{URL: entry.URL, Path: entry.Path},
	)
	if err != nil {
		return false, err
	}
	if len(changes) > 0 {
		for _, change := range changes {
			logger.Debugf("%s changed since run %s: %v: %#v -> %#v", entry.Filename, previous.RunID, strings.Join(change.Path, "."), change.From, change.To)
		}
		return false, nil
	}
	if !outputExists(entry.Path) {
		logger.Debugf("%s was downloaded by run %s but is missing", entry.Path, previous.RunID)
		// Forget the stale entry so a failed re-fetch doesn't leave it behind.
		if err := a.Journal.Delete(entry.LessonID, entry.Filename); err != nil {
			return false, fmt.Errorf("failed to update journal: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// outputExists reports whether path, or path with an extension chosen by the transferer, exists.
func outputExists(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	matches, _ := filepath.Glob(escapeGlob(path) + ".*")
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return true
		}
	}
	return false
}

func escapeGlob(path string) string {
	replacer := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return replacer.Replace(path)
}
