package digitalll

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// TagLogger passes samples through unchanged and appends every tag it
// observes to a CSV file, rotating to a new file whenever the
// strftime-formatted name changes (daily names with a pattern such as
// "%Y-%m-%d.csv"). Go counterpart of
// digital_ll_tag_logger, with the CSV/daily-rotation machinery of
// src/log.go's log_init/log_write grafted on in place of the
// original's plain ofstream dump.
type TagLogger[T any] struct {
	mu          sync.Mutex
	dir         string
	namePattern string
	display     bool

	file     *os.File
	fileName string
	writer   *csv.Writer

	tags []StreamTag

	logger *log.Logger
}

// NewTagLogger builds a TagLogger writing under dir, naming each file
// with namePattern (a strftime pattern, e.g. "%Y-%m-%d.csv"). dir is
// created if missing.
func NewTagLogger[T any](dir, namePattern string) (*TagLogger[T], error) {
	if _, err := strftime.Format(namePattern, time.Now()); err != nil {
		return nil, newConfigError("TagLogger", "name_pattern", err.Error())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newConfigError("TagLogger", "dir", err.Error())
	}
	return &TagLogger[T]{
		dir:         dir,
		namePattern: namePattern,
		display:     true,
		logger:      componentLogger("TagLogger"),
	}, nil
}

// SetDisplay toggles whether observed tags are written to the log
// file; when false, tags are still captured for CurrentTags.
func (t *TagLogger[T]) SetDisplay(d bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.display = d
}

// CurrentTags returns the tags observed on the most recent Work call.
func (t *TagLogger[T]) CurrentTags() []StreamTag {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StreamTag, len(t.tags))
	copy(out, t.tags)
	return out
}

// Close flushes and closes the currently open log file, if any.
func (t *TagLogger[T]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *TagLogger[T]) closeLocked() error {
	if t.file == nil {
		return nil
	}
	t.writer.Flush()
	err := t.file.Close()
	t.file = nil
	t.writer = nil
	return err
}

func (t *TagLogger[T]) rotateLocked(now time.Time) error {
	name, err := strftime.Format(t.namePattern, now)
	if err != nil {
		return err
	}
	if t.file != nil && name == t.fileName {
		return nil
	}
	if err := t.closeLocked(); err != nil {
		t.logger.Warn("error closing previous tag log file", "error", err)
	}

	full := filepath.Join(t.dir, name)
	_, statErr := os.Stat(full)
	alreadyThere := statErr == nil

	f, err := os.OpenFile(full, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	t.file = f
	t.fileName = name
	t.writer = csv.NewWriter(f)

	if !alreadyThere {
		t.writer.Write([]string{"offset", "srcid", "key", "value"})
	}
	return nil
}

// Work implements StreamOperator: it copies in to out unchanged (as
// many items as fit in out) and logs inTags.
func (t *TagLogger[T]) Work(in []T, out []T, inTags []StreamTag) (WorkResult, []StreamTag) {
	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	copy(out[:n], in[:n])

	t.mu.Lock()
	defer t.mu.Unlock()

	t.tags = append([]StreamTag(nil), inTags...)
	SortTagsByOffset(t.tags)

	if t.display && len(t.tags) > 0 {
		if err := t.rotateLocked(time.Now().UTC()); err != nil {
			t.logger.Error("can't open tag log file", "error", err)
			return WorkResult{Produced: n, Consumed: n}, nil
		}
		for _, tag := range t.tags {
			t.writer.Write([]string{
				fmt.Sprintf("%d", tag.Offset),
				tag.SrcID,
				tag.Key,
				fmt.Sprintf("%v", tag.Value),
			})
		}
		t.writer.Flush()
		if err := t.writer.Error(); err != nil {
			t.logger.Error("tag log write error", "error", err)
		}
	}

	return WorkResult{Produced: n, Consumed: len(in)}, nil
}
