package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

// RotateAfter is the number of entries current.jsonl holds before it is rolled.
const RotateAfter = 1000

// currentLog is the live activity segment.
const currentLog = "current" + logExt

// segmentPattern matches rolled activity segments: NNNNNN.jsonl.
var segmentPattern = regexp.MustCompile(`^(\d{6})\.jsonl$`)

// AppendActivity appends entry to the activity log, rolling the current
// segment first when it is full. Callers hold the store lock.
func (s *Store) AppendActivity(_ context.Context, entry domain.LogEntry) error {
	current := s.activityPath(currentLog)
	count, err := countLines(current)
	if err != nil {
		return err
	}
	if count >= RotateAfter {
		if err := s.rotateActivity(current); err != nil {
			return err
		}
	}
	return appendLine(current, entry)
}

// ReadActivity returns the most recent limit entries in append order.
// A limit of zero or less returns every entry across all segments.
func (s *Store) ReadActivity(_ context.Context, limit int) ([]domain.LogEntry, error) {
	entries, err := readLog(s.activityPath(currentLog))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) >= limit {
		return entries[len(entries)-limit:], nil
	}

	segments, err := s.segments()
	if err != nil {
		return nil, err
	}
	for i := len(segments) - 1; i >= 0; i-- {
		older, err := readLog(s.activityPath(segmentName(segments[i])))
		if err != nil {
			return nil, err
		}
		entries = append(older, entries...)
		if limit > 0 && len(entries) >= limit {
			return entries[len(entries)-limit:], nil
		}
	}
	return entries, nil
}

// AppendEntityLog appends entry to the log of one task, actor, or tag.
func (s *Store) AppendEntityLog(_ context.Context, ref domain.EntityRef, entry domain.LogEntry) error {
	path, err := s.entityLogPath(ref)
	if err != nil {
		return err
	}
	return appendLine(path, entry)
}

// ReadEntityLog returns every entry of one entity log. A missing log is empty.
func (s *Store) ReadEntityLog(_ context.Context, ref domain.EntityRef) ([]domain.LogEntry, error) {
	path, err := s.entityLogPath(ref)
	if err != nil {
		return nil, err
	}
	return readLog(path)
}

func (s *Store) entityLogPath(ref domain.EntityRef) (string, error) {
	dir, ok := entityDirs[ref.Kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown entity kind %q", app.ErrValidation, ref.Kind)
	}
	if !domain.ValidFileID(ref.ID) {
		return "", fmt.Errorf("%w: %s id %q is not a valid file name", app.ErrValidation, ref.Kind, ref.ID)
	}
	return filepath.Join(s.root, dir, ref.ID+logExt), nil
}

func (s *Store) activityPath(name string) string {
	return filepath.Join(s.root, activityDir, name)
}

// segments lists rolled segment numbers in ascending order.
func (s *Store) segments() ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, activityDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("list activity segments", err)
	}
	var out []int
	for _, entry := range entries {
		m := segmentPattern.FindStringSubmatch(entry.Name())
		if m == nil || entry.IsDir() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// rotateActivity renames current to the next segment number.
func (s *Store) rotateActivity(current string) error {
	segments, err := s.segments()
	if err != nil {
		return err
	}
	next := 1
	if len(segments) > 0 {
		next = segments[len(segments)-1] + 1
	}
	if err := os.Rename(current, s.activityPath(segmentName(next))); err != nil {
		return ioError("rotate activity log", err)
	}
	return nil
}

func segmentName(n int) string {
	return fmt.Sprintf("%06d%s", n, logExt)
}

// appendLine writes entry as one JSON line.
func appendLine(path string, entry domain.LogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return ioError("encode log entry", err)
	}
	line = append(line, '\n')
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return ioError("open "+filepath.Base(path), err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return ioError("append "+filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return ioError("close "+filepath.Base(path), err)
	}
	return nil
}

// readLog decodes every line of a JSONL file. A missing file is empty; a
// torn final line without a newline is skipped.
func readLog(path string) ([]domain.LogEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.LogEntry{}, nil
	}
	if err != nil {
		return nil, ioError("open "+filepath.Base(path), err)
	}
	defer f.Close()

	out := []domain.LogEntry{}
	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, ioError("read "+filepath.Base(path), readErr)
		}
		complete := len(line) > 0 && line[len(line)-1] == '\n'
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var entry domain.LogEntry
			if err := json.Unmarshal(trimmed, &entry); err != nil {
				if !complete {
					break
				}
				return nil, ioError("decode "+filepath.Base(path), err)
			}
			out = append(out, entry)
		}
		if readErr != nil {
			break
		}
	}
	return out, nil
}

// countLines counts newline-terminated entries in path. A missing file has none.
func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, ioError("read "+filepath.Base(path), err)
	}
	return bytes.Count(data, []byte{'\n'}), nil
}
