package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyreel/internal/logging"
)

const (
	pollInterval = 200 * time.Millisecond
	maxLineBytes = 1 << 20
)

// TailOptions selects which lines to read.
type TailOptions struct {
	Offset int64
	Limit  int
	// Follow waits up to Wait for new lines when none are available yet.
	Follow bool
	Wait   time.Duration
	// Contains keeps only lines with this substring, case-insensitively.
	Contains string
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// Path returns the daemon log file inside logDir.
func Path(logDir string) string {
	return filepath.Join(logDir, logging.LogFileName)
}

// Tail reads lines from path. A missing file yields no lines and offset 0.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	var (
		lines  []string
		offset int64
		err    error
	)
	if opts.Offset < 0 {
		lines, offset, err = lastLines(path, opts.Limit)
	} else {
		lines, offset, err = readFrom(path, opts.Offset)
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, err
	}
	lines = filter(lines, opts.Contains)

	if len(lines) == 0 && opts.Follow && opts.Wait > 0 {
		return follow(ctx, path, offset, opts)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

func follow(ctx context.Context, path string, offset int64, opts TailOptions) (TailResult, error) {
	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
		lines, next, err := readFrom(path, offset)
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		offset = next
		if lines = filter(lines, opts.Contains); len(lines) > 0 {
			return TailResult{Lines: lines, Offset: offset}, nil
		}
	}
}

func open(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return file, info.Size(), nil
}

// lastLines keeps a ring of the final limit lines. limit <= 0 returns no lines
// and the end offset, which is how followers start at "now".
func lastLines(path string, limit int) ([]string, int64, error) {
	file, size, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()
	if limit <= 0 {
		return nil, size, nil
	}

	ring := make([]string, 0, limit)
	start := 0
	var read int64
	scanner := newScanner(file)
	for scanner.Scan() {
		read += int64(len(scanner.Bytes())) + 1
		if len(ring) < limit {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[start] = scanner.Text()
		start = (start + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	lines := append(append([]string(nil), ring[start:]...), ring[:start]...)
	return lines, min(read, size), nil
}

func readFrom(path string, offset int64) ([]string, int64, error) {
	file, size, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()
	if offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	scanner := newScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		// A trailing partial line is left for the next read.
		if offset+int64(len(line)) >= size && !endsWithNewline(file, size) {
			break
		}
		offset += int64(len(line)) + 1
		lines = append(lines, string(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, offset, fmt.Errorf("read log file: %w", err)
	}
	return lines, min(offset, size), nil
}

func endsWithNewline(file *os.File, size int64) bool {
	if size == 0 {
		return true
	}
	buf := make([]byte, 1)
	if _, err := file.ReadAt(buf, size-1); err != nil {
		return false
	}
	return buf[0] == '\n'
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func filter(lines []string, contains string) []string {
	needle := strings.ToLower(strings.TrimSpace(contains))
	if needle == "" {
		return lines
	}
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), needle) {
			kept = append(kept, line)
		}
	}
	return kept
}
