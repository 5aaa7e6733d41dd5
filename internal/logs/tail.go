package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// TailOptions controls one tail call. A negative Offset means "the last
// Limit lines"; a non-negative Offset resumes reading from that byte
// position. Follow with a positive Wait polls for new lines until the wait
// elapses when the first read comes up empty.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the byte offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

const pollInterval = 200 * time.Millisecond

// Tail reads log lines from path per opts. A missing file is not an error:
// the result is empty with offset zero, so callers can start tailing before
// the daemon has written anything.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	lines, offset, err := read(path, opts.Offset, opts.Limit)
	if err != nil {
		return result, err
	}
	result.Lines = lines
	result.Offset = offset

	if opts.Follow && opts.Wait > 0 && len(lines) == 0 {
		return followTail(ctx, path, offset, opts.Wait)
	}
	return result, nil
}

func read(path string, offset int64, limit int) ([]string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	size := info.Size()

	start := offset
	if start < 0 {
		start, err = lastLinesStart(f, size, limit)
		if err != nil {
			return nil, 0, fmt.Errorf("scan log file: %w", err)
		}
	} else if start > size {
		start = size
	}
	return readFrom(f, start)
}

// lastLinesStart scans backwards in chunks counting newlines and returns the
// byte position where the trailing limit lines begin. The file is never read
// in full, so tailing a large log stays cheap.
func lastLinesStart(f *os.File, size int64, limit int) (int64, error) {
	if limit <= 0 || size == 0 {
		return size, nil
	}
	const chunkSize = 8 * 1024
	buf := make([]byte, chunkSize)
	remaining := limit
	pos := size
	// A newline as the very last byte terminates the final line rather than
	// starting an empty one, so it does not count toward the limit.
	skipTerminator := true

	for pos > 0 {
		n := int64(chunkSize)
		if pos < n {
			n = pos
		}
		pos -= n
		if _, err := f.ReadAt(buf[:n], pos); err != nil {
			return 0, err
		}
		for i := n - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			if skipTerminator && pos+i == size-1 {
				skipTerminator = false
				continue
			}
			remaining--
			if remaining == 0 {
				return pos + i + 1, nil
			}
		}
	}
	return 0, nil
}

// readFrom returns every line from start to EOF and the offset just past the
// consumed bytes. A partial line without a terminator is emitted and counted
// so follow mode does not replay it.
func readFrom(f *os.File, start int64) ([]string, int64, error) {
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(f, 64*1024)
	offset := start
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		switch {
		case err == nil:
			lines = append(lines, strings.TrimSuffix(line, "\n"))
			offset += int64(len(line))
		case errors.Is(err, io.EOF):
			if line != "" {
				lines = append(lines, line)
				offset += int64(len(line))
			}
			return lines, offset, nil
		default:
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
	}
}

func followTail(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	result := TailResult{Offset: offset}
	for {
		lines, next, err := read(path, offset, 0)
		if err != nil {
			return result, err
		}
		result.Offset = next
		if len(lines) > 0 {
			result.Lines = lines
			return result, nil
		}
		if !time.Now().Before(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(pollInterval):
		}
		offset = next
	}
}
