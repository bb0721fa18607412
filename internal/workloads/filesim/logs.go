package filesim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/agent-haymaker/haymaker/internal/workload"
)

const followPollInterval = 250 * time.Millisecond

// GetLogs streams the deployment's log file. Without follow the stream is a
// snapshot of the file's current contents. With follow the file is tailed:
// existing lines are delivered first, then appends as they land, until the
// consumer closes the stream or ctx is canceled.
func (f *FileSim) GetLogs(ctx context.Context, deploymentID string, follow bool, lines int) (workload.LogStream, error) {
	f.mu.Lock()
	_, err := f.readState(deploymentID)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	path := f.logPath(deploymentID)

	if !follow {
		snapshot, err := readLogLines(path)
		if err != nil {
			return nil, err
		}
		return workload.NewSliceStream(snapshot), nil
	}

	tailCtx, cancel := context.WithCancel(ctx)
	ch := make(chan string)
	go tailFile(tailCtx, path, ch)
	return workload.NewChanStream(ch, cancel), nil
}

func readLogLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return out, nil
}

// tailFile sends log lines on ch, polling for appended data until ctx is
// canceled. It owns ch and closes it on exit.
func tailFile(ctx context.Context, path string, ch chan<- string) {
	defer close(ch)

	var offset int64
	var partial []byte

	for {
		lines, newOffset, err := readFrom(path, offset)
		if err == nil {
			offset = newOffset
			for _, raw := range lines {
				if len(raw) == 0 || raw[len(raw)-1] != '\n' {
					// Writer is mid-line; hold it until the newline lands.
					partial = append(partial, raw...)
					continue
				}
				line := string(partial) + string(raw[:len(raw)-1])
				partial = partial[:0]
				select {
				case ch <- line:
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case <-time.After(followPollInterval):
		case <-ctx.Done():
			return
		}
	}
}

// readFrom reads raw newline-delimited chunks from path starting at offset.
// The final chunk may lack its trailing newline.
func readFrom(path string, offset int64) ([][]byte, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, offset, err
	}
	if len(data) == 0 {
		return nil, offset, nil
	}

	var chunks [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			chunks = append(chunks, data[start:i+1])
			start = i + 1
		}
	}
	if start < len(data) {
		chunks = append(chunks, data[start:])
	}
	return chunks, offset + int64(len(data)), nil
}
