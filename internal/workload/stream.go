package workload

import (
	"context"
	"io"
	"sync"
)

// LogStream is a pull-based iterator over log lines. Next blocks until a line
// is available, the stream ends (io.EOF), or ctx is canceled. Close releases
// the underlying log source and is safe to call more than once; consumers must
// call it however iteration stops.
type LogStream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// sliceStream serves a fixed set of lines and then io.EOF.
type sliceStream struct {
	lines []string
	pos   int
}

// NewSliceStream returns a finite LogStream over lines. Close is a no-op.
func NewSliceStream(lines []string) LogStream {
	return &sliceStream{lines: lines}
}

func (s *sliceStream) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

func (s *sliceStream) Close() error { return nil }

// ChanStream adapts a producer goroutine writing to a channel into a
// LogStream. Closing the stream cancels the producer's context so the source
// side tears down promptly; the producer signals exhaustion by closing ch.
type ChanStream struct {
	ch     <-chan string
	cancel context.CancelFunc
	once   sync.Once
}

// NewChanStream wraps ch as a LogStream. cancel is invoked exactly once on
// Close and must stop the producer feeding ch.
func NewChanStream(ch <-chan string, cancel context.CancelFunc) *ChanStream {
	return &ChanStream{ch: ch, cancel: cancel}
}

func (s *ChanStream) Next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-s.ch:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the producer. Pending buffered lines are discarded.
func (s *ChanStream) Close() error {
	s.once.Do(s.cancel)
	return nil
}
