package orchestrator

import (
	"context"
	"io"
	"sync"

	"github.com/agent-haymaker/haymaker/internal/workload"
)

// Logs opens a log stream for a deployment. When follow is false the stream
// is finite and bounded to the most recent lines entries. When follow is true
// the stream is unbounded; the underlying log source is released as soon as
// iteration stops, whether by exhaustion, cancellation, or error.
func (o *Orchestrator) Logs(ctx context.Context, deploymentID string, follow bool, lines int) (workload.LogStream, error) {
	rec, err := o.store.Get(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	wl, err := o.resolver.Resolve(rec.WorkloadName)
	if err != nil {
		return nil, err
	}

	stream, err := wl.GetLogs(ctx, deploymentID, follow, lines)
	if err != nil {
		return nil, &ExecError{Workload: rec.WorkloadName, Op: "get_logs", Err: err}
	}

	if follow {
		return &guardedStream{inner: stream}, nil
	}
	return tailStream(ctx, stream, lines)
}

// tailStream drains a finite stream and returns the most recent n lines,
// closing the source stream regardless of outcome.
func tailStream(ctx context.Context, s workload.LogStream, n int) (workload.LogStream, error) {
	defer s.Close()

	var ring []string
	var count int
	if n > 0 {
		ring = make([]string, n)
	}

	for {
		line, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n > 0 {
			ring[count%n] = line
			count++
		} else {
			ring = append(ring, line)
			count++
		}
	}

	if n <= 0 || count <= n {
		return workload.NewSliceStream(ring[:count]), nil
	}

	// The ring wrapped; reassemble in chronological order.
	tail := make([]string, 0, n)
	for i := count - n; i < count; i++ {
		tail = append(tail, ring[i%n])
	}
	return workload.NewSliceStream(tail), nil
}

// guardedStream releases the underlying stream the moment iteration stops,
// so an abandoned follow can never leak the workload's log source.
type guardedStream struct {
	inner workload.LogStream
	once  sync.Once
}

func (g *guardedStream) Next(ctx context.Context) (string, error) {
	line, err := g.inner.Next(ctx)
	if err != nil {
		g.Close()
		return "", err
	}
	return line, nil
}

func (g *guardedStream) Close() error {
	var err error
	g.once.Do(func() { err = g.inner.Close() })
	return err
}
