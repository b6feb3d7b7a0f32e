package tactile

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Handle tracks a command launched with Start.
type Handle struct {
	Command Command
	PID     int

	done   chan struct{}
	result *ExecutionResult

	mu     sync.Mutex
	killed bool
	reason string
}

func newHandle(cmd Command, pid int) *Handle {
	return &Handle{
		Command: cmd,
		PID:     pid,
		done:    make(chan struct{}),
	}
}

// Done is closed once the child has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the child exits or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*ExecutionResult, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) finish(result *ExecutionResult) {
	h.result = result
	close(h.done)
}

func (h *Handle) markKilled(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killed = true
	h.reason = reason
}

func (h *Handle) killReason() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason, h.killed
}

// WaitAll waits for every handle. The returned error reports the first child
// that failed to run, exited non-zero or was killed; results are returned in
// handle order either way.
func WaitAll(ctx context.Context, handles ...*Handle) ([]*ExecutionResult, error) {
	results := make([]*ExecutionResult, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		if h == nil {
			continue
		}
		g.Go(func() error {
			res, err := h.Wait(ctx)
			if err != nil {
				return err
			}
			results[i] = res
			switch {
			case res.IsError():
				return fmt.Errorf("%s: %s", h.Command.CommandString(), res.Error)
			case res.Killed:
				return fmt.Errorf("%s: killed (%s)", h.Command.CommandString(), res.KillReason)
			case res.ExitCode != 0:
				return fmt.Errorf("%s: exit code %d", h.Command.CommandString(), res.ExitCode)
			}
			return nil
		})
	}
	return results, g.Wait()
}
