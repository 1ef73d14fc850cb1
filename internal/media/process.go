package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/models"
)

// Process is a running extraction subprocess owned by a single request.
//
// The extractor runs in its own process group so helpers it starts (ffmpeg) are signalled with it. Cancelling
// the context it was spawned with, or calling Terminate, sends SIGTERM to the group and escalates to SIGKILL
// after the extractor's kill grace period. Whatever is left of the group once the extractor is reaped is killed.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *stderrSink
	cancel context.CancelFunc
	logger *log.Logger

	waitOnce sync.Once
	done     chan struct{}
	outcome  models.Outcome
}

// spawn starts the extractor with args. When stdout is nil the process output is exposed through
// [Process.Stdout] and must be drained before [Process.Wait].
func (e *Extractor) spawn(ctx context.Context, stdout io.Writer, logger *log.Logger, args ...string) (*Process, error) {
	procCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(procCtx, e.binary, args...) //nolint:gosec
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = e.killGrace

	p := &Process{
		cmd:    cmd,
		stderr: newStderrSink(e.stderrLimit, logger),
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}
	cmd.Stderr = p.stderr

	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		p.stdout = pipe
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", e.binary, err)
	}

	logger.Debug("extractor started", "pid", cmd.Process.Pid, "args", args)
	return p, nil
}

// Stdout returns the subprocess output pipe, or nil when output was redirected at spawn.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Terminate asks the process to stop. It is safe to call more than once and after exit.
func (p *Process) Terminate() {
	p.cancel()
}

// Stderr returns the captured stderr tail.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Outcome reports the process state without blocking.
func (p *Process) Outcome() models.Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return models.Running()
	}
}

// Wait blocks until the process exits and its stderr has been collected. If ctx is done first the process is
// terminated and Wait still returns only once it has been reaped.
func (p *Process) Wait(ctx context.Context) models.Outcome {
	p.waitOnce.Do(func() {
		go p.reap()
	})

	select {
	case <-p.done:
	case <-ctx.Done():
		p.Terminate()
		<-p.done
	}
	return p.outcome
}

func (p *Process) reap() {
	defer close(p.done)
	defer p.cancel()

	err := p.cmd.Wait()
	killGroup(p.cmd.Process)
	p.stderr.flush()
	p.outcome = outcomeOf(err, p.cmd.ProcessState)

	p.logger.Debug("extractor exited", "pid", p.PID(), "outcome", p.outcome.Kind, "code", p.outcome.ExitCode)
}

func outcomeOf(err error, state *os.ProcessState) models.Outcome {
	if err == nil {
		return models.Completed(0)
	}

	if errors.Is(err, exec.ErrWaitDelay) && state != nil && state.Exited() {
		return models.Completed(state.ExitCode())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return models.Completed(code)
		}
		return models.Failed(fmt.Errorf("extractor terminated: %w", err))
	}

	return models.Failed(err)
}
