package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// Environment variables passed to the capture program.
const (
	EnvCaptureKind     = "CAPTURE_KIND"
	EnvCaptureSession  = "CAPTURE_SESSION"
	EnvCaptureCallback = "CAPTURE_CALLBACK_URL"
)

// ProcessLauncher starts the capture program by name as a local child process.
// Enroll and verify share one camera, so any running capture makes the launcher busy.
type ProcessLauncher struct {
	commands map[Kind][]string
	logger   *zap.Logger

	mu      sync.Mutex
	running *exec.Cmd
	kind    Kind
	done    chan struct{}
}

// NewProcessLauncher creates a launcher; commands maps each kind to a program and its arguments.
func NewProcessLauncher(commands map[Kind][]string, logger *zap.Logger) (*ProcessLauncher, error) {
	for _, k := range Kinds {
		if len(commands[k]) == 0 {
			return nil, fmt.Errorf("no capture program configured for %s", k)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessLauncher{commands: commands, logger: logger.Named("process")}, nil
}

// Start spawns the program for req.Kind and returns once it is running.
// The process outlives ctx; its completion is reported through the result redirect.
func (l *ProcessLauncher) Start(ctx context.Context, req StartRequest) error {
	argv, ok := l.commands[req.Kind]
	if !ok {
		return fmt.Errorf("%w: no capture program for %q", directory.ErrValidation, req.Kind)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running != nil {
		return fmt.Errorf("%w: %s capture process is running", directory.ErrConflict, l.kind)
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // program comes from operator configuration
	cmd.Env = append(os.Environ(),
		EnvCaptureKind+"="+string(req.Kind),
		EnvCaptureSession+"="+req.Token,
		EnvCaptureCallback+"="+req.CallbackURL,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture program %s: %w", argv[0], err)
	}

	done := make(chan struct{})
	l.running, l.kind, l.done = cmd, req.Kind, done
	l.logger.Info("capture program started",
		zap.String("kind", string(req.Kind)), zap.Int("pid", cmd.Process.Pid))

	go l.wait(cmd, req.Kind, done)
	return nil
}

func (l *ProcessLauncher) wait(cmd *exec.Cmd, kind Kind, done chan struct{}) {
	err := cmd.Wait()

	l.mu.Lock()
	if l.running == cmd {
		l.running, l.kind, l.done = nil, "", nil
	}
	l.mu.Unlock()
	close(done)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		l.logger.Info("capture program finished", zap.String("kind", string(kind)))
	case errors.As(err, &exitErr):
		l.logger.Warn("capture program exited", zap.String("kind", string(kind)), zap.Int("code", exitErr.ExitCode()))
	default:
		l.logger.Warn("capture program wait failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// Busy reports whether a capture program is running.
func (l *ProcessLauncher) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running != nil
}

// Wait blocks until the running program exits or ctx is done.
func (l *ProcessLauncher) Wait(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
