package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DirectExecutor executes commands directly on the host using os/exec.
type DirectExecutor struct {
	config ExecutorConfig
	logger *zap.Logger
}

// NewDirectExecutor creates a new direct executor with default config.
func NewDirectExecutor(logger *zap.Logger) *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultExecutorConfig(), logger)
}

// NewDirectExecutorWithConfig creates a new direct executor with custom config.
func NewDirectExecutorWithConfig(config ExecutorConfig, logger *zap.Logger) *DirectExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("creating direct executor",
		zap.Duration("default_timeout", config.DefaultTimeout),
		zap.Int64("max_output_bytes", config.MaxOutputBytes),
		zap.String("log_dir", config.LogDir))
	return &DirectExecutor{
		config: config,
		logger: logger,
	}
}

// Validate checks if a command can be executed.
func (e *DirectExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs a command directly on the host and waits for it.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if err := e.Validate(cmd); err != nil {
		e.logger.Warn("command validation failed", zap.String("binary", cmd.Binary), zap.Error(err))
		return nil, err
	}

	cmd = e.config.Merge(cmd)
	log := e.commandLogger(cmd)

	timeout := e.config.DefaultTimeout
	if cmd.Limits != nil && cmd.Limits.TimeoutMs > 0 {
		timeout = time.Duration(cmd.Limits.TimeoutMs) * time.Millisecond
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	stdout, stderr := e.prepare(execCmd, cmd)

	result := &ExecutionResult{
		ExitCode: -1,
		Command:  &cmd,
	}

	log.Debug("executing", zap.Duration("timeout", timeout))
	result.StartedAt = time.Now()
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	e.collect(result, stdout, stderr)

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.Killed = true
			result.KillReason = fmt.Sprintf("timeout after %s", timeout)
			result.Success = true // Infrastructure worked, command was killed
			log.Warn("command killed", zap.String("reason", result.KillReason))
		case errors.Is(execCtx.Err(), context.Canceled):
			result.Killed = true
			result.KillReason = "context canceled"
			result.Success = true
			log.Debug("command canceled")
		case errors.As(err, &exitErr):
			result.Success = true // Command ran, just returned non-zero
			result.ExitCode = exitErr.ExitCode()
			log.Debug("command exited non-zero", zap.Int("exit_code", result.ExitCode))
		default:
			result.Success = false
			result.Error = err.Error()
			log.Error("command failed", zap.Error(err))
			return result, nil
		}
	} else {
		result.Success = true
		result.ExitCode = 0
	}

	log.Debug("command completed",
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Int("stdout_bytes", len(result.Stdout)))

	return result, nil
}

// Start launches a command and returns immediately. The child runs in its
// own process group and is not bound to ctx, so it survives cancellation of
// the startup sequence and the exit of hgboot itself. A timeout applies only
// when cmd.Limits sets one.
//
// The child's stdout and stderr are real files: a per-command log under
// LogDir when one is configured, otherwise hgboot's own stdout and stderr.
// Stdin is /dev/null.
func (e *DirectExecutor) Start(ctx context.Context, cmd Command) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.Validate(cmd); err != nil {
		e.logger.Warn("command validation failed", zap.String("binary", cmd.Binary), zap.Error(err))
		return nil, err
	}

	cmd = e.config.Merge(cmd)
	log := e.commandLogger(cmd)

	execCmd := exec.Command(cmd.Binary, cmd.Arguments...)
	setupProcessGroup(execCmd)

	logFile, err := e.openLog(cmd)
	if err != nil {
		log.Error("failed to open child log", zap.Error(err))
		return nil, err
	}
	logPath := ""
	if logFile != nil {
		logPath = logFile.Name()
		execCmd.Stdout, execCmd.Stderr = logFile, logFile
	} else {
		execCmd.Stdout, execCmd.Stderr = os.Stdout, os.Stderr
	}

	result := &ExecutionResult{
		ExitCode: -1,
		LogFile:  logPath,
		Command:  &cmd,
	}

	result.StartedAt = time.Now()
	err = execCmd.Start()
	if logFile != nil {
		// The child holds its own copy of the descriptor.
		logFile.Close()
	}
	if err != nil {
		log.Error("command failed to start", zap.Error(err))
		if logPath != "" {
			os.Remove(logPath)
		}
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Binary, err)
	}
	log.Debug("command started", zap.Int("pid", execCmd.Process.Pid), zap.String("log_file", logPath))

	h := newHandle(cmd, execCmd.Process.Pid)

	var timer *time.Timer
	if cmd.Limits != nil && cmd.Limits.TimeoutMs > 0 {
		timeout := time.Duration(cmd.Limits.TimeoutMs) * time.Millisecond
		timer = time.AfterFunc(timeout, func() {
			h.markKilled(fmt.Sprintf("timeout after %s", timeout))
			_ = killProcessGroup(execCmd)
		})
	}

	go func() {
		err := execCmd.Wait()
		if timer != nil {
			timer.Stop()
		}
		result.FinishedAt = time.Now()
		result.Duration = result.FinishedAt.Sub(result.StartedAt)
		if logPath != "" {
			e.readLog(result, e.maxOutput(cmd))
		}

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			result.Success = true
			result.ExitCode = 0
		case errors.As(err, &exitErr):
			result.Success = true
			result.ExitCode = exitErr.ExitCode()
		default:
			result.Error = err.Error()
		}
		if reason, killed := h.killReason(); killed {
			result.Killed = true
			result.KillReason = reason
		}

		log.Debug("background command finished",
			zap.Int("exit_code", result.ExitCode),
			zap.Duration("duration", result.Duration))
		h.finish(result)
	}()

	return h, nil
}

func (e *DirectExecutor) commandLogger(cmd Command) *zap.Logger {
	fields := []zap.Field{zap.String("command", cmd.CommandString())}
	for k, v := range cmd.Tags {
		fields = append(fields, zap.String(k, v))
	}
	return e.logger.With(fields...)
}

func (e *DirectExecutor) maxOutput(cmd Command) int64 {
	if cmd.Limits != nil && cmd.Limits.MaxOutputBytes > 0 {
		return cmd.Limits.MaxOutputBytes
	}
	return e.config.MaxOutputBytes
}

// prepare wires bounded in-memory capture for Execute.
func (e *DirectExecutor) prepare(execCmd *exec.Cmd, cmd Command) (*limitedWriter, *limitedWriter) {
	maxOutput := e.maxOutput(cmd)
	stdout := &limitedWriter{w: &bytes.Buffer{}, max: maxOutput}
	stderr := &limitedWriter{w: &bytes.Buffer{}, max: maxOutput}
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr
	return stdout, stderr
}

func (e *DirectExecutor) collect(result *ExecutionResult, stdout, stderr *limitedWriter) {
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if stdout.truncated || stderr.truncated {
		result.Truncated = true
		e.logger.Warn("command output truncated",
			zap.Int64("discarded_bytes", stdout.discarded+stderr.discarded))
	}
}

// openLog creates the log file for a started child, or returns nil when no
// LogDir is configured.
func (e *DirectExecutor) openLog(cmd Command) (*os.File, error) {
	if e.config.LogDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(e.config.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.CreateTemp(e.config.LogDir, logName(cmd)+"-*.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create child log: %w", err)
	}
	return f, nil
}

func logName(cmd Command) string {
	name := cmd.Tags["uid"]
	if name == "" {
		name = cmd.Tags["step"]
	}
	if name == "" {
		name = filepath.Base(cmd.Binary)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '*':
			return '_'
		}
		return r
	}, name)
}

// readLog loads at most limit bytes of the child's log into result.Stdout.
func (e *DirectExecutor) readLog(result *ExecutionResult, limit int64) {
	f, err := os.Open(result.LogFile)
	if err != nil {
		e.logger.Warn("failed to read child log", zap.String("log_file", result.LogFile), zap.Error(err))
		return
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		e.logger.Warn("failed to read child log", zap.String("log_file", result.LogFile), zap.Error(err))
		return
	}
	result.Stdout = string(data)
	if info, err := f.Stat(); err == nil && limit > 0 && info.Size() > limit {
		result.Truncated = true
	}
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         *bytes.Buffer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

var _ io.Writer = (*limitedWriter)(nil)

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.max <= 0 {
		written, err := lw.w.Write(p)
		lw.written += int64(written)
		return written, err
	}

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}

func (lw *limitedWriter) String() string {
	return lw.w.String()
}
