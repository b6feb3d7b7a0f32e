// Package tactile is the process layer of hgboot. Every external program the
// startup sequence touches (netstat, manage.py ingest_tileset, nginx) goes
// through an Executor so the sequence can either wait for a result or submit
// a child and move on.
//
// Execute captures output in memory and is meant for short commands. Start
// never routes child output through hgboot: the child writes straight to an
// inherited descriptor, either hgboot's own stdout/stderr or a log file under
// ExecutorConfig.LogDir, so it keeps running after hgboot exits.
package tactile

import (
	"strings"
	"time"
)

// Command is one program invocation.
type Command struct {
	Binary    string   `json:"binary"`
	Arguments []string `json:"arguments"`

	// Limits overrides the executor defaults for this run.
	Limits *ResourceLimits `json:"limits,omitempty"`

	// Tags are copied onto every log line about the command. A "uid" or
	// "step" tag also names the child's log file.
	Tags map[string]string `json:"tags,omitempty"`
}

// CommandString renders the invocation for logs.
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ResourceLimits bounds a single run.
type ResourceLimits struct {
	// TimeoutMs kills the process after this many milliseconds. For Execute
	// zero falls back to the executor default; for Start zero means no limit.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`

	// MaxOutputBytes bounds how much output is kept per stream.
	MaxOutputBytes int64 `json:"max_output_bytes,omitempty"`
}

// ExecutionResult describes a finished run.
type ExecutionResult struct {
	// Success is false only when the process could not be run or reaped.
	// A non-zero exit still counts as success.
	Success  bool `json:"success"`
	ExitCode int  `json:"exit_code"`

	// Stdout and Stderr hold captured output. For a started child they are
	// empty unless its output went to a log file, in which case the combined
	// log is read back into Stdout.
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// LogFile is where a started child wrote its output, if anywhere.
	LogFile string `json:"log_file,omitempty"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`
	Truncated  bool   `json:"truncated"`

	// Error carries the reason when Success is false.
	Error string `json:"error,omitempty"`

	Command *Command `json:"command,omitempty"`
}

// IsError reports an execution failure, as opposed to a non-zero exit.
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit reports a process that ran and exited non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// Output joins both streams, skipping an empty one.
func (r *ExecutionResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// ExecutorConfig holds executor-wide defaults.
type ExecutorConfig struct {
	DefaultTimeout time.Duration `json:"default_timeout"`
	MaxTimeout     time.Duration `json:"max_timeout"`
	MaxOutputBytes int64         `json:"max_output_bytes"`

	// LogDir receives one log file per started child. Empty means started
	// children share hgboot's stdout and stderr.
	LogDir string `json:"log_dir,omitempty"`
}

// DefaultExecutorConfig returns the defaults used by NewDirectExecutor.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout: 30 * time.Second,
		MaxTimeout:     30 * time.Minute,
		MaxOutputBytes: 10 * 1024 * 1024, // 10MB
	}
}

// Merge fills unset command limits from c and clamps the timeout. The
// caller's Limits value is never modified.
func (c ExecutorConfig) Merge(cmd Command) Command {
	if cmd.Limits == nil {
		return cmd
	}
	limits := *cmd.Limits
	if limits.MaxOutputBytes == 0 {
		limits.MaxOutputBytes = c.MaxOutputBytes
	}
	if maxMs := int64(c.MaxTimeout / time.Millisecond); maxMs > 0 && limits.TimeoutMs > maxMs {
		limits.TimeoutMs = maxMs
	}
	cmd.Limits = &limits
	return cmd
}
