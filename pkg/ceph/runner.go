package ceph

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes a shell command on the storage cluster's admin host
type CommandRunner interface {
	Run(ctx context.Context, command string) ([]byte, error)
}

// SSHRunner runs commands through the local ssh client
type SSHRunner struct {
	// Host is the ssh destination, e.g. "ncn-m001"
	Host string

	// Timeout bounds a single command (default: 30 seconds)
	Timeout time.Duration

	// SSHArgs are extra arguments placed before the destination
	SSHArgs []string
}

// NewSSHRunner creates a runner targeting host
func NewSSHRunner(host string) *SSHRunner {
	return &SSHRunner{
		Host:    host,
		Timeout: 30 * time.Second,
		SSHArgs: []string{"-o", "BatchMode=yes"},
	}
}

// WithTimeout sets the per-command timeout
func (r *SSHRunner) WithTimeout(timeout time.Duration) *SSHRunner {
	r.Timeout = timeout
	return r
}

// Run executes command on the remote host and returns its stdout
func (r *SSHRunner) Run(ctx context.Context, command string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.SSHArgs...), r.Host, command)
	cmd := exec.CommandContext(ctx, "ssh", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s on %s: %w", command, r.Host, err)
		}
		return nil, fmt.Errorf("%s on %s: %w: %s", command, r.Host, err, msg)
	}
	return stdout.Bytes(), nil
}
