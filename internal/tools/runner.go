package tools

import (
	"bytes"
	"errors"
	"os/exec"
)

// CommandRunner abstracts shell command execution for platform adapters.
type CommandRunner interface {
	Run(name string, args ...string) (stdout []byte, stderr []byte, exitCode int, err error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// Run executes the command through os/exec with captured output streams.
func (r ExecRunner) Run(name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.Command(name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), err
	}

	exitCode := 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		// Command missing from PATH.
		exitCode = 127
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}
