// Package command runs the configured external command for a batch of
// changed files.
//
// Execution is synchronous and has no timeout: a command that never exits
// blocks the caller indefinitely.
package command

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// Result describes a successful run.
type Result struct {
	Args   []string
	Output string
}

// Runner executes a whitespace separated command template with file paths
// appended as trailing arguments.
type Runner struct {
	template string
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

func NewRunner(template string, logger *slog.Logger) *Runner {
	return &Runner{
		template: template,
		logger:   logger.With(slog.String("component", "command")),
		lookPath: exec.LookPath,
	}
}

// Execute runs the command once with paths appended in the given order.
// An empty batch succeeds without starting a process.
func (r *Runner) Execute(paths []string) (Result, error) {
	if len(paths) == 0 {
		r.logger.Debug("no files to process")
		return Result{}, nil
	}

	fields := strings.Fields(r.template)
	if len(fields) == 0 {
		return Result{}, ErrEmptyCommand
	}

	if tool, missing := missingTool(r.template, r.lookPath); missing {
		return Result{}, fmt.Errorf("%w: %s command not found, please install %s first", ErrToolNotFound, tool, tool)
	}

	name := fields[0]
	args := make([]string, 0, len(fields)-1+len(paths))
	args = append(args, fields[1:]...)
	for _, p := range paths {
		if !utf8.ValidString(p) {
			r.logger.Debug("skipping path that is not valid text", slog.String("path", fmt.Sprintf("%q", p)))
			continue
		}
		args = append(args, p)
	}

	r.logger.Info("executing command",
		slog.String("name", name),
		slog.Any("args", args),
	)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("%w (%v): %s", ErrCommandFailed, exitErr, strings.TrimSpace(stderr.String()))
		}
		return Result{}, fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}

	r.logger.Info("command output", slog.String("stdout", stdout.String()))

	return Result{
		Args:   args,
		Output: stdout.String(),
	}, nil
}
