// Package shell запускает внешние утилиты (pandoc, libreoffice, pdftoppm).
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrTimeout: процесс не уложился в срок контекста и был убит.
var ErrTimeout = errors.New("external command timed out")

type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // добавляется к окружению процесса
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

type Result struct {
	Stdout string
	Stderr string
}

// ExitError: ненулевой код выхода, Stderr: диагностика утилиты.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
	LookPath(name string) bool
}

// Exec: Runner поверх os/exec, по дочернему процессу на вызов.
type Exec struct{}

func (Exec) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%s: %w", c.Name, ErrTimeout)
		}
		return res, ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return res, &ExitError{Name: c.Name, Code: ee.ExitCode(), Stderr: res.Stderr}
	}
	return res, fmt.Errorf("run %s: %w", c.Name, err)
}

func (Exec) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
