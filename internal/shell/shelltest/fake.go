// Package shelltest: подмена shell.Runner для тестов без внешних утилит.
package shelltest

import (
	"context"
	"sync"

	"slidecraft/internal/shell"
)

// Fake выполняет Fn вместо процесса и запоминает вызовы.
type Fake struct {
	Fn      func(ctx context.Context, cmd shell.Command) (shell.Result, error)
	Missing map[string]bool // имена утилит, которых «нет» в PATH

	mu    sync.Mutex
	calls []shell.Command
}

func (f *Fake) Run(ctx context.Context, cmd shell.Command) (shell.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	if f.Fn == nil {
		return shell.Result{}, nil
	}
	return f.Fn(ctx, cmd)
}

func (f *Fake) LookPath(name string) bool { return !f.Missing[name] }

func (f *Fake) Calls() []shell.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shell.Command(nil), f.calls...)
}
