package async

import (
	"context"
	"errors"
	"fmt"
)

// Task is a named operation.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel runs tasks concurrently, at most limit at a time (limit <= 0
// means no limit), and waits for all of them. Every failure is returned,
// joined, each prefixed with its task name. Tasks not yet started when ctx
// ends are skipped and reported with the context error.
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}

	errs := make([]error, len(tasks))
	sem := make(chan struct{}, limit)
	done := make(chan struct{}, len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			done <- struct{}{}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = fmt.Errorf("%s: %w", task.Name, ctx.Err())
			done <- struct{}{}
			continue
		}
		go func() {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
		}()
	}

	for range len(tasks) {
		<-done
	}
	return errors.Join(errs...)
}
