package service

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultTaskTimeout = 10 * time.Second

// Tasks runs fire-and-forget side effects (status sync, click recording,
// analytics). Go returns immediately; a failed task is logged and never
// reaches the caller. Wait blocks until every submitted task has finished.
type Tasks struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewTasks(timeout time.Duration) *Tasks {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	return &Tasks{timeout: timeout}
}

// Go runs fn in the background with its own deadline, detached from any request context.
func (t *Tasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("background task panicked: task=%s err=%v", name, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Printf("background task failed: task=%s err=%v", name, err)
		}
	}()
}

func (t *Tasks) Wait() {
	t.wg.Wait()
}
