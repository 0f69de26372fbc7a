package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jack/golang-campaign-redirect-service/internal/service"
)

// Flusher writes accumulated click counts to the store.
type Flusher interface {
	FlushPendingClickUpdates(ctx context.Context) (service.FlushResult, error)
}

// ClickSyncScheduler periodically flushes pending clicks and does a final flush on Stop
type ClickSyncScheduler struct {
	flusher  Flusher
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewClickSyncScheduler(flusher Flusher, interval time.Duration) *ClickSyncScheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &ClickSyncScheduler{
		flusher:  flusher,
		interval: interval,
		timeout:  time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sync process
func (s *ClickSyncScheduler) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Click sync scheduler started (interval: %v)", s.interval)
}

// Stop gracefully stops the scheduler. It is safe to call more than once.
func (s *ClickSyncScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	log.Println("Click sync scheduler stopped")
}

func (s *ClickSyncScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SyncNow()
		case <-s.stopCh:
			// 關閉前最後一次回寫，避免遺失尚未同步的點擊數
			log.Println("Performing final click count sync before shutdown...")
			s.SyncNow()
			return
		}
	}
}

// SyncNow flushes immediately.
func (s *ClickSyncScheduler) SyncNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.flusher.FlushPendingClickUpdates(ctx)
	if err != nil {
		log.Printf("Failed to read pending clicks: %v", err)
		return
	}

	if res.URLs > 0 || res.Failed > 0 {
		log.Printf("Click count sync completed: urls=%d clicks=%d completed=%d failed=%d",
			res.URLs, res.Clicks, res.Completed, res.Failed)
	}
}
