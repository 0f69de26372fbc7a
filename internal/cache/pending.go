package cache

import (
	"context"
	"sync"
)

// FlushBatch is the amount of clicks one flush writes for a URL. Token identifies the
// batch to the store, so writing the same batch twice counts it once.
type FlushBatch struct {
	URLID  int64
	Token  string
	Clicks int64
}

// PendingClicks accumulates clicks that have not been written to the store yet.
//
// A flush calls Begin, which moves the pending amount into an in-flight batch, writes
// the batch and then calls Commit. Until Commit succeeds Begin keeps returning the same
// batch, so a flush that died after the store write is retried with the same token.
// Increments that arrive during a flush stay pending for the next cycle. Get and
// Snapshot report pending and in-flight clicks together.
type PendingClicks interface {
	Add(ctx context.Context, urlID int64, n int64) (int64, error)
	Get(ctx context.Context, urlID int64) (int64, error)
	Snapshot(ctx context.Context) (map[int64]int64, error)
	Begin(ctx context.Context, urlID int64, token string) (FlushBatch, error)
	Commit(ctx context.Context, batch FlushBatch) error
	Discard(ctx context.Context, urlID int64) error
}

// MemoryPending is the in-process accumulator.
type MemoryPending struct {
	mu       sync.Mutex
	counts   map[int64]int64
	inflight map[int64]FlushBatch
}

var _ PendingClicks = (*MemoryPending)(nil)

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{
		counts:   make(map[int64]int64),
		inflight: make(map[int64]FlushBatch),
	}
}

func (p *MemoryPending) Add(_ context.Context, urlID int64, n int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[urlID] += n
	return p.counts[urlID] + p.inflight[urlID].Clicks, nil
}

func (p *MemoryPending) Get(_ context.Context, urlID int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.counts[urlID] + p.inflight[urlID].Clicks, nil
}

func (p *MemoryPending) Snapshot(_ context.Context) (map[int64]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[int64]int64, len(p.counts)+len(p.inflight))
	for id, n := range p.counts {
		if n > 0 {
			out[id] = n
		}
	}
	for id, b := range p.inflight {
		out[id] += b.Clicks
	}
	return out, nil
}

func (p *MemoryPending) Begin(_ context.Context, urlID int64, token string) (FlushBatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.inflight[urlID]; ok {
		return b, nil
	}

	n := p.counts[urlID]
	if n <= 0 {
		return FlushBatch{URLID: urlID}, nil
	}
	delete(p.counts, urlID)

	b := FlushBatch{URLID: urlID, Token: token, Clicks: n}
	p.inflight[urlID] = b
	return b, nil
}

func (p *MemoryPending) Commit(_ context.Context, batch FlushBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.inflight[batch.URLID]; ok && b.Token == batch.Token {
		delete(p.inflight, batch.URLID)
	}
	return nil
}

func (p *MemoryPending) Discard(_ context.Context, urlID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.counts, urlID)
	delete(p.inflight, urlID)
	return nil
}
