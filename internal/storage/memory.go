package storage

import (
	"context"
	"sync"

	"github.com/LJTian/DailyBrief/internal/pipeline"
)

// MemoryStore 未配置 POSTGRES_DSN 时使用，只在进程内保留最近若干次运行
type MemoryStore struct {
	mu   sync.RWMutex
	keep int
	runs []DigestRun
	last []pipeline.Digest
	next uint
}

func NewMemoryStore(keep int) *MemoryStore {
	if keep <= 0 {
		keep = 20
	}
	return &MemoryStore{keep: keep}
}

func (m *MemoryStore) Consume(_ context.Context, d pipeline.Digest) error {
	run, err := newDigestRun(d)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	run.ID = m.next
	run.CreatedAt = d.GeneratedAt
	run.Payload = nil
	m.runs = append([]DigestRun{run}, m.runs...)
	m.last = append([]pipeline.Digest{d}, m.last...)
	if len(m.runs) > m.keep {
		m.runs = m.runs[:m.keep]
		m.last = m.last[:m.keep]
	}
	return nil
}

func (m *MemoryStore) LatestDigest(context.Context) (pipeline.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.last) == 0 {
		return pipeline.Digest{}, ErrNotFound
	}
	return m.last[0], nil
}

// ListQuoteHistory 从保留的运行中取出某个查询的历史值，最新的在前
func (m *MemoryStore) ListQuoteHistory(_ context.Context, name string, limit int) ([]QuoteSnapshot, error) {
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuoteSnapshot, 0, min(limit, len(m.last)))
	for i, d := range m.last {
		for _, snap := range newQuoteSnapshots(m.runs[i].ID, d) {
			if snap.Name == name {
				out = append(out, snap)
			}
		}
		if len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}

func (m *MemoryStore) ListDigests(_ context.Context, limit int) ([]DigestRun, error) {
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := min(limit, len(m.runs))
	out := make([]DigestRun, n)
	copy(out, m.runs[:n])
	return out, nil
}
