package recordsourcetest

import (
	"context"

	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

// Transactional wraps a Memory source with snapshot-and-restore transactions.
type Transactional struct {
	*Memory
	Commits   int
	Rollbacks int
}

// NewTransactional returns a Memory source that implements recordsource.Transactor.
func NewTransactional(m *Memory) *Transactional {
	return &Transactional{Memory: m}
}

// RunInTx snapshots every collection, runs fn and restores the snapshot when
// fn fails.
func (t *Transactional) RunInTx(ctx context.Context, fn func(tx recordsource.Source) error) error {
	t.mu.Lock()
	snapshot := make(map[string][]map[string]any, len(t.collections))
	for name, docs := range t.collections {
		cp := make([]map[string]any, len(docs))
		for i, d := range docs {
			cp[i] = clone(d)
		}
		snapshot[name] = cp
	}
	t.mu.Unlock()

	if err := fn(t.Memory); err != nil {
		t.mu.Lock()
		t.collections = snapshot
		t.Rollbacks++
		t.mu.Unlock()
		return err
	}
	t.mu.Lock()
	t.Commits++
	t.mu.Unlock()
	return nil
}

var _ recordsource.Transactor = (*Transactional)(nil)
var _ recordsource.Source = (*Memory)(nil)
