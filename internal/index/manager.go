package index

import (
	"context"
	"sync/atomic"

	"github.com/logweave/logweave/internal/catalog"
)

// Manager holds the single active CompiledIndex behind an atomic pointer.
// A swap is one pointer store: readers that obtained a snapshot before the
// swap keep using it (it is immutable and still live); readers that call
// GetActive after the swap see the new one. No reader ever observes a
// partially-built index.
type Manager struct {
	active    atomic.Pointer[CompiledIndex]
	cat       catalog.Catalog
	cacheSize int
}

// NewManager returns a Manager backed by cat. cacheSize is the per-index
// memoization capacity (0 selects DefaultCacheSize).
func NewManager(cat catalog.Catalog, cacheSize int) *Manager {
	return &Manager{cat: cat, cacheSize: cacheSize}
}

// LoadInitial builds the first index from every currently-active template
// and installs it.
func (m *Manager) LoadInitial(ctx context.Context) error {
	idx, err := m.build(ctx)
	if err != nil {
		return err
	}
	m.active.Store(idx)
	return nil
}

// GetActive returns the current index snapshot. Callers must treat it as
// immutable.
func (m *Manager) GetActive() *CompiledIndex {
	return m.active.Load()
}

// BuildNewIndexSync rebuilds from the catalog's current active templates
// and atomically swaps it in, returning only after the swap completes.
func (m *Manager) BuildNewIndexSync(ctx context.Context) error {
	idx, err := m.build(ctx)
	if err != nil {
		return err
	}
	m.active.Store(idx)
	return nil
}

// BuildNewIndexAsync schedules a background rebuild; the swap happens on
// completion. Errors are reported through errCh (buffered, capacity 1) if
// non-nil.
func (m *Manager) BuildNewIndexAsync(ctx context.Context, errCh chan<- error) {
	go func() {
		err := m.BuildNewIndexSync(ctx)
		if errCh != nil {
			errCh <- err
		}
	}()
}

func (m *Manager) build(ctx context.Context) (*CompiledIndex, error) {
	templates, err := m.cat.FetchActiveTemplates(ctx)
	if err != nil {
		return nil, err
	}

	onFail := func(templateID int64) {
		// Best-effort: poisoned catalog recovery must not block the build.
		_, _ = m.cat.DeactivateTemplate(ctx, templateID)
	}

	return Build(templates, onFail, m.cacheSize), nil
}
