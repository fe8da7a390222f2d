package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"billremind/internal/core"
)

// Ledger keeps appended entries in memory.
type Ledger struct {
	mu    sync.Mutex
	items []core.LedgerEntry
}

func New() *Ledger {
	return &Ledger{}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (l *Ledger) AppendEntry(_ context.Context, e core.LedgerEntry) (string, error) {
	if e.AccountID <= 0 {
		return "", core.InvalidInputf("ledger entry without account")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, e)
	return fmt.Sprintf("mem:%d", len(l.items)), nil
}

func (l *Ledger) ListEntries(_ context.Context, year int) ([]core.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range l.items {
		if e.BilledOn.Year() == year {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entries returns a copy of everything appended.
func (l *Ledger) Entries() []core.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}
