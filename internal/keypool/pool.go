// Package keypool hands out upstream API keys with enough remaining daily budget.
//
// Keys live in an ordered slice and are visited from a rotation cursor, so the
// order in which keys are served is stable for a given pool state. All state is
// guarded by a single mutex; cost comparisons always see one consistent view.
package keypool

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultQuota is the daily budget of a freshly reset key.
const DefaultQuota = 10000

var (
	// ErrNoKeys signals an empty key list.
	ErrNoKeys = errors.New("keypool: at least one key is required")
	// ErrInvalidKey signals an empty or duplicated key.
	ErrInvalidKey = errors.New("keypool: invalid key")
)

type entry struct {
	key       string
	remaining int
}

// Pool is a fixed set of keys with remaining budgets and a rotation cursor.
// Keys are never removed, only zeroed by Expire until the next Reset.
type Pool struct {
	mu      sync.Mutex
	entries []entry
	cursor  int
	quota   int
	logger  *zap.Logger
}

// New creates a pool with every key at full quota. quota <= 0 selects DefaultQuota.
func New(keys []string, quota int, logger *zap.Logger) (*Pool, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	if quota <= 0 {
		quota = DefaultQuota
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[string]struct{}, len(keys))
	entries := make([]entry, 0, len(keys))
	for i, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: key %d is empty", ErrInvalidKey, i)
		}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: key %d (%s) is duplicated", ErrInvalidKey, i, Mask(k))
		}
		seen[k] = struct{}{}
		entries = append(entries, entry{key: k, remaining: quota})
	}

	return &Pool{
		entries: entries,
		quota:   quota,
		logger:  logger,
	}, nil
}

// Reserve charges cost to the first key, starting at the cursor, that can afford it
// and advances the cursor past that key. Every key is examined at most once.
// A key with zero budget is never eligible, whatever the cost.
// Returns false without touching any state when no key qualifies.
func (p *Pool) Reserve(cost int) (string, bool) {
	if cost < 0 {
		cost = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		e := &p.entries[idx]
		if e.remaining <= 0 || e.remaining < cost {
			continue
		}
		e.remaining -= cost
		p.cursor = (idx + 1) % n
		return e.key, true
	}
	return "", false
}

// Expire zeroes the budget of key until the next Reset. Idempotent.
func (p *Pool) Expire(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.entries {
		e := &p.entries[i]
		if e.key != key {
			continue
		}
		if e.remaining == p.quota {
			// Rejected before spending anything: likely revoked rather than used up.
			p.logger.Warn("Key expired with untouched budget, probably permanently invalid",
				zap.Int("index", i), zap.String("key", Mask(key)))
		}
		e.remaining = 0
		return
	}

	p.logger.Error("Expire called for unknown key", zap.String("key", Mask(key)))
}

// Reset restores every key to full quota. The cursor is left where it is.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.entries {
		p.entries[i].remaining = p.quota
	}
}

// Status returns the remaining budget of every key, indexed by registration order.
func (p *Pool) Status() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.remaining
	}
	return out
}

// Size returns the number of registered keys.
func (p *Pool) Size() int { return len(p.entries) }

// Quota returns the per-key budget restored by Reset.
func (p *Pool) Quota() int { return p.quota }

// Mask hides all but the last four characters of a key for logging.
func Mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
