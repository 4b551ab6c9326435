package usage

import "github.com/kailas-cloud/ytproxy/internal/domain/usage/budget"

// Report summarizes the key pool at one instant.
type Report struct {
	quota       int
	keys        []budget.Budget
	nextResetAt int64
}

// NewReport creates a key pool report. nextResetAt is unix millis.
func NewReport(quota int, keys []budget.Budget, nextResetAt int64) Report {
	return Report{quota: quota, keys: keys, nextResetAt: nextResetAt}
}

// Quota returns the per-key budget restored at every reset.
func (r *Report) Quota() int { return r.quota }

// Keys returns per-key budgets ordered by registration position.
func (r *Report) Keys() []budget.Budget { return r.keys }

// NextResetAt returns the next reset timestamp (unix millis).
func (r *Report) NextResetAt() int64 { return r.nextResetAt }

// Available counts keys that still have budget.
func (r *Report) Available() int {
	n := 0
	for _, b := range r.keys {
		if !b.IsExhausted() {
			n++
		}
	}
	return n
}

// Remaining sums the budget left across all keys.
func (r *Report) Remaining() int {
	total := 0
	for _, b := range r.keys {
		total += b.Remaining()
	}
	return total
}
