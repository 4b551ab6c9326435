package ytproxy

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/ytproxy/internal/domain/usage"
)

// KeyStatus is the remaining budget of one key. Keys are identified by position only.
type KeyStatus struct {
	Index       int
	Remaining   int
	IsExhausted bool
}

// StatusReport is a snapshot of the key pool.
type StatusReport struct {
	Quota       int
	Keys        []KeyStatus
	Available   int
	NextResetAt time.Time
}

// Status snapshots every key's remaining budget.
// Observer always records success: the report is read from memory.
func (c *Client) Status(ctx context.Context) StatusReport {
	start := time.Now()
	defer func() { c.obs.observe("status", start, nil) }()

	report := c.usageSvc.GetReport(ctx)
	keys := make([]KeyStatus, 0, len(report.Keys()))
	for _, b := range report.Keys() {
		keys = append(keys, KeyStatus{
			Index:       b.Index(),
			Remaining:   b.Remaining(),
			IsExhausted: b.IsExhausted(),
		})
	}

	out := StatusReport{
		Quota:     report.Quota(),
		Keys:      keys,
		Available: report.Available(),
	}
	if ms := report.NextResetAt(); ms > 0 {
		out.NextResetAt = time.UnixMilli(ms).UTC()
	}
	return out
}

// usageUseCase is the internal interface for pool reports.
type usageUseCase interface {
	GetReport(ctx context.Context) domusage.Report
}
