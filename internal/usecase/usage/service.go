package usage

import (
	"context"

	domusage "github.com/kailas-cloud/ytproxy/internal/domain/usage"
	"github.com/kailas-cloud/ytproxy/internal/domain/usage/budget"
)

// Service handles key pool reporting.
type Service struct {
	pool     PoolReader
	schedule ScheduleReader
}

// New creates a Service. schedule can be nil (no reset running).
func New(pool PoolReader, schedule ScheduleReader) *Service {
	return &Service{pool: pool, schedule: schedule}
}

// GetReport snapshots every key's remaining budget.
func (s *Service) GetReport(_ context.Context) domusage.Report {
	var resetsAt int64
	if s.schedule != nil {
		resetsAt = s.schedule.NextRun().UnixMilli()
	}

	quota := s.pool.Quota()
	status := s.pool.Status()
	keys := make([]budget.Budget, len(status))
	for i, remaining := range status {
		keys[i] = budget.New(i, quota, remaining, resetsAt)
	}

	return domusage.NewReport(quota, keys, resetsAt)
}
