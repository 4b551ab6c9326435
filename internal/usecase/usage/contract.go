package usage

import "time"

// PoolReader provides read-only access to key budgets.
type PoolReader interface {
	Status() []int
	Quota() int
}

// ScheduleReader reports when budgets are restored next.
type ScheduleReader interface {
	NextRun() time.Time
}
