package health

import "context"

// CachePinger checks response cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// KeyBudgets exposes the remaining budget of every key.
type KeyBudgets interface {
	Status() []int
}
