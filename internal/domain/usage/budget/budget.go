package budget

// Budget is a point-in-time view of one key's quota.
type Budget struct {
	index     int
	limit     int
	remaining int
	resetsAt  int64 // unix millis, converted to RFC 3339 at transport layer
}

// New creates a Budget snapshot for the key at registration position index.
func New(index, limit, remaining int, resetsAt int64) Budget {
	return Budget{
		index:     index,
		limit:     limit,
		remaining: remaining,
		resetsAt:  resetsAt,
	}
}

// Index returns the key's registration position. Keys themselves are never exposed.
func (b Budget) Index() int { return b.index }

// Limit returns the per-period quota.
func (b Budget) Limit() int { return b.limit }

// Remaining returns units left until the next reset.
func (b Budget) Remaining() int { return b.remaining }

// IsExhausted reports whether the key can serve nothing until the next reset.
func (b Budget) IsExhausted() bool { return b.remaining <= 0 }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }
