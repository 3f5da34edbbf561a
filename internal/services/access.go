package services

// Allowlist is the access-control predicate for context-mutating operations.
// An empty allowlist admits nobody. It is immutable after construction and
// safe for concurrent use.
type Allowlist struct {
	ids map[int64]struct{}
}

// NewAllowlist builds an Allowlist from user ids. Duplicates are ignored.
func NewAllowlist(ids []int64) *Allowlist {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &Allowlist{ids: m}
}

// Allows reports whether userID is on the list. A nil Allowlist admits nobody.
func (a *Allowlist) Allows(userID int64) bool {
	if a == nil {
		return false
	}
	_, ok := a.ids[userID]
	return ok
}

// Len reports the number of distinct users on the list.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ids)
}
