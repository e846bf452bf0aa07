// Package registry enforces that an external account is observed by at most one session.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

// Registry is the process-wide account -> claim table.
type Registry struct {
	mu       sync.Mutex
	claims   map[string]Claim
	observer ClaimObserver
	now      func() time.Time
}

// New creates a Registry. observer may be nil.
func New(observer ClaimObserver) *Registry {
	return &Registry{
		claims:   make(map[string]Claim),
		observer: observer,
		now:      time.Now,
	}
}

// Acquire claims account for owner. A conflicting claim is left untouched and
// reported as a *ClaimConflictError. Re-acquiring one's own claim succeeds.
func (r *Registry) Acquire(account, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.claims[account]; ok {
		if existing.Owner == owner {
			return nil
		}
		return &ClaimConflictError{Account: account, Owner: existing.Owner}
	}

	claim := Claim{Account: account, Owner: owner, ClaimedAt: r.now()}
	r.claims[account] = claim
	if r.observer != nil {
		r.observer.Claimed(claim)
	}

	l := log.L()
	l.Info().Str(log.FieldAccount, account).Str(log.FieldSessionID, owner).Msg("account claimed")
	return nil
}

// Release drops owner's claim on account. It reports whether a claim was removed;
// releasing an unclaimed account or someone else's claim is a no-op.
func (r *Registry) Release(account, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.claims[account]
	if !ok || existing.Owner != owner {
		return false
	}

	delete(r.claims, account)
	if r.observer != nil {
		r.observer.Released(account, owner)
	}

	l := log.L()
	l.Info().Str(log.FieldAccount, account).Str(log.FieldSessionID, owner).Msg("account released")
	return true
}

// Owner returns the session holding account, if any.
func (r *Registry) Owner(account string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[account]
	return c.Owner, ok
}

// Snapshot returns the claimed accounts in sorted order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	accounts := make([]string, 0, len(r.claims))
	for account := range r.claims {
		accounts = append(accounts, account)
	}
	r.mu.Unlock()

	sort.Strings(accounts)
	return Snapshot{Accounts: accounts, Count: len(accounts)}
}
