package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrAlreadyClaimed = errors.New("account already claimed")

// ClaimConflictError reports the session currently holding an account.
type ClaimConflictError struct {
	Account string
	Owner   string
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("account %s already claimed by session %s", e.Account, e.Owner)
}

func (e *ClaimConflictError) Unwrap() error {
	return ErrAlreadyClaimed
}

// Claim records which session observes an account.
type Claim struct {
	Account   string
	Owner     string
	ClaimedAt time.Time
}

// Snapshot is a point-in-time view of the claimed accounts.
type Snapshot struct {
	Accounts []string `json:"connectedAccounts"`
	Count    int      `json:"totalConnections"`
}

// ClaimObserver receives claim changes in the order they are applied.
// Implementations are invoked while the registry lock is held and must not block.
type ClaimObserver interface {
	Claimed(claim Claim)
	Released(account, owner string)
}

// Mirror publishes claims to an external store for other instances to inspect.
type Mirror interface {
	ClaimObserver
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
