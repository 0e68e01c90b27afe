// Package lockmgr tracks per-domain lock state, independent of level
// arithmetic. Locking happens automatically (policy breach) or manually
// (operator command); unlocking is only ever explicit — the system never
// auto-unlocks a domain.
package lockmgr

import (
	"fmt"

	"github.com/gardenops/cli/internal/policy"
	"github.com/gardenops/cli/internal/statestore"
)

// Lock builds the transition that pins a domain to level 0 and marks it
// locked. Locking an already-locked domain is a no-op (nil) so repeated
// breach evaluations cannot stack transitions.
func Lock(st *statestore.State, reason string) *policy.Transition {
	if st.Locked {
		return nil
	}
	return &policy.Transition{
		Scope:       statestore.DomainScope(st.DomainID),
		Kind:        policy.KindLock,
		LevelBefore: st.CurrentLevel,
		LevelAfter:  0,
		LockBefore:  false,
		LockAfter:   true,
		Reason:      reason,
	}
}

// Unlock builds the explicit operator unlock transition. The level stays at
// 0; regaining levels requires subsequent, separately-evaluated promotions.
// Unlocking an unlocked domain returns ErrNotLocked so the no-op is visible
// to the operator rather than silently audited.
func Unlock(st *statestore.State, reason string) (*policy.Transition, error) {
	if !st.Locked {
		return nil, fmt.Errorf("%w: %s", ErrNotLocked, st.DomainID)
	}
	return &policy.Transition{
		Scope:       statestore.DomainScope(st.DomainID),
		Kind:        policy.KindUnlock,
		LevelBefore: st.CurrentLevel,
		LevelAfter:  st.CurrentLevel,
		LockBefore:  true,
		LockAfter:   false,
		Reason:      reason,
	}, nil
}
