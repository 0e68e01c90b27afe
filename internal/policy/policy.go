// Package policy decides autonomy level transitions from windowed regret
// statistics. Evaluation is a pure function of (state, metrics, config);
// nothing here reads storage or holds locks, which keeps the safety rules
// trivially testable.
//
// Safety is asymmetric: within one evaluation cycle a demotion or lock always
// wins over a promotion for the same scope.
package policy

import (
	"fmt"

	"github.com/gardenops/cli/internal/regret"
	"github.com/gardenops/cli/internal/statestore"
)

// Breach kinds. These names flow into the alert log's metric_breach.kind
// field and select the remediation command.
const (
	BreachGlobalRegret = "global-regret-breach"
	BreachDomainRegret = "domain-regret-breach"
)

// DemotionMode selects how a global breach lowers the level.
type DemotionMode string

const (
	// DemoteStep lowers the global level by one.
	DemoteStep DemotionMode = "step"

	// DemoteFloor resets the global level to the configured safety floor.
	DemoteFloor DemotionMode = "floor"
)

// Config holds the policy thresholds. Defaults live in the config package;
// policy only consumes resolved values.
type Config struct {
	MaxLevel              int
	PromoteMinAccuracy    float64
	PromoteMaxRegret      float64
	DomainRegretThreshold float64
	GlobalRegretDelta     float64
	DemotionMode          DemotionMode
	SafetyFloor           int
}

// Kind classifies a transition.
type Kind string

const (
	KindPromotion Kind = "promotion"
	KindDemotion  Kind = "demotion"
	KindLock      Kind = "lock"
	KindUnlock    Kind = "unlock"
)

// Breach records the metric violation behind a demotion or lock.
type Breach struct {
	Kind      string  `json:"kind"`
	Observed  float64 `json:"observed"`
	Threshold float64 `json:"threshold"`
}

// Transition is a decided state change for one scope. Nil means no change.
type Transition struct {
	Scope       statestore.Scope
	Kind        Kind
	LevelBefore int
	LevelAfter  int
	LockBefore  bool
	LockAfter   bool
	Reason      string

	// Breach is set only on breach-driven demotions/locks; it drives alert
	// emission. Operator-forced transitions carry no breach.
	Breach *Breach
}

// EvaluateDomain decides the transition for one domain from its trailing
// window. A locked domain is excluded from evaluation entirely — its level
// stays pinned until an explicit unlock. An insufficient window produces no
// transition in either direction.
func EvaluateDomain(st *statestore.State, m regret.Metrics, cfg Config) *Transition {
	if st.Locked {
		return nil
	}
	if m.Insufficient {
		return nil
	}

	scope := statestore.DomainScope(st.DomainID)

	// Demotion/lock is checked first and wins any conflict with promotion.
	if m.RegretRate > cfg.DomainRegretThreshold {
		return &Transition{
			Scope:       scope,
			Kind:        KindLock,
			LevelBefore: st.CurrentLevel,
			LevelAfter:  0,
			LockBefore:  false,
			LockAfter:   true,
			Reason: fmt.Sprintf("regret rate %.2f breached domain threshold %.2f over trailing %d decisions",
				m.RegretRate, cfg.DomainRegretThreshold, m.SampleSize),
			Breach: &Breach{Kind: BreachDomainRegret, Observed: m.RegretRate, Threshold: cfg.DomainRegretThreshold},
		}
	}

	if promotes(m, cfg) && st.CurrentLevel < cfg.MaxLevel {
		return &Transition{
			Scope:       scope,
			Kind:        KindPromotion,
			LevelBefore: st.CurrentLevel,
			LevelAfter:  st.CurrentLevel + 1,
			Reason: fmt.Sprintf("accuracy %.2f over trailing %d decisions met promotion thresholds",
				m.Accuracy, m.SampleSize),
		}
	}
	return nil
}

// EvaluateGlobal decides the global transition. delta carries the
// period-over-period comparison and may be nil when the comparison was
// ambiguous; ambiguity means no demotion signal, and promotion is still
// considered from the trailing window.
func EvaluateGlobal(st *statestore.State, m regret.Metrics, delta *regret.PeriodDelta, cfg Config) *Transition {
	scope := statestore.GlobalScope()

	// Demotion first: safety has strict priority over capability expansion.
	if delta != nil && delta.Increase > cfg.GlobalRegretDelta {
		after := st.CurrentLevel - 1
		if cfg.DemotionMode == DemoteFloor {
			after = cfg.SafetyFloor
		}
		if after < 0 {
			after = 0
		}
		if after > st.CurrentLevel {
			after = st.CurrentLevel
		}
		return &Transition{
			Scope:       scope,
			Kind:        KindDemotion,
			LevelBefore: st.CurrentLevel,
			LevelAfter:  after,
			Reason: fmt.Sprintf("period-over-period regret increase %.2f breached %.2f (%s); flagged for human review",
				delta.Increase, cfg.GlobalRegretDelta, delta.Mode),
			Breach: &Breach{Kind: BreachGlobalRegret, Observed: delta.Increase, Threshold: cfg.GlobalRegretDelta},
		}
	}

	if !m.Insufficient && promotes(m, cfg) && st.CurrentLevel < cfg.MaxLevel {
		return &Transition{
			Scope:       scope,
			Kind:        KindPromotion,
			LevelBefore: st.CurrentLevel,
			LevelAfter:  st.CurrentLevel + 1,
			Reason: fmt.Sprintf("accuracy %.2f over trailing %d decisions met promotion thresholds",
				m.Accuracy, m.SampleSize),
		}
	}
	return nil
}

func promotes(m regret.Metrics, cfg Config) bool {
	return m.Accuracy >= cfg.PromoteMinAccuracy && m.RegretRate <= cfg.PromoteMaxRegret
}

// ManualGlobalDemotion builds an operator-forced global demotion.
func ManualGlobalDemotion(st *statestore.State, reason string) *Transition {
	after := st.CurrentLevel - 1
	if after < 0 {
		after = 0
	}
	return &Transition{
		Scope:       statestore.GlobalScope(),
		Kind:        KindDemotion,
		LevelBefore: st.CurrentLevel,
		LevelAfter:  after,
		Reason:      reason,
	}
}

// ManualDomainDemotion builds an operator-forced domain demotion. With lock
// set the domain is pinned to level 0 until an explicit unlock.
func ManualDomainDemotion(st *statestore.State, reason string, lock bool) *Transition {
	tr := &Transition{
		Scope:       statestore.DomainScope(st.DomainID),
		Kind:        KindDemotion,
		LevelBefore: st.CurrentLevel,
		LockBefore:  st.Locked,
		LockAfter:   st.Locked,
		Reason:      reason,
	}
	if lock {
		tr.Kind = KindLock
		tr.LevelAfter = 0
		tr.LockAfter = true
		return tr
	}
	tr.LevelAfter = st.CurrentLevel - 1
	if tr.LevelAfter < 0 {
		tr.LevelAfter = 0
	}
	return tr
}

// Apply folds a transition into a scope's next state. The caller stamps
// LastTransitionAt and persists the result.
func Apply(st *statestore.State, tr *Transition) *statestore.State {
	next := st.Clone()
	next.CurrentLevel = tr.LevelAfter
	next.Locked = tr.LockAfter
	if tr.LockAfter {
		next.LockReason = tr.Reason
	} else {
		next.LockReason = ""
	}
	return next
}
