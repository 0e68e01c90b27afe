package policy

import (
	"testing"

	"github.com/gardenops/cli/internal/regret"
	"github.com/gardenops/cli/internal/statestore"
)

func testConfig() Config {
	return Config{
		MaxLevel:              4,
		PromoteMinAccuracy:    0.90,
		PromoteMaxRegret:      0.05,
		DomainRegretThreshold: 0.05,
		GlobalRegretDelta:     0.05,
		DemotionMode:          DemoteStep,
	}
}

func domainState(level int, locked bool) *statestore.State {
	return &statestore.State{DomainID: "payments", CurrentLevel: level, Locked: locked}
}

func TestDomainPromotion(t *testing.T) {
	m := regret.Metrics{RegretRate: 0.05, Accuracy: 0.95, SampleSize: 20}
	tr := EvaluateDomain(domainState(0, false), m, testConfig())
	if tr == nil {
		t.Fatal("expected promotion transition")
	}
	if tr.Kind != KindPromotion || tr.LevelAfter != 1 || tr.LockAfter {
		t.Errorf("unexpected transition: %+v", tr)
	}
	if tr.Breach != nil {
		t.Error("promotion must not carry a breach")
	}
}

func TestDomainPromotionCappedAtMaxLevel(t *testing.T) {
	m := regret.Metrics{RegretRate: 0, Accuracy: 1, SampleSize: 20}
	if tr := EvaluateDomain(domainState(4, false), m, testConfig()); tr != nil {
		t.Errorf("expected no transition at max level, got %+v", tr)
	}
}

func TestDomainLockOnBreach(t *testing.T) {
	m := regret.Metrics{RegretRate: 0.15, Accuracy: 0.85, SampleSize: 20}
	tr := EvaluateDomain(domainState(2, false), m, testConfig())
	if tr == nil {
		t.Fatal("expected lock transition")
	}
	if tr.Kind != KindLock || tr.LevelAfter != 0 || !tr.LockAfter {
		t.Errorf("unexpected transition: %+v", tr)
	}
	if tr.Reason == "" {
		t.Error("lock must record a reason")
	}
	if tr.Breach == nil || tr.Breach.Kind != BreachDomainRegret {
		t.Errorf("expected domain regret breach, got %+v", tr.Breach)
	}
}

func TestLockedDomainExcludedFromEvaluation(t *testing.T) {
	m := regret.Metrics{RegretRate: 0, Accuracy: 1, SampleSize: 20}
	if tr := EvaluateDomain(domainState(0, true), m, testConfig()); tr != nil {
		t.Errorf("locked domain must not be evaluated, got %+v", tr)
	}
}

func TestInsufficientDataIsNoTransition(t *testing.T) {
	m := regret.Metrics{SampleSize: 7, Insufficient: true}
	if tr := EvaluateDomain(domainState(1, false), m, testConfig()); tr != nil {
		t.Errorf("insufficient data must yield no transition, got %+v", tr)
	}
}

// With a low enough domain threshold, a window can satisfy both the
// promotion and the lock condition; the lock must win.
func TestDemotionBeatsPromotion(t *testing.T) {
	cfg := testConfig()
	cfg.DomainRegretThreshold = 0.01
	m := regret.Metrics{RegretRate: 0.05, Accuracy: 0.95, SampleSize: 20}

	tr := EvaluateDomain(domainState(1, false), m, cfg)
	if tr == nil || tr.Kind != KindLock {
		t.Fatalf("expected lock to win over promotion, got %+v", tr)
	}
}

func TestGlobalDemotionStep(t *testing.T) {
	st := &statestore.State{CurrentLevel: 3}
	delta := &regret.PeriodDelta{Increase: 0.08, Mode: regret.ComparisonAbsolute}
	m := regret.Metrics{RegretRate: 0, Accuracy: 1, SampleSize: 20}

	tr := EvaluateGlobal(st, m, delta, testConfig())
	if tr == nil || tr.Kind != KindDemotion || tr.LevelAfter != 2 {
		t.Fatalf("expected step demotion to 2, got %+v", tr)
	}
	if tr.Breach == nil || tr.Breach.Kind != BreachGlobalRegret {
		t.Errorf("expected global regret breach, got %+v", tr.Breach)
	}
}

func TestGlobalDemotionFloor(t *testing.T) {
	cfg := testConfig()
	cfg.DemotionMode = DemoteFloor
	cfg.SafetyFloor = 1

	st := &statestore.State{CurrentLevel: 4}
	delta := &regret.PeriodDelta{Increase: 0.10, Mode: regret.ComparisonAbsolute}

	tr := EvaluateGlobal(st, regret.Metrics{Insufficient: true}, delta, cfg)
	if tr == nil || tr.LevelAfter != 1 {
		t.Fatalf("expected floor demotion to 1, got %+v", tr)
	}
}

func TestGlobalDemotionNeverBelowZero(t *testing.T) {
	st := &statestore.State{CurrentLevel: 0}
	delta := &regret.PeriodDelta{Increase: 0.10}
	tr := EvaluateGlobal(st, regret.Metrics{Insufficient: true}, delta, testConfig())
	if tr == nil || tr.LevelAfter != 0 {
		t.Fatalf("expected demotion clamped at 0, got %+v", tr)
	}
}

func TestGlobalAmbiguousDeltaStillPromotes(t *testing.T) {
	st := &statestore.State{CurrentLevel: 1}
	m := regret.Metrics{RegretRate: 0.05, Accuracy: 0.95, SampleSize: 20}

	tr := EvaluateGlobal(st, m, nil, testConfig())
	if tr == nil || tr.Kind != KindPromotion || tr.LevelAfter != 2 {
		t.Fatalf("expected promotion with nil delta, got %+v", tr)
	}
}

func TestGlobalDemotionBeatsPromotion(t *testing.T) {
	st := &statestore.State{CurrentLevel: 2}
	m := regret.Metrics{RegretRate: 0, Accuracy: 1, SampleSize: 20}
	delta := &regret.PeriodDelta{Increase: 0.06}

	tr := EvaluateGlobal(st, m, delta, testConfig())
	if tr == nil || tr.Kind != KindDemotion {
		t.Fatalf("expected demotion to win, got %+v", tr)
	}
}

func TestManualTransitions(t *testing.T) {
	g := ManualGlobalDemotion(&statestore.State{CurrentLevel: 0}, "forced")
	if g.LevelAfter != 0 {
		t.Errorf("manual global demotion clamped: got %d", g.LevelAfter)
	}

	d := ManualDomainDemotion(domainState(2, false), "operator hold", true)
	if d.Kind != KindLock || d.LevelAfter != 0 || !d.LockAfter {
		t.Errorf("manual lock: %+v", d)
	}

	d2 := ManualDomainDemotion(domainState(2, false), "step down", false)
	if d2.Kind != KindDemotion || d2.LevelAfter != 1 || d2.LockAfter {
		t.Errorf("manual demotion: %+v", d2)
	}
}

func TestApplyFoldsTransition(t *testing.T) {
	st := domainState(2, false)
	tr := EvaluateDomain(st, regret.Metrics{RegretRate: 0.2, Accuracy: 0.8, SampleSize: 20}, testConfig())
	next := Apply(st, tr)

	if next.CurrentLevel != 0 || !next.Locked || next.LockReason == "" {
		t.Errorf("applied state: %+v", next)
	}
	if st.CurrentLevel != 2 || st.Locked {
		t.Error("Apply mutated the input state")
	}

	// Unlock clears the recorded reason.
	unlock := &Transition{Scope: statestore.DomainScope("payments"), Kind: KindUnlock, LevelBefore: 0, LevelAfter: 0, LockBefore: true, LockAfter: false, Reason: "reviewed"}
	cleared := Apply(next, unlock)
	if cleared.Locked || cleared.LockReason != "" {
		t.Errorf("unlock did not clear lock state: %+v", cleared)
	}
}
