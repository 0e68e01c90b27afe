// Package governor orchestrates one governance cycle: read the ledger under
// the scope's mutation lock, decide a transition, persist the new state
// atomically, and append the audit and alert records. Every mutation for a
// scope happens with that scope's lock held; evaluation of distinct domains
// never contends.
package governor

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gardenops/cli/internal/alerts"
	"github.com/gardenops/cli/internal/audit"
	"github.com/gardenops/cli/internal/config"
	"github.com/gardenops/cli/internal/ledger"
	"github.com/gardenops/cli/internal/lockmgr"
	"github.com/gardenops/cli/internal/policy"
	"github.com/gardenops/cli/internal/regret"
	"github.com/gardenops/cli/internal/statestore"
)

// Engine wires the ledger, state store, policy, alert log and audit trail
// behind the operations the CLI exposes.
type Engine struct {
	cfg        *config.Config
	pol        policy.Config
	period     time.Duration
	comparison regret.Comparison

	ledger *ledger.Store
	states *statestore.Store
	alerts *alerts.Emitter
	audit  *audit.Trail

	now func() time.Time
}

// New builds an engine from resolved configuration.
func New(cfg *config.Config) (*Engine, error) {
	pol, err := cfg.PolicyConfig()
	if err != nil {
		return nil, err
	}
	period, err := cfg.PeriodDuration()
	if err != nil {
		return nil, err
	}
	comparison, err := cfg.Comparison()
	if err != nil {
		return nil, err
	}
	lockTimeout, err := cfg.LockTimeoutDuration()
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		pol:        pol,
		period:     period,
		comparison: comparison,
		ledger:     ledger.New(cfg.BaseDir),
		states:     statestore.New(cfg.BaseDir, lockTimeout),
		alerts:     alerts.NewEmitter(cfg.BaseDir),
		audit:      audit.NewTrail(cfg.BaseDir),
		now:        time.Now,
	}, nil
}

// Ledger exposes the underlying decision ledger.
func (e *Engine) Ledger() *ledger.Store {
	return e.ledger
}

// Alerts exposes the underlying alert log.
func (e *Engine) Alerts() *alerts.Emitter {
	return e.alerts
}

// Audit exposes the underlying audit trail.
func (e *Engine) Audit() *audit.Trail {
	return e.audit
}

// Result is the outcome of one scope's evaluation or mutation. A nil
// Transition means the scope was inspected and left unchanged; Notices
// explain why.
type Result struct {
	Scope      statestore.Scope
	Transition *policy.Transition
	Audit      *audit.Entry
	Alert      *alerts.Entry
	Notices    []string
}

// RecordDecision appends a graded outcome to a domain's ledger, stamping the
// domain's current level at the time of the decision. The domain's ledger is
// created on first use.
func (e *Engine) RecordDecision(domain string, outcome ledger.Outcome) (*ledger.Record, error) {
	if !ledger.ValidDomainName(domain) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidDomainName, domain)
	}

	scope := statestore.DomainScope(domain)
	lock, err := e.states.AcquireLock(scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release() //nolint:errcheck // flock dies with the process anyway
	}()

	st, err := e.readOrInit(scope)
	if err != nil {
		return nil, err
	}

	rec := ledger.Record{
		Timestamp:   e.now().UTC(),
		Domain:      domain,
		Outcome:     outcome,
		LevelAtTime: st.CurrentLevel,
	}
	if err := e.ledger.Append(rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// EvaluateDomain runs one governance cycle for a domain. A locked domain is
// skipped entirely; an unchanged ledger since the last evaluation is a no-op.
func (e *Engine) EvaluateDomain(domain string) (*Result, error) {
	if !ledger.ValidDomainName(domain) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidDomainName, domain)
	}
	if !e.domainKnown(domain) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}

	scope := statestore.DomainScope(domain)
	lock, err := e.states.AcquireLock(scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release() //nolint:errcheck // flock dies with the process anyway
	}()

	st, err := e.readOrInit(scope)
	if err != nil {
		return nil, err
	}

	res := &Result{Scope: scope}
	if st.Locked {
		res.Notices = append(res.Notices, fmt.Sprintf("domain %s is locked; excluded from evaluation until explicit unlock", domain))
		return res, nil
	}

	records, err := e.ledger.ReadDomain(domain)
	if err != nil {
		return nil, err
	}
	if len(records) == st.EvaluatedThrough {
		res.Notices = append(res.Notices, fmt.Sprintf("domain %s window unchanged since last evaluation; no-op", domain))
		return res, nil
	}

	window := ledger.TrailingOf(records, e.cfg.Autonomy.WindowSize)
	m := regret.FromWindow(window)
	if m.Insufficient {
		res.Notices = append(res.Notices, fmt.Sprintf("domain %s has %d of %d decisions; insufficient data", domain, m.SampleSize, window.Requested))
	}

	tr := policy.EvaluateDomain(st, m, e.pol)
	if tr == nil {
		// Advance the watermark so re-reading the same window stays a no-op.
		// Watermark-only writes are bookkeeping and are not audited.
		next := st.Clone()
		next.EvaluatedThrough = len(records)
		if err := e.states.Write(scope, next); err != nil {
			return nil, err
		}
		return res, nil
	}

	return e.applyTransition(scope, st, tr, evaluateCommand(domain), len(records), res)
}

// EvaluateGlobal runs the global governance cycle over the merged ledgers.
// An ambiguous period comparison suppresses the demotion signal but never
// blocks promotion.
func (e *Engine) EvaluateGlobal() (*Result, error) {
	scope := statestore.GlobalScope()
	lock, err := e.states.AcquireLock(scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release() //nolint:errcheck // flock dies with the process anyway
	}()

	st, err := e.readOrInit(scope)
	if err != nil {
		return nil, err
	}

	res := &Result{Scope: scope}
	records, err := e.ledger.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == st.EvaluatedThrough {
		res.Notices = append(res.Notices, "global window unchanged since last evaluation; no-op")
		return res, nil
	}

	window := ledger.TrailingOf(records, e.cfg.Autonomy.WindowSize)
	m := regret.FromWindow(window)

	delta, err := regret.PeriodOverPeriod(records, e.now().UTC(), e.period, e.comparison, e.cfg.Autonomy.MinPeriodSamples)
	if err != nil {
		res.Notices = append(res.Notices, fmt.Sprintf("period comparison ambiguous (%v); no demotion signal", err))
		delta = nil
	}

	tr := policy.EvaluateGlobal(st, m, delta, e.pol)
	if tr == nil {
		next := st.Clone()
		next.EvaluatedThrough = len(records)
		if err := e.states.Write(scope, next); err != nil {
			return nil, err
		}
		return res, nil
	}

	return e.applyTransition(scope, st, tr, "garden evaluate", len(records), res)
}

// EvaluateAll evaluates every known domain, then the global scope. Domain
// locks are taken and released one at a time; the global lock is never held
// together with a domain lock.
func (e *Engine) EvaluateAll() ([]*Result, error) {
	domains, err := e.knownDomains()
	if err != nil {
		return nil, err
	}

	var results []*Result
	for _, domain := range domains {
		res, err := e.EvaluateDomain(domain)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	res, err := e.EvaluateGlobal()
	if err != nil {
		return results, err
	}
	return append(results, res), nil
}

// DemoteGlobal forces a one-level global demotion, attributed to command in
// the audit trail.
func (e *Engine) DemoteGlobal(command, reason string) (*Result, error) {
	scope := statestore.GlobalScope()
	lock, err := e.states.AcquireLock(scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release() //nolint:errcheck // flock dies with the process anyway
	}()

	st, err := e.readOrInit(scope)
	if err != nil {
		return nil, err
	}

	tr := policy.ManualGlobalDemotion(st, reason)
	return e.applyTransition(scope, st, tr, command, st.EvaluatedThrough, &Result{Scope: scope})
}

// DemoteDomain forces a domain demotion. With lockDomain set the domain is
// pinned to level 0 until an explicit unlock; otherwise the level drops by
// one.
func (e *Engine) DemoteDomain(domain, command, reason string, lockDomain bool) (*Result, error) {
	if !ledger.ValidDomainName(domain) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidDomainName, domain)
	}
	if !e.domainKnown(domain) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}

	scope := statestore.DomainScope(domain)
	lock, err := e.states.AcquireLock(scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release() //nolint:errcheck // flock dies with the process anyway
	}()

	st, err := e.readOrInit(scope)
	if err != nil {
		return nil, err
	}

	res := &Result{Scope: scope}
	var tr *policy.Transition
	if lockDomain {
		tr = lockmgr.Lock(st, reason)
		if tr == nil {
			res.Notices = append(res.Notices, fmt.Sprintf("domain %s is already locked; no-op", domain))
			return res, nil
		}
	} else {
		tr = policy.ManualDomainDemotion(st, reason, false)
	}
	return e.applyTransition(scope, st, tr, command, st.EvaluatedThrough, res)
}

// UnlockDomain explicitly clears a domain lock. The level stays at 0; the
// domain re-enters evaluation on the next cycle.
func (e *Engine) UnlockDomain(domain, command, reason string) (*Result, error) {
	if !ledger.ValidDomainName(domain) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidDomainName, domain)
	}
	if !e.domainKnown(domain) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}

	scope := statestore.DomainScope(domain)
	lock, err := e.states.AcquireLock(scope)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release() //nolint:errcheck // flock dies with the process anyway
	}()

	st, err := e.readOrInit(scope)
	if err != nil {
		return nil, err
	}

	tr, err := lockmgr.Unlock(st, reason)
	if err != nil {
		return nil, err
	}
	return e.applyTransition(scope, st, tr, command, st.EvaluatedThrough, &Result{Scope: scope})
}

// ScopeStatus is the read-only snapshot of one scope.
type ScopeStatus struct {
	Scope   statestore.Scope
	State   *statestore.State
	Metrics regret.Metrics
}

// Status is the read-only snapshot across every scope.
type Status struct {
	Global  ScopeStatus
	Domains []ScopeStatus
}

// Status reads the current levels and trailing metrics for every scope. It
// takes no locks: status is a read path and reads never block mutators.
func (e *Engine) Status() (*Status, error) {
	globalState, err := e.readOrInit(statestore.GlobalScope())
	if err != nil {
		return nil, err
	}
	globalWindow, err := e.ledger.TrailingAll(e.cfg.Autonomy.WindowSize)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Global: ScopeStatus{
			Scope:   statestore.GlobalScope(),
			State:   globalState,
			Metrics: regret.FromWindow(globalWindow),
		},
	}

	domains, err := e.knownDomains()
	if err != nil {
		return nil, err
	}
	for _, domain := range domains {
		scope := statestore.DomainScope(domain)
		st, err := e.readOrInit(scope)
		if err != nil {
			return nil, err
		}
		window, err := e.ledger.Trailing(domain, e.cfg.Autonomy.WindowSize)
		if err != nil {
			return nil, err
		}
		status.Domains = append(status.Domains, ScopeStatus{
			Scope:   scope,
			State:   st,
			Metrics: regret.FromWindow(window),
		})
	}
	return status, nil
}

// applyTransition persists a decided transition and appends its audit entry,
// plus an alert when the transition is breach-driven. The caller holds the
// scope lock.
func (e *Engine) applyTransition(scope statestore.Scope, st *statestore.State, tr *policy.Transition, command string, evaluatedThrough int, res *Result) (*Result, error) {
	next := policy.Apply(st, tr)
	next.EvaluatedThrough = evaluatedThrough

	// Timestamps never move backward across a scope's transitions, even
	// under clock skew.
	ts := e.now().UTC()
	if !ts.After(st.LastTransitionAt) {
		ts = st.LastTransitionAt.Add(time.Nanosecond)
	}
	next.LastTransitionAt = ts

	if err := e.states.Write(scope, next); err != nil {
		return nil, err
	}

	entry := audit.Entry{
		Command:     command,
		LevelBefore: tr.LevelBefore,
		LevelAfter:  tr.LevelAfter,
		LockBefore:  tr.LockBefore,
		LockAfter:   tr.LockAfter,
		Reason:      tr.Reason,
		StatePath:   e.states.Path(scope),
		Timestamp:   ts,
	}
	if err := e.audit.Record(entry); err != nil {
		return nil, err
	}

	res.Transition = tr
	res.Audit = &entry

	if tr.Breach != nil {
		alert, err := e.alerts.Emit(tr)
		if err != nil {
			return nil, err
		}
		res.Alert = alert
	}
	return res, nil
}

// readOrInit loads a scope's state, lazily defaulting a never-written scope
// to level 0 unlocked. Corruption is never papered over.
func (e *Engine) readOrInit(scope statestore.Scope) (*statestore.State, error) {
	st, err := e.states.Read(scope)
	if err == nil {
		return st, nil
	}
	if errors.Is(err, statestore.ErrNotFound) {
		return statestore.Init(scope), nil
	}
	return nil, err
}

// domainKnown reports whether a domain has a ledger file or persisted state.
func (e *Engine) domainKnown(domain string) bool {
	if _, err := os.Stat(e.ledger.Path(domain)); err == nil {
		return true
	}
	if _, err := os.Stat(e.states.Path(statestore.DomainScope(domain))); err == nil {
		return true
	}
	return false
}

// knownDomains merges domains seen in the ledger with domains holding state.
func (e *Engine) knownDomains() ([]string, error) {
	fromLedger, err := e.ledger.Domains()
	if err != nil {
		return nil, err
	}
	fromState, err := e.states.Domains()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(fromLedger))
	domains := make([]string, 0, len(fromLedger)+len(fromState))
	for _, d := range append(fromLedger, fromState...) {
		if seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains, nil
}

func evaluateCommand(domain string) string {
	return fmt.Sprintf("garden evaluate --domain %s", domain)
}
