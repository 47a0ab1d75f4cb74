package authz

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// AuditSink receives one record per audited decision. Implementations are
// best-effort: a sink failure is logged by the engine and never reverses the
// decision itself.
type AuditSink interface {
	RecordDecision(ctx context.Context, actorID uuid.UUID, resourceID *uuid.UUID, action Action, kind string, allowed bool, reason Reason) error
}

// Engine evaluates the permission precedence chain. It owns no data and holds
// no locks: every call is a pure function of the repository state plus
// wall-clock time, with the audit record as its only side effect.
type Engine struct {
	repo       Repository
	resolver   *Resolver
	sink       AuditSink
	logger     *slog.Logger
	onDecision func(reason Reason, allowed bool)
}

// NewEngine constructs an Engine. The sink may be nil, in which case decisions
// are not audited (only sensible in tests).
func NewEngine(repo Repository, sink AuditSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:     repo,
		resolver: NewResolver(repo),
		sink:     sink,
		logger:   logger,
	}
}

// SetDecisionHook installs an observer invoked once per settled decision,
// audited or not. Used to feed metrics.
func (e *Engine) SetDecisionHook(fn func(reason Reason, allowed bool)) {
	e.onDecision = fn
}

// Decide evaluates the precedence chain and writes one audit record.
func (e *Engine) Decide(ctx context.Context, actor Actor, resource Resource, action Action) (Decision, error) {
	return e.decide(ctx, actor, resource, action, true)
}

// Probe evaluates the precedence chain without auditing. Used for exploratory
// checks such as list filtering and share-permission lookups.
func (e *Engine) Probe(ctx context.Context, actor Actor, resource Resource, action Action) (Decision, error) {
	return e.decide(ctx, actor, resource, action, false)
}

// decide is the strict precedence chain: the first rule producing a definite
// answer wins and later rules are not consulted.
func (e *Engine) decide(ctx context.Context, actor Actor, resource Resource, action Action, audited bool) (Decision, error) {
	decision, err := e.evaluate(ctx, actor, resource, action)
	if err != nil {
		return Decision{}, err
	}
	if e.onDecision != nil {
		e.onDecision(decision.Reason, decision.Allowed)
	}
	if audited {
		e.record(ctx, actor.ID, resource, action, decision)
	}
	return decision, nil
}

func (e *Engine) evaluate(ctx context.Context, actor Actor, resource Resource, action Action) (Decision, error) {
	// 1. Superuser bypasses everything.
	if actor.IsSuperuser {
		return Decision{Allowed: true, Reason: ReasonSuperuser}, nil
	}

	// 2. Personal override, allow or deny, outranks roles and ownership.
	override, err := e.repo.EffectiveOverride(ctx, actor.ID, resource.ID, action)
	if err != nil {
		return Decision{}, err
	}
	if override != nil {
		return Decision{Allowed: override.Allowed, Reason: ReasonPersonal}, nil
	}

	// 3. Owners act freely on their own resources.
	if resource.OwnerID == actor.ID {
		return Decision{Allowed: true, Reason: ReasonOwner}, nil
	}

	// 4. Public resources are readable by anyone. Archiving suspends the
	// public grant without touching ownership or overrides.
	if resource.IsPublic && !resource.IsArchived && action == ActionRead {
		return Decision{Allowed: true, Reason: ReasonPublic}, nil
	}

	// 5. Role grants, highest priority first, first matching grant wins.
	roles, err := e.resolver.Expand(ctx, actor)
	if err != nil {
		return Decision{}, err
	}
	sortByPriority(roles)
	for _, role := range roles {
		grants, err := e.repo.GrantsFor(ctx, role.ID, resource.CategoryID, action)
		if err != nil {
			return Decision{}, err
		}
		for _, grant := range grants {
			if !scopeMatches(grant.Scope, actor, resource) {
				continue
			}
			if !grant.Condition.Match(actor, resource) {
				continue
			}
			if grant.Allowed {
				return Decision{Allowed: true, Reason: ReasonRole}, nil
			}
			// A matching deny grant settles the chain; the audit tag for
			// any negative role outcome is "denied".
			return Decision{Allowed: false, Reason: ReasonDenied}, nil
		}
	}

	return Decision{Allowed: false, Reason: ReasonDenied}, nil
}

// record appends the audit entry. Audit is best-effort: failures surface on
// the operator log channel and the decision stands.
func (e *Engine) record(ctx context.Context, actorID uuid.UUID, resource Resource, action Action, decision Decision) {
	if e.sink == nil {
		return
	}
	resourceID := resource.ID
	if err := e.sink.RecordDecision(ctx, actorID, &resourceID, action, resource.Kind, decision.Allowed, decision.Reason); err != nil {
		e.logger.Error("audit record failed",
			slog.String("actor", actorID.String()),
			slog.String("resource", resourceID.String()),
			slog.String("action", string(action)),
			slog.Any("error", err))
	}
}
