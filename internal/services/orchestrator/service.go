package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"kitakita/internal/agents"
	"kitakita/pkg/errors"
	"kitakita/pkg/logger"
)

// Agent kinds the orchestrator can build.
const (
	KindSavingsCoach  = "savings_coach"
	KindCategorizer   = "categorizer"
	KindWealthPlanner = "wealth_planner"
)

// Agent is what the orchestrator needs from a specialized agent.
type Agent interface {
	agents.Maintainable
	Decide(ctx context.Context, dctx agents.DecisionContext, options []agents.Option) agents.Decision
}

type poolKey struct {
	userID uuid.UUID
	kind   string
}

type pooledAgent struct {
	agent    Agent
	lastUsed time.Time
}

// Service owns the live agent instances. Agents are built lazily per user and
// kind, registered for recovery-probe sweeps, and evicted after sitting idle.
type Service struct {
	deps     agents.Deps
	registry *agents.Registry
	idleTTL  time.Duration
	log      *logger.Logger

	mu   sync.Mutex
	pool map[poolKey]*pooledAgent
}

// NewService creates the orchestrator. registry must not be nil; the recovery
// probe worker sweeps it.
func NewService(deps agents.Deps, registry *agents.Registry, idleTTL time.Duration) (*Service, error) {
	if deps.Gateway == nil || deps.Store == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gateway and store are required")
	}
	if registry == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "registry is required")
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	return &Service{
		deps:     deps,
		registry: registry,
		idleTTL:  idleTTL,
		log:      logger.Get().With("service", "orchestrator"),
		pool:     make(map[poolKey]*pooledAgent),
	}, nil
}

// Advise routes a question to the user's agent of the given kind, creating the
// agent on first use. The returned decision is never an error-shaped nil: a
// broken pipeline yields the degraded sentinel, so the only error paths here
// are an unknown kind and a failed agent construction.
func (s *Service) Advise(ctx context.Context, userID uuid.UUID, kind, question string) (agents.Decision, error) {
	agent, err := s.acquire(ctx, userID, kind)
	if err != nil {
		return agents.Decision{}, err
	}

	dctx := agents.DecisionContext{}
	if question != "" {
		dctx["question"] = question
	}
	return agent.Decide(ctx, dctx, nil), nil
}

// AgentState reports the lifecycle state of the user's agent, or false when
// none has been created yet.
func (s *Service) AgentState(userID uuid.UUID, kind string) (agents.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pool[poolKey{userID: userID, kind: kind}]; ok {
		return p.agent.State(), true
	}
	return "", false
}

// Len returns the number of pooled agents.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}

// acquire returns the pooled agent, building it on a miss. Construction runs
// under the pool lock so two concurrent requests never build twice; the
// factories only touch the data store, so the hold is bounded.
func (s *Service) acquire(ctx context.Context, userID uuid.UUID, kind string) (Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneIdleLocked()

	key := poolKey{userID: userID, kind: kind}
	if p, ok := s.pool[key]; ok {
		p.lastUsed = time.Now()
		return p.agent, nil
	}

	agent, err := s.build(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	s.pool[key] = &pooledAgent{agent: agent, lastUsed: time.Now()}
	s.registry.Register(agent)
	s.log.Infof("Created %s agent %s for user %s", kind, agent.ID(), userID)
	return agent, nil
}

func (s *Service) build(ctx context.Context, userID uuid.UUID, kind string) (Agent, error) {
	switch kind {
	case KindSavingsCoach:
		return agents.NewSavingsCoach(ctx, userID, s.deps)
	case KindCategorizer:
		return agents.NewCategorizer(ctx, userID, s.deps)
	case KindWealthPlanner:
		return agents.NewWealthPlanner(ctx, userID, s.deps)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown agent kind %q", kind)
	}
}

// pruneIdleLocked drops agents idle past the TTL. Caller holds s.mu.
func (s *Service) pruneIdleLocked() {
	cutoff := time.Now().Add(-s.idleTTL)
	for key, p := range s.pool {
		if p.lastUsed.Before(cutoff) {
			s.registry.Unregister(p.agent.ID())
			delete(s.pool, key)
			s.log.Debugf("Evicted idle %s agent for user %s", key.kind, key.userID)
		}
	}
}
