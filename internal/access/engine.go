package access

import (
	"context"

	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/observability"
	"github.com/upb/anubis/services"
	"go.uber.org/zap"
)

// Vote is a single voter's opinion on a request
type Vote int

const (
	Abstain Vote = iota
	Grant
	Deny
)

func (v Vote) String() string {
	switch v {
	case Grant:
		return "grant"
	case Deny:
		return "deny"
	default:
		return "abstain"
	}
}

// Request is what voters decide on. Path is relative to the application root.
type Request struct {
	Principal *auth.Principal
	Method    string
	Path      string
}

// Voter casts a vote on a request
type Voter interface {
	Vote(ctx context.Context, req *Request) Vote
}

// VoterFunc adapts a function to Voter
type VoterFunc func(ctx context.Context, req *Request) Vote

// Vote implements Voter
func (f VoterFunc) Vote(ctx context.Context, req *Request) Vote {
	return f(ctx, req)
}

// NamedVoter labels a voter for logging
type NamedVoter struct {
	Name  string
	Voter Voter
}

// Decision is the outcome of evaluating a request
type Decision struct {
	Allowed bool
	Voter   string // the voter that refused, empty when allowed
	Vote    Vote
}

// Engine runs the voters in order and grants only if all of them grant
type Engine struct {
	voters  []NamedVoter
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewEngine creates an Engine. An engine without voters denies everything.
func NewEngine(metrics *observability.Metrics, logger *zap.Logger, voters ...NamedVoter) *Engine {
	return &Engine{
		voters:  voters,
		metrics: metrics,
		logger:  logger,
	}
}

// Evaluate returns the unanimous decision for req
func (e *Engine) Evaluate(ctx context.Context, req *Request) Decision {
	decision := e.evaluate(ctx, req)
	e.metrics.RecordDecision(decision.Allowed)
	return decision
}

func (e *Engine) evaluate(ctx context.Context, req *Request) Decision {
	if len(e.voters) == 0 {
		return Decision{Allowed: false, Vote: Abstain}
	}
	for _, v := range e.voters {
		vote := v.Voter.Vote(ctx, req)
		if vote != Grant {
			return Decision{Allowed: false, Voter: v.Name, Vote: vote}
		}
	}
	return Decision{Allowed: true, Vote: Grant}
}

// Authorize evaluates req and returns services.ErrAccessDenied on refusal
func (e *Engine) Authorize(ctx context.Context, req *Request) error {
	decision := e.Evaluate(ctx, req)
	if decision.Allowed {
		return nil
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("voter", decision.Voter),
		zap.Stringer("vote", decision.Vote),
	}
	if req.Principal != nil {
		fields = append(fields,
			zap.String("token_type", string(req.Principal.Type)),
			zap.String("user", req.Principal.Identity),
			zap.String("tenant", req.Principal.Tenant),
		)
	}
	e.logger.Info("access denied", fields...)

	return services.Wrap(services.ErrAccessDenied, nil).
		WithDetail("voter", decision.Voter).
		WithDetail("path", req.Path)
}
