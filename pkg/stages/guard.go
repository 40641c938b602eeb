package stages

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zen-systems/drrepo/pkg/adapter"
	"github.com/zen-systems/drrepo/pkg/logging"
	"github.com/zen-systems/drrepo/pkg/repo"
	"github.com/zen-systems/drrepo/pkg/resilience"
)

// Dependency names used as breaker keys.
const (
	DepGitHub    = "github"
	DepReasoning = "reasoning"
	DepSearch    = "search"
)

// Dependencies lists every guarded dependency.
var Dependencies = []string{DepGitHub, DepReasoning, DepSearch}

// Guard wraps external calls in retry around a per-dependency breaker. The
// breakers come from a shared registry so concurrent runs see one health
// view per dependency.
type Guard struct {
	breakers *resilience.Registry
	policy   resilience.Policy
	timeout  time.Duration
	logger   *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.timeout = d
	}
}

// WithGuardLogger sets the logger used for retry messages.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

// NewGuard creates a guard. The policy's classifier is replaced by Retryable.
func NewGuard(breakers *resilience.Registry, policy resilience.Policy, opts ...GuardOption) *Guard {
	g := &Guard{
		breakers: breakers,
		policy:   policy.WithRetryable(Retryable),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.New("guard")
	}
	return g
}

// Call runs op as retry(breaker(op)) against dep.
func Call[T any](ctx context.Context, g *Guard, dep string, op func(ctx context.Context) (T, error)) (T, error) {
	b := g.breakers.Get(dep)
	p := g.policy
	if p.Logger == nil {
		p.Logger = g.logger.With("dependency", dep)
	}
	return resilience.Retry(ctx, p, func(ctx context.Context) (T, error) {
		return resilience.Execute(ctx, b, func(ctx context.Context) (T, error) {
			if g.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			return op(ctx)
		})
	})
}

// Retryable reports whether another attempt may succeed. Breaker
// rejections are never retried.
func Retryable(err error) bool {
	if resilience.IsCircuitOpen(err) {
		return false
	}
	return IsDependencyFailure(err)
}

// IsDependencyFailure reports errors that say something about the health of
// the dependency: rate limits, server errors, timeouts. Not-found and
// authentication errors do not count.
func IsDependencyFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return repo.IsTransient(err) || adapter.IsTransient(err)
}

// NewRegistry creates a breaker registry that counts dependency failures
// only, unless defaults already carries a classifier.
func NewRegistry(defaults resilience.Settings, opts ...resilience.RegistryOption) *resilience.Registry {
	if defaults.IsFailure == nil {
		defaults.IsFailure = IsDependencyFailure
	}
	if defaults.Logger == nil {
		defaults.Logger = logging.New("breaker")
	}
	return resilience.NewRegistry(defaults, opts...)
}
