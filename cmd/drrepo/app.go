package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zen-systems/drrepo/pkg/adapter"
	"github.com/zen-systems/drrepo/pkg/config"
	"github.com/zen-systems/drrepo/pkg/evidence"
	"github.com/zen-systems/drrepo/pkg/logging"
	"github.com/zen-systems/drrepo/pkg/repo"
	"github.com/zen-systems/drrepo/pkg/resilience"
	"github.com/zen-systems/drrepo/pkg/search"
	"github.com/zen-systems/drrepo/pkg/stages"
	"github.com/zen-systems/drrepo/pkg/synth"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

// app holds the process-wide collaborators. Breakers live in one registry
// shared by every run the process starts.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *resilience.Registry
	guard    *stages.Guard
	fetcher  *repo.GitHubFetcher
	searcher *search.TavilyClient
	reasoner adapter.Adapter
	model    string
	synth    *synth.Synthesizer
	seq      atomic.Int64
}

func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := cfg.Settings
	logger := logging.New("drrepo")

	model := s.Model
	if aliases != nil {
		model = aliases.Resolve(model)
		if err := aliases.ValidateModel(s.Provider, model); err != nil {
			logger.Warn("model not in provider list", "provider", s.Provider, "model", model, "error", err)
		}
	}

	reasoner, err := adapter.New(s.Provider, cfg.APIKey(s.Provider))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter: %w", s.Provider, err)
	}

	sy, err := synth.New(synth.WithMaxActionItems(s.Synthesis.MaxActionItems))
	if err != nil {
		return nil, err
	}

	registry := stages.NewRegistry(s.BreakerDefaults(), s.BreakerOverrides()...)
	policy := s.Policy()
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Debug("retry scheduled", "attempt", attempt, "delay", delay, "error", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		guard:    stages.NewGuard(registry, policy, stages.WithTimeout(s.RequestTimeout())),
		fetcher:  repo.NewGitHubFetcher(cfg.GitHubToken, repo.WithLogger(logging.New("github"))),
		searcher: search.NewTavilyClient(cfg.TavilyAPIKey, search.WithLogger(logging.New("search"))),
		reasoner: reasoner,
		model:    model,
		synth:    sy,
	}, nil
}

// run executes one analysis. evidenceDir may be empty.
func (a *app) run(ctx context.Context, in workflow.Input, evidenceDir string) (*workflow.State, string, error) {
	pipeline, err := stages.Pipeline(stages.Deps{
		Fetcher:  a.fetcher,
		Reasoner: a.reasoner,
		Model:    a.model,
		Search:   a.searcher,
		Guard:    a.guard,
		Logger:   logging.New("stages"),
	})
	if err != nil {
		return nil, "", err
	}

	opts := []workflow.Option{
		workflow.WithLogger(logging.New("executor")),
		workflow.WithValidator(validateInput),
	}
	var writer *evidence.Writer
	if evidenceDir != "" {
		writer, err = evidence.NewWriter(evidenceDir, a.runID(in))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create evidence writer: %w", err)
		}
		opts = append(opts, workflow.WithObserver(writer))
	}

	exec, err := workflow.NewExecutor(a.synth, pipeline, opts...)
	if err != nil {
		return nil, "", err
	}
	if writer != nil {
		writer.SetStages(exec.Stages())
	}

	st, err := exec.Run(ctx, in)
	if err != nil {
		return nil, "", err
	}
	if writer == nil {
		return st, "", nil
	}
	if werr := writer.Err(); werr != nil {
		a.logger.Warn("evidence incomplete", "run_dir", writer.RunDir(), "error", werr)
	}
	return st, writer.RunDir(), nil
}

func validateInput(in workflow.Input) error {
	_, _, err := repo.ParseURL(in.RepoURL)
	return err
}

// runID is unique within the process: timestamp, sequence, owner and name.
func (a *app) runID(in workflow.Input) string {
	n := a.seq.Add(1)
	stamp := time.Now().UTC().Format("20060102T150405Z")
	owner, name, err := repo.ParseURL(in.RepoURL)
	if err != nil {
		return fmt.Sprintf("%s-%03d", stamp, n)
	}
	return fmt.Sprintf("%s-%03d-%s-%s", stamp, n, strings.ToLower(owner), strings.ToLower(name))
}

type depCheck struct {
	dep string
	fn  func(ctx context.Context) error
}

// depChecks returns one health check per configured dependency.
func (a *app) depChecks() []depCheck {
	return []depCheck{
		{stages.DepGitHub, a.fetcher.Ping},
		{stages.DepReasoning, func(ctx context.Context) error {
			_, err := a.reasoner.Generate(ctx, a.model, "Reply with OK.")
			return err
		}},
		{stages.DepSearch, func(ctx context.Context) error {
			_, err := a.searcher.Search(ctx, "github readme", 1)
			return err
		}},
	}
}

// healthCheck runs every dependency check once through its breaker, without retry.
func (a *app) healthCheck(ctx context.Context) map[string]error {
	once := stages.NewGuard(a.registry, resilience.Policy{}, stages.WithTimeout(a.cfg.Settings.RequestTimeout()))
	results := make(map[string]error, len(stages.Dependencies))
	for _, p := range a.depChecks() {
		_, err := stages.Call(ctx, once, p.dep, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.fn(ctx)
		})
		results[p.dep] = err
	}
	return results
}
