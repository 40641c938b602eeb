package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/drrepo/pkg/adapter"
	"github.com/zen-systems/drrepo/pkg/config"
	"github.com/zen-systems/drrepo/pkg/logging"
	"github.com/zen-systems/drrepo/pkg/workflow"
)

var (
	configFile    string
	providerFlag  string
	modelFlag     string
	logLevelFlag  string
	logFormatFlag string
	aliases       *config.ModelAliases
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "drrepo",
		Short: "Review a GitHub repository's documentation and produce an improvement report",
		Long: `drrepo fetches a GitHub repository, runs five analysis stages over it
(repository analysis, metadata, content, quality review, fact check) and
synthesizes a scored report with prioritized action items.

External calls are retried with exponential backoff and guarded by
per-dependency circuit breakers shared across concurrent runs.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to settings file (default ~/.drrepo/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "reasoning provider (groq, openai, anthropic, google, mock)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model name or alias")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	var description string
	var jsonOut bool
	var evidenceDir string

	cmd := &cobra.Command{
		Use:   "analyze <github-url>",
		Short: "Analyze one repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if evidenceDir == "" {
				evidenceDir = a.cfg.Settings.EvidenceDir
			}
			st, runDir, err := a.run(ctx, workflow.Input{RepoURL: args[0], Description: description}, evidenceDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if err := writeJSON(out, st.Report); err != nil {
					return err
				}
			} else {
				printReport(out, st)
				if runDir != "" {
					fmt.Fprintf(out, "\nEvidence: %s\n", runDir)
				}
			}
			if st.Status == workflow.StatusFailed {
				return fmt.Errorf("analysis failed: %s", st.Report.Failure)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "override the repository description used for search")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&evidenceDir, "evidence-dir", "", "write run evidence under this directory")

	return cmd
}

type batchResult struct {
	URL    string
	State  *workflow.State
	RunDir string
	Err    error
}

func batchCmd() *cobra.Command {
	var parallel int
	var jsonOut bool
	var evidenceDir string

	cmd := &cobra.Command{
		Use:   "batch <github-url>...",
		Short: "Analyze several repositories concurrently",
		Long: `Runs one independent analysis per URL. Runs share the circuit breakers,
so a dependency that fails for one run is short-circuited for the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if parallel <= 0 {
				parallel = a.cfg.Settings.Concurrency.MaxParallel
			}
			if evidenceDir == "" {
				evidenceDir = a.cfg.Settings.EvidenceDir
			}

			results := make([]batchResult, len(args))
			var g errgroup.Group
			g.SetLimit(parallel)
			for i, url := range args {
				g.Go(func() error {
					st, runDir, err := a.run(ctx, workflow.Input{RepoURL: url}, evidenceDir)
					results[i] = batchResult{URL: url, State: st, RunDir: runDir, Err: err}
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			if jsonOut {
				reports := make(map[string]any, len(results))
				for _, r := range results {
					if r.Err != nil {
						reports[r.URL] = map[string]string{"error": r.Err.Error()}
						continue
					}
					reports[r.URL] = r.State.Report
				}
				if err := writeJSON(out, reports); err != nil {
					return err
				}
			} else {
				printBatch(out, results)
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil || r.State.Status == workflow.StatusFailed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&parallel, "parallel", 0, "maximum concurrent runs (default from settings)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print reports as JSON keyed by URL")
	cmd.Flags().StringVar(&evidenceDir, "evidence-dir", "", "write run evidence under this directory")

	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check external dependencies and show circuit breaker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			results := a.healthCheck(cmd.Context())

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DEPENDENCY\tSTATUS\tBREAKER\tFAILURES\tDETAIL")
			unhealthy := 0
			for _, snap := range a.registry.Snapshots() {
				status, detail := "ok", ""
				if err := results[snap.Name]; err != nil {
					status, detail = "unhealthy", err.Error()
					unhealthy++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", snap.Name, status, snap.State, snap.FailureCount, snap.FailureThreshold, detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d dependencies unhealthy", unhealthy)
			}
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List providers, models, and aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if resolveFlag {
				return showAliases(out)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, provider := range append(aliases.ListProviders(), "mock") {
				models := aliases.ProviderModels(provider)
				if provider == "mock" {
					models = adapter.NewMockAdapter().Models()
				}
				status := "no key"
				if cfg.HasAdapter(provider) {
					status = "ready"
				}
				if provider == cfg.Settings.Provider {
					status += " (selected: " + aliases.Resolve(cfg.Settings.Model) + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, formatList(models), status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")

	return cmd
}

func showAliases(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL")
	for _, alias := range aliases.SortedAliases() {
		fmt.Fprintf(w, "%s\t%s\n", alias, aliases.Resolve(alias))
	}
	return w.Flush()
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadWithSettingsFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if providerFlag != "" {
		cfg.Settings.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Settings.Model = modelFlag
	}
	if logLevelFlag != "" {
		cfg.Settings.Logging.Level = logLevelFlag
	}
	if logFormatFlag != "" {
		cfg.Settings.Logging.Format = logFormatFlag
	}

	aliases, err = config.LoadAliasesWithFallback("configs/models.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to load model aliases: %w", err)
	}
	return cfg, nil
}

// setup loads configuration, initializes logging and builds the app.
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, err := logging.ParseLevel(cfg.Settings.Logging.Level)
	if err != nil {
		return nil, err
	}
	logging.Init(level, cfg.Settings.Logging.Format)

	a, err := newApp(cfg)
	if config.IsMissingKey(err) {
		return nil, fmt.Errorf("%w (set them in the environment)", err)
	}
	return a, err
}

func printReport(out io.Writer, st *workflow.State) {
	r := st.Report
	fmt.Fprintf(out, "%s (%s)\n", r.Repository.Name, r.Repository.URL)
	fmt.Fprintf(out, "Status: %s\n", st.Status)
	if r.Failed {
		fmt.Fprintf(out, "Failure: %s\n", r.Failure)
	}
	if failed := r.FailedStages(); len(failed) > 0 {
		fmt.Fprintf(out, "Failed stages: %s\n", strings.Join(failed, ", "))
	}
	fmt.Fprintf(out, "Score: %d/100 (%s)\n", r.Score, r.Tier)
	fmt.Fprintf(out, "Completeness: %.1f%%\n", r.Completeness)
	if len(r.Missing) > 0 {
		fmt.Fprintf(out, "Missing sections: %s\n", strings.Join(r.Missing, ", "))
	}

	if len(r.Breakdown) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tPOINTS")
		for _, c := range r.Breakdown {
			fmt.Fprintf(w, "%s\t%d/%d\n", c.Category, c.Points, c.Cap)
		}
		w.Flush()
	}

	if len(r.ActionItems) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PRIORITY\tCATEGORY\tACTION\tEFFORT")
		for _, item := range r.ActionItems {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.Priority, item.Category, item.Action, item.Effort)
		}
		w.Flush()
		fmt.Fprintf(out, "\nEstimated effort: %.1f hours. %s\n", r.Effort.TotalHours, r.Effort.Recommendation)
	}

	if tokens := workflow.CountTokens(st.Messages); tokens.Total > 0 {
		fmt.Fprintf(out, "\nTokens: %d (prompt %d, completion %d)\n", tokens.Total, tokens.Prompt, tokens.Completion)
	}

	if len(st.Errors) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, e := range st.Errors {
			fmt.Fprintf(out, "  %s: %s\n", e.Stage, e.Message)
		}
	}
}

func printBatch(out io.Writer, results []batchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tSTATUS\tSCORE\tTIER\tWARNINGS\tEVIDENCE")
	for _, r := range results {
		if r.Err != nil {
			var verr *workflow.ValidationError
			status := "error"
			if errors.As(r.Err, &verr) {
				status = "invalid"
			}
			fmt.Fprintf(w, "%s\t%s\t-\t-\t%s\t\n", r.URL, status, r.Err)
			continue
		}
		rep := r.State.Report
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n", r.URL, r.State.Status, rep.Score, rep.Tier, len(r.State.Errors), r.RunDir)
	}
	w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
