// Command routekeeper maintains a markdown routing document that maps task
// types to AI models: weekly recommendations, chat-based approval, and
// verified application of the approved edits.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/routekeeper/pkg/config"
	"github.com/zen-systems/routekeeper/pkg/notify"
	"github.com/zen-systems/routekeeper/pkg/pipeline"
	"github.com/zen-systems/routekeeper/pkg/pricing"
	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

var (
	debugFlag bool
	logger    *zap.Logger
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "routekeeper",
		Short: "Weekly model-routing recommendations with human approval",
		Long: `routekeeper reads a markdown routing document, compares its model
choices against current pricing and quality tables, and proposes edits.
Proposed edits go through a per-item approval flow before anything is
written back.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = buildLogger(debugFlag)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newRecommendCmd(),
		newApplyCmd(),
		newCallbackCmd(),
		newRoutesCmd(),
		newModelsCmd(),
		newBatchesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zapCfg.Build()
}

func newRunner(docPath string, noCache bool) (*pipeline.Runner, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if docPath != "" {
		cfg.DocumentPath = docPath
	}
	var opts []pipeline.RunnerOption
	if noCache {
		opts = append(opts, pipeline.WithoutPricingCache())
	}
	runner, err := pipeline.NewRunner(cfg, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return runner, cfg, nil
}

func newRecommendCmd() *cobra.Command {
	var (
		docPath string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate recommendations and a report without modifying anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, err := newRunner(docPath, noCache)
			if err != nil {
				return err
			}

			result, err := runner.Recommend(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK TYPE\tMODEL\tSCORE\tQUALITY\tCOST ($/M)")
			for _, r := range result.Recommendations {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%.2f\n",
					r.TaskType, r.RecommendedModel, r.Score, r.Quality, r.TotalCost)
			}
			w.Flush()

			fmt.Printf("\nProposed edits: %d\n", len(result.ChangeSet.ModifiedLines))
			if result.ReportPath != "" {
				fmt.Printf("Report: %s\n", result.ReportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "routing document path (overrides configuration)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the pricing cache and fetch live prices")
	return cmd
}

func newApplyCmd() *cobra.Command {
	var (
		autoApprove bool
		docPath     string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run the weekly pipeline and open an approval batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, err := newRunner(docPath, false)
			if err != nil {
				return err
			}

			result, err := runner.Apply(cmd.Context(), autoApprove)
			if err != nil {
				return err
			}

			if result.BatchID == "" {
				fmt.Println("Document already matches the recommendations; nothing to approve.")
				return nil
			}
			if autoApprove {
				fmt.Printf("Batch %s applied (%d edits).\n",
					result.BatchID, len(result.ChangeSet.ModifiedLines))
			} else {
				fmt.Printf("Batch %s created with %d item(s); approval prompts sent.\n",
					result.BatchID, len(result.ChangeSet.ModifiedLines))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "approve every proposed edit and apply immediately")
	cmd.Flags().StringVar(&docPath, "doc", "", "routing document path (overrides configuration)")
	return cmd
}

func newCallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callback <token>",
		Short: "Process one approval button callback token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, err := newRunner("", false)
			if err != nil {
				return err
			}
			if err := runner.ProcessCallback(cmd.Context(), args[0]); err != nil {
				return err
			}

			token, err := notify.ParseToken(args[0])
			if err != nil {
				return err
			}
			batch, err := runner.Batch(token.BatchID)
			if err != nil {
				return err
			}
			s := batch.Summarize()
			fmt.Printf("Batch %s: %s (%d approved, %d rejected, %d kept, %d pending)\n",
				batch.BatchID, batch.Status, s.Approved, s.Rejected, s.Kept, s.Pending)
			return nil
		},
	}
}

func newRoutesCmd() *cobra.Command {
	var docPath string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the routing document's sections and rule lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := newRunner(docPath, false)
			if err != nil {
				return err
			}

			doc, err := routedoc.Load(cfg.DocumentPath, cfg.Tables.Phrases)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LINE\tSECTION\tTASK TYPES\tRULE")
			for _, section := range doc.Sections {
				for _, rule := range section.Rules {
					types := ""
					for i, m := range rule.Matches {
						if i > 0 {
							types += ","
						}
						types += m.TaskType
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
						rule.LineNumber, section.Kind, types, rule.Text)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&docPath, "doc", "", "routing document path (overrides configuration)")
	return cmd
}

func newModelsCmd() *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Show current model pricing across providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := newRunner("", noCache)
			if err != nil {
				return err
			}

			providers := pricing.DefaultProviders()
			var opts []pricing.FetcherOption
			if !noCache {
				cache, err := pricing.NewCache(filepath.Join(cfg.CacheDir, "pricing"))
				if err != nil {
					return err
				}
				opts = append(opts, pricing.WithCache(cache))
			}
			fetcher := pricing.NewFetcher(providers, logger, opts...)

			byProvider, err := fetcher.FetchAll(cmd.Context())
			if err != nil {
				return err
			}
			models := pricing.Flatten(byProvider, pricing.ProviderNames(providers))

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tINPUT ($/M)\tOUTPUT ($/M)\tVISION\tCACHE")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%v\t%v\n",
					m.Model, m.InputPerM, m.OutputPerM, m.Vision, m.Cache)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the pricing cache and fetch live prices")
	return cmd
}

func newBatchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List approval batches and their decision counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, err := newRunner("", false)
			if err != nil {
				return err
			}

			batches, err := runner.Batches()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BATCH\tCREATED\tSTATUS\tITEMS\tAPPROVED\tREJECTED\tPENDING")
			for _, b := range batches {
				s := b.Summarize()
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					b.BatchID, b.CreatedAt.Format("2006-01-02 15:04"),
					b.Status, s.Total, s.Approved, s.Rejected, s.Pending)
			}
			return w.Flush()
		},
	}
}
