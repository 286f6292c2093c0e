package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"variatio/adapters/excel"
	"variatio/adapters/report"
	"variatio/app"
	"variatio/domain/experiment"
	"variatio/internal/config"
	"variatio/internal/container"
	"variatio/internal/testkit"
	"variatio/ports"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "warning: failed to load .env:", err)
	}

	rootCmd := &cobra.Command{
		Use:   "variatio",
		Short: "Analyze A/B/n experiments with variance-reduced t-tests",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newDescribeCmd(),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		eventsPath      string
		allocationsPath string
		propertiesPath  string
		planPath        string
		outputPath      string
		persist         bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute every metric of a plan and write a report",
		Long: `Load events, allocations and optional user properties from XLSX or CSV
files, compute the metrics listed in a YAML plan and write a markdown or HTML report.

Analysis defaults come from the environment (ADJUSTMENT_MODE, PVALUE_CORRECTION,
ANALYSIS_PARALLELISM, SIGNIFICANCE_LEVEL, ...) and can be overridden per plan.

Example: variatio analyze --events events.csv --allocations allocations.csv --properties users.csv --plan plan.yaml --out report.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), analyzeArgs{
				events:      eventsPath,
				allocations: allocationsPath,
				properties:  propertiesPath,
				plan:        planPath,
				output:      outputPath,
				persist:     persist,
			})
		},
	}

	cmd.Flags().StringVar(&eventsPath, "events", "", "Events file (XLSX or CSV)")
	cmd.Flags().StringVar(&allocationsPath, "allocations", "", "Allocations file (XLSX or CSV)")
	cmd.Flags().StringVar(&propertiesPath, "properties", "", "Optional user properties file (XLSX or CSV)")
	cmd.Flags().StringVar(&planPath, "plan", "", "YAML analysis plan")
	cmd.Flags().StringVar(&outputPath, "out", "", "Report path; .md writes markdown, anything else HTML (default REPORT_PATH)")
	cmd.Flags().BoolVar(&persist, "persist", false, "Store results in PostgreSQL (requires DATABASE_URL)")
	_ = cmd.MarkFlagRequired("events")
	_ = cmd.MarkFlagRequired("allocations")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

type analyzeArgs struct {
	events, allocations, properties, plan, output string
	persist                                       bool
}

func runAnalyze(ctx context.Context, args analyzeArgs) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown()
	log := c.Logger

	plan, err := app.LoadPlan(args.plan)
	if err != nil {
		return err
	}
	planOpts, err := plan.Options(cfg.Analysis.Mode, cfg.Analysis.Correction)
	if err != nil {
		return err
	}

	loader := excel.NewLoader(log)
	events, err := loader.LoadEvents(args.events)
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}
	allocations, err := loader.LoadAllocations(args.allocations)
	if err != nil {
		return fmt.Errorf("loading allocations: %w", err)
	}
	var properties *experiment.PropertyTable
	if args.properties != "" {
		if properties, err = loader.LoadProperties(args.properties); err != nil {
			return fmt.Errorf("loading properties: %w", err)
		}
	}

	// Plan options come last so they override the environment defaults.
	opts := append(c.SessionOptions(), planOpts...)
	session, err := app.NewSession(app.SessionInput{
		Events:      events,
		Allocations: allocations,
		Properties:  properties,
		ControlArm:  plan.ControlArm,
	}, opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	metrics, err := session.ComputeAll(ctx, plan.Metrics)
	if err != nil {
		return err
	}
	log.Info("metrics computed",
		zap.String("session", session.ID().String()),
		zap.String("mode", session.Mode().String()),
		zap.Strings("treatments", session.TreatmentArms()),
		zap.Int("metrics", len(metrics)),
		zap.Duration("elapsed", time.Since(start)))

	output := args.output
	if output == "" {
		output = cfg.Report.Path
	}
	if err := report.NewRenderer(cfg.Analysis.SignificanceLevel).SaveReport(output, metrics); err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", output)

	if !args.persist {
		return nil
	}
	if err := c.InitDatabase(ctx); err != nil {
		return err
	}
	if c.MetricRepo == nil {
		return fmt.Errorf("--persist requires DATABASE_URL")
	}
	record := ports.SessionRecord{
		ID:            session.ID(),
		ControlArm:    session.ControlArm(),
		TreatmentArms: session.TreatmentArms(),
		Mode:          session.Mode().String(),
		Correction:    string(metrics[0].Result.Correction()),
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.MetricRepo.SaveSession(ctx, record, metrics); err != nil {
		return err
	}
	fmt.Printf("Session %s stored\n", session.ID())
	return nil
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [plan.yaml]",
		Short: "List the metrics of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := app.LoadPlan(args[0])
			if err != nil {
				return err
			}
			mode := plan.Mode
			if mode == "" {
				mode = "(environment default)"
			}
			fmt.Printf("Control arm: %s\nMode: %s\n", plan.ControlArm, mode)
			for i, def := range plan.Metrics {
				fmt.Printf("%d. %s\n", i+1, def.Describe())
			}
			return nil
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		users  int
		arms   []string
		seed   int64
		format string
		lift   float64
	)

	cmd := &cobra.Command{
		Use:   "generate [output-dir]",
		Short: "Write a synthetic experiment as events, allocations and properties files",
		Long: `Generate a deterministic synthetic experiment where pretest behavior predicts
intest behavior. The last arm gets the purchase lift.

Example: variatio generate ./fixture --users 1000 --arms A,B,C --lift 1.1 --format xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unsupported format %q (use csv or xlsx)", format)
			}
			if len(arms) < 2 {
				return fmt.Errorf("at least two arms are required")
			}

			cfg := testkit.DefaultExperimentConfig()
			cfg.UserCount = users
			cfg.Arms = arms
			cfg.Seed = seed
			cfg.Lift = map[string]float64{arms[len(arms)-1]: lift}
			data := testkit.NewExperimentGenerator(cfg).Generate()

			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			ext := "." + format
			if err := excel.WriteEvents(filepath.Join(dir, "events"+ext), data.Events); err != nil {
				return err
			}
			if err := excel.WriteAllocations(filepath.Join(dir, "allocations"+ext), data.Allocations); err != nil {
				return err
			}
			if err := excel.WriteProperties(filepath.Join(dir, "properties"+ext), data.Properties); err != nil {
				return err
			}
			fmt.Printf("Wrote %d users, %d events to %s\n", len(data.Allocations.Rows), len(data.Events.Rows), dir)
			return nil
		},
	}

	cmd.Flags().IntVar(&users, "users", 1000, "Number of allocated users")
	cmd.Flags().StringSliceVar(&arms, "arms", []string{"A", "B"}, "Arms; the first is the control")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic output")
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or xlsx")
	cmd.Flags().Float64Var(&lift, "lift", 1.1, "Intest purchase rate multiplier of the last arm")

	return cmd
}
