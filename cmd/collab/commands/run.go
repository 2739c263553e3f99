package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/collab/internal/clock"
	"github.com/dyluth/collab/internal/config"
	"github.com/dyluth/collab/internal/mockpool"
	"github.com/dyluth/collab/internal/printer"
	"github.com/dyluth/collab/internal/report"
	"github.com/dyluth/collab/internal/scheduler"
	"github.com/dyluth/collab/internal/watch"
	"github.com/dyluth/collab/pkg/collab"
	"github.com/spf13/cobra"
)

var (
	runSize           int
	runQuota          int
	runSeed           int64
	runNiche          string
	runRejects        []int
	runForceLockAfter time.Duration
	runTimeScale      float64
	runOutputFormat   string
	runRedisURL       string
	runInstance       string
	runPriceLow       int64
	runPriceHigh      int64
	runVerbose        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch a campaign to a mock creator pool",
	Long: `Generate a mock pool of creators, dispatch the campaign and stream their
answers until the quota locks, the ceiling expires or every creator has answered.

Each creator answers once, after base_delay + random jitter + position * stagger.
The run locks the instant the quota is reached and every answer still in flight
is cancelled. Ctrl-C cancels the run and prints the report so far.

Rejections given with --reject are applied after the run settles; each one
promotes the best remaining creator by estimated reach.

Output Formats:
  default - Live events followed by a summary table
  json    - Summary as a single JSON document

Examples:
  # Need 5 of 20 food creators
  collab run --size 20 --quota 5

  # Reproducible run, 10x faster than real time
  collab run --seed 42 --time-scale 10

  # Reject creator 3 after the lock and publish events to Redis
  collab run --seed 42 --reject 3 --redis-url redis://localhost:6379`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runSize, "size", 20, "Number of creators in the mock pool")
	runCmd.Flags().IntVarP(&runQuota, "quota", "q", 5, "Creators required to lock the campaign")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Random seed (0 picks one from the clock)")
	runCmd.Flags().StringVar(&runNiche, "niche", string(collab.NicheFood), "Niche of the mock creators")
	runCmd.Flags().IntSliceVar(&runRejects, "reject", nil, "Creator ID to reject after the run settles (repeatable)")
	runCmd.Flags().DurationVar(&runForceLockAfter, "force-lock-after", 0, "Force the lock after this much run time (0 disables)")
	runCmd.Flags().Float64Var(&runTimeScale, "time-scale", 0, "Time compression factor (overrides scheduler.time_scale)")
	runCmd.Flags().StringVarP(&runOutputFormat, "output", "o", "default", "Output format (default or json)")
	runCmd.Flags().StringVar(&runRedisURL, "redis-url", "", "Publish run events to this Redis (overrides events.redis_url)")
	runCmd.Flags().StringVar(&runInstance, "instance", "", "Event namespace (overrides events.instance)")
	runCmd.Flags().Int64Var(&runPriceLow, "price-low", 0, "Low end of the campaign budget (estimated if omitted)")
	runCmd.Flags().Int64Var(&runPriceHigh, "price-high", 0, "High end of the campaign budget (estimated if omitted)")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Log scheduler activity and JSON events to stderr")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	format, err := watch.ParseOutputFormat(runOutputFormat)
	if err != nil {
		return p.Error("invalid output format", fmt.Sprintf("Unknown format: %s", runOutputFormat),
			[]string{"Valid formats: default, json"})
	}
	if runQuota < 1 {
		return p.Error("invalid quota", fmt.Sprintf("Quota must be at least 1, got %d", runQuota), nil)
	}
	if runSize < 0 {
		return p.Error("invalid pool size", fmt.Sprintf("Pool size must not be negative, got %d", runSize), nil)
	}
	if runPriceLow < 0 || runPriceHigh < runPriceLow {
		return p.Error("invalid price range",
			fmt.Sprintf("Expected 0 <= --price-low <= --price-high, got %d and %d", runPriceLow, runPriceHigh), nil)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return p.Error("invalid configuration", err.Error(), nil)
	}

	if runSeed == 0 {
		runSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(runSeed))
	candidates := mockpool.Generate(rng, runSize, collab.Niche(runNiche))
	price := report.PriceRange{Low: runPriceLow, High: runPriceHigh}
	if price.IsZero() {
		price = mockpool.EstimatePrice(rng)
	}

	logger := log.New(io.Discard, "", 0)
	if runVerbose {
		logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}

	sinks := []scheduler.Sink{}
	if format == watch.OutputFormatDefault {
		sinks = append(sinks, scheduler.SinkFunc(func(_ context.Context, evt *collab.Event) error {
			p.Event(evt)
			return nil
		}))
	}
	if runVerbose {
		sinks = append(sinks, &scheduler.LogSink{Logger: logger, Instance: cfg.Events.Instance})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Events.RedisURL != "" {
		client, err := connectRedis(ctx, p, cfg.Events.RedisURL, cfg.Events.Instance)
		if err != nil {
			return err
		}
		defer client.Close()
		sinks = append(sinks, client)
	}

	clk := clock.New(cfg.Scheduler.TimeScale)
	s, err := scheduler.New(scheduler.Options{
		Config:   cfg.Timing(),
		Clock:    clk,
		Random:   rng,
		Scorer:   cfg.Scorer(),
		Model:    cfg.DecisionModel(),
		Sinks:    sinks,
		Logger:   logger,
		Instance: cfg.Events.Instance,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	defer s.Close()

	if format == watch.OutputFormatDefault {
		p.Step("Dispatching to %d %s creators, need %d (seed %d)\n", runSize, runNiche, runQuota, runSeed)
	}

	run, err := s.Start(candidates, runQuota)
	if err != nil {
		return p.Error("failed to start run", err.Error(), nil)
	}

	if runForceLockAfter > 0 {
		timer := clk.AfterFunc(runForceLockAfter, func() {
			if err := run.ForceLock(); err != nil {
				logger.Printf("[Run] force lock skipped: %v", err)
			}
		})
		defer timer.Stop()
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		run.Cancel()
	}

	applyRejects(p, run, runRejects)

	snap, err := run.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to read run state: %w", err)
	}

	// flush queued events before the summary
	s.Close()

	summary := report.Build(snap, cfg.Scorer(), price)
	if format == watch.OutputFormatJSON {
		return report.FormatJSON(cmd.OutOrStdout(), summary)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	report.FormatTable(cmd.OutOrStdout(), summary)
	return nil
}

func applyRunOverrides(cfg *config.Config) {
	if runTimeScale > 0 {
		cfg.Scheduler.TimeScale = runTimeScale
	}
	if runRedisURL != "" {
		cfg.Events.RedisURL = runRedisURL
	}
	if runInstance != "" {
		cfg.Events.Instance = runInstance
	}
}

// applyRejects rejects each ID in order. Failures are reported and skipped.
func applyRejects(p *printer.Printer, run *scheduler.Run, ids []int) {
	for _, id := range ids {
		if err := run.RejectAndPromote(id); err != nil {
			p.Warning("Could not reject creator %d: %v\n", id, err)
		}
	}
}

func connectRedis(ctx context.Context, p *printer.Printer, url, instance string) (*collab.Client, error) {
	client, err := collab.NewClientFromURL(url, instance)
	if err != nil {
		return nil, p.Error("invalid Redis URL", err.Error(), []string{"Use the form redis://host:port/db"})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, p.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", url),
			map[string]string{"Instance": instance, "Error": err.Error()},
			[]string{"Check that Redis is running and reachable from this host"},
		)
	}
	return client, nil
}
