package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/collab/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchRedisURL     string
	watchInstanceName string
	watchOutputFormat string
	watchOnce         bool
)

const defaultRedisURL = "redis://localhost:6379"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream run events from Redis",
	Long: `Stream run events published by 'collab run' as they occur: every decision,
the lock, operator rejections and promotions.

The Redis URL and instance come from collab.yml (events section) unless given
as flags. Without either, redis://localhost:6379 is used.

Output Formats:
  default - Human-readable output, one line per event
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Follow the default instance
  collab watch

  # Stop after the first run finishes
  collab watch --once

  # Export events as JSON
  collab watch --instance campaign-7 --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "", "Redis to subscribe to (overrides events.redis_url)")
	watchCmd.Flags().StringVarP(&watchInstanceName, "instance", "n", "", "Event namespace (overrides events.instance)")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Exit after the first run locks or stops")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	format, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return p.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	url := firstNonEmpty(watchRedisURL, cfg.Events.RedisURL, defaultRedisURL)
	instance := firstNonEmpty(watchInstanceName, cfg.Events.Instance)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connectRedis(ctx, p, url, instance)
	if err != nil {
		return err
	}
	defer client.Close()

	if format == watch.OutputFormatDefault {
		p.Step("Watching run events for instance '%s' on %s\n", instance, url)
	}

	return watch.StreamEvents(ctx, client, watch.Options{Format: format, ExitOnTerminal: watchOnce}, cmd.OutOrStdout())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
