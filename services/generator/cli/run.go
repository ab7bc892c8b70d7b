package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/firmbeat/recurflow/internal/postgres"
	"github.com/firmbeat/recurflow/services/generator"
	"github.com/firmbeat/recurflow/services/generator/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform a single generation pass and exit",
	Long: `Scan all due schedules once, materialize their tasks, and print a summary.

Useful for cron-driven deployments and for catching up after downtime.`,
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := buildLogger(cfg.LogLevel, "generator")

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(initCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	runner := generator.NewRunner(
		postgres.NewScheduleRepository(pool),
		postgres.NewTemplateRepository(pool),
		nil, // no event publishing from a one-shot pass
		nil, // no leader election either
		logger,
	)

	result, err := runner.RunOnce(cmd.Context(), time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Printf("created %d task(s), advanced %d schedule(s), deactivated %d, failures %d\n",
		len(result.Created), len(result.Advanced), len(result.Skipped), len(result.Failures))
	for _, f := range result.Failures {
		fmt.Printf("  failed %s: %s\n", f.ScheduleID, f.Reason)
	}
	return nil
}
