package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/wellness/internal/config"
	"example.com/wellness/internal/outbox"
)

func newDLQCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay the outbox dead-letter queue",
	}
	cmd.AddCommand(newDLQReplayCmd(cfg))
	return cmd
}

func newDLQReplayCmd(cfg config.Config) *cobra.Command {
	var (
		batch    int
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Requeue due DLQ entries, quarantining exhausted ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)
			runOnce := func() error {
				result, err := manager.RunOnce(ctx, batch)
				fmt.Fprintf(cmd.OutOrStdout(), "requeued=%d rescheduled=%d quarantined=%d\n",
					result.Requeued, result.Rescheduled, result.Quarantined)
				return err
			}

			if !watch {
				return runOnce()
			}

			if interval <= 0 {
				interval = 30 * time.Second
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := runOnce(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "dlq replay: %v\n", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 50, "entries processed per pass")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep replaying until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", cfg.DLQPollInterval, "pause between passes with --watch")
	return cmd
}
