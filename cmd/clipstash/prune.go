package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/api"
	"go.klb.dev/clipstash/internal/config"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/journal"
	"go.klb.dev/clipstash/internal/retention"
)

func newPruneCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal days older than the retention window",
		Long: `Removes stored days older than retention-days. When a daemon is running
it prunes its own journal (with its own retention setting) and reloads its
history; otherwise the journal in --data-dir is pruned directly.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPrune(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("data-dir", "", "journal directory (default $HOME/.clipstash)")
	f.String("storage", journal.DriverFiles, "journal driver: files|sqlite")
	f.Int("retention-days", retention.DefaultDays, "days of history to keep (1-365)")
	addClientFlags(cmd)

	return cmd
}

func runPrune(ctx context.Context, v *viper.Viper) error {
	if v.GetString("server") != "" || ipc.IsRunning() {
		return withClient(ctx, v, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Prune(ctx, &api.PruneRequest{})
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			fmt.Fprintf(os.Stderr, "removed %d day(s) before %s\n", resp.Removed, resp.Cutoff)
			return nil
		})
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer j.Close()

	p := retention.NewPruner(j, nil, cfg.RetentionDays)
	n, err := p.Prune(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "removed %d day(s) before %s from %s\n", n, p.Cutoff(), cfg.DataDir)
	return nil
}
