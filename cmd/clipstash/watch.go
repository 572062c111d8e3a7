package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/api"
	"go.klb.dev/clipstash/internal/hub"
)

func newShowCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Ask the history window to come to the front",
		Long: `Publishes an activation request. Presentation layers subscribed with
"clipstash watch --kinds activate" (or the Watch RPC) bring themselves to the
front. Bind this command to a global hotkey such as Ctrl+Shift+V.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Activate(ctx, &api.ActivateRequest{Source: v.GetString("source")})
				if err != nil {
					return fmt.Errorf("show: %w", err)
				}
				if resp.Watchers == 0 {
					fmt.Fprintln(os.Stderr, "no presentation layer is listening")
				}
				return nil
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream history events until interrupted",
		Long: `Prints one line per event: "changed" when a new entry is captured and
"activate" when something asked the presentation layer to show itself. With
--json each event is printed as a JSON object, one per line.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runWatch(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.StringSlice("kinds", nil, "event kinds to receive: changed,activate (empty = all)")
	f.Bool("json", false, "output one JSON object per event")
	f.Bool("reconnect", true, "keep retrying when the daemon goes away")
	addLoggingFlags(cmd)
	addClientFlags(cmd)

	return cmd
}

const (
	watchRetryMin = time.Second
	watchRetryMax = 30 * time.Second
)

func runWatch(ctx context.Context, v *viper.Viper) error {
	logCloser, err := setupLogging(v)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if _, err := hub.ParseKinds(v.GetStringSlice("kinds")); err != nil {
		return err
	}

	delay := watchRetryMin
	for {
		start := time.Now()
		err := watchOnce(ctx, v)
		if ctx.Err() != nil || status.Code(err) == codes.Canceled {
			return nil
		}
		if !v.GetBool("reconnect") || permanent(err) {
			return err
		}
		if time.Since(start) > watchRetryMax {
			delay = watchRetryMin
		}
		slog.Warn("watch stream lost", "err", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, watchRetryMax)
	}
}

// permanent reports errors a reconnect cannot fix.
func permanent(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.Unimplemented:
		return true
	}
	return false
}

func watchOnce(ctx context.Context, v *viper.Viper) error {
	c, transport, err := connect(v)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Fprintf(os.Stderr, "watching via %s\n", transport)
	jsonOut := v.GetBool("json")
	err = c.Watch(ctx, &api.WatchRequest{Kinds: v.GetStringSlice("kinds")}, func(ev *hub.Event) error {
		if jsonOut {
			return printJSON(ev)
		}
		line := fmt.Sprintf("%s  %-8s  %s", ev.At.Local().Format("15:04:05"), ev.Kind, ev.Source)
		if ev.Entry != nil {
			line += "  " + oneLine(ev.Entry.Text, 60)
		}
		fmt.Println(line)
		return nil
	})
	if err == nil {
		return errors.New("daemon closed the stream")
	}
	return err
}
