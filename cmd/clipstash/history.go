package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/api"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/logging"
)

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the clipboard history, newest first",
		Long: `Prints the history held by the daemon. Position 1 is the most recent
entry; pass a position or an ID to "clipstash recopy" to put it back on the
clipboard.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *api.Client) error {
				resp, err := c.List(ctx, &api.ListRequest{Day: v.GetString("day"), Limit: v.GetInt("limit")})
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				if v.GetBool("json") {
					return printJSON(resp)
				}
				printEntries(os.Stdout, resp.Entries, v.GetBool("ids"))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.String("day", "", "only entries captured on this day (YYYY-MM-DD)")
	f.Int("limit", 0, "at most this many entries (0 = all)")
	f.Bool("ids", false, "show entry IDs")
	f.Bool("json", false, "output raw JSON")
	addClientFlags(cmd)

	return cmd
}

func printEntries(w io.Writer, entries []history.Entry, ids bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "History is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	for i, e := range entries {
		if ids {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, e.ID, fmtAge(e.CapturedAt), oneLine(e.Text, 72))
			continue
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, fmtAge(e.CapturedAt), oneLine(e.Text, 72))
	}
	_ = tw.Flush()
}

func newSearchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Find history entries containing QUERY (case-insensitive)",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Search(ctx, &api.SearchRequest{Query: args[0], Limit: v.GetInt("limit")})
				if err != nil {
					return fmt.Errorf("search: %w", err)
				}
				if v.GetBool("json") {
					return printJSON(resp)
				}
				printResults(os.Stdout, resp.Results, logging.IsTTY(os.Stdout))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.Int("limit", 0, "at most this many results (0 = all)")
	f.Bool("json", false, "output raw JSON")
	addClientFlags(cmd)

	return cmd
}

func printResults(w io.Writer, results []history.SearchResult, color bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	for _, r := range results {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Entry.ID[:min(8, len(r.Entry.ID))], fmtAge(r.Entry.CapturedAt), highlight(r, color))
	}
	_ = tw.Flush()
}

// highlight renders the match in bold, or between brackets without a
// terminal, keeping a little context on either side.
func highlight(r history.SearchResult, color bool) string {
	const span = 24
	before := []rune(r.Entry.Text[:r.HighlightStart])
	match := r.Entry.Text[r.HighlightStart:r.HighlightEnd]
	after := []rune(r.Entry.Text[r.HighlightEnd:])

	prefix := ""
	if len(before) > span {
		before, prefix = before[len(before)-span:], "…"
	}
	suffix := ""
	if len(after) > span {
		after, suffix = after[:span], "…"
	}
	open, closing := "[", "]"
	if color {
		open, closing = "\x1b[1m", "\x1b[0m"
	}
	if match == "" {
		open, closing = "", ""
	}
	return oneLine(prefix+string(before)+open+match+closing+string(after)+suffix, 0)
}

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "paste",
		Short:   "Print the most recent history entry (like pbpaste)",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *api.Client) error {
				resp, err := c.List(ctx, &api.ListRequest{Limit: 1})
				if err != nil {
					return fmt.Errorf("paste: %w", err)
				}
				// Empty history: print nothing, exit 0 (pbpaste behaviour).
				if len(resp.Entries) == 0 {
					return nil
				}
				_, err = io.WriteString(os.Stdout, resp.Entries[0].Text)
				return err
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newRecopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "recopy POSITION|ID",
		Short: "Put a history entry back on the clipboard",
		Long: `Copies an earlier entry to the system clipboard. POSITION is the number
shown by "clipstash list" (1 = newest). By default the entry moves to the top
of the history like any other copy; --no-record leaves the order alone.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.RecopyRequest{NoRecord: v.GetBool("no-record")}
			if n, err := strconv.Atoi(args[0]); err == nil {
				if n < 1 {
					return fmt.Errorf("position must be 1 or more, got %d", n)
				}
				req.Index = n
			} else {
				req.ID = args[0]
			}
			return withClient(cmd.Context(), v, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Recopy(ctx, req)
				if err != nil {
					return fmt.Errorf("recopy: %w", err)
				}
				fmt.Fprintf(os.Stderr, "copied: %s\n", oneLine(resp.Entry.Text, 60))
				return nil
			})
		},
	}

	cmd.Flags().Bool("no-record", false, "do not move the entry to the top of the history")
	addClientFlags(cmd)
	return cmd
}

func newDaysCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "days",
		Short:   "List the days that have stored history, newest first",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), v, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Days(ctx, &api.DaysRequest{})
				if err != nil {
					return fmt.Errorf("days: %w", err)
				}
				if v.GetBool("json") {
					return printJSON(resp)
				}
				for _, d := range resp.Days {
					fmt.Println(d)
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addClientFlags(cmd)
	return cmd
}
