package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/api"
	"go.klb.dev/clipstash/internal/hub"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and subscribers",
		Long: `Displays the daemon's clipboard backend, storage, history size and the
subscribers currently registered on its event hub (journal writer, watch
streams).`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd.Context(), v) },
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addClientFlags(cmd)

	return cmd
}

func runStatus(ctx context.Context, v *viper.Viper) error {
	c, transport, err := connect(v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	resp, err := c.Status(ctx, &api.StatusRequest{})
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if v.GetBool("json") {
		return printJSON(resp)
	}
	printStatus(resp, v.GetString("source"), transport)
	return nil
}

func printStatus(resp *api.StatusResponse, mySource, transport string) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", resp.Version)
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	fmt.Fprintf(w, "Clipboard:\t%s\n", resp.Backend)
	fmt.Fprintf(w, "Storage:\t%s\n", resp.Storage)
	fmt.Fprintf(w, "History:\t%d / %d entries\n", resp.Entries, resp.MaxSize)
	fmt.Fprintf(w, "Up since:\t%s (%s)\n", resp.StartedAt.Local().Format(time.RFC3339), time.Since(resp.StartedAt).Round(time.Second))
	if resp.LastCapture != nil {
		fmt.Fprintf(w, "Last capture:\t%s\n", fmtAge(*resp.LastCapture))
	} else {
		fmt.Fprintf(w, "Last capture:\t-\n")
	}
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(resp.Peers) == 0 {
		fmt.Println("No subscribers.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "\tID\tSOURCE\tKINDS\tCONNECTED\tLAST EVENT\n")
	_, _ = fmt.Fprintf(tw, "\t--\t------\t-----\t---------\t----------\n")
	for _, p := range resp.Peers {
		marker := ""
		if p.Source == mySource {
			marker = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, p.ID, p.Source, kindsList(p.Kinds), age(p.ConnectedAt), age(p.LastSeen),
		)
	}
	_ = tw.Flush()
}

func kindsList(kinds []hub.Kind) string {
	if len(kinds) == 0 {
		return "*"
	}
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ",")
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmtAge(t)
}
