package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/api"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy [TEXT]",
		Short: "Copy TEXT or stdin to the system clipboard (like pbcopy)",
		Long: `Asks the daemon to put text on its system clipboard. The daemon then records
it like any other copy. Without an argument, stdin is read.

Useful over --server to push text from another machine or a container into
the daemon host's clipboard.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runCopy(cmd.Context(), v, args) },
	}

	cmd.Flags().Bool("trim", false, "strip one trailing newline")
	addClientFlags(cmd)

	return cmd
}

func runCopy(ctx context.Context, v *viper.Viper, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	if v.GetBool("trim") {
		text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	return withClient(ctx, v, func(ctx context.Context, c *api.Client) error {
		if _, err := c.Copy(ctx, &api.CopyRequest{Text: text}); err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		return nil
	})
}
