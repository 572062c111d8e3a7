package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/api"
	"go.klb.dev/clipstash/internal/ipc"
)

const rpcTimeout = 10 * time.Second

// connect dials the daemon named by --server, or the local socket when no
// server is configured. The returned string describes the transport.
func connect(v *viper.Viper) (*api.Client, string, error) {
	source := v.GetString("source")
	if addr := v.GetString("server"); addr != "" {
		c, err := api.DialTCP(addr, v.GetString("token"), source)
		if err != nil {
			return nil, "", err
		}
		return c, fmt.Sprintf("tcp (%s)", addr), nil
	}
	if !ipc.IsRunning() {
		return nil, "", errors.New("no clipstash daemon is running (start one with \"clipstash daemon\")")
	}
	c, err := api.DialLocal(source)
	if err != nil {
		return nil, "", err
	}
	return c, fmt.Sprintf("ipc (%s)", ipc.SocketPath()), nil
}

// withClient runs fn with a connected client and a per-call deadline.
func withClient(ctx context.Context, v *viper.Viper, fn func(context.Context, *api.Client) error) error {
	c, _, err := connect(v)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return fn(ctx, c)
}

func printJSON(v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(b))
	return err
}

// oneLine flattens text for tabular output and caps it at width runes.
func oneLine(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if width > 0 && len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return text
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return t.Format("15:04:05")
	}
	return t.Format("2006-01-02 15:04")
}
