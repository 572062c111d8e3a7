//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\`

// ownerOnly grants full access to the pipe owner and SYSTEM.
const ownerOnly = "D:P(A;;GA;;;OW)(A;;GA;;;SY)"

func socketPath() string { return pipePrefix + "clipstash" }

func prepare(path string) error {
	if !strings.HasPrefix(path, pipePrefix) {
		return fmt.Errorf("%s is not a named pipe", path)
	}
	return nil
}

func listenIPC(path string) (net.Listener, error) {
	return winio.ListenPipe(path, &winio.PipeConfig{SecurityDescriptor: ownerOnly})
}

func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
