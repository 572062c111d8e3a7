package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/tlsconf"
)

// Client is a HistoryService client.
type Client struct {
	conn *grpc.ClientConn
}

// DialLocal connects to the daemon's IPC socket. The socket is owner-only, so
// no token is sent.
func DialLocal(source string) (*Client, error) {
	opts := append(baseOpts(source, ""),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return ipc.DialContext(ctx) }),
	)
	conn, err := grpc.NewClient("passthrough:///clipstash", opts...)
	if err != nil {
		return nil, fmt.Errorf("dial ipc: %w", err)
	}
	return &Client{conn: conn}, nil
}

// DialTCP connects to a daemon's TCP listener. token selects both the pinned
// TLS key and the bearer credential.
func DialTCP(addr, token, source string) (*Client, error) {
	creds, err := tlsconf.New(token)
	if err != nil {
		return nil, err
	}
	opts := append(baseOpts(source, token), grpc.WithTransportCredentials(creds.GRPC()))
	conn, err := grpc.NewClient("passthrough:///"+addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func baseOpts(source, token string) []grpc.DialOption {
	opts := []grpc.DialOption{grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName))}
	if token != "" || source != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(&clientCreds{token: token, source: source}))
	}
	return opts
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Copy(ctx context.Context, req *CopyRequest) (*CopyResponse, error) {
	return invoke[CopyResponse](ctx, c, "Copy", req)
}

func (c *Client) Recopy(ctx context.Context, req *RecopyRequest) (*RecopyResponse, error) {
	return invoke[RecopyResponse](ctx, c, "Recopy", req)
}

func (c *Client) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c, "List", req)
}

func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c, "Search", req)
}

func (c *Client) Days(ctx context.Context, req *DaysRequest) (*DaysResponse, error) {
	return invoke[DaysResponse](ctx, c, "Days", req)
}

func (c *Client) Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "Status", req)
}

func (c *Client) Activate(ctx context.Context, req *ActivateRequest) (*ActivateResponse, error) {
	return invoke[ActivateResponse](ctx, c, "Activate", req)
}

func (c *Client) Prune(ctx context.Context, req *PruneRequest) (*PruneResponse, error) {
	return invoke[PruneResponse](ctx, c, "Prune", req)
}

// Watch streams hub events to fn until ctx ends, the daemon goes away, or fn
// returns an error.
func (c *Client) Watch(ctx context.Context, req *WatchRequest, fn func(*hub.Event) error) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("Watch"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		ev := new(hub.Event)
		if err := stream.RecvMsg(ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

type clientCreds struct {
	token  string
	source string
}

func (c *clientCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	md := make(map[string]string, 2)
	if c.token != "" {
		md["authorization"] = "Bearer " + c.token
	}
	if c.source != "" {
		md[sourceHeader] = c.source
	}
	return md, nil
}

func (c *clientCreds) RequireTransportSecurity() bool { return false }
