package api

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/tlsconf"
)

// Server serves HistoryService on the IPC listener and, optionally, on a TLS
// TCP listener shared with the HTTP gateway.
type Server struct {
	grpc    *grpc.Server
	gateway http.Handler
	creds   *tlsconf.Credentials
}

// NewServer registers svc on a new gRPC server. gateway and creds are only
// needed when a TCP listener is passed to Serve.
func NewServer(svc HistoryServer, gateway http.Handler, creds *tlsconf.Credentials, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(logUnary),
		grpc.ChainStreamInterceptor(logStream),
	}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ServiceDesc, svc)
	return &Server{grpc: gs, gateway: gateway, creds: creds}
}

// Serve blocks until ctx is cancelled or a listener fails. Either listener
// may be nil.
func (s *Server) Serve(ctx context.Context, local, tcp net.Listener) error {
	if tcp != nil && (s.creds == nil || s.gateway == nil) {
		return errors.New("api: TCP listener needs TLS credentials and a gateway")
	}
	g, ctx := errgroup.WithContext(ctx)

	if local != nil {
		slog.Info("IPC socket listening", "addr", local.Addr())
		g.Go(func() error { return ignoreClosed(s.grpc.Serve(local)) })
	}

	var (
		m       cmux.CMux
		httpSrv *http.Server
	)
	if tcp != nil {
		m = cmux.New(tls.NewListener(tcp, s.creds.Server))
		// application/grpc+json still carries the application/grpc prefix.
		grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
		httpL := m.Match(cmux.HTTP1Fast())
		httpSrv = &http.Server{Handler: s.gateway, ReadHeaderTimeout: 10 * time.Second}

		slog.Info("listening", "addr", tcp.Addr(), "fingerprint", s.creds.Fingerprint())
		g.Go(func() error { return ignoreClosed(s.grpc.Serve(grpcL)) })
		g.Go(func() error { return ignoreClosed(httpSrv.Serve(httpL)) })
		g.Go(func() error { return ignoreClosed(m.Serve()) })
	}

	g.Go(func() error {
		<-ctx.Done()
		// Stop rather than GracefulStop: Watch streams never finish on their own.
		s.grpc.Stop()
		if httpSrv != nil {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(sctx)
			m.Close()
		}
		return nil
	})
	return g.Wait()
}

func ignoreClosed(err error) error {
	switch {
	case err == nil,
		errors.Is(err, net.ErrClosed),
		errors.Is(err, http.ErrServerClosed),
		errors.Is(err, cmux.ErrListenerClosed),
		errors.Is(err, cmux.ErrServerClosed),
		errors.Is(err, grpc.ErrServerStopped):
		return nil
	}
	return err
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("rpc",
		"method", info.FullMethod,
		"source", sourceFromCtx(ctx),
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func logStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	slog.Debug("stream opened", "method", info.FullMethod, "source", sourceFromCtx(ss.Context()))
	err := handler(srv, ss)
	slog.Debug("stream closed", "method", info.FullMethod, "source", sourceFromCtx(ss.Context()), "code", status.Code(err).String())
	return err
}
