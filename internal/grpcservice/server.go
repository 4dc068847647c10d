package grpcservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/pastabox/internal/metrics"
)

type serverConfig struct {
	metrics *metrics.Metrics
}

// ServerOption configures Serve and NewServer.
type ServerOption func(*serverConfig)

// WithMetrics counts every RPC in m and, for Serve, exposes m at
// GET /metrics on the HTTP side.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(c *serverConfig) { c.metrics = m }
}

func newServerConfig(opts []ServerOption) serverConfig {
	var c serverConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Serve serves svc on ln until ctx is cancelled. gRPC and HTTP/1.1 clients
// share the listener; cmux routes each connection by its first bytes.
func Serve(ctx context.Context, ln net.Listener, svc *Service, opts ...ServerOption) error {
	cfg := newServerConfig(opts)
	gs := NewServer(svc, opts...)

	gw, err := NewGateway(svc)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if cfg.metrics != nil {
		h := cfg.metrics.Handler()
		err := gw.HandlePath(http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			h.ServeHTTP(w, r)
		})
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
	}
	hs := &http.Server{
		Handler:           gw,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	g, ctx := errgroup.WithContext(ctx)
	serve := func(name string, fn func() error) {
		g.Go(func() error {
			err := fn()
			if err == nil || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s: %w", name, err)
		})
	}
	serve("grpc", func() error { return gs.Serve(grpcL) })
	serve("http", func() error {
		if err := hs.Serve(httpL); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	serve("cmux", m.Serve)

	g.Go(func() error {
		<-ctx.Done()
		gs.Stop()
		_ = hs.Close()
		_ = ln.Close()
		return nil
	})

	slog.Info("serving command interface", "addr", ln.Addr())
	return g.Wait()
}

// NewServer returns a gRPC server with svc registered and the standard
// interceptors installed.
func NewServer(svc *Service, opts ...ServerOption) *grpc.Server {
	cfg := newServerConfig(opts)
	unary := []grpc.UnaryServerInterceptor{logUnary}
	if cfg.metrics != nil {
		unary = append(unary, countUnary(cfg.metrics))
	}
	unary = append(unary, recoverUnary)

	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(recoverStream),
	)
	Register(gs, svc)
	return gs
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"took", time.Since(start),
	)
	return resp, err
}

func countUnary(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		m.ObserveRPC(info.FullMethod, status.Code(err))
		return resp, err
	}
}

// recoverUnary turns a panic in a handler into codes.Internal so one failed
// command never takes the daemon down.
func recoverUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rpc panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

func recoverStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rpc panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(srv, ss)
}
