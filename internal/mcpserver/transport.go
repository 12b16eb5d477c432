package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// Transport selects how a server is exposed.
type Transport struct {
	Kind string // config.TransportStdio or config.TransportHTTP
	Addr string
	Path string

	// RateLimit caps requests per client per minute on HTTP; 0 disables it.
	RateLimit int

	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

// TransportFromConfig copies the transport settings out of cfg.
func TransportFromConfig(cfg *config.Config) Transport {
	return Transport{Kind: cfg.Transport, Addr: cfg.HTTPAddr, Path: cfg.HTTPPath, RateLimit: cfg.HTTPRateLimit}
}

// Serve runs s on t until ctx is cancelled or the transport fails.
func Serve(ctx context.Context, s *server.MCPServer, t Transport, logger *log.Logger) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentMCP)

	switch t.Kind {
	case config.TransportStdio:
		return serveStdio(ctx, s, t, logger)
	case config.TransportHTTP:
		return serveHTTP(ctx, s, t, logger)
	default:
		return fmt.Errorf("unknown transport %q", t.Kind)
	}
}

func serveStdio(ctx context.Context, s *server.MCPServer, t Transport, logger *log.Logger) error {
	in, out := t.Stdin, t.Stdout
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	logger.Info("Serving MCP over stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// NewHTTPHandler mounts the streamable HTTP endpoint at path next to a
// health probe, with request logging. mws wrap the endpoint only.
func NewHTTPHandler(s *server.MCPServer, path string, logger *log.Logger, mws ...func(http.Handler) http.Handler) http.Handler {
	if logger == nil {
		logger = log.Discard()
	}
	var endpoint http.Handler = server.NewStreamableHTTPServer(s, server.WithEndpointPath(path))
	for i := len(mws) - 1; i >= 0; i-- {
		endpoint = mws[i](endpoint)
	}

	mux := http.NewServeMux()
	mux.Handle(path, endpoint)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return log.Middleware(logger)(mux)
}

func serveHTTP(ctx context.Context, s *server.MCPServer, t Transport, logger *log.Logger) error {
	var mws []func(http.Handler) http.Handler
	if t.RateLimit > 0 {
		rl := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: t.RateLimit})
		defer rl.Stop()
		mws = append(mws, rl.Middleware(log.ClientIP))
	}

	srv := &http.Server{
		Addr:              t.Addr,
		Handler:           NewHTTPHandler(s, t.Path, logger, mws...),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving MCP over HTTP", "addr", t.Addr, log.FieldPath, t.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http transport: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
		return fmt.Errorf("shutdown http transport: %w", err)
	}
	logger.Info("HTTP transport stopped")
	return nil
}
