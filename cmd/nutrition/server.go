package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/abchbx/nutrition-agent/internal/api"
	"github.com/abchbx/nutrition-agent/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the MCP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		stdio, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(host, stdio)
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "interface to listen on")
	serveCmd.Flags().Bool("mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP")
}

func runServer(host string, stdio bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log, os.Stderr)
	fmt.Fprintf(os.Stderr, "nutrition version %s\n", version)
	if cfg.Server.Token == "" && host != "127.0.0.1" && host != "localhost" {
		printWarning("listening on %s without NUTRITION_API_TOKEN; the API is open to the network", host)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := a.deps()
	mcpSrv := api.NewMCPServer(deps, version)

	srv := &http.Server{
		Addr:    net.JoinHostPort(host, fmt.Sprint(cfg.Server.Port)),
		Handler: api.NewHandler(deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	servers := []*http.Server{srv}

	if stdio {
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	} else {
		stream := server.NewStreamableHTTPServer(mcpSrv,
			server.WithEndpointPath("/mcp"),
			server.WithHeartbeatInterval(30*time.Second),
		)
		servers = append(servers, &http.Server{
			Addr:    net.JoinHostPort(host, fmt.Sprint(cfg.Server.MCPPort)),
			Handler: api.BearerAuth(cfg.Server.Token)(stream),
		})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			slog.Info("listening", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", s.Addr, err)
			}
		}(s)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "addr", s.Addr, "error", err)
		}
	}
	return serveErr
}
