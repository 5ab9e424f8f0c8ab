package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hrm8/assistant/internal/agent"
	"github.com/hrm8/assistant/internal/audit"
	"github.com/hrm8/assistant/internal/auth"
	"github.com/hrm8/assistant/internal/catalog"
	"github.com/hrm8/assistant/internal/config"
	"github.com/hrm8/assistant/internal/llm"
	"github.com/hrm8/assistant/internal/mcp"
	"github.com/hrm8/assistant/internal/policy"
	"github.com/hrm8/assistant/internal/server"
)

var (
	servePort     int
	serveSeedDemo bool
	serveNoMCP    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant HTTP API and MCP endpoint",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port")
	serveCmd.Flags().BoolVar(&serveSeedDemo, "seed-demo", false, "load demo fixtures into the business store before serving")
	serveCmd.Flags().BoolVar(&serveNoMCP, "no-mcp", false, "disable the POST /mcp endpoint")
	rootCmd.AddCommand(serveCmd)
}

// components is the wired engine shared by serve and the CLI tool commands.
type components struct {
	store    businessStore
	engine   *policy.Engine
	executor *agent.Executor
}

// buildComponents wires store → policy engine → catalog → executor. w receives
// audit entries of sensitive tool calls; nil discards them.
func buildComponents(ctx context.Context, cfg *config.Config, w audit.Writer) (*components, error) {
	st, err := openBusinessStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	overlayCfg, err := policy.LoadOverlayConfig(ctx, cfg.PolicyFile)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("loading policy overlay: %w", err)
	}
	overlay, err := policy.NewOverlay(ctx, overlayCfg)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("policy overlay: %w", err)
	}

	engine := policy.NewEngine(st, overlay, w)
	reg, err := catalog.NewRegistry(st, engine)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("building tool registry: %w", err)
	}
	exec := agent.NewExecutor(reg, engine, agent.NewToolFailureTracker(0, 0))
	return &components{store: st, engine: engine, executor: exec}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.WarnIfDefaultKeys()

	auditStore, err := openAuditStore(cfg)
	if err != nil {
		return err
	}
	defer auditStore.Close()

	// Closed before the store so buffered entries are flushed.
	auditWriter := audit.NewAsyncWriter(auditStore, audit.WriterConfig{})
	defer func() {
		if err := auditWriter.Close(); err != nil {
			log.Error().Err(err).Msg("audit_writer_close_failed")
		}
	}()

	retention, err := audit.NewRetention(auditStore, cfg.AuditRetentionDays, "")
	if err != nil {
		return err
	}
	retention.Start()
	defer retention.Stop()

	c, err := buildComponents(ctx, cfg, auditWriter)
	if err != nil {
		return err
	}
	defer c.store.Close()

	if serveSeedDemo {
		if err := seedDemo(ctx, c.store); err != nil {
			return err
		}
	}

	provider, err := llm.NewProvider(cfg.Model, llm.ProviderConfig{
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		return fmt.Errorf("model %s: %w", cfg.Model, err)
	}

	orchestrator := agent.NewOrchestrator(provider, c.executor, c.store, agent.Config{Model: cfg.Model})
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)

	opts := []server.Option{
		server.WithAuditStore(auditStore),
		server.WithCORSOrigins(cfg.CORSOrigins),
	}
	if cfg.RateLimitRPS > 0 {
		opts = append(opts, server.WithRateLimiter(server.NewRateLimiter(cfg.RateLimitRPS, 0)))
	}
	if !serveNoMCP {
		opts = append(opts, server.WithMCPServer(mcp.NewHandler(c.executor)))
	}
	srv := server.NewServer(orchestrator, c.executor, tokens, opts...)

	addr := fmt.Sprintf(":%d", servePort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("model", cfg.Model).
		Str("provider", provider.Name()).
		Int("tools", len(c.executor.Registry().Names())).
		Str("policy_overlay", c.engine.Overlay().VersionTag()).
		Bool("mcp", !serveNoMCP).
		Msg("assistant_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
