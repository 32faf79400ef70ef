package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/hashledger/internal/handler"
	"github.com/jmerrifield20/hashledger/internal/hashledger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an in-memory ledger over HTTP for inspection",
	Long: `serve starts an HTTP server around a fresh in-memory ledger. Nothing is
persisted; the chain lives as long as the process.

Routes are mounted under /api/v1/ledger. Set server.allow_tamper to expose
PUT /api/v1/ledger/entries/:idx/payload for demonstrations, and
server.seed_demo to start with the demo records.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg.Server, hashledger.New(cfg.Ledger.options()...))
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	serveCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if p, _ := cmd.Flags().GetInt("port"); p > 0 {
			cfg.Server.Port = p
		}
	}
}

func runServe(ctx context.Context, sc serverConfig, ledger *hashledger.Ledger) error {
	if sc.SeedDemo {
		for _, p := range demoPayloads {
			ledger.Append(p)
		}
	}

	recoveryTimeout, err := time.ParseDuration(sc.RecoveryTimeout)
	if err != nil {
		return fmt.Errorf("server.recovery_timeout: %w", err)
	}

	router := newRouter(ctx, sc, ledger, recoveryTimeout)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hashledger HTTP listening",
			zap.Int("port", sc.Port),
			zap.Stringer("ledger_id", ledger.ID()),
			zap.Stringer("algorithm", ledger.Algorithm()),
			zap.Int("entries", ledger.Len()),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	logger.Info("shutting down hashledger...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("hashledger stopped", zap.String("root", ledger.Root()))
	return nil
}

func newRouter(ctx context.Context, sc serverConfig, ledger *hashledger.Ledger, recoveryTimeout time.Duration) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.PrometheusMiddleware())

	// CORS
	if len(sc.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     sc.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: !containsWildcard(sc.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if sc.RateLimitRPS > 0 {
		router.Use(handler.RateLimiter(ctx, sc.RateLimitRPS, sc.RateLimitRPS*2))
	}
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	ledgerHandler := handler.NewLedgerHandler(ledger, logger)
	ledgerHandler.SetAllowTamper(sc.AllowTamper)
	ledgerHandler.SetRecoveryTimeout(recoveryTimeout)
	if sc.AllowTamper {
		logger.Warn("payload tampering endpoint enabled — do not expose this server")
	}

	v1 := router.Group("/api/v1")
	ledgerHandler.Register(v1)
	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
