package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ruqii/LLMPuzzle/internal/game"
	"github.com/Ruqii/LLMPuzzle/internal/policy"
	"github.com/Ruqii/LLMPuzzle/internal/registry"
	"github.com/Ruqii/LLMPuzzle/internal/repository"
	"github.com/Ruqii/LLMPuzzle/internal/scheduler"
	"github.com/Ruqii/LLMPuzzle/internal/service"
	internalhttp "github.com/Ruqii/LLMPuzzle/internal/transport/http"
	"github.com/Ruqii/LLMPuzzle/internal/transport/rpc"
	"github.com/Ruqii/LLMPuzzle/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort    int
	serveRPCPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	Long: `Starts the HTTP server (game page, /ws/game, /health, /rooms, /stats)
and the JSON-RPC admin server, then blocks until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override HTTP_PORT")
	serveCmd.Flags().IntVar(&serveRPCPort, "rpc-port", -1, "Override RPC_PORT (0 disables)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	if servePort > 0 {
		cfg.HTTPPort = servePort
	}
	if serveRPCPort >= 0 {
		cfg.RPCPort = serveRPCPort
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting botornot",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("rpc_port", cfg.RPCPort),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", cfg.LLMModel))

	// Storage
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	statsCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer statsCache.Close()
	scoreboard := service.NewScoreboard(store, statsCache, cfg.StatsCacheTTL, logger)

	// Turn-taking
	engine, err := policy.LoadEngine(ctx, cfg.PolicyFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	templates, watcher, err := newTemplates(cfg, logger)
	if err != nil {
		return err
	}
	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	manager := game.NewManager(game.Deps{
		Generator: gen,
		Prompts:   templates,
		Policy:    scheduler.NewRandomPolicy(engine, nil),
		Recorder:  scoreboard,
		Scheduler: scheduler.Config{
			PollInterval:    cfg.PollInterval,
			SilenceMargin:   cfg.SilenceMargin,
			GenerateTimeout: cfg.GenerateTimeout,
		},
		Registry: []registry.Option{
			registry.WithNamePrefix(cfg.NamePrefix),
			registry.WithSendTimeout(cfg.SendTimeout),
		},
		ChatPhase: cfg.ChatPhase,
		Logger:    logger,
	})

	// Transports
	wsServer := ws.NewServer(cfg, manager, logger)
	httpServer := internalhttp.NewServer(manager, scoreboard, wsServer.HandleWebSocket, logger)
	var rpcServer *rpc.Server
	if cfg.RPCPort > 0 {
		rpcServer, err = rpc.NewServer(manager, logger)
		if err != nil {
			return fmt.Errorf("failed to create rpc server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("HTTP server started", zap.String("addr", addr))
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if rpcServer != nil {
		g.Go(func() error {
			addr := fmt.Sprintf(":%d", cfg.RPCPort)
			logger.Info("RPC server started", zap.String("addr", addr))
			if err := rpcServer.Start(addr); err != nil {
				return fmt.Errorf("rpc server: %w", err)
			}
			return nil
		})
	}

	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down botornot")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("ws shutdown: %w", err))
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("session shutdown: %w", err))
		}
		if rpcServer != nil {
			if err := rpcServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("rpc shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("botornot stopped")
	return nil
}
