package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/comprl/comprl/internal/api"
	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/game"
	_ "github.com/comprl/comprl/internal/game/duel"
	"github.com/comprl/comprl/internal/logging"
	"github.com/comprl/comprl/internal/server"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := flag.String("config", os.Getenv("COMPRL_CONFIG"), "path to the server config file (TOML)")
	flag.Parse()
	if *configPath == "" {
		log.Fatal("No config file: pass -config or set COMPRL_CONFIG")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	factory, err := game.Lookup(cfg.GameClass)
	if err != nil {
		logger.Fatal("unknown game", zap.String("game_class", cfg.GameClass), zap.Error(err))
	}
	if cfg.GamePath != "" {
		logger.Debug("game_path is ignored, games are compiled in",
			zap.String("game_path", cfg.GamePath))
	}

	users := database.NewUserStore(db)
	games := database.NewGameStore(db)

	srv := server.New(cfg, factory, users, games, logger)
	decay := server.NewDecayWorker(users, cfg.ScoreDecay, logger.Named("decay"))
	router := api.NewRouter(cfg, logger.Named("api"), users, games, srv.AcceptConnection)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return decay.Run(ctx) })

	g.Go(func() error {
		logger.Info("listening",
			zap.Int("port", cfg.Port),
			zap.String("game", cfg.GameClass))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// SIGHUP reloads the matchmaking and score decay tunables without a
	// restart. Everything else in the config needs one.
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				fresh, err := config.Load(*configPath)
				if err != nil {
					logger.Error("config reload failed", zap.Error(err))
					continue
				}
				srv.ApplyMatchmakingSettings(fresh.Matchmaking)
				decay.ApplySettings(fresh.ScoreDecay)
				logger.Info("matchmaking and score decay settings reloaded")
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
