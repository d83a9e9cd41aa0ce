package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SuperJunier666/Chatroom/internal/auth"
	"github.com/SuperJunier666/Chatroom/internal/config"
	"github.com/SuperJunier666/Chatroom/internal/data"
	"github.com/SuperJunier666/Chatroom/internal/db"
	"github.com/SuperJunier666/Chatroom/internal/middleware"
	"github.com/SuperJunier666/Chatroom/internal/pairing"
	"github.com/SuperJunier666/Chatroom/internal/presence"
	"github.com/SuperJunier666/Chatroom/internal/relay"
	"github.com/SuperJunier666/Chatroom/internal/session"
)

func main() {
	mintStatsToken := flag.Bool("mint-stats-token", false, "print a signed /stats token and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	var tokens *auth.TokenManager
	if cfg.StatsTokenSecret != "" {
		tokens = auth.NewTokenManager(cfg.StatsTokenSecret, cfg.StatsTokenTTL)
	}

	if *mintStatsToken {
		if tokens == nil {
			fmt.Fprintln(os.Stderr, "STATS_TOKEN_SECRET must be set to mint a token")
			os.Exit(1)
		}
		token, expiresAt, err := tokens.Generate("ops")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("%s\nexpires: %s\n", token, expiresAt.Format(time.RFC3339))
		return
	}

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error("connect mongodb", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to mongodb")

	if err := dbClient.CreateIndexes(ctx); err != nil {
		logger.Error("create indexes", "error", err)
		os.Exit(1)
	}

	store := data.NewMessagesStore(dbClient.PublicMessages(), dbClient.PrivateMessages())

	registry := presence.NewRegistry()
	machine := pairing.NewMachine(registry)
	hub := relay.NewHub()
	rly := relay.NewRelay(registry, hub, store, logger)

	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, cfg.RateLimitBurst, time.Minute)
	defer limiter.Stop()

	ctrl := session.NewController(registry, machine, rly, hub, limiter, logger)
	api := newAPIServer(cfg, logger, ctrl, store, registry, machine, tokens)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// No read/write timeouts: websocket connections are long-lived and
		// kept healthy by the ping/pong loop instead.
		Handler:     api.routes(),
		IdleTimeout: 2 * pongWait,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := dbClient.Close(context.Background()); err != nil {
		logger.Error("close mongodb", "error", err)
	}
}
