package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck-dev/flowdeck/internal/api"
	"github.com/flowdeck-dev/flowdeck/internal/auth"
	"github.com/flowdeck-dev/flowdeck/internal/board"
	"github.com/flowdeck-dev/flowdeck/internal/config"
	"github.com/flowdeck-dev/flowdeck/internal/hub"
	"github.com/flowdeck-dev/flowdeck/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	persister, err := store.NewPersistence(cfg.DataDir)
	if err != nil {
		slog.Error("failed to initialize persistence", slog.String("error", err.Error()))
		os.Exit(1)
	}
	snapshot, err := persister.LoadAll()
	if err != nil {
		slog.Warn("could not load existing data", slog.String("error", err.Error()))
		snapshot = &store.Snapshot{}
	}

	boardStore := store.NewMemStore(snapshot, persister)
	slog.Info("store started",
		slog.Int("tasks", len(snapshot.Tasks)),
		slog.Int("users", len(snapshot.Users)))

	eventHub := hub.New()
	applier := board.NewApplier(boardStore, eventHub)
	authMgr := auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, boardStore)

	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &api.Handler{
		Store:   boardStore,
		Applier: applier,
		Hub:     eventHub,
		Auth:    authMgr,
	}
	h.Mount(r)

	// Graceful shutdown: drain pending snapshot writes before exiting.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutdown signal received, finalizing disk writes")
		boardStore.Wait()
		slog.Info("persistence complete, exiting")
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("flowdeck daemon listening", slog.String("addr", addr))
	if err := r.Run(addr); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
