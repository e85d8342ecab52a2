package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"drawsync/config"
	"drawsync/internal/bus"
	"drawsync/internal/cache"
	"drawsync/internal/service"
	"drawsync/internal/transport/rest"
	"drawsync/internal/transport/ws"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Load()
	ctx := context.Background()

	// Redis connection (shared handle for the process lifetime)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		log.WithError(err).Fatal("failed to ping Redis")
	}
	log.WithField("addr", cfg.RedisAddr()).Info("connected to Redis")

	// NATS connection (shared handle for the process lifetime)
	nc, err := bus.Connect(cfg.NATSUrl)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to NATS")
	}
	defer nc.Close()
	log.WithField("url", cfg.NATSUrl).Info("connected to NATS")

	// Wire the relay
	canvasCache := cache.NewCanvasCache(rdb)
	presenceCache := cache.NewPresenceCache(rdb)
	drawingSvc := service.NewDrawingService(canvasCache, presenceCache)

	wsHub := ws.NewHub()
	drawingSvc.SetBroadcaster(wsHub)

	// Wire the game service bridge; the lifecycle feed is required to run.
	bridge := bus.NewBridge(bus.Wrap(nc), drawingSvc)
	if err := bridge.Start(); err != nil {
		log.WithError(err).Fatal("failed to start game event bridge")
	}
	defer bridge.Close()

	router := rest.NewRouter(&rest.Container{
		DrawingService: drawingSvc,
		GameQuerier:    bridge,
		WSHub:          wsHub,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("drawing service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("ListenAndServe")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
