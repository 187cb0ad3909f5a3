package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/cache"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/config"
	internalhttp "github.com/Xtute-Technologies/tutorlix-next-sub002/internal/http"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/jobs"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/logging"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New("portal")
	client := api.New(cfg.APIBaseURL, cfg.APITimeout, api.WithLogger(logger))
	defer client.Close()

	var profiles cache.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		profiles = cache.NewRedis(redisClient, "tutorlix:profile", cfg.ProfileCacheTTL)
	} else {
		memory := cache.NewMemory(cache.Config{TTL: cfg.ProfileCacheTTL, MaxSize: cfg.ProfileCacheMaxSize})
		prometheus.MustRegister(cache.NewStatsCollector("profile", memory))
		jobs.StartCacheSweepJob(ctx, cfg.CacheSweepInterval, memory)
		profiles = memory
	}

	server := internalhttp.NewServer(cfg, client, profiles, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("portal listening on %s (api %s)", cfg.HTTPAddr, cfg.APIBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
