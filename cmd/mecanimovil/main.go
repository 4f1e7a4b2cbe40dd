package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"mecanimovil/api"
	"mecanimovil/config"
	"mecanimovil/engine"
	"mecanimovil/healthcache"
	"mecanimovil/messaging"
	"mecanimovil/offers"
	"mecanimovil/store"
	"mecanimovil/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "mecanimovil.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("mecanimovil", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("mecanimovil: database open (%s)", cfg.Database.Driver)

	// Marketplace API client
	apiClient := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	if _, err := apiClient.Ping(); err == nil {
		log.Printf("mecanimovil: api reachable (%s)", cfg.API.BaseURL)
	} else {
		log.Printf("mecanimovil: api not reachable (%v), starting offline", err)
	}

	// Durable cache tier: SQL by default, Redis when configured.
	var durable healthcache.DurableTier = db
	if cfg.Cache.Tier == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("mecanimovil: redis not available (%v), falling back to sql tier", err)
		} else {
			log.Printf("mecanimovil: redis connected (%s)", cfg.Redis.Address)
			durable = healthcache.NewRedisTier(redisClient)
		}
		cancel()
		defer redisClient.Close()
	}

	cache := healthcache.New(apiClient, durable, cfg.Cache.TTL)
	offerSvc := offers.NewService(apiClient)

	// Messaging client (realtime cache invalidation pushes)
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("mecanimovil: messaging connect failed (%v)", err)
	} else {
		log.Printf("mecanimovil: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		API:        apiClient,
		Cache:      cache,
		Offers:     offerSvc,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("mecanimovil: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("mecanimovil: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("mecanimovil: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("mecanimovil: stopped")
}
