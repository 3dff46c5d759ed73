package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"fleet-monitor/simulation/internal/auth"
	"fleet-monitor/simulation/internal/config"
	"fleet-monitor/simulation/internal/engine"
	"fleet-monitor/simulation/internal/recorder"
	"fleet-monitor/simulation/internal/sim"
	"fleet-monitor/simulation/internal/store"
	transporthttp "fleet-monitor/simulation/internal/transport/http"
	"fleet-monitor/simulation/internal/transport/ws"
	"fleet-monitor/simulation/internal/trigger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	cfg := config.Load()
	configureLogging(cfg)

	ctx := context.Background()

	db, err := store.NewTimescaleStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to TimescaleDB: %v", err)
	}
	defer db.Close()
	log.Info("Connected to TimescaleDB")

	// live state is best-effort; the simulation runs without Redis
	var live recorder.LiveStore
	var redisPing transporthttp.Pinger
	redis, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Warnf("Redis unavailable, running without live state: %v", err)
	} else {
		defer redis.Close()
		live = redis
		redisPing = redis
		log.Info("Connected to Redis")
	}

	hub := ws.NewHub()
	defer hub.Close()

	rec := recorder.New(db, live, hub)
	simulator := sim.New(cfg, time.Now())
	evaluator := trigger.NewEvaluator(cfg.DefaultCooldown())
	eng := engine.New(cfg, db, simulator, evaluator, rec)

	if err := eng.Initialize(ctx); err != nil {
		log.Fatalf("Failed to load initial working set: %v", err)
	}
	eng.Start()

	srv := transporthttp.NewServer(eng, db, redisPing, hub)
	mw := transporthttp.NewAuthMiddleware(auth.NewAuthenticator(cfg))
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: srv.Routes(mw),
	}

	go func() {
		log.Infof("HTTP server listening on :%s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown failed: %v", err)
	}

	// the engine finishes an in-flight pass before returning
	eng.Stop()
	log.Info("Shutdown complete")
}

func configureLogging(cfg *config.Config) {
	log.SetLevel(cfg.GetLogLevel())
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.LogFilePath == "" {
		return
	}

	logDir := filepath.Dir(cfg.LogFilePath)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			log.Fatalf("Failed to create log directory: %v", err)
		}
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    100,
		MaxBackups: 366,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}

	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	hook := lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: lumberjackLogger,
		log.FatalLevel: lumberjackLogger,
		log.ErrorLevel: lumberjackLogger,
		log.WarnLevel:  lumberjackLogger,
		log.InfoLevel:  lumberjackLogger,
		log.DebugLevel: lumberjackLogger,
		log.TraceLevel: lumberjackLogger,
	}, fileFmt)

	log.AddHook(hook)
}
