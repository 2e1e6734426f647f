package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"mlscraper/internal/config"
	"mlscraper/internal/core/acquire"
	"mlscraper/internal/core/archive"
	"mlscraper/internal/core/browser"
	"mlscraper/internal/core/fetch"
	"mlscraper/internal/core/job"
	"mlscraper/internal/core/ocr"
	"mlscraper/internal/logger"
	rds "mlscraper/internal/platform/redis"
	tasks "mlscraper/internal/platform/tasks"
	"mlscraper/internal/server"
	"mlscraper/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[mlscraper] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	// Core services
	jobSvc := job.NewJobService(redisSvc)

	timeouts := browser.Timeouts{
		Navigation: time.Duration(cfg.Tuning.NavigationTimeoutMs) * time.Millisecond,
		Operation:  time.Duration(cfg.Tuning.FetchWatchdogMs) * time.Millisecond,
		Close:      time.Duration(cfg.Tuning.CloseTimeoutMs) * time.Millisecond,
	}
	launcher := browser.NewLauncher(cfg.BrowserHeadless, timeouts, logger.New("browser"))

	var recognizer acquire.Recognizer
	if cfg.OCRMock || cfg.OCRServiceURL == "" {
		recognizer = ocr.NewMock()
	} else {
		recognizer = ocr.NewService(cfg.OCRServiceURL, logger.New("ocr"))
	}

	var archiver acquire.Archiver
	if cfg.ArchivePages {
		archiver = archive.New(archive.Config{
			DataDir:            cfg.DataDir,
			SupabaseURL:        cfg.SupabaseURL,
			SupabaseServiceKey: cfg.SupabaseServiceKey,
			SupabaseBucket:     cfg.SupabaseBucket,
		}, logger.New("archive"))
	}

	acquireSvc := acquire.NewService(cfg.Tuning, acquire.Deps{
		Sessions:  acquire.BrowserFactory{Launcher: launcher},
		Fetcher:   fetch.NewEngine(logger.New("fetch")),
		Recognize: recognizer,
		Archive:   archiver,
		Cache:     redisSvc,
	}, logger.New("acquire"))

	acquireHandler := acquire.NewHandler(acquireSvc, taskClient, jobSvc, cfg.TaskMaxRetries, logger.New("acquire"))

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(tasks.TaskTypeAcquire, acquireHandler.HandleTask)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "ML Scraper Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Serve saved artifacts (archived pages, screenshots) from DATA_DIR
	app.Static("/files", cfg.DataDir)

	deps := server.Dependencies{
		Acquire:     acquireHandler,
		Redis:       redisSvc,
		Recognition: recognizer.Available,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(5 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfof("Shutting down...")
		asynqServer.Shutdown()
		_ = taskClient.Close()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
