package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"busmate/internal/arrival"
	"busmate/internal/cache"
	"busmate/internal/config"
	"busmate/internal/handler"
	"busmate/internal/hub"
	"busmate/internal/location"
	"busmate/internal/middleware"
	"busmate/internal/pipeline"
	"busmate/internal/recon"
	"busmate/internal/session"
	"busmate/pkg/arrivalapi"
	"busmate/pkg/clovaocr"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting busmate server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"redis_enabled", cfg.RedisEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var persister session.Persister
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("redis unavailable, sessions will not survive restarts", "error", err)
		} else {
			defer redisCache.Close()
			persister = redisCache
		}
	}

	sessions := session.NewStore(persister, logger)
	if err := sessions.Load(ctx); err != nil {
		logger.Error("failed to restore session", "error", err)
	}

	wsHub := hub.NewHub(logger)
	engine := recon.NewEngine(cfg.NotifyDebounce, wsHub, logger)

	arrivalClient := arrivalapi.New(cfg.ArrivalAPIBaseURL)
	poller := arrival.NewPoller(arrivalClient, engine, sessions,
		cfg.ArrivalPollInterval, cfg.ArrivalReadyInterval, cfg.ArrivalReadyAttempts, logger)

	ocrClient := clovaocr.New(cfg.ClovaEndpoint, cfg.ClovaSecretKey, cfg.ClovaAccessKey)
	processor := pipeline.NewProcessor(pipeline.Config{
		TargetLabel:   cfg.DetectTargetLabel,
		MinConfidence: cfg.DetectMinConfidence,
		MaxRegions:    cfg.DetectMaxRegions,
		MaxInFlight:   int64(cfg.OCRMaxInFlight),
	}, ocrClient, engine, logger)

	geo := location.NewReportedGeolocator()
	channel := location.NewChannel(cfg.LocationWSURL, cfg.WSReconnectDelay, cfg.WSMaxReconnectAttempts, logger)
	tracker := location.NewTracker(channel, geo, sessions, cfg.LocationSampleInterval, logger)

	channel.SetOnMessage(tracker.HandleMessage)
	tracker.SetNoNearbyBusStopsCallback(func(message string) {
		wsHub.Broadcast(hub.EventNoNearbyStops, map[string]string{"message": message})
	})
	tracker.SetNearbyBusStopsFoundCallback(func() {
		wsHub.Broadcast(hub.EventNearbyStopsFound, nil)
	})

	httpHandler := handler.NewHTTPHandler(arrivalClient, sessions, engine, processor, tracker, geo, logger)
	wsHandler := handler.NewWSHandler(wsHub, logger)
	healthHandler := handler.NewHealthHandler(poller)

	mux := http.NewServeMux()

	// Frames get a tighter per-IP budget than the rest of the surface:
	// every accepted frame can fan out into OCR calls.
	frameLimiter := middleware.NewRateLimiter(cfg.FrameRateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
	mux.Handle("POST /v1/frames", frameLimiter.Middleware(http.HandlerFunc(httpHandler.PostFrame)))
	mux.HandleFunc("POST /v1/registration", httpHandler.RegisterBus)
	mux.HandleFunc("DELETE /v1/registration", httpHandler.UnregisterBus)
	mux.HandleFunc("POST /v1/position", httpHandler.PostPosition)
	mux.HandleFunc("POST /v1/voice", httpHandler.PostVoice)
	mux.HandleFunc("GET /v1/status", httpHandler.Status)
	mux.HandleFunc("/v1/events", wsHandler.ServeWS)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
	root := rateLimiter.Middleware(handler.CORSMiddleware(handler.GzipMiddleware(mux)))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)

	go poller.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()
	tracker.StopTracking()
	processor.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
