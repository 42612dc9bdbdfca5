package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/opjourney/opjourney/exporters/prometheus"
	"github.com/opjourney/opjourney/internal/store"
	"github.com/opjourney/opjourney/pkg/api"
	"github.com/opjourney/opjourney/pkg/auth"
	"github.com/opjourney/opjourney/pkg/config"
	"github.com/opjourney/opjourney/pkg/journey"
	"github.com/opjourney/opjourney/pkg/logging"
	"github.com/opjourney/opjourney/pkg/mirror"
	"github.com/opjourney/opjourney/pkg/ops"
	"github.com/opjourney/opjourney/pkg/ratelimit"
	"github.com/opjourney/opjourney/pkg/shutdown"
	"github.com/opjourney/opjourney/pkg/tracing"
)

const serviceName = "journeyd"

// Version is set at build time.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: journeyd.yaml in cwd or /etc/journeyd)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewLogger(logging.INFO, false).Fatal("Failed to load configuration",
			map[string]interface{}{"error": err.Error()})
	}

	log := logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	log.Info("Starting journeyd", map[string]interface{}{
		"version":  Version,
		"listen":   cfg.Server.Listen,
		"tracking": cfg.Tracking.Enabled,
	})

	// The tracking switch must be set before the service context is built;
	// the Observer is installed once, at startup.
	journey.SetTrackingEnabled(cfg.Tracking.Enabled)
	svc := ops.NewServiceContext(log)

	sd := shutdown.New(30*time.Second, log)

	s := store.New(cfg.Store.CommitInterval)
	s.Start()
	sd.Register(func(ctx context.Context) error {
		s.Close()
		return nil
	})

	var m *mirror.Mirror
	if cfg.Mirror.Target != "" {
		m = mirror.New(cfg.Mirror.Target, cfg.Mirror.Rate, log)
		m.Start()
		log.Info("Read mirroring enabled", map[string]interface{}{"mirror": m})
		sd.Register(func(ctx context.Context) error {
			m.Close()
			return nil
		})
	}

	tracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Enabled:        cfg.Tracing.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", map[string]interface{}{"error": err.Error()})
	}
	sd.Register(tracer.Shutdown)

	router := mux.NewRouter()
	router.Use(api.OperationMiddleware(svc))
	if cfg.Tracing.Enabled {
		router.Use(tracing.HTTPMiddleware(tracer, serviceName))
	}
	router.Use(api.OpTimeGossipMiddleware(s))

	if cfg.Auth.Enabled {
		km := auth.NewKeyManager()
		for _, client := range cfg.Auth.Clients {
			key, err := km.GenerateKey(client, cfg.Auth.KeyTTL)
			if err != nil {
				log.Fatal("Failed to generate API key", map[string]interface{}{
					"client": client, "error": err.Error(),
				})
			}
			// Keys are not persisted; hand them out at startup.
			log.Info("Generated API key", map[string]interface{}{
				"client": client, "key": key, "ttl": cfg.Auth.KeyTTL.String(),
			})
		}
		router.Use(km.Middleware("/health"))

		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					km.CleanupExpired()
				case <-sd.Done():
					return
				}
			}
		}()
	}

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		router.Use(limiter.Middleware(ratelimit.ClientKeyFunc))

		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					limiter.Cleanup(time.Hour)
				case <-sd.Done():
					return
				}
			}
		}()
	}

	handler := api.NewHandler(svc, s, m, log)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	sd.Register(srv.Shutdown)

	go func() {
		log.Info("API server listening", map[string]interface{}{"addr": cfg.Server.Listen})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("API server error", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	if cfg.Server.MetricsListen != "" {
		exporter := prometheus.NewExporter(svc.Observer(), s, m)
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", exporter).Methods("GET")

		metricsSrv := &http.Server{
			Addr:         cfg.Server.MetricsListen,
			Handler:      metricsRouter,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		sd.Register(metricsSrv.Shutdown)

		go func() {
			log.Info("Metrics server listening", map[string]interface{}{"addr": cfg.Server.MetricsListen})
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Metrics server error", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	sd.Wait()
	sd.Shutdown()
}
