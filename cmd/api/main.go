package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"outreach/internal/awsutil"
	"outreach/internal/cache"
	"outreach/internal/config"
	"outreach/internal/crm"
	"outreach/internal/gateway"
	"outreach/internal/httpserver"
	"outreach/internal/importer"
	"outreach/internal/logging"
	"outreach/internal/observability"
	sqsqueue "outreach/internal/queue/sqs"
	"outreach/internal/store/pg"
	"outreach/internal/util"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("api sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	var stats *cache.StatsCache
	if cfg.RedisAddr != "" {
		stats, err = cache.NewStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			time.Duration(cfg.StatsTTLSec)*time.Second)
		if err != nil {
			slog.Error("api redis connect failed", "err", err)
			os.Exit(1)
		}
		defer stats.Close()
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, gateway.Credentials{
		gateway.InstancePrincipal: cfg.GatewayKeyPrincipal,
		gateway.InstanceLeads:     cfg.GatewayKeyLeads,
		gateway.InstanceCobranca:  cfg.GatewayKeyCobranca,
	}, time.Duration(cfg.GatewayTimeoutSec)*time.Second)

	st := pg.New(db)
	imp := &importer.Service{
		Store: st,
		CRM:   crm.NewClient(cfg.CRMBaseURL, cfg.CRMToken, 30*time.Second),
		IDGen: util.NewTargetID,
	}
	producer := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.DispatchQueueURL}

	s := httpserver.New()
	api := &httpserver.API{
		Store:      st,
		Importer:   imp,
		Dispatcher: gw,
		Queue:      producer,
		Stats:      stats,
	}
	api.Register(s.Mux)

	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))
	s.Mux.Use(httpserver.Metrics(observability.APIRequests))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(s.Mux),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
