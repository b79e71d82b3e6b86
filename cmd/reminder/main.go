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
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"outreach/internal/awsutil"
	"outreach/internal/config"
	"outreach/internal/gateway"
	"outreach/internal/httpserver"
	"outreach/internal/logging"
	"outreach/internal/observability"
	sqsqueue "outreach/internal/queue/sqs"
	"outreach/internal/reminder"
	"outreach/internal/store/pg"
)

func main() {
	cfg := config.LoadReminder()
	logging.Init("reminder", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("reminder db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("reminder sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	gw := gateway.NewClient(cfg.GatewayBaseURL, gateway.Credentials{
		gateway.InstancePrincipal: cfg.GatewayKeyPrincipal,
		gateway.InstanceLeads:     cfg.GatewayKeyLeads,
		gateway.InstanceCobranca:  cfg.GatewayKeyCobranca,
	}, time.Duration(cfg.GatewayTimeoutSec)*time.Second)

	scanner := &reminder.Scanner{
		Store:   pg.New(db),
		Sender:  gw,
		Limiter: rate.NewLimiter(rate.Limit(cfg.GatewayRPS), cfg.GatewayBurst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gateway",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
		DelayMs: cfg.ReminderDelayMs,
	}

	consumer := &sqsqueue.Consumer{
		SQS: sqsClient, QueueURL: cfg.TickQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	healthMux := httpserver.HealthMux()
	healthMux.HandleFunc("/healthz", httpserver.Healthz())
	healthMux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
	))
	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(healthMux),
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("reminder health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("reminder starting poll", "queue_url", cfg.TickQueueURL)
		pollErrCh <- consumer.PollTicks(ctx, func(ctx context.Context, tick sqsqueue.ReminderTick) error {
			slog.Info("reminder tick start", "scheduled_for", tick.ScheduledFor)
			_, err := scanner.Tick(ctx)
			return err
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("reminder poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("reminder health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("reminder shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
}
