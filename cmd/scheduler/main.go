package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach/internal/awsutil"
	"outreach/internal/config"
	"outreach/internal/logging"
	sqsqueue "outreach/internal/queue/sqs"
)

// The scheduler is a tick producer: it enqueues one reminder tick per
// interval and nothing else. The reminder consumer does the actual work,
// one tick at a time.
func main() {
	cfg := config.LoadScheduler()
	logging.Init("scheduler", cfg.LogFormat)

	interval, err := time.ParseDuration(cfg.TickInterval)
	if err != nil || interval <= 0 {
		slog.Error("scheduler bad tick interval", "interval", cfg.TickInterval, "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("scheduler sqs client init failed", "err", err)
		os.Exit(1)
	}
	producer := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.TickQueueURL}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "interval", interval.String())
	emit(ctx, producer)

	for {
		select {
		case <-ticker.C:
			emit(ctx, producer)
		case sig := <-sigCh:
			slog.Info("scheduler shutdown", "signal", sig.String())
			return
		}
	}
}

func emit(ctx context.Context, producer *sqsqueue.Producer) {
	tick := sqsqueue.ReminderTick{ScheduledFor: time.Now().UTC()}
	if err := producer.EnqueueTick(ctx, tick); err != nil {
		slog.Error("scheduler enqueue tick failed", "err", err)
		return
	}
	slog.Info("scheduler tick enqueued", "scheduled_for", tick.ScheduledFor)
}
