package outreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"outreach/internal/gateway"
	"outreach/internal/observability"
	sqsqueue "outreach/internal/queue/sqs"
	"outreach/internal/store"
	"outreach/internal/util"
)

type Store interface {
	GetTargetForWorker(ctx context.Context, targetID string) (store.TargetForWorker, error)
	MarkTargetState(ctx context.Context, in store.TargetStateUpdate) error
}

type Sender interface {
	SendTemplate(ctx context.Context, phone string, tpl gateway.Template, instance gateway.Instance) gateway.DeliveryResult
}

// Processor consumes dispatch jobs and drives each target through
// pending -> contacted -> succeeded | failed. Transient failures leave
// the target in contacted and bubble the error up so the queue redrives
// the job; permanent failures mark the target failed and swallow the
// error so the job is not retried.
type Processor struct {
	Store   Store
	Sender  Sender
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
}

func (p *Processor) Process(ctx context.Context, job sqsqueue.DispatchJob) error {
	t, err := p.Store.GetTargetForWorker(ctx, job.TargetID)
	if err != nil {
		return err
	}

	// Idempotent consumer: a redriven job for a finished or disabled
	// target is a no-op.
	if !t.Enabled || t.State == "succeeded" || t.State == "failed" {
		return nil
	}

	if p.Limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			observability.GatewaySend.WithLabelValues("template", "rate_limited_local", "0").Inc()
			return err
		}
	}

	if t.State == "pending" {
		if err := p.Store.MarkTargetState(ctx, store.TargetStateUpdate{
			ID: t.ID, State: "contacted", Now: util.NowUTC(),
		}); err != nil {
			return err
		}
	}

	tpl := gateway.Template{
		Name: job.TemplateName,
		BodyParams: []string{
			util.FirstName(t.Name),
			util.FormatMinorUnits(t.DebtAmount),
		},
	}
	instance := gateway.ParseInstance(job.Instance)

	res, err := p.send(ctx, t.Phone, tpl, instance)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// provider protection, not a delivery verdict; leave the state
		// alone and let the queue redrive
		return err
	}

	if res.Success {
		if err := p.Store.MarkTargetState(ctx, store.TargetStateUpdate{
			ID: t.ID, State: "succeeded", Now: util.NowUTC(),
		}); err != nil {
			return err
		}
		slog.Info("outreach dispatched",
			"target_id", t.ID,
			"campaign_id", job.CampaignID,
			"message_id", res.MessageID,
		)
		return nil
	}

	if res.PermanentFailure {
		if err := p.Store.MarkTargetState(ctx, store.TargetStateUpdate{
			ID: t.ID, State: "failed", Now: util.NowUTC(),
		}); err != nil {
			return err
		}
		slog.Warn("outreach permanently failed",
			"target_id", t.ID,
			"campaign_id", job.CampaignID,
			"status", res.StatusCode,
			"err", res.ErrorMessage,
		)
		return nil
	}

	slog.Warn("outreach transient failure",
		"target_id", t.ID,
		"campaign_id", job.CampaignID,
		"status", res.StatusCode,
		"err", res.ErrorMessage,
	)
	return fmt.Errorf("gateway send failed for target %s: status=%d %s", t.ID, res.StatusCode, res.ErrorMessage)
}

func (p *Processor) send(ctx context.Context, phone string, tpl gateway.Template, instance gateway.Instance) (gateway.DeliveryResult, error) {
	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return p.Sender.SendTemplate(reqCtx, phone, tpl, instance), nil
	}

	if p.Breaker == nil {
		res, _ := call()
		return res.(gateway.DeliveryResult), nil
	}

	out, err := p.Breaker.Execute(func() (any, error) {
		res, _ := call()
		dr := res.(gateway.DeliveryResult)
		if !dr.Success && !dr.PermanentFailure {
			return dr, errors.New(dr.ErrorMessage)
		}
		return dr, nil
	})
	if err != nil {
		if dr, ok := out.(gateway.DeliveryResult); ok {
			return dr, nil
		}
		return gateway.DeliveryResult{}, err
	}
	return out.(gateway.DeliveryResult), nil
}
