package reminder

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
	"outreach/internal/store"
	"outreach/internal/util"
)

type Store interface {
	ListDuePromises(ctx context.Context, from, to time.Time) ([]store.DuePromise, error)
	MarkReminderSent(ctx context.Context, promiseID string, now time.Time) (bool, error)
}

type Sender interface {
	SendText(ctx context.Context, phone, text string, delayMs int, instance gateway.Instance) gateway.DeliveryResult
}

// Scanner sends one reminder per promise due today. The reminder_sent
// flag is the only idempotency barrier: a promise whose send fails stays
// eligible and is retried by the next tick.
type Scanner struct {
	Store   Store
	Sender  Sender
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
	DelayMs int

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

type TickSummary struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Tick runs one scan. Send failures are isolated per promise; only
// infrastructure errors (store) abort the tick so the queue can redrive
// it.
func (s *Scanner) Tick(ctx context.Context) (TickSummary, error) {
	now := s.now()
	from, to := dayWindow(now)

	promises, err := s.Store.ListDuePromises(ctx, from, to)
	if err != nil {
		return TickSummary{}, err
	}

	sum := TickSummary{Due: len(promises)}
	for _, p := range promises {
		sent, err := s.remind(ctx, p)
		if err != nil {
			return sum, err
		}
		if sent {
			sum.Sent++
		} else {
			sum.Failed++
		}
	}

	slog.Info("reminder tick finished", "due", sum.Due, "sent", sum.Sent, "failed", sum.Failed)
	return sum, nil
}

func (s *Scanner) remind(ctx context.Context, p store.DuePromise) (bool, error) {
	if s.Limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.Limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			observability.Reminders.WithLabelValues("rate_limited_local").Inc()
			return false, nil
		}
	}

	res, err := s.send(ctx, p)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// provider protection tripped; the flag stays false and the next
		// tick re-attempts
		observability.Reminders.WithLabelValues("cb_open").Inc()
		return false, nil
	}

	if !res.Success {
		observability.Reminders.WithLabelValues("failed").Inc()
		slog.Warn("reminder send failed",
			"promise_id", p.ID,
			"status", res.StatusCode,
			"permanent", res.PermanentFailure,
			"err", res.ErrorMessage,
		)
		return false, nil
	}

	flipped, err := s.Store.MarkReminderSent(ctx, p.ID, s.now().UTC())
	if err != nil {
		return false, err
	}
	if !flipped {
		// another run won the flag; the message went out twice, which the
		// optimistic check exists to make loud
		observability.Reminders.WithLabelValues("lost_race").Inc()
		slog.Warn("reminder flag already set after send", "promise_id", p.ID)
		return true, nil
	}

	observability.Reminders.WithLabelValues("sent").Inc()
	slog.Info("reminder sent", "promise_id", p.ID, "message_id", res.MessageID)
	return true, nil
}

func (s *Scanner) send(ctx context.Context, p store.DuePromise) (gateway.DeliveryResult, error) {
	msg := ComposeMessage(p.ContactName, p.Amount)

	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return s.Sender.SendText(reqCtx, p.Phone, msg, s.DelayMs, gateway.InstanceCobranca), nil
	}

	if s.Breaker == nil {
		res, _ := call()
		return res.(gateway.DeliveryResult), nil
	}

	out, err := s.Breaker.Execute(func() (any, error) {
		res, _ := call()
		dr := res.(gateway.DeliveryResult)
		if !dr.Success && !dr.PermanentFailure {
			// transient failures feed the breaker
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

// ComposeMessage builds the plain-text reminder: first name plus the
// promised amount, or a placeholder when no amount was recorded.
func ComposeMessage(contactName string, amount *int64) string {
	first := util.FirstName(contactName)
	amt := "não informado"
	if amount != nil {
		amt = "R$ " + util.FormatMinorUnits(*amount)
	}
	return fmt.Sprintf(
		"Oi %s! Passando para lembrar do seu compromisso de pagamento no valor de %s que vence hoje. Podemos contar com você? Qualquer dúvida é só responder por aqui.",
		first, amt,
	)
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// dayWindow is the inclusive [startOfToday, endOfToday] range in the
// system's local date.
func dayWindow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := time.Date(y, m, d, 23, 59, 59, 999999999, now.Location())
	return start, end
}
