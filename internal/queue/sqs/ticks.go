package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type TickHandler func(ctx context.Context, tick ReminderTick) error

// PollTicks consumes reminder ticks strictly one at a time. The fixed
// concurrency of 1 means no two ticks ever overlap; a slow tick delays
// the next instead of racing it.
func (c *Consumer) PollTicks(ctx context.Context, handler TickHandler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.QueueURL,
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     c.WaitTimeSeconds,
			VisibilityTimeout:   c.VisibilityTimeout,
		})
		if err != nil {
			slog.Error("sqs receive tick failed", "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, m := range out.Messages {
			if m.Body == nil {
				c.delete(ctx, m)
				continue
			}
			var tick ReminderTick
			if err := json.Unmarshal([]byte(*m.Body), &tick); err != nil {
				// bad payload => delete to avoid endless redrive
				c.delete(ctx, m)
				continue
			}

			if err := handler(ctx, tick); err == nil {
				c.delete(ctx, m)
			} else {
				// not deleted: the queue redrives the whole tick; promises
				// already marked reminded are skipped on the re-run
				slog.Error("tick handler error", "err", err)
			}
		}
	}
}
