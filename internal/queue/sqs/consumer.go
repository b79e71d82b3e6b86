package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type Consumer struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type DispatchHandler func(ctx context.Context, job DispatchJob) error

// PollDispatch processes dispatch jobs with a worker pool. A message is
// deleted only after its handler succeeds; failures are left to SQS
// redrive/DLQ.
func (c *Consumer) PollDispatch(ctx context.Context, workers int, handler DispatchHandler) error {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan types.Message, workers*2)
	errCh := make(chan error, 1)

	sendErr := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				// poison / invalid messages are deleted so they don't loop forever
				if m.Body == nil {
					c.delete(ctx, m)
					continue
				}
				var job DispatchJob
				if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
					c.delete(ctx, m)
					continue
				}
				if err := handler(ctx, job); err == nil {
					c.delete(ctx, m)
				} else {
					slog.Error("dispatch handler error", "err", err, "target_id", job.TargetID)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		c.receiveLoop(ctx, jobs, sendErr)
	}()

	err := <-errCh
	wg.Wait()
	return err
}

func (c *Consumer) receiveLoop(ctx context.Context, jobs chan<- types.Message, sendErr func(error)) {
	for {
		if ctx.Err() != nil {
			sendErr(ctx.Err())
			return
		}

		out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.QueueURL,
			MaxNumberOfMessages: c.MaxMessages,
			WaitTimeSeconds:     c.WaitTimeSeconds,
			VisibilityTimeout:   c.VisibilityTimeout,
		})
		if err != nil {
			slog.Error("sqs receive message failed", "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, m := range out.Messages {
			select {
			case jobs <- m:
			case <-ctx.Done():
				sendErr(ctx.Err())
				return
			}
		}
	}
}

func (c *Consumer) delete(ctx context.Context, m types.Message) {
	_, _ = c.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
}
