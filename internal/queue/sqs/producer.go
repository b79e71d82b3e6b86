package sqsqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// DispatchJob asks the outreach worker to send one campaign template to
// one target. Template and instance are resolved from the campaign at
// enqueue time so the worker needs no campaign lookup.
type DispatchJob struct {
	TargetID     string `json:"targetId"`
	CampaignID   string `json:"campaignId"`
	TemplateName string `json:"templateName"`
	Instance     string `json:"instance"`
}

// ReminderTick is one scheduled run of the promise reminder scanner.
type ReminderTick struct {
	ScheduledFor time.Time `json:"scheduledFor"`
}

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

func (p *Producer) EnqueueDispatch(ctx context.Context, job DispatchJob) error {
	return p.send(ctx, job)
}

func (p *Producer) EnqueueTick(ctx context.Context, tick ReminderTick) error {
	return p.send(ctx, tick)
}

func (p *Producer) send(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	})
	return err
}

func str(s string) *string { return &s }
