package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tutorjudge/internal/common/mq"
	"tutorjudge/internal/judge/model"
	appErr "tutorjudge/pkg/errors"
)

// DefaultStatusTopic receives final submission status events.
const DefaultStatusTopic = "judge.status.final"

// StatusEventPublisher publishes status events for async processing.
type StatusEventPublisher interface {
	PublishFinalStatus(ctx context.Context, status model.SubmissionStatus) error
}

// MQStatusEventPublisher publishes status events to a message queue.
type MQStatusEventPublisher struct {
	queue mq.Producer
	topic string
	now   func() time.Time
}

// NewMQStatusEventPublisher creates a new MQ status event publisher.
func NewMQStatusEventPublisher(queue mq.Producer, topic string) *MQStatusEventPublisher {
	if topic == "" {
		topic = DefaultStatusTopic
	}
	return &MQStatusEventPublisher{queue: queue, topic: topic, now: time.Now}
}

// PublishFinalStatus publishes a final status event keyed by submission id.
func (p *MQStatusEventPublisher) PublishFinalStatus(ctx context.Context, status model.SubmissionStatus) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("status publisher is not configured")
	}
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	event := model.StatusEvent{
		Type:      model.StatusEventFinal,
		Status:    status,
		CreatedAt: p.now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = status.SubmissionID
	message.SetHeader("event", string(model.StatusEventFinal))
	message.SetHeader("verdict", string(status.Verdict))
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.MQPublishFailed, "publish status event failed")
	}
	return nil
}
