package notification

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/pkg/mqx"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// EmailNotificationEventProducer 邮件送达单元事件生产者
type EmailNotificationEventProducer interface {
	Produce(ctx context.Context, evt EmailNotificationEvent) error
	// ProduceBatch 返回投递失败的子集
	ProduceBatch(ctx context.Context, evts []EmailNotificationEvent) ([]EmailNotificationEvent, error)
}

func NewEmailNotificationEventProducer(producer *kafka.Producer) (EmailNotificationEventProducer, error) {
	return mqx.NewGeneralProducer[EmailNotificationEvent](producer, emailEventName)
}

// SmsNotificationEventProducer 短信送达单元事件生产者
type SmsNotificationEventProducer interface {
	Produce(ctx context.Context, evt SmsNotificationEvent) error
	// ProduceBatch 返回投递失败的子集
	ProduceBatch(ctx context.Context, evts []SmsNotificationEvent) ([]SmsNotificationEvent, error)
}

func NewSmsNotificationEventProducer(producer *kafka.Producer) (SmsNotificationEventProducer, error) {
	return mqx.NewGeneralProducer[SmsNotificationEvent](producer, smsEventName)
}
