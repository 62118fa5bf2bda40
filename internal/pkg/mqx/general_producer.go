package mqx

import (
	"context"
	"encoding/json"
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/hashicorp/go-multierror"
)

// Producer 泛型消息生产者
// ProduceBatch 返回投递失败的那部分消息，调用方据此做补偿
type Producer[T any] interface {
	Produce(ctx context.Context, evt T) error
	ProduceBatch(ctx context.Context, evts []T) ([]T, error)
}

type GeneralProducer[T any] struct {
	producer *kafka.Producer
	topic    string
}

func NewGeneralProducer[T any](producer *kafka.Producer, topic string) (*GeneralProducer[T], error) {
	if producer == nil {
		return nil, fmt.Errorf("%w: producer 不能为空", errs.ErrInvalidParameter)
	}
	return &GeneralProducer[T]{
		producer: producer,
		topic:    topic,
	}, nil
}

// Produce 单条投递，等待 broker 的投递回执
func (p *GeneralProducer[T]) Produce(ctx context.Context, evt T) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Value:          data,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrPublishFailed, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryChan:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("%w: 未知的投递事件 %T", errs.ErrPublishFailed, e)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("%w: %w", errs.ErrPublishFailed, msg.TopicPartition.Error)
		}
		return nil
	}
}

// ProduceBatch 批量投递
// 只要 ctx 未取消就逐条投完，返回失败的子集
func (p *GeneralProducer[T]) ProduceBatch(ctx context.Context, evts []T) ([]T, error) {
	var (
		failed []T
		errSum error
	)
	for i := range evts {
		if ctx.Err() != nil {
			failed = append(failed, evts[i:]...)
			errSum = multierror.Append(errSum, ctx.Err())
			break
		}
		if err := p.Produce(ctx, evts[i]); err != nil {
			failed = append(failed, evts[i])
			errSum = multierror.Append(errSum, err)
		}
	}
	return failed, errSum
}
