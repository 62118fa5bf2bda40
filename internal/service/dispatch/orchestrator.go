package dispatch

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"gitee.com/flycash/notification-dispatch/internal/service/condition"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
)

// PublishNotifier 订单处理完成后唤醒对应的投递循环
type PublishNotifier interface {
	NotifyEmail()
	NotifySms(policy domain.SendingTimePolicy)
}

// Orchestrator 订单调度编排器
type Orchestrator interface {
	// ProcessOrder 首次调度一个到期订单
	// 返回 retryRequired 为 true 表示订单要回滚到 REGISTERED 等待下一轮
	ProcessOrder(ctx context.Context, order domain.NotificationOrder) (retryRequired bool, err error)
	// ProcessOrderRetry 重试调度，生成逻辑幂等
	ProcessOrderRetry(ctx context.Context, order domain.NotificationOrder) (retryRequired bool, err error)
}

type orchestrator struct {
	evaluator condition.Evaluator
	email     channel.EmailService
	sms       channel.SmsService
	composite *channel.CompositeProcessor
	orderRepo repository.OrderRepository
	notifier  PublishNotifier
	logger    *elog.Component
}

// NewOrchestrator 创建订单调度编排器
func NewOrchestrator(
	evaluator condition.Evaluator,
	email channel.EmailService,
	sms channel.SmsService,
	composite *channel.CompositeProcessor,
	orderRepo repository.OrderRepository,
	notifier PublishNotifier,
) Orchestrator {
	return &orchestrator{
		evaluator: evaluator,
		email:     email,
		sms:       sms,
		composite: composite,
		orderRepo: orderRepo,
		notifier:  notifier,
		logger:    elog.DefaultLogger,
	}
}

func (o *orchestrator) ProcessOrder(ctx context.Context, order domain.NotificationOrder) (bool, error) {
	return o.process(ctx, order, false)
}

func (o *orchestrator) ProcessOrderRetry(ctx context.Context, order domain.NotificationOrder) (bool, error) {
	return o.process(ctx, order, true)
}

func (o *orchestrator) process(ctx context.Context, order domain.NotificationOrder, isRetry bool) (bool, error) {
	switch o.evaluator.Evaluate(ctx, order, isRetry) {
	case condition.OutcomeNotMet:
		if err := o.orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusSendConditionNotMet); err != nil {
			return false, err
		}
		o.emitStatusFeed(ctx, order.ID, domain.OrderStatusSendConditionNotMet)
		return false, nil
	case condition.OutcomeInconclusive:
		// 条件暂时没法判断，退回去等下一轮
		return true, nil
	case condition.OutcomeMet:
	}

	if err := o.dispatch(ctx, order, isRetry); err != nil {
		return false, err
	}

	// 唤醒投递循环，让新生成的单元尽快出队
	if order.Channel.HasEmail() {
		o.notifier.NotifyEmail()
	}
	if order.Channel.HasSms() {
		o.notifier.NotifySms(order.SendingTimePolicy)
	}

	// 所有单元都直接落了终态（比如全部预留）时订单当场完结
	allTerminal, err := o.orderRepo.AllUnitsTerminal(ctx, order.ID)
	if err != nil {
		return false, err
	}
	if allTerminal {
		if err := o.orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusCompleted); err != nil {
			return false, err
		}
		o.emitStatusFeed(ctx, order.ID, domain.OrderStatusCompleted)
	}
	return false, nil
}

func (o *orchestrator) dispatch(ctx context.Context, order domain.NotificationOrder, isRetry bool) error {
	switch order.Channel {
	case domain.ChannelEmail:
		if isRetry {
			return o.email.ProcessOrderRetry(ctx, order)
		}
		return o.email.ProcessOrder(ctx, order)
	case domain.ChannelSms:
		if isRetry {
			return o.sms.ProcessOrderRetry(ctx, order)
		}
		return o.sms.ProcessOrder(ctx, order)
	default:
		if isRetry {
			return o.composite.ProcessOrderRetry(ctx, order)
		}
		return o.composite.ProcessOrder(ctx, order)
	}
}

// emitStatusFeed 状态流水是旁路数据，写失败只记日志，绝不影响订单主流程
func (o *orchestrator) emitStatusFeed(ctx context.Context, id uuid.UUID, status domain.OrderStatus) {
	if err := o.orderRepo.InsertStatusFeed(ctx, id, status); err != nil {
		o.logger.Warn("写入订单状态流水失败",
			elog.String("orderID", id.String()),
			elog.String("status", status.String()),
			elog.FieldErr(err))
	}
}
