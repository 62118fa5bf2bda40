package channel

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/domain"
)

const (
	// 邮件走外部 SMTP 中继，单批可以大一些
	defaultEmailBatchSize = 500
	// 短信网关限速严格，批次收小
	defaultSmsBatchSize = 50
	// 过期清理单批上限
	terminateBatchSize = 1000
)

// EmailService 邮件渠道服务
// 负责送达单元的生成、投递、回执落库和过期清理
type EmailService interface {
	// ProcessOrder 首次调度：解析缺失的联系点后生成送达单元
	ProcessOrder(ctx context.Context, order domain.NotificationOrder) error
	// ProcessOrderRetry 重试调度：幂等，已登记的等价单元会被跳过
	ProcessOrderRetry(ctx context.Context, order domain.NotificationOrder) error
	// ProcessOrderWithoutAddressLookup 接收者列表已由上游解析完毕，直接生成
	ProcessOrderWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error
	ProcessOrderRetryWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error
	// SendNotifications 捞一批 NEW 单元投递到消息队列
	SendNotifications(ctx context.Context) error
	// UpdateSendStatus 外部送达回执落库
	UpdateSendStatus(ctx context.Context, update domain.SendStatusUpdate) error
	// TerminateExpiredNotifications 清理过期单元，返回本轮处理数
	TerminateExpiredNotifications(ctx context.Context) (int64, error)
}

// SmsService 短信渠道服务，投递入口按发送时段策略分流
type SmsService interface {
	ProcessOrder(ctx context.Context, order domain.NotificationOrder) error
	ProcessOrderRetry(ctx context.Context, order domain.NotificationOrder) error
	ProcessOrderWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error
	ProcessOrderRetryWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error
	// SendNotifications 按策略捞 NEW 单元投递，DAYTIME 只在窗口内放行
	SendNotifications(ctx context.Context, policy domain.SendingTimePolicy) error
	UpdateSendStatus(ctx context.Context, update domain.SendStatusUpdate) error
	TerminateExpiredNotifications(ctx context.Context) (int64, error)
}
