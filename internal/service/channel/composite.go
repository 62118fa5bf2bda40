package channel

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
	"gitee.com/flycash/notification-dispatch/internal/service/contact"
	"golang.org/x/sync/errgroup"
)

// CompositeProcessor 多媒介渠道处理器
// 负责 EMAIL_AND_SMS 与两个偏好渠道：先统一解析联系点，
// 再把接收者拆分到单媒介渠道服务上生成送达单元
type CompositeProcessor struct {
	email    EmailService
	sms      SmsService
	resolver contact.Resolver
	idGen    timeutil.IDGenerator
}

// NewCompositeProcessor 创建多媒介渠道处理器
func NewCompositeProcessor(email EmailService, sms SmsService, resolver contact.Resolver, idGen timeutil.IDGenerator) *CompositeProcessor {
	return &CompositeProcessor{
		email:    email,
		sms:      sms,
		resolver: resolver,
		idGen:    idGen,
	}
}

func (p *CompositeProcessor) ProcessOrder(ctx context.Context, order domain.NotificationOrder) error {
	return p.process(ctx, order, false)
}

func (p *CompositeProcessor) ProcessOrderRetry(ctx context.Context, order domain.NotificationOrder) error {
	return p.process(ctx, order, true)
}

func (p *CompositeProcessor) process(ctx context.Context, order domain.NotificationOrder, isRetry bool) error {
	recipients := order.Recipients
	missing := WithoutAddresses(recipients)
	if len(missing) > 0 {
		resolved, err := p.resolver.Resolve(ctx, missing, order.ResourceID, contact.ModeForChannel(order.Channel))
		if err != nil {
			return err
		}
		recipients = MergeResolved(recipients, resolved)
	}

	switch order.Channel {
	case domain.ChannelEmailAndSms:
		emailView, smsView := SplitByAddressType(recipients, func() string {
			return p.idGen.NewID().String()
		})
		// 两个媒介各写各的表，可以并行生成
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return p.dispatchEmail(egCtx, order, emailView, isRetry)
		})
		eg.Go(func() error {
			return p.dispatchSms(egCtx, order, smsView, isRetry)
		})
		return eg.Wait()
	case domain.ChannelEmailPreferred:
		preferred, fallback := SplitByPreference(recipients, domain.AddressTypeEmail)
		if err := p.dispatchEmail(ctx, order, preferred, isRetry); err != nil {
			return err
		}
		return p.dispatchSms(ctx, order, fallback, isRetry)
	case domain.ChannelSmsPreferred:
		preferred, fallback := SplitByPreference(recipients, domain.AddressTypeSms)
		if err := p.dispatchSms(ctx, order, preferred, isRetry); err != nil {
			return err
		}
		return p.dispatchEmail(ctx, order, fallback, isRetry)
	default:
		// 单媒介渠道不该走到这里
		panic("多媒介处理器收到了单媒介渠道订单: " + order.Channel.String())
	}
}

func (p *CompositeProcessor) dispatchEmail(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient, isRetry bool) error {
	if len(recipients) == 0 {
		return nil
	}
	if isRetry {
		return p.email.ProcessOrderRetryWithoutAddressLookup(ctx, order, recipients)
	}
	return p.email.ProcessOrderWithoutAddressLookup(ctx, order, recipients)
}

func (p *CompositeProcessor) dispatchSms(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient, isRetry bool) error {
	if len(recipients) == 0 {
		return nil
	}
	if isRetry {
		return p.sms.ProcessOrderRetryWithoutAddressLookup(ctx, order, recipients)
	}
	return p.sms.ProcessOrderWithoutAddressLookup(ctx, order, recipients)
}
