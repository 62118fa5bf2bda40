package channel

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	notificationevt "gitee.com/flycash/notification-dispatch/internal/event/notification"
	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/contact"
	"gitee.com/flycash/notification-dispatch/internal/service/keyword"
	"gitee.com/flycash/notification-dispatch/internal/service/schedule"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
)

type smsService struct {
	repo      repository.SmsNotificationRepository
	resolver  contact.Resolver
	engine    keyword.Engine
	producer  notificationevt.SmsNotificationEventProducer
	scheduler *schedule.SendWindowScheduler
	clock     timeutil.Clock
	idGen     timeutil.IDGenerator
	batchSize int
	logger    *elog.Component
}

// NewSmsService 创建短信渠道服务
// batchSize 小于等于 0 时使用默认批次
func NewSmsService(
	repo repository.SmsNotificationRepository,
	resolver contact.Resolver,
	engine keyword.Engine,
	producer notificationevt.SmsNotificationEventProducer,
	scheduler *schedule.SendWindowScheduler,
	clock timeutil.Clock,
	idGen timeutil.IDGenerator,
	batchSize int,
) SmsService {
	if batchSize <= 0 {
		batchSize = defaultSmsBatchSize
	}
	return &smsService{
		repo:      repo,
		resolver:  resolver,
		engine:    engine,
		producer:  producer,
		scheduler: scheduler,
		clock:     clock,
		idGen:     idGen,
		batchSize: batchSize,
		logger:    elog.DefaultLogger,
	}
}

func (s *smsService) ProcessOrder(ctx context.Context, order domain.NotificationOrder) error {
	return s.process(ctx, order, false)
}

func (s *smsService) ProcessOrderRetry(ctx context.Context, order domain.NotificationOrder) error {
	return s.process(ctx, order, true)
}

func (s *smsService) process(ctx context.Context, order domain.NotificationOrder, isRetry bool) error {
	recipients := order.Recipients
	missing := WithoutAddresses(recipients)
	if len(missing) > 0 {
		resolved, err := s.resolver.Resolve(ctx, missing, order.ResourceID, contact.ModeSmsOnly)
		if err != nil {
			return err
		}
		recipients = MergeResolved(recipients, resolved)
	}
	return s.generate(ctx, order, recipients, isRetry)
}

func (s *smsService) ProcessOrderWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error {
	return s.generate(ctx, order, recipients, false)
}

func (s *smsService) ProcessOrderRetryWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error {
	return s.generate(ctx, order, recipients, true)
}

// generate 为每个接收者生成短信送达单元
// 短信的过期时间由发送窗口调度器决定，窗口外的参考时间会顺延到下个窗口起点
func (s *smsService) generate(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient, isRetry bool) error {
	tmpl := order.SmsTemplate()
	rendered, err := s.engine.Render(ctx, "", tmpl.Body, recipients)
	if err != nil {
		return err
	}

	registered := make(map[string]struct{})
	if isRetry {
		existing, err := s.repo.GetByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}
		for i := range existing {
			registered[unitKey(existing[i].MobileNumber, existing[i].NationalIdentityNumber, existing[i].OrganizationNumber)] = struct{}{}
		}
	}

	now := s.clock.Now()
	expiry := s.scheduler.GetExpiry(order.RequestedSendTime.UTC())
	var units []domain.SmsNotification
	for i := range rendered {
		r := rendered[i].Recipient
		base := domain.SmsNotification{
			OrderID:                order.ID,
			RequestedSendTime:      order.RequestedSendTime,
			NationalIdentityNumber: r.NationalIdentityNumber,
			OrganizationNumber:     r.OrganizationNumber,
			Sender:                 tmpl.Sender,
			Body:                   rendered[i].Body,
			Customized:             rendered[i].Customized,
			SegmentCount:           SegmentCount(rendered[i].Body),
			SendingTimePolicy:      order.SendingTimePolicy,
		}
		switch {
		case r.Reserved() && !order.IgnoreReservation:
			// 预留接收者不落号码
			unit := base
			unit.ID = s.idGen.NewID()
			unit.Result = domain.ResultFailedRecipientReserved
			unit.Expiry = expiry
			units = s.appendUnless(units, unit, registered, isRetry)
		case !r.HasAddressOfType(domain.AddressTypeSms):
			unit := base
			unit.ID = s.idGen.NewID()
			unit.Result = domain.ResultFailedRecipientNotIdentified
			unit.Expiry = now
			units = s.appendUnless(units, unit, registered, isRetry)
		default:
			for _, number := range r.AddressesOfType(domain.AddressTypeSms) {
				unit := base
				unit.ID = s.idGen.NewID()
				unit.MobileNumber = number
				unit.Result = domain.ResultNew
				unit.Expiry = expiry
				units = s.appendUnless(units, unit, registered, isRetry)
			}
		}
	}
	if len(units) == 0 {
		return nil
	}
	return s.repo.BatchCreate(ctx, units)
}

func (s *smsService) appendUnless(units []domain.SmsNotification, unit domain.SmsNotification, registered map[string]struct{}, isRetry bool) []domain.SmsNotification {
	if isRetry {
		if _, ok := registered[unitKey(unit.MobileNumber, unit.NationalIdentityNumber, unit.OrganizationNumber)]; ok {
			return units
		}
	}
	return append(units, unit)
}

// SendNotifications 循环捞批投递，直到捞不满一批为止
// DAYTIME 策略只在发送窗口内放行，窗口外直接返回等下一次触发
func (s *smsService) SendNotifications(ctx context.Context, policy domain.SendingTimePolicy) error {
	if policy == domain.PolicyDaytime && !s.scheduler.IsWithinSendWindow() {
		s.logger.Info("当前不在发送窗口内，白天时段短信推迟投递")
		return nil
	}
	for {
		units, err := s.repo.FindNewAndMarkSending(ctx, policy, s.batchSize)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return nil
		}
		evts := slice.Map(units, func(_ int, src domain.SmsNotification) notificationevt.SmsNotificationEvent {
			return notificationevt.SmsNotificationEvent{
				NotificationID: src.ID.String(),
				OrderID:        src.OrderID.String(),
				Sender:         src.Sender,
				MobileNumber:   src.MobileNumber,
				Body:           src.Body,
				SegmentCount:   src.SegmentCount,
			}
		})
		failed, err := s.producer.ProduceBatch(ctx, evts)
		if len(failed) > 0 {
			s.revert(ctx, slice.Map(failed, func(_ int, src notificationevt.SmsNotificationEvent) string {
				return src.NotificationID
			}))
		}
		if err != nil {
			s.logger.Warn("部分短信事件投递失败，已退回等待重投",
				elog.Int("failed", len(failed)),
				elog.FieldErr(err))
			// 生产者出错时不再继续捞批
			return nil
		}
		if len(units) < s.batchSize {
			return nil
		}
	}
}

// revert 把投递失败的单元退回 NEW
func (s *smsService) revert(ctx context.Context, ids []string) {
	revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()
	for _, raw := range ids {
		id, err := parseUnitID(raw)
		if err != nil {
			s.logger.Error("投递失败事件携带非法单元ID", elog.String("id", raw), elog.FieldErr(err))
			continue
		}
		if err := s.repo.MarkNew(revertCtx, id); err != nil {
			s.logger.Error("退回短信送达单元失败", elog.String("id", raw), elog.FieldErr(err))
		}
	}
}

func (s *smsService) UpdateSendStatus(ctx context.Context, update domain.SendStatusUpdate) error {
	update.MustValidate()
	if update.NotificationID == uuid.Nil {
		// 按网关引用定位属于送达回执消费者的职责，这里只认单元ID
		return fmt.Errorf("%w: 回执只携带网关引用 %q", errs.ErrNotificationNotFound, update.GatewayReference)
	}
	return s.repo.UpdateResult(ctx, update.NotificationID, update.Result)
}

func (s *smsService) TerminateExpiredNotifications(ctx context.Context) (int64, error) {
	return s.repo.TerminateExpired(ctx, s.clock.Now(), terminateBatchSize)
}
