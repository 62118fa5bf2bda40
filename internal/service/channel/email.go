package channel

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	notificationevt "gitee.com/flycash/notification-dispatch/internal/event/notification"
	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/contact"
	"gitee.com/flycash/notification-dispatch/internal/service/keyword"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
)

// 邮件送达单元自请求发送时间起存活 48 小时
const emailTTL = 48 * time.Hour

// 投递失败退回 NEW 时给补偿操作留的时间
const revertTimeout = 3 * time.Second

type emailService struct {
	repo      repository.EmailNotificationRepository
	resolver  contact.Resolver
	engine    keyword.Engine
	producer  notificationevt.EmailNotificationEventProducer
	clock     timeutil.Clock
	idGen     timeutil.IDGenerator
	batchSize int
	logger    *elog.Component
}

// NewEmailService 创建邮件渠道服务
// batchSize 小于等于 0 时使用默认批次
func NewEmailService(
	repo repository.EmailNotificationRepository,
	resolver contact.Resolver,
	engine keyword.Engine,
	producer notificationevt.EmailNotificationEventProducer,
	clock timeutil.Clock,
	idGen timeutil.IDGenerator,
	batchSize int,
) EmailService {
	if batchSize <= 0 {
		batchSize = defaultEmailBatchSize
	}
	return &emailService{
		repo:      repo,
		resolver:  resolver,
		engine:    engine,
		producer:  producer,
		clock:     clock,
		idGen:     idGen,
		batchSize: batchSize,
		logger:    elog.DefaultLogger,
	}
}

func (s *emailService) ProcessOrder(ctx context.Context, order domain.NotificationOrder) error {
	return s.process(ctx, order, false)
}

func (s *emailService) ProcessOrderRetry(ctx context.Context, order domain.NotificationOrder) error {
	return s.process(ctx, order, true)
}

func (s *emailService) process(ctx context.Context, order domain.NotificationOrder, isRetry bool) error {
	recipients := order.Recipients
	missing := WithoutAddresses(recipients)
	if len(missing) > 0 {
		resolved, err := s.resolver.Resolve(ctx, missing, order.ResourceID, contact.ModeEmailOnly)
		if err != nil {
			return err
		}
		recipients = MergeResolved(recipients, resolved)
	}
	return s.generate(ctx, order, recipients, isRetry)
}

func (s *emailService) ProcessOrderWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error {
	return s.generate(ctx, order, recipients, false)
}

func (s *emailService) ProcessOrderRetryWithoutAddressLookup(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient) error {
	return s.generate(ctx, order, recipients, true)
}

// generate 为每个接收者生成邮件送达单元
// 重试时先加载已登记的单元，等价单元跳过不再重复生成
func (s *emailService) generate(ctx context.Context, order domain.NotificationOrder, recipients []domain.Recipient, isRetry bool) error {
	tmpl := order.EmailTemplate()
	rendered, err := s.engine.Render(ctx, tmpl.Subject, tmpl.Body, recipients)
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
			registered[unitKey(existing[i].ToAddress, existing[i].NationalIdentityNumber, existing[i].OrganizationNumber)] = struct{}{}
		}
	}

	now := s.clock.Now()
	var units []domain.EmailNotification
	for i := range rendered {
		r := rendered[i].Recipient
		base := domain.EmailNotification{
			OrderID:                order.ID,
			RequestedSendTime:      order.RequestedSendTime,
			NationalIdentityNumber: r.NationalIdentityNumber,
			OrganizationNumber:     r.OrganizationNumber,
			Subject:                rendered[i].Subject,
			Body:                   rendered[i].Body,
			ContentType:            tmpl.ContentType,
			Customized:             rendered[i].Customized,
		}
		switch {
		case r.Reserved() && !order.IgnoreReservation:
			// 预留接收者不落地址
			unit := base
			unit.ID = s.idGen.NewID()
			unit.Result = domain.ResultFailedRecipientReserved
			unit.Expiry = order.RequestedSendTime.Add(emailTTL)
			units = s.appendUnless(units, unit, registered, isRetry)
		case !r.HasAddressOfType(domain.AddressTypeEmail):
			unit := base
			unit.ID = s.idGen.NewID()
			unit.Result = domain.ResultFailedRecipientNotIdentified
			unit.Expiry = now
			units = s.appendUnless(units, unit, registered, isRetry)
		default:
			for _, addr := range r.AddressesOfType(domain.AddressTypeEmail) {
				unit := base
				unit.ID = s.idGen.NewID()
				unit.ToAddress = addr
				unit.Result = domain.ResultNew
				unit.Expiry = order.RequestedSendTime.Add(emailTTL)
				units = s.appendUnless(units, unit, registered, isRetry)
			}
		}
	}
	if len(units) == 0 {
		return nil
	}
	return s.repo.BatchCreate(ctx, units)
}

func (s *emailService) appendUnless(units []domain.EmailNotification, unit domain.EmailNotification, registered map[string]struct{}, isRetry bool) []domain.EmailNotification {
	if isRetry {
		if _, ok := registered[unitKey(unit.ToAddress, unit.NationalIdentityNumber, unit.OrganizationNumber)]; ok {
			return units
		}
	}
	return append(units, unit)
}

func (s *emailService) SendNotifications(ctx context.Context) error {
	units, err := s.repo.FindNewAndMarkSending(ctx, s.batchSize)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return nil
	}
	evts := slice.Map(units, func(_ int, src domain.EmailNotification) notificationevt.EmailNotificationEvent {
		return notificationevt.EmailNotificationEvent{
			NotificationID: src.ID.String(),
			OrderID:        src.OrderID.String(),
			ToAddress:      src.ToAddress,
			Subject:        src.Subject,
			Body:           src.Body,
			ContentType:    string(src.ContentType),
		}
	})
	failed, err := s.producer.ProduceBatch(ctx, evts)
	if len(failed) > 0 {
		s.revert(ctx, slice.Map(failed, func(_ int, src notificationevt.EmailNotificationEvent) string {
			return src.NotificationID
		}))
	}
	if err != nil {
		s.logger.Warn("部分邮件事件投递失败，已退回等待重投",
			elog.Int("failed", len(failed)),
			elog.FieldErr(err))
	}
	// 失败单元已经本地补偿，不再向上冒泡
	return nil
}

// revert 把投递失败的单元退回 NEW
// 原上下文可能已被取消，补偿要能继续执行
func (s *emailService) revert(ctx context.Context, ids []string) {
	revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()
	for _, raw := range ids {
		id, err := parseUnitID(raw)
		if err != nil {
			s.logger.Error("投递失败事件携带非法单元ID", elog.String("id", raw), elog.FieldErr(err))
			continue
		}
		if err := s.repo.MarkNew(revertCtx, id); err != nil {
			s.logger.Error("退回邮件送达单元失败", elog.String("id", raw), elog.FieldErr(err))
		}
	}
}

func (s *emailService) UpdateSendStatus(ctx context.Context, update domain.SendStatusUpdate) error {
	update.MustValidate()
	if update.NotificationID == uuid.Nil {
		// 按网关引用定位属于送达回执消费者的职责，这里只认单元ID
		return fmt.Errorf("%w: 回执只携带网关引用 %q", errs.ErrNotificationNotFound, update.GatewayReference)
	}
	return s.repo.UpdateResult(ctx, update.NotificationID, update.Result)
}

func (s *emailService) TerminateExpiredNotifications(ctx context.Context) (int64, error) {
	return s.repo.TerminateExpired(ctx, s.clock.Now(), terminateBatchSize)
}
