package repository

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/repository/dao"
	"github.com/gofrs/uuid"
)

// SmsNotificationRepository 短信送达单元仓储
type SmsNotificationRepository interface {
	BatchCreate(ctx context.Context, notifications []domain.SmsNotification) error
	// GetByOrderID 订单名下已登记的全部短信送达单元
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.SmsNotification, error)
	// FindNewAndMarkSending 按发送时段策略捞出一批 NEW 并置为 SENDING
	FindNewAndMarkSending(ctx context.Context, policy domain.SendingTimePolicy, limit int) ([]domain.SmsNotification, error)
	// MarkNew 投递失败补偿，退回 NEW
	MarkNew(ctx context.Context, id uuid.UUID) error
	UpdateResult(ctx context.Context, id uuid.UUID, result domain.NotificationResult) error
	TerminateExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

type smsNotificationRepository struct {
	dao dao.SmsNotificationDAO
}

// NewSmsNotificationRepository 创建短信送达单元仓储实例
func NewSmsNotificationRepository(d dao.SmsNotificationDAO) SmsNotificationRepository {
	return &smsNotificationRepository{dao: d}
}

func (r *smsNotificationRepository) BatchCreate(ctx context.Context, notifications []domain.SmsNotification) error {
	entities := make([]dao.SmsNotification, 0, len(notifications))
	for i := range notifications {
		entities = append(entities, r.toEntity(notifications[i]))
	}
	return r.dao.BatchCreate(ctx, entities)
}

func (r *smsNotificationRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.SmsNotification, error) {
	entities, err := r.dao.GetByOrderID(ctx, orderID.String())
	if err != nil {
		return nil, err
	}
	return r.toDomainList(entities)
}

func (r *smsNotificationRepository) FindNewAndMarkSending(ctx context.Context, policy domain.SendingTimePolicy, limit int) ([]domain.SmsNotification, error) {
	entities, err := r.dao.FindNewAndMarkSending(ctx, policy.String(), limit)
	if err != nil {
		return nil, err
	}
	return r.toDomainList(entities)
}

func (r *smsNotificationRepository) MarkNew(ctx context.Context, id uuid.UUID) error {
	return r.dao.MarkNew(ctx, id.String())
}

func (r *smsNotificationRepository) UpdateResult(ctx context.Context, id uuid.UUID, result domain.NotificationResult) error {
	return r.dao.UpdateResult(ctx, id.String(), result.String())
}

func (r *smsNotificationRepository) TerminateExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	return r.dao.TerminateExpired(ctx, now.UnixMilli(), limit)
}

func (r *smsNotificationRepository) toDomainList(entities []dao.SmsNotification) ([]domain.SmsNotification, error) {
	notifications := make([]domain.SmsNotification, 0, len(entities))
	for i := range entities {
		n, err := r.toDomain(entities[i])
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (r *smsNotificationRepository) toEntity(n domain.SmsNotification) dao.SmsNotification {
	return dao.SmsNotification{
		ID:                     n.ID.String(),
		OrderID:                n.OrderID.String(),
		MobileNumber:           n.MobileNumber,
		NationalIdentityNumber: n.NationalIdentityNumber,
		OrganizationNumber:     n.OrganizationNumber,
		Sender:                 n.Sender,
		Body:                   n.Body,
		Customized:             n.Customized,
		SegmentCount:           n.SegmentCount,
		SendingTimePolicy:      n.SendingTimePolicy.String(),
		Result:                 n.Result.String(),
		RequestedSendTime:      n.RequestedSendTime.UnixMilli(),
		Expiry:                 n.Expiry.UnixMilli(),
	}
}

func (r *smsNotificationRepository) toDomain(entity dao.SmsNotification) (domain.SmsNotification, error) {
	id, err := uuid.FromString(entity.ID)
	if err != nil {
		return domain.SmsNotification{}, fmt.Errorf("非法的送达单元ID %q: %w", entity.ID, err)
	}
	orderID, err := uuid.FromString(entity.OrderID)
	if err != nil {
		return domain.SmsNotification{}, fmt.Errorf("非法的订单ID %q: %w", entity.OrderID, err)
	}
	return domain.SmsNotification{
		ID:                     id,
		OrderID:                orderID,
		RequestedSendTime:      time.UnixMilli(entity.RequestedSendTime).UTC(),
		Expiry:                 time.UnixMilli(entity.Expiry).UTC(),
		MobileNumber:           entity.MobileNumber,
		NationalIdentityNumber: entity.NationalIdentityNumber,
		OrganizationNumber:     entity.OrganizationNumber,
		Sender:                 entity.Sender,
		Body:                   entity.Body,
		Customized:             entity.Customized,
		SegmentCount:           entity.SegmentCount,
		SendingTimePolicy:      domain.SendingTimePolicy(entity.SendingTimePolicy),
		Result:                 domain.NotificationResult(entity.Result),
	}, nil
}
