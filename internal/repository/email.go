package repository

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/repository/dao"
	"github.com/gofrs/uuid"
)

// EmailNotificationRepository 邮件送达单元仓储
type EmailNotificationRepository interface {
	BatchCreate(ctx context.Context, notifications []domain.EmailNotification) error
	// GetByOrderID 订单名下已登记的全部邮件送达单元
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.EmailNotification, error)
	// FindNewAndMarkSending 捞出一批 NEW 并置为 SENDING
	FindNewAndMarkSending(ctx context.Context, limit int) ([]domain.EmailNotification, error)
	// MarkNew 投递失败补偿，退回 NEW
	MarkNew(ctx context.Context, id uuid.UUID) error
	UpdateResult(ctx context.Context, id uuid.UUID, result domain.NotificationResult) error
	TerminateExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

type emailNotificationRepository struct {
	dao dao.EmailNotificationDAO
}

// NewEmailNotificationRepository 创建邮件送达单元仓储实例
func NewEmailNotificationRepository(d dao.EmailNotificationDAO) EmailNotificationRepository {
	return &emailNotificationRepository{dao: d}
}

func (r *emailNotificationRepository) BatchCreate(ctx context.Context, notifications []domain.EmailNotification) error {
	entities := make([]dao.EmailNotification, 0, len(notifications))
	for i := range notifications {
		entities = append(entities, r.toEntity(notifications[i]))
	}
	return r.dao.BatchCreate(ctx, entities)
}

func (r *emailNotificationRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.EmailNotification, error) {
	entities, err := r.dao.GetByOrderID(ctx, orderID.String())
	if err != nil {
		return nil, err
	}
	return r.toDomainList(entities)
}

func (r *emailNotificationRepository) FindNewAndMarkSending(ctx context.Context, limit int) ([]domain.EmailNotification, error) {
	entities, err := r.dao.FindNewAndMarkSending(ctx, limit)
	if err != nil {
		return nil, err
	}
	return r.toDomainList(entities)
}

func (r *emailNotificationRepository) MarkNew(ctx context.Context, id uuid.UUID) error {
	return r.dao.MarkNew(ctx, id.String())
}

func (r *emailNotificationRepository) UpdateResult(ctx context.Context, id uuid.UUID, result domain.NotificationResult) error {
	return r.dao.UpdateResult(ctx, id.String(), result.String())
}

func (r *emailNotificationRepository) TerminateExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	return r.dao.TerminateExpired(ctx, now.UnixMilli(), limit)
}

func (r *emailNotificationRepository) toDomainList(entities []dao.EmailNotification) ([]domain.EmailNotification, error) {
	notifications := make([]domain.EmailNotification, 0, len(entities))
	for i := range entities {
		n, err := r.toDomain(entities[i])
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (r *emailNotificationRepository) toEntity(n domain.EmailNotification) dao.EmailNotification {
	return dao.EmailNotification{
		ID:                     n.ID.String(),
		OrderID:                n.OrderID.String(),
		ToAddress:              n.ToAddress,
		NationalIdentityNumber: n.NationalIdentityNumber,
		OrganizationNumber:     n.OrganizationNumber,
		Subject:                n.Subject,
		Body:                   n.Body,
		ContentType:            string(n.ContentType),
		Customized:             n.Customized,
		Result:                 n.Result.String(),
		RequestedSendTime:      n.RequestedSendTime.UnixMilli(),
		Expiry:                 n.Expiry.UnixMilli(),
	}
}

func (r *emailNotificationRepository) toDomain(entity dao.EmailNotification) (domain.EmailNotification, error) {
	id, err := uuid.FromString(entity.ID)
	if err != nil {
		return domain.EmailNotification{}, fmt.Errorf("非法的送达单元ID %q: %w", entity.ID, err)
	}
	orderID, err := uuid.FromString(entity.OrderID)
	if err != nil {
		return domain.EmailNotification{}, fmt.Errorf("非法的订单ID %q: %w", entity.OrderID, err)
	}
	return domain.EmailNotification{
		ID:                     id,
		OrderID:                orderID,
		RequestedSendTime:      time.UnixMilli(entity.RequestedSendTime).UTC(),
		Expiry:                 time.UnixMilli(entity.Expiry).UTC(),
		ToAddress:              entity.ToAddress,
		NationalIdentityNumber: entity.NationalIdentityNumber,
		OrganizationNumber:     entity.OrganizationNumber,
		Subject:                entity.Subject,
		Body:                   entity.Body,
		ContentType:            domain.EmailContentType(entity.ContentType),
		Customized:             entity.Customized,
		Result:                 domain.NotificationResult(entity.Result),
	}, nil
}
