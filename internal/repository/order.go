package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gofrs/uuid"
)

// OrderRepository 通知订单仓储
type OrderRepository interface {
	Create(ctx context.Context, order domain.NotificationOrder) (domain.NotificationOrder, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.NotificationOrder, error)
	// FindPastDueAndMarkProcessing 捞出到期订单并置为 PROCESSING，累加调度次数
	FindPastDueAndMarkProcessing(ctx context.Context, now time.Time, limit int) ([]domain.NotificationOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	// MarkRegistered 把订单回滚到 REGISTERED，等待下一轮调度
	MarkRegistered(ctx context.Context, ids []uuid.UUID) error
	// AllUnitsTerminal 订单名下的全部送达单元是否都达到了终态
	AllUnitsTerminal(ctx context.Context, id uuid.UUID) (bool, error)
	// InsertStatusFeed 订单进入终态后写入一条状态流水
	InsertStatusFeed(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
}

type orderRepository struct {
	dao dao.OrderDAO
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(d dao.OrderDAO) OrderRepository {
	return &orderRepository{dao: d}
}

func (r *orderRepository) Create(ctx context.Context, order domain.NotificationOrder) (domain.NotificationOrder, error) {
	entity, err := r.toEntity(order)
	if err != nil {
		return domain.NotificationOrder{}, err
	}
	created, err := r.dao.Create(ctx, entity)
	if err != nil {
		return domain.NotificationOrder{}, err
	}
	return r.toDomain(created)
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.NotificationOrder, error) {
	entity, err := r.dao.GetByID(ctx, id.String())
	if err != nil {
		return domain.NotificationOrder{}, err
	}
	return r.toDomain(entity)
}

func (r *orderRepository) FindPastDueAndMarkProcessing(ctx context.Context, now time.Time, limit int) ([]domain.NotificationOrder, error) {
	entities, err := r.dao.FindPastDueAndMarkProcessing(ctx, now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.NotificationOrder, 0, len(entities))
	for i := range entities {
		order, err := r.toDomain(entities[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	return r.dao.UpdateStatus(ctx, id.String(), status.String())
}

func (r *orderRepository) MarkRegistered(ctx context.Context, ids []uuid.UUID) error {
	return r.dao.MarkRegistered(ctx, slice.Map(ids, func(_ int, src uuid.UUID) string {
		return src.String()
	}))
}

func (r *orderRepository) AllUnitsTerminal(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.dao.AllUnitsTerminal(ctx, id.String())
}

func (r *orderRepository) InsertStatusFeed(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	return r.dao.InsertStatusFeed(ctx, id.String(), status.String())
}

func (r *orderRepository) toEntity(order domain.NotificationOrder) (dao.NotificationOrder, error) {
	recipients, err := json.Marshal(order.Recipients)
	if err != nil {
		return dao.NotificationOrder{}, fmt.Errorf("序列化接收者失败: %w", err)
	}
	templates, err := json.Marshal(order.Templates)
	if err != nil {
		return dao.NotificationOrder{}, fmt.Errorf("序列化模板失败: %w", err)
	}
	return dao.NotificationOrder{
		ID:                 order.ID.String(),
		Creator:            order.Creator,
		SendersReference:   order.SendersReference,
		Channel:            order.Channel.String(),
		Status:             order.Status.String(),
		RequestedSendTime:  order.RequestedSendTime.UnixMilli(),
		SendingTimePolicy:  order.SendingTimePolicy.String(),
		ConditionEndpoint:  order.ConditionEndpoint,
		IgnoreReservation:  order.IgnoreReservation,
		ResourceID:         order.ResourceID,
		ProcessingAttempts: order.ProcessingAttempts,
		Recipients:         dao.JSON(recipients),
		Templates:          dao.JSON(templates),
	}, nil
}

func (r *orderRepository) toDomain(entity dao.NotificationOrder) (domain.NotificationOrder, error) {
	id, err := uuid.FromString(entity.ID)
	if err != nil {
		return domain.NotificationOrder{}, fmt.Errorf("非法的订单ID %q: %w", entity.ID, err)
	}
	var recipients []domain.Recipient
	if err := json.Unmarshal(entity.Recipients, &recipients); err != nil {
		return domain.NotificationOrder{}, fmt.Errorf("反序列化接收者失败: %w", err)
	}
	var templates domain.Templates
	if err := json.Unmarshal(entity.Templates, &templates); err != nil {
		return domain.NotificationOrder{}, fmt.Errorf("反序列化模板失败: %w", err)
	}
	return domain.NotificationOrder{
		ID:                 id,
		Creator:            entity.Creator,
		Created:            time.UnixMilli(entity.Ctime).UTC(),
		RequestedSendTime:  time.UnixMilli(entity.RequestedSendTime).UTC(),
		Channel:            domain.NotificationChannel(entity.Channel),
		Templates:          templates,
		Recipients:         recipients,
		ConditionEndpoint:  entity.ConditionEndpoint,
		IgnoreReservation:  entity.IgnoreReservation,
		ResourceID:         entity.ResourceID,
		SendingTimePolicy:  domain.SendingTimePolicy(entity.SendingTimePolicy),
		SendersReference:   entity.SendersReference,
		Status:             domain.OrderStatus(entity.Status),
		ProcessingAttempts: entity.ProcessingAttempts,
	}, nil
}
