package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/ecodeclub/ekit/slice"
	"github.com/ego-component/egorm"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type OrderDAO interface {
	// Create 创建订单记录
	Create(ctx context.Context, data NotificationOrder) (NotificationOrder, error)
	// GetByID 根据ID查询订单
	GetByID(ctx context.Context, id string) (NotificationOrder, error)
	// FindPastDueAndMarkProcessing 捞出一批已到期的 REGISTERED 订单并置为 PROCESSING
	// 同时累加调度次数，调用方据此区分首次调度和重试
	FindPastDueAndMarkProcessing(ctx context.Context, now int64, limit int) ([]NotificationOrder, error)
	// UpdateStatus 更新订单处理状态
	UpdateStatus(ctx context.Context, id string, status string) error
	// MarkRegistered 把一批订单回滚到 REGISTERED，等待下一轮调度
	MarkRegistered(ctx context.Context, ids []string) error
	// AllUnitsTerminal 订单名下的全部送达单元是否都达到了终态
	AllUnitsTerminal(ctx context.Context, orderID string) (bool, error)
	// InsertStatusFeed 写入一条状态流水
	InsertStatusFeed(ctx context.Context, orderID string, status string) error
}

// NotificationOrder 通知订单表
type NotificationOrder struct {
	ID                 string `gorm:"primaryKey;type:CHAR(36);comment:'订单UUID'"`
	Creator            string `gorm:"type:VARCHAR(64);NOT NULL;comment:'创建方短名'"`
	SendersReference   string `gorm:"type:VARCHAR(256);comment:'发送方业务引用'"`
	Channel            string `gorm:"type:ENUM('EMAIL','SMS','EMAIL_AND_SMS','EMAIL_PREFERRED','SMS_PREFERRED');NOT NULL;comment:'通知渠道'"`
	Status             string `gorm:"type:ENUM('REGISTERED','PROCESSING','SEND_CONDITION_NOT_MET','COMPLETED');DEFAULT:'REGISTERED';index:idx_status_send_time,priority:1;comment:'处理状态'"`
	RequestedSendTime  int64  `gorm:"index:idx_status_send_time,priority:2;comment:'期望发送时间'"`
	SendingTimePolicy  string `gorm:"type:ENUM('ANYTIME','DAYTIME');DEFAULT:'ANYTIME';comment:'发送时段策略'"`
	ConditionEndpoint  string `gorm:"type:VARCHAR(512);comment:'发送条件检查地址'"`
	IgnoreReservation  bool   `gorm:"comment:'是否忽略预留标记'"`
	ResourceID         string `gorm:"type:VARCHAR(256);comment:'授权校验资源标识'"`
	ProcessingAttempts int    `gorm:"NOT NULL;DEFAULT:0;comment:'已调度次数'"`
	Recipients         JSON   `gorm:"type:TEXT;NOT NULL;comment:'接收者列表，JSON数组'"`
	Templates          JSON   `gorm:"type:TEXT;NOT NULL;comment:'各渠道模板，JSON对象'"`
	Ctime              int64
	Utime              int64
}

// StatusFeed 订单状态流水表，供下游读模型消费
type StatusFeed struct {
	Seq     uint64 `gorm:"primaryKey;autoIncrement:false;comment:'雪花算法序号'"`
	OrderID string `gorm:"type:CHAR(36);NOT NULL;index:idx_feed_order_id;comment:'订单UUID'"`
	Status  string `gorm:"type:VARCHAR(32);NOT NULL;comment:'订单终态'"`
	Ctime   int64
}

// 非终态的送达单元结果
var nonTerminalResults = []string{
	string(domain.ResultNew),
	string(domain.ResultSending),
}

// 订单的两个终态
var resolvedOrderStatuses = []string{
	string(domain.OrderStatusSendConditionNotMet),
	string(domain.OrderStatusCompleted),
}

type orderDAO struct {
	db      *egorm.Component
	nextSeq func() (uint64, error)
}

// NewOrderDAO 创建订单DAO实例
// nextSeq 用于生成状态流水的单调序号
func NewOrderDAO(db *egorm.Component, nextSeq func() (uint64, error)) OrderDAO {
	return &orderDAO{
		db:      db,
		nextSeq: nextSeq,
	}
}

func (d *orderDAO) Create(ctx context.Context, data NotificationOrder) (NotificationOrder, error) {
	now := time.Now().UnixMilli()
	data.Ctime, data.Utime = now, now
	if err := d.db.WithContext(ctx).Create(&data).Error; err != nil {
		if isUniqueConstraintError(err) {
			return data, fmt.Errorf("%w", errs.ErrNotificationDuplicate)
		}
		return data, fmt.Errorf("%w: %w", errs.ErrCreateOrderFailed, err)
	}
	return data, nil
}

func (d *orderDAO) GetByID(ctx context.Context, id string) (NotificationOrder, error) {
	var order NotificationOrder
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return order, fmt.Errorf("%w: id = %s", errs.ErrOrderNotFound, id)
		}
		return order, err
	}
	return order, nil
}

func (d *orderDAO) FindPastDueAndMarkProcessing(ctx context.Context, now int64, limit int) ([]NotificationOrder, error) {
	var orders []NotificationOrder
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ? AND requested_send_time <= ?",
			domain.OrderStatusRegistered.String(), now).
			Order("requested_send_time").
			Limit(limit).
			Find(&orders).Error; err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		ids := slice.Map(orders, func(_ int, src NotificationOrder) string {
			return src.ID
		})
		return tx.Model(&NotificationOrder{}).
			Where("id IN ? AND status = ?", ids, domain.OrderStatusRegistered.String()).
			Updates(map[string]any{
				"status":              domain.OrderStatusProcessing.String(),
				"processing_attempts": gorm.Expr("`processing_attempts` + 1"),
				"utime":               now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Status = domain.OrderStatusProcessing.String()
		orders[i].ProcessingAttempts++
	}
	return orders, nil
}

func (d *orderDAO) UpdateStatus(ctx context.Context, id string, status string) error {
	return d.db.WithContext(ctx).Model(&NotificationOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": status,
			"utime":  time.Now().UnixMilli(),
		}).Error
}

func (d *orderDAO) MarkRegistered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).Model(&NotificationOrder{}).
		Where("id IN ? AND status = ?", ids, domain.OrderStatusProcessing.String()).
		Updates(map[string]any{
			"status": domain.OrderStatusRegistered.String(),
			"utime":  time.Now().UnixMilli(),
		}).Error
}

func (d *orderDAO) AllUnitsTerminal(ctx context.Context, orderID string) (bool, error) {
	db := d.db.WithContext(ctx)
	var emailCnt int64
	if err := db.Model(&EmailNotification{}).
		Where("order_id = ? AND result IN ?", orderID, nonTerminalResults).
		Count(&emailCnt).Error; err != nil {
		return false, err
	}
	if emailCnt > 0 {
		return false, nil
	}
	var smsCnt int64
	if err := db.Model(&SmsNotification{}).
		Where("order_id = ? AND result IN ?", orderID, nonTerminalResults).
		Count(&smsCnt).Error; err != nil {
		return false, err
	}
	return smsCnt == 0, nil
}

func (d *orderDAO) InsertStatusFeed(ctx context.Context, orderID string, status string) error {
	seq, err := d.nextSeq()
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrStatusFeedWriteFailed, err)
	}
	feed := StatusFeed{
		Seq:     seq,
		OrderID: orderID,
		Status:  status,
		Ctime:   time.Now().UnixMilli(),
	}
	if err := d.db.WithContext(ctx).Create(&feed).Error; err != nil {
		return fmt.Errorf("%w: %w", errs.ErrStatusFeedWriteFailed, err)
	}
	return nil
}

// completeResolvedOrders 检查一批订单，名下送达单元全部达到终态的置为 COMPLETED 并写入状态流水
// 必须在调用方事务内执行
func completeResolvedOrders(tx *gorm.DB, orderIDs []string, now int64, nextSeq func() (uint64, error)) error {
	for _, orderID := range orderIDs {
		var cnt int64
		if err := tx.Model(&EmailNotification{}).
			Where("order_id = ? AND result IN ?", orderID, nonTerminalResults).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			continue
		}
		if err := tx.Model(&SmsNotification{}).
			Where("order_id = ? AND result IN ?", orderID, nonTerminalResults).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			continue
		}
		res := tx.Model(&NotificationOrder{}).
			Where("id = ? AND status NOT IN ?", orderID, resolvedOrderStatuses).
			Updates(map[string]any{
				"status": domain.OrderStatusCompleted.String(),
				"utime":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		seq, err := nextSeq()
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrStatusFeedWriteFailed, err)
		}
		if err := tx.Create(&StatusFeed{
			Seq:     seq,
			OrderID: orderID,
			Status:  domain.OrderStatusCompleted.String(),
			Ctime:   now,
		}).Error; err != nil {
			return fmt.Errorf("%w: %w", errs.ErrStatusFeedWriteFailed, err)
		}
	}
	return nil
}

// isUniqueConstraintError 检查是否是唯一索引冲突错误
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	me := new(mysql.MySQLError)
	if ok := errors.As(err, &me); ok {
		const uniqueIndexErrNo uint16 = 1062
		return me.Number == uniqueIndexErrNo
	}
	return false
}
