package dao

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/ecodeclub/ekit/slice"
	"github.com/ego-component/egorm"
	"gorm.io/gorm"
)

type SmsNotificationDAO interface {
	// BatchCreate 批量创建短信送达单元
	BatchCreate(ctx context.Context, datas []SmsNotification) error
	// GetByOrderID 订单名下已登记的全部短信送达单元，重试幂等检查用
	GetByOrderID(ctx context.Context, orderID string) ([]SmsNotification, error)
	// FindNewAndMarkSending 按发送时段策略捞出一批 NEW 并置为 SENDING
	FindNewAndMarkSending(ctx context.Context, policy string, limit int) ([]SmsNotification, error)
	// MarkNew 投递失败补偿：把 SENDING 的单元退回 NEW
	MarkNew(ctx context.Context, id string) error
	// UpdateResult 更新送达单元结果
	UpdateResult(ctx context.Context, id string, result string) error
	// TerminateExpired 把已过期的非终态单元置为 FAILED_TTL
	// 如果这是订单最后一个未决单元，同一事务内完成订单并写状态流水
	TerminateExpired(ctx context.Context, now int64, limit int) (int64, error)
}

// SmsNotification 短信送达单元表
type SmsNotification struct {
	ID                     string `gorm:"primaryKey;type:CHAR(36);comment:'送达单元UUID'"`
	OrderID                string `gorm:"type:CHAR(36);NOT NULL;index:idx_sms_order_id;comment:'所属订单UUID'"`
	MobileNumber           string `gorm:"type:VARCHAR(32);comment:'手机号，预留单元为空'"`
	NationalIdentityNumber string `gorm:"type:VARCHAR(16);comment:'身份证号'"`
	OrganizationNumber     string `gorm:"type:VARCHAR(16);comment:'组织号'"`
	Sender                 string `gorm:"type:VARCHAR(32);comment:'短信发送方名称'"`
	Body                   string `gorm:"type:TEXT;comment:'渲染后的正文'"`
	Customized             bool   `gorm:"comment:'内容是否做过关键字替换'"`
	SegmentCount           int    `gorm:"NOT NULL;DEFAULT:1;comment:'短信分段数'"`
	SendingTimePolicy      string `gorm:"type:ENUM('ANYTIME','DAYTIME');DEFAULT:'ANYTIME';index:idx_sms_policy_result,priority:1;comment:'发送时段策略'"`
	Result                 string `gorm:"type:ENUM('NEW','SENDING','DELIVERED','FAILED','FAILED_RECIPIENT_RESERVED','FAILED_RECIPIENT_NOT_IDENTIFIED','FAILED_INVALID_FORMAT','FAILED_TTL');DEFAULT:'NEW';index:idx_sms_policy_result,priority:2;comment:'结果状态'"`
	RequestedSendTime      int64  `gorm:"comment:'期望发送时间'"`
	Expiry                 int64  `gorm:"index:idx_sms_expiry;comment:'过期时间'"`
	Ctime                  int64
	Utime                  int64
}

type smsNotificationDAO struct {
	db      *egorm.Component
	nextSeq func() (uint64, error)
}

// NewSmsNotificationDAO 创建短信送达单元DAO实例
func NewSmsNotificationDAO(db *egorm.Component, nextSeq func() (uint64, error)) SmsNotificationDAO {
	return &smsNotificationDAO{
		db:      db,
		nextSeq: nextSeq,
	}
}

func (d *smsNotificationDAO) BatchCreate(ctx context.Context, datas []SmsNotification) error {
	if len(datas) == 0 {
		return nil
	}
	const batchSize = 100
	now := time.Now().UnixMilli()
	for i := range datas {
		datas[i].Ctime, datas[i].Utime = now, now
	}
	if err := d.db.WithContext(ctx).CreateInBatches(datas, batchSize).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w", errs.ErrNotificationDuplicate)
		}
		return err
	}
	return nil
}

func (d *smsNotificationDAO) GetByOrderID(ctx context.Context, orderID string) ([]SmsNotification, error) {
	var notifications []SmsNotification
	err := d.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&notifications).Error
	return notifications, err
}

func (d *smsNotificationDAO) FindNewAndMarkSending(ctx context.Context, policy string, limit int) ([]SmsNotification, error) {
	var notifications []SmsNotification
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sending_time_policy = ? AND result = ?", policy, domain.ResultNew.String()).
			Order("ctime").
			Limit(limit).
			Find(&notifications).Error; err != nil {
			return err
		}
		if len(notifications) == 0 {
			return nil
		}
		ids := slice.Map(notifications, func(_ int, src SmsNotification) string {
			return src.ID
		})
		return tx.Model(&SmsNotification{}).
			Where("id IN ? AND result = ?", ids, domain.ResultNew.String()).
			Updates(map[string]any{
				"result": domain.ResultSending.String(),
				"utime":  time.Now().UnixMilli(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range notifications {
		notifications[i].Result = domain.ResultSending.String()
	}
	return notifications, nil
}

func (d *smsNotificationDAO) MarkNew(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&SmsNotification{}).
		Where("id = ? AND result = ?", id, domain.ResultSending.String()).
		Updates(map[string]any{
			"result": domain.ResultNew.String(),
			"utime":  time.Now().UnixMilli(),
		}).Error
}

func (d *smsNotificationDAO) UpdateResult(ctx context.Context, id string, result string) error {
	res := d.db.WithContext(ctx).Model(&SmsNotification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"result": result,
			"utime":  time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id = %s", errs.ErrNotificationNotFound, id)
	}
	return nil
}

func (d *smsNotificationDAO) TerminateExpired(ctx context.Context, now int64, limit int) (int64, error) {
	var terminated int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []SmsNotification
		if err := tx.Select("id", "order_id").
			Where("result IN ? AND expiry <= ?", nonTerminalResults, now).
			Limit(limit).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := slice.Map(expired, func(_ int, src SmsNotification) string {
			return src.ID
		})
		res := tx.Model(&SmsNotification{}).
			Where("id IN ? AND result IN ?", ids, nonTerminalResults).
			Updates(map[string]any{
				"result": domain.ResultFailedTTL.String(),
				"utime":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		terminated = res.RowsAffected

		orderIDs := distinctOrderIDs(slice.Map(expired, func(_ int, src SmsNotification) string {
			return src.OrderID
		}))
		return completeResolvedOrders(tx, orderIDs, now, d.nextSeq)
	})
	return terminated, err
}
