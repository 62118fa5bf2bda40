package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/gofrs/uuid"
)

// NotificationChannel 订单的通知渠道
type NotificationChannel string

const (
	ChannelEmail          NotificationChannel = "EMAIL"
	ChannelSms            NotificationChannel = "SMS"
	ChannelEmailAndSms    NotificationChannel = "EMAIL_AND_SMS"
	ChannelEmailPreferred NotificationChannel = "EMAIL_PREFERRED"
	ChannelSmsPreferred   NotificationChannel = "SMS_PREFERRED"
)

func (c NotificationChannel) String() string {
	return string(c)
}

// HasEmail 渠道是否会产生邮件送达单元
func (c NotificationChannel) HasEmail() bool {
	return c == ChannelEmail || c == ChannelEmailAndSms ||
		c == ChannelEmailPreferred || c == ChannelSmsPreferred
}

// HasSms 渠道是否会产生短信送达单元
func (c NotificationChannel) HasSms() bool {
	return c == ChannelSms || c == ChannelEmailAndSms ||
		c == ChannelEmailPreferred || c == ChannelSmsPreferred
}

// SendingTimePolicy 发送时段策略
type SendingTimePolicy string

const (
	// PolicyAnytime 任意时段都可以发送
	PolicyAnytime SendingTimePolicy = "ANYTIME"
	// PolicyDaytime 只允许在白天时间窗口内发送
	PolicyDaytime SendingTimePolicy = "DAYTIME"
)

func (p SendingTimePolicy) String() string {
	return string(p)
}

// OrderStatus 订单处理状态
type OrderStatus string

const (
	OrderStatusRegistered          OrderStatus = "REGISTERED"
	OrderStatusProcessing          OrderStatus = "PROCESSING"
	OrderStatusSendConditionNotMet OrderStatus = "SEND_CONDITION_NOT_MET"
	OrderStatusCompleted           OrderStatus = "COMPLETED"
)

func (s OrderStatus) String() string {
	return string(s)
}

// IsResolved 是否是终态，终态订单不再参与调度
func (s OrderStatus) IsResolved() bool {
	return s == OrderStatusSendConditionNotMet || s == OrderStatusCompleted
}

// EmailContentType 邮件正文类型
type EmailContentType string

const (
	ContentTypePlain EmailContentType = "PLAIN"
	ContentTypeHTML  EmailContentType = "HTML"
)

// EmailTemplate 邮件模板
type EmailTemplate struct {
	FromAddress string           `json:"fromAddress"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	ContentType EmailContentType `json:"contentType"`
}

// SmsTemplate 短信模板
type SmsTemplate struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// Templates 每个渠道至多一个模板
type Templates struct {
	Email *EmailTemplate `json:"email,omitempty"`
	Sms   *SmsTemplate   `json:"sms,omitempty"`
}

// NotificationOrder 通知订单领域模型
// 创建之后除处理状态外不可变，Recipients 只允许在联系点解析阶段补充地址
type NotificationOrder struct {
	ID                 uuid.UUID           // 订单唯一标识
	Creator            string              // 创建方短名
	Created            time.Time           // 创建时间
	RequestedSendTime  time.Time           // 期望发送时间
	Channel            NotificationChannel // 通知渠道
	Templates          Templates           // 各渠道模板
	Recipients         []Recipient         // 接收者列表
	ConditionEndpoint  string              // 可选的发送条件检查地址
	IgnoreReservation  bool                // 是否忽略预留标记
	ResourceID         string              // 授权校验使用的资源标识
	SendingTimePolicy  SendingTimePolicy   // 发送时段策略
	SendersReference   string              // 发送方业务引用
	Status             OrderStatus         // 处理状态
	ProcessingAttempts int                 // 已经被调度的次数，大于 1 表示重试
}

// EmailTemplate 获取邮件模板
// 渠道蕴含邮件但模板缺失属于不变量被破坏，直接 panic
func (o *NotificationOrder) EmailTemplate() EmailTemplate {
	if o.Templates.Email == nil {
		panic(fmt.Sprintf("订单 %s 渠道 %s 缺少邮件模板", o.ID, o.Channel))
	}
	return *o.Templates.Email
}

// SmsTemplate 获取短信模板，缺失时 panic，理由同 EmailTemplate
func (o *NotificationOrder) SmsTemplate() SmsTemplate {
	if o.Templates.Sms == nil {
		panic(fmt.Sprintf("订单 %s 渠道 %s 缺少短信模板", o.ID, o.Channel))
	}
	return *o.Templates.Sms
}

// IsRetry 是否属于重试调度
func (o *NotificationOrder) IsRetry() bool {
	return o.ProcessingAttempts > 1
}

func (o *NotificationOrder) Validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("%w: ID 不能为空", errs.ErrInvalidParameter)
	}

	if o.Creator == "" {
		return fmt.Errorf("%w: Creator = %q", errs.ErrInvalidParameter, o.Creator)
	}

	if len(o.Recipients) == 0 {
		return fmt.Errorf("%w: Recipients = %v", errs.ErrInvalidParameter, o.Recipients)
	}

	switch o.Channel {
	case ChannelEmail, ChannelSms, ChannelEmailAndSms, ChannelEmailPreferred, ChannelSmsPreferred:
	default:
		return fmt.Errorf("%w: Channel = %q", errs.ErrInvalidParameter, o.Channel)
	}

	// 渠道蕴含的每个媒介都必须恰好有一个模板
	if o.Channel.HasEmail() && o.Templates.Email == nil {
		return fmt.Errorf("%w: 渠道 %s 缺少邮件模板", errs.ErrInvalidParameter, o.Channel)
	}
	if o.Channel.HasSms() && o.Templates.Sms == nil {
		return fmt.Errorf("%w: 渠道 %s 缺少短信模板", errs.ErrInvalidParameter, o.Channel)
	}

	if o.SendingTimePolicy != PolicyAnytime && o.SendingTimePolicy != PolicyDaytime {
		return fmt.Errorf("%w: SendingTimePolicy = %q", errs.ErrInvalidParameter, o.SendingTimePolicy)
	}

	for i := range o.Recipients {
		if err := o.Recipients[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
