package domain

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

// NotificationResult 送达单元的结果状态
type NotificationResult string

const (
	ResultNew     NotificationResult = "NEW"     // 新建，等待投递
	ResultSending NotificationResult = "SENDING" // 已经交给消息队列

	// 以下是终态
	ResultDelivered                     NotificationResult = "DELIVERED"                        // 外部送达回执确认成功
	ResultFailed                        NotificationResult = "FAILED"                           // 外部送达回执确认失败
	ResultFailedRecipientReserved       NotificationResult = "FAILED_RECIPIENT_RESERVED"        // 接收者预留，不允许打扰
	ResultFailedRecipientNotIdentified  NotificationResult = "FAILED_RECIPIENT_NOT_IDENTIFIED"  // 没有解析到可用地址
	ResultFailedInvalidFormat           NotificationResult = "FAILED_INVALID_FORMAT"            // 地址格式非法
	ResultFailedTTL                     NotificationResult = "FAILED_TTL"                       // 过期清理
)

func (r NotificationResult) String() string {
	return string(r)
}

// IsTerminal 是否是终态
// 终态结果不会再被任何后台循环修改
func (r NotificationResult) IsTerminal() bool {
	switch r {
	case ResultNew, ResultSending:
		return false
	default:
		return true
	}
}

// EmailNotification 邮件送达单元，每个（订单，地址）一条
type EmailNotification struct {
	ID                     uuid.UUID
	OrderID                uuid.UUID
	RequestedSendTime      time.Time
	Expiry                 time.Time
	ToAddress              string
	NationalIdentityNumber string
	OrganizationNumber     string
	Subject                string
	Body                   string
	ContentType            EmailContentType
	Customized             bool
	Result                 NotificationResult
}

// SmsNotification 短信送达单元，每个（订单，地址）一条
type SmsNotification struct {
	ID                     uuid.UUID
	OrderID                uuid.UUID
	RequestedSendTime      time.Time
	Expiry                 time.Time
	MobileNumber           string
	NationalIdentityNumber string
	OrganizationNumber     string
	Sender                 string
	Body                   string
	Customized             bool
	SegmentCount           int
	SendingTimePolicy      SendingTimePolicy
	Result                 NotificationResult
}

// SendStatusUpdate 外部送达回执带回的结果
type SendStatusUpdate struct {
	NotificationID   uuid.UUID
	Result           NotificationResult
	GatewayReference string
}

// MustValidate 回执缺少可识别标识说明上游数据已经坏掉，直接 panic
func (u SendStatusUpdate) MustValidate() {
	if u.NotificationID == uuid.Nil && u.GatewayReference == "" {
		panic(fmt.Sprintf("送达回执缺少可识别标识: %+v", u))
	}
}
