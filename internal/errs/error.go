package errs

import (
	"errors"
)

// 定义统一的错误类型
var (
	ErrInvalidParameter      = errors.New("参数错误")
	ErrOrderNotFound         = errors.New("通知订单不存在")
	ErrNotificationNotFound  = errors.New("通知记录不存在")
	ErrCreateOrderFailed     = errors.New("创建通知订单失败")
	ErrNotificationDuplicate = errors.New("通知记录主键冲突")

	ErrContactLookupFailed   = errors.New("联系点查询失败")
	ErrConditionCheckFailed  = errors.New("发送条件检查失败")
	ErrPublishFailed         = errors.New("投递消息队列失败")
	ErrStatusFeedWriteFailed = errors.New("写入状态流水失败")
)
