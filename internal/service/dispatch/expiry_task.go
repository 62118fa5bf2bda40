package dispatch

import (
	"context"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/pkg/loopjob"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
	"github.com/meoying/dlock-go"
)

const (
	expiryTaskKey = "terminate_expired_notifications"
	// 两张表都没清出多少东西时歇一会
	expiryIdleSleep = 10 * time.Second
	expiryIdleLimit = 100
)

// ExpirySweepTask 过期送达单元清理任务
// 把超过存活时间还停在非终态的单元落成 FAILED_TTL，并顺带完结订单
type ExpirySweepTask struct {
	dclient dlock.Client
	email   channel.EmailService
	sms     channel.SmsService
	logger  *elog.Component
}

// NewExpirySweepTask 创建过期清理任务
func NewExpirySweepTask(dclient dlock.Client, email channel.EmailService, sms channel.SmsService) *ExpirySweepTask {
	return &ExpirySweepTask{
		dclient: dclient,
		email:   email,
		sms:     sms,
		logger:  elog.DefaultLogger,
	}
}

func (t *ExpirySweepTask) Start(ctx context.Context) {
	loopjob.NewInfiniteLoop(t.dclient, t.sweep, expiryTaskKey).Run(ctx)
}

func (t *ExpirySweepTask) sweep(ctx context.Context) error {
	var errs error
	emailCount, err := t.email.TerminateExpiredNotifications(ctx)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	smsCount, err := t.sms.TerminateExpiredNotifications(ctx)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs != nil {
		return errs
	}
	if emailCount+smsCount > 0 {
		t.logger.Info("清理过期送达单元",
			elog.Int64("email", emailCount),
			elog.Int64("sms", smsCount))
	}
	if emailCount+smsCount < expiryIdleLimit {
		time.Sleep(expiryIdleSleep)
	}
	return nil
}
