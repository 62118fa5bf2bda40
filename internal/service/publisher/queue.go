package publisher

import (
	"context"
	"errors"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"github.com/gotomicro/ego/core/elog"
	"github.com/prometheus/client_golang/prometheus"
)

// 投递泳道：邮件一条，短信按发送时段策略分两条
const (
	laneEmail      = "email"
	laneSmsAnytime = "sms_anytime"
	laneSmsDaytime = "sms_daytime"
)

// 没有外部信号时也要定期兜底扫一遍
// 顺便把窗口打开后的 DAYTIME 短信放出去
const defaultNudgeInterval = time.Minute

// PublishQueue 送达单元投递队列
// 每条泳道一个容量为 1 的信号通道：处理中收到的多次唤醒会合并成一次
type PublishQueue struct {
	email         channel.EmailService
	sms           channel.SmsService
	signals       map[string]chan struct{}
	nudgeInterval time.Duration
	cycles        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	logger        *elog.Component
}

// NewPublishQueue 创建投递队列
// reg 传 nil 时不注册指标，测试里可以传独立的 Registry
func NewPublishQueue(email channel.EmailService, sms channel.SmsService, reg prometheus.Registerer) *PublishQueue {
	q := &PublishQueue{
		email: email,
		sms:   sms,
		signals: map[string]chan struct{}{
			laneEmail:      make(chan struct{}, 1),
			laneSmsAnytime: make(chan struct{}, 1),
			laneSmsDaytime: make(chan struct{}, 1),
		},
		nudgeInterval: defaultNudgeInterval,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notification",
			Subsystem: "publisher",
			Name:      "cycles_total",
			Help:      "投递循环执行次数",
		}, []string{"lane"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notification",
			Subsystem: "publisher",
			Name:      "cycle_failures_total",
			Help:      "投递循环失败次数",
		}, []string{"lane"}),
		logger: elog.DefaultLogger,
	}
	if reg != nil {
		reg.MustRegister(q.cycles, q.failures)
	}
	return q
}

// NotifyEmail 唤醒邮件投递泳道，非阻塞
func (q *PublishQueue) NotifyEmail() {
	q.notify(laneEmail)
}

// NotifySms 唤醒对应策略的短信投递泳道，非阻塞
func (q *PublishQueue) NotifySms(policy domain.SendingTimePolicy) {
	if policy == domain.PolicyDaytime {
		q.notify(laneSmsDaytime)
		return
	}
	q.notify(laneSmsAnytime)
}

func (q *PublishQueue) notify(lane string) {
	select {
	case q.signals[lane] <- struct{}{}:
	default:
		// 已经有待处理信号，合并
	}
}

// Start 启动全部投递泳道，ctx 取消时各泳道自行退出
func (q *PublishQueue) Start(ctx context.Context) {
	go q.runLane(ctx, laneEmail, func(ctx context.Context) error {
		return q.email.SendNotifications(ctx)
	})
	go q.runLane(ctx, laneSmsAnytime, func(ctx context.Context) error {
		return q.sms.SendNotifications(ctx, domain.PolicyAnytime)
	})
	go q.runLane(ctx, laneSmsDaytime, func(ctx context.Context) error {
		return q.sms.SendNotifications(ctx, domain.PolicyDaytime)
	})
	go q.nudgeLoop(ctx)
}

func (q *PublishQueue) runLane(ctx context.Context, lane string, publish func(ctx context.Context) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.signals[lane]:
		}
		q.cycles.WithLabelValues(lane).Inc()
		if err := publish(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			q.failures.WithLabelValues(lane).Inc()
			// 单轮失败不影响泳道，继续等下一个信号
			q.logger.Error("投递循环执行失败",
				elog.String("lane", lane),
				elog.FieldErr(err))
		}
	}
}

// nudgeLoop 定期唤醒所有泳道兜底
func (q *PublishQueue) nudgeLoop(ctx context.Context) {
	ticker := time.NewTicker(q.nudgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.notify(laneEmail)
			q.notify(laneSmsAnytime)
			q.notify(laneSmsDaytime)
		}
	}
}
