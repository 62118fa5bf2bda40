package dispatch

import (
	"context"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/pkg/loopjob"
	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

const (
	scanTaskKey = "dispatch_past_due_orders"
	// 单轮扫描的软预算，超过就让出锁给别的循环
	scanBudget = time.Minute
	// 捞出的订单少于这个数说明快捞空了，本轮不再继续
	minLoopBatchSize = 10
	scanBatchSize    = 50
	scanIdleSleep    = 10 * time.Second
	rollbackTimeout  = 5 * time.Second
)

// OrderScanTask 到期订单扫描任务
// 周期性捞出 REGISTERED 且到期的订单交给编排器，靠分布式锁保证全局单实例
type OrderScanTask struct {
	dclient      dlock.Client
	repo         repository.OrderRepository
	orchestrator Orchestrator
	clock        timeutil.Clock
	logger       *elog.Component
}

// NewOrderScanTask 创建到期订单扫描任务
func NewOrderScanTask(dclient dlock.Client, repo repository.OrderRepository, orchestrator Orchestrator, clock timeutil.Clock) *OrderScanTask {
	return &OrderScanTask{
		dclient:      dclient,
		repo:         repo,
		orchestrator: orchestrator,
		clock:        clock,
		logger:       elog.DefaultLogger,
	}
}

func (t *OrderScanTask) Start(ctx context.Context) {
	loopjob.NewInfiniteLoop(t.dclient, t.scanPastDue, scanTaskKey).Run(ctx)
}

func (t *OrderScanTask) scanPastDue(ctx context.Context) error {
	deadline := t.clock.Now().Add(scanBudget)
	for {
		orders, err := t.repo.FindPastDueAndMarkProcessing(ctx, t.clock.Now(), scanBatchSize)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			time.Sleep(scanIdleSleep)
			return nil
		}
		for i := range orders {
			if ctx.Err() != nil {
				// 已经置为 PROCESSING 但还没处理的订单要回滚，否则会卡死
				t.rollback(ctx, orders[i:])
				return ctx.Err()
			}
			t.processOne(ctx, orders[i])
		}
		if len(orders) < minLoopBatchSize || t.clock.Now().After(deadline) {
			return nil
		}
	}
}

func (t *OrderScanTask) processOne(ctx context.Context, order domain.NotificationOrder) {
	var retryRequired bool
	var err error
	if order.IsRetry() {
		retryRequired, err = t.orchestrator.ProcessOrderRetry(ctx, order)
	} else {
		retryRequired, err = t.orchestrator.ProcessOrder(ctx, order)
	}
	if err != nil {
		t.logger.Error("处理订单失败，回滚等待重试",
			elog.String("orderID", order.ID.String()),
			elog.Int("attempts", order.ProcessingAttempts),
			elog.FieldErr(err))
	}
	if err != nil || retryRequired {
		// 处理中途上下文可能已被取消，换一个带超时的新上下文回滚
		// 否则订单会卡在 PROCESSING 再也扫不到
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if mErr := t.repo.MarkRegistered(rbCtx, []uuid.UUID{order.ID}); mErr != nil {
			t.logger.Error("回滚订单状态失败",
				elog.String("orderID", order.ID.String()),
				elog.FieldErr(mErr))
		}
	}
}

// rollback 任务被取消时把剩余订单退回 REGISTERED
// 原上下文已经取消，换一个带超时的新上下文执行
func (t *OrderScanTask) rollback(ctx context.Context, orders []domain.NotificationOrder) {
	ids := make([]uuid.UUID, 0, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].ID)
	}
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := t.repo.MarkRegistered(rbCtx, ids); err != nil {
		t.logger.Error("任务退出时回滚订单失败",
			elog.Int("count", len(ids)),
			elog.FieldErr(err))
	}
}
