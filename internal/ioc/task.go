package ioc

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/service/dispatch"
)

// Task 后台任务，Start 会阻塞到 ctx 被取消
type Task interface {
	Start(ctx context.Context)
}

func InitTasks(t1 *dispatch.OrderScanTask,
	t2 *dispatch.ExpirySweepTask,
) []Task {
	return []Task{
		t1,
		t2,
	}
}
