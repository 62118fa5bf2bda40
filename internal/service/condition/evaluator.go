package condition

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/client"
	"gitee.com/flycash/notification-dispatch/internal/domain"
	"github.com/gotomicro/ego/core/elog"
)

// Outcome 发送条件检查结果
type Outcome string

const (
	OutcomeMet          Outcome = "MET"
	OutcomeNotMet       Outcome = "NOT_MET"
	OutcomeInconclusive Outcome = "INCONCLUSIVE"
)

// Evaluator 发送条件评估器
type Evaluator interface {
	// Evaluate 评估订单的发送条件
	// 首次调度时条件接口失败返回 INCONCLUSIVE，调用方要把订单重新排队；
	// 重试调度时失败按 MET 处理（fail-open），避免订单被无限重试
	Evaluate(ctx context.Context, order domain.NotificationOrder, isRetry bool) Outcome
}

type evaluator struct {
	client client.ConditionClient
	logger *elog.Component
}

// NewEvaluator 创建发送条件评估器
func NewEvaluator(c client.ConditionClient) Evaluator {
	return &evaluator{
		client: c,
		logger: elog.DefaultLogger,
	}
}

func (e *evaluator) Evaluate(ctx context.Context, order domain.NotificationOrder, isRetry bool) Outcome {
	// 没配置条件接口就视为满足
	if order.ConditionEndpoint == "" {
		return OutcomeMet
	}

	met, err := e.client.CheckCondition(ctx, order.ConditionEndpoint)
	if err != nil {
		if isRetry {
			// 条件始终未被确认为真，这是有意保留的 fail-open 策略
			e.logger.Warn("重试时条件检查仍然失败，按满足处理",
				elog.String("orderID", order.ID.String()),
				elog.String("endpoint", order.ConditionEndpoint),
				elog.FieldErr(err))
			return OutcomeMet
		}
		e.logger.Info("条件检查失败，等待重试",
			elog.String("orderID", order.ID.String()),
			elog.FieldErr(err))
		return OutcomeInconclusive
	}
	if met {
		return OutcomeMet
	}
	return OutcomeNotMet
}
