package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/go-resty/resty/v2"
)

const defaultConditionTimeout = 10 * time.Second

type conditionClient struct {
	client *resty.Client
}

// NewConditionClient 创建发送条件客户端
// endpoint 由订单携带，所以不设置 BaseURL
func NewConditionClient() ConditionClient {
	return &conditionClient{
		client: resty.New().SetTimeout(defaultConditionTimeout),
	}
}

func (c *conditionClient) CheckCondition(ctx context.Context, endpoint string) (bool, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errs.ErrConditionCheckFailed, err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("%w: 条件接口返回 %s", errs.ErrConditionCheckFailed, resp.Status())
	}
	// 条件接口约定返回 JSON 布尔值
	var met bool
	if err := json.Unmarshal(resp.Body(), &met); err != nil {
		return false, fmt.Errorf("%w: 解析响应失败: %w", errs.ErrConditionCheckFailed, err)
	}
	return met, nil
}
