package client

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/go-resty/resty/v2"
)

type authorizationClient struct {
	client *resty.Client
}

// NewAuthorizationClient 创建授权客户端
func NewAuthorizationClient(baseURL string) AuthorizationClient {
	return &authorizationClient{
		client: resty.New().SetBaseURL(baseURL),
	}
}

type authorizeRequest struct {
	ResourceID        string              `json:"resourceId"`
	UserContactPoints []UserContactPoints `json:"userContactPoints"`
}

type authorizeResponse struct {
	AuthorizedContactPoints []UserContactPoints `json:"authorizedContactPoints"`
}

func (c *authorizationClient) AuthorizeUserContactPoints(ctx context.Context, contactPoints []UserContactPoints, resourceID string) ([]UserContactPoints, error) {
	if len(contactPoints) == 0 {
		return nil, nil
	}
	var out authorizeResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(authorizeRequest{
			ResourceID:        resourceID,
			UserContactPoints: contactPoints,
		}).
		SetResult(&out).
		Post("/authorization/api/v1/authorize/contactpoints")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrContactLookupFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: 授权服务返回 %s", errs.ErrContactLookupFailed, resp.Status())
	}
	return out.AuthorizedContactPoints, nil
}
