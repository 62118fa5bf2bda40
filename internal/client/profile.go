package client

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/go-resty/resty/v2"
)

type profileClient struct {
	client *resty.Client
}

// NewProfileClient 创建外部目录客户端
func NewProfileClient(baseURL string) ProfileClient {
	return &profileClient{
		client: resty.New().SetBaseURL(baseURL),
	}
}

type userContactPointsLookup struct {
	NationalIdentityNumbers []string `json:"nationalIdentityNumbers"`
}

type userContactPointsResponse struct {
	ContactPointsList []UserContactPoints `json:"contactPointsList"`
}

func (c *profileClient) GetUserContactPoints(ctx context.Context, nationalIdentityNumbers []string) ([]UserContactPoints, error) {
	if len(nationalIdentityNumbers) == 0 {
		return nil, nil
	}
	var out userContactPointsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(userContactPointsLookup{NationalIdentityNumbers: nationalIdentityNumbers}).
		SetResult(&out).
		Post("/users/contactpoint/lookup")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrContactLookupFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: 目录服务返回 %s", errs.ErrContactLookupFailed, resp.Status())
	}
	return out.ContactPointsList, nil
}

type orgContactPointsLookup struct {
	OrganizationNumbers []string `json:"organizationNumbers"`
	ResourceID          string   `json:"resourceId,omitempty"`
}

type orgContactPointsResponse struct {
	ContactPointsList []OrganizationContactPoints `json:"contactPointsList"`
}

func (c *profileClient) GetOrganizationContactPoints(ctx context.Context, organizationNumbers []string, resourceID string) ([]OrganizationContactPoints, error) {
	if len(organizationNumbers) == 0 {
		return nil, nil
	}
	var out orgContactPointsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(orgContactPointsLookup{
			OrganizationNumbers: organizationNumbers,
			ResourceID:          resourceID,
		}).
		SetResult(&out).
		Post("/organizations/contactpoint/lookup")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrContactLookupFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: 目录服务返回 %s", errs.ErrContactLookupFailed, resp.Status())
	}
	return out.ContactPointsList, nil
}

type nameLookup struct {
	Identifiers []string `json:"identifiers"`
}

type nameLookupResponse struct {
	// Names 键是查询标识，值是展示名
	Names map[string]string `json:"names"`
}

func (c *profileClient) GetUserDisplayNames(ctx context.Context, nationalIdentityNumbers []string) (map[string]string, error) {
	return c.displayNames(ctx, "/users/name/lookup", nationalIdentityNumbers)
}

func (c *profileClient) GetOrganizationDisplayNames(ctx context.Context, organizationNumbers []string) (map[string]string, error) {
	return c.displayNames(ctx, "/organizations/name/lookup", organizationNumbers)
}

func (c *profileClient) displayNames(ctx context.Context, path string, identifiers []string) (map[string]string, error) {
	if len(identifiers) == 0 {
		return map[string]string{}, nil
	}
	var out nameLookupResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(nameLookup{Identifiers: identifiers}).
		SetResult(&out).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrContactLookupFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: 目录服务返回 %s", errs.ErrContactLookupFailed, resp.Status())
	}
	if out.Names == nil {
		return map[string]string{}, nil
	}
	return out.Names, nil
}
