package client

import (
	"context"
)

// UserContactPoints 个人在外部目录中登记的联系点
type UserContactPoints struct {
	NationalIdentityNumber string `json:"nationalIdentityNumber"`
	IsReserved             *bool  `json:"isReserved,omitempty"`
	MobileNumber           string `json:"mobileNumber,omitempty"`
	Email                  string `json:"email,omitempty"`
}

// OrganizationContactPoints 组织在外部目录中登记的联系点
// 官方地址之外还带有组织内个人登记的联系点
type OrganizationContactPoints struct {
	OrganizationNumber string              `json:"organizationNumber"`
	MobileNumberList   []string            `json:"mobileNumberList,omitempty"`
	EmailList          []string            `json:"emailList,omitempty"`
	UserContactPoints  []UserContactPoints `json:"userContactPoints,omitempty"`
}

// ProfileClient 外部目录客户端
//
// 所有查询都是批量接口
type ProfileClient interface {
	// GetUserContactPoints 按身份证号批量查询个人联系点
	GetUserContactPoints(ctx context.Context, nationalIdentityNumbers []string) ([]UserContactPoints, error)
	// GetOrganizationContactPoints 按组织号批量查询组织联系点
	// resourceID 不为空时由目录侧限定可见范围
	GetOrganizationContactPoints(ctx context.Context, organizationNumbers []string, resourceID string) ([]OrganizationContactPoints, error)
	// GetUserDisplayNames 批量查询个人展示名，键是身份证号
	GetUserDisplayNames(ctx context.Context, nationalIdentityNumbers []string) (map[string]string, error)
	// GetOrganizationDisplayNames 批量查询组织展示名，键是组织号
	GetOrganizationDisplayNames(ctx context.Context, organizationNumbers []string) (map[string]string, error)
}

// AuthorizationClient 授权客户端
type AuthorizationClient interface {
	// AuthorizeUserContactPoints 过滤出对 resourceID 有权限的个人联系点
	AuthorizeUserContactPoints(ctx context.Context, contactPoints []UserContactPoints, resourceID string) ([]UserContactPoints, error)
}

// ConditionClient 发送条件客户端
type ConditionClient interface {
	// CheckCondition 调用外部布尔条件接口
	CheckCondition(ctx context.Context, endpoint string) (bool, error)
}
