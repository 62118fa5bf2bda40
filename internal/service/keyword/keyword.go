package keyword

import (
	"context"
	"strings"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/client"
	"gitee.com/flycash/notification-dispatch/internal/domain"
	"github.com/patrickmn/go-cache"
)

// 两个占位符按字面匹配，不是完整的模板语言
const (
	RecipientNamePlaceholder   = "$recipientName$"
	RecipientNumberPlaceholder = "$recipientNumber$"
)

const (
	nameCacheTTL     = 5 * time.Minute
	nameCacheCleanup = 10 * time.Minute
)

// RenderedContent 单个接收者替换后的内容
type RenderedContent struct {
	Recipient domain.Recipient
	Subject   string
	Body      string
	// Customized 替换后的内容是否与模板原文不同
	Customized bool
}

// Engine 关键字替换引擎
type Engine interface {
	// Render 对每个接收者做占位符替换
	// 名称占位符需要查询外部目录，编号占位符纯本地替换
	Render(ctx context.Context, subject, body string, recipients []domain.Recipient) ([]RenderedContent, error)
}

type engine struct {
	profile client.ProfileClient
	names   *cache.Cache
}

// NewEngine 创建关键字替换引擎
func NewEngine(profile client.ProfileClient) Engine {
	return &engine{
		profile: profile,
		names:   cache.New(nameCacheTTL, nameCacheCleanup),
	}
}

func (e *engine) Render(ctx context.Context, subject, body string, recipients []domain.Recipient) ([]RenderedContent, error) {
	hasName := strings.Contains(subject, RecipientNamePlaceholder) ||
		strings.Contains(body, RecipientNamePlaceholder)
	hasNumber := strings.Contains(subject, RecipientNumberPlaceholder) ||
		strings.Contains(body, RecipientNumberPlaceholder)

	out := make([]RenderedContent, 0, len(recipients))
	if !hasName && !hasNumber {
		for i := range recipients {
			out = append(out, RenderedContent{
				Recipient: recipients[i],
				Subject:   subject,
				Body:      body,
			})
		}
		return out, nil
	}

	var userNames, orgNames map[string]string
	if hasName {
		var err error
		userNames, orgNames, err = e.lookupNames(ctx, recipients)
		if err != nil {
			return nil, err
		}
	}

	for i := range recipients {
		r := recipients[i]
		subj, bd := subject, body
		if hasName {
			name := ""
			if r.NationalIdentityNumber != "" {
				name = userNames[r.NationalIdentityNumber]
			} else if r.OrganizationNumber != "" {
				name = orgNames[r.OrganizationNumber]
			}
			subj = strings.ReplaceAll(subj, RecipientNamePlaceholder, name)
			bd = strings.ReplaceAll(bd, RecipientNamePlaceholder, name)
		}
		if hasNumber {
			number := r.NationalIdentityNumber
			if number == "" {
				number = r.OrganizationNumber
			}
			subj = strings.ReplaceAll(subj, RecipientNumberPlaceholder, number)
			bd = strings.ReplaceAll(bd, RecipientNumberPlaceholder, number)
		}
		out = append(out, RenderedContent{
			Recipient:  r,
			Subject:    subj,
			Body:       bd,
			Customized: subj != subject || bd != body,
		})
	}
	return out, nil
}

// lookupNames 批量查询展示名，命中缓存的不再发起外部调用
func (e *engine) lookupNames(ctx context.Context, recipients []domain.Recipient) (userNames, orgNames map[string]string, err error) {
	userNames = make(map[string]string)
	orgNames = make(map[string]string)
	var missingUsers, missingOrgs []string
	for i := range recipients {
		if nin := recipients[i].NationalIdentityNumber; nin != "" {
			if cached, ok := e.names.Get("user:" + nin); ok {
				userNames[nin] = cached.(string)
			} else if _, seen := userNames[nin]; !seen {
				missingUsers = appendDistinct(missingUsers, nin)
			}
		}
		if orgNo := recipients[i].OrganizationNumber; orgNo != "" {
			if cached, ok := e.names.Get("org:" + orgNo); ok {
				orgNames[orgNo] = cached.(string)
			} else if _, seen := orgNames[orgNo]; !seen {
				missingOrgs = appendDistinct(missingOrgs, orgNo)
			}
		}
	}

	if len(missingUsers) > 0 {
		fetched, err := e.profile.GetUserDisplayNames(ctx, missingUsers)
		if err != nil {
			return nil, nil, err
		}
		for _, nin := range missingUsers {
			// 没查到的缓存空串，替换结果就是空
			name := fetched[nin]
			userNames[nin] = name
			e.names.SetDefault("user:"+nin, name)
		}
	}
	if len(missingOrgs) > 0 {
		fetched, err := e.profile.GetOrganizationDisplayNames(ctx, missingOrgs)
		if err != nil {
			return nil, nil, err
		}
		for _, orgNo := range missingOrgs {
			name := fetched[orgNo]
			orgNames[orgNo] = name
			e.names.SetDefault("org:"+orgNo, name)
		}
	}
	return userNames, orgNames, nil
}

func appendDistinct(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
