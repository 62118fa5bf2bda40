package contact

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/client"
	"gitee.com/flycash/notification-dispatch/internal/domain"
	"github.com/gotomicro/ego/core/elog"
	"golang.org/x/sync/errgroup"
)

// Mode 联系点解析模式，决定把哪类地址挂到接收者身上
type Mode string

const (
	ModeEmailOnly      Mode = "EMAIL_ONLY"
	ModeSmsOnly        Mode = "SMS_ONLY"
	ModeBoth           Mode = "BOTH"
	ModeEmailPreferred Mode = "EMAIL_PREFERRED"
	ModeSmsPreferred   Mode = "SMS_PREFERRED"
)

// ModeForChannel 渠道对应的解析模式
func ModeForChannel(ch domain.NotificationChannel) Mode {
	switch ch {
	case domain.ChannelEmail:
		return ModeEmailOnly
	case domain.ChannelSms:
		return ModeSmsOnly
	case domain.ChannelEmailPreferred:
		return ModeEmailPreferred
	case domain.ChannelSmsPreferred:
		return ModeSmsPreferred
	default:
		return ModeBoth
	}
}

// Resolver 联系点解析器
type Resolver interface {
	// Resolve 为缺地址的接收者查询外部目录并补充地址点
	// 目录里查不到的接收者会被整个丢弃，返回值是输入的子集
	Resolve(ctx context.Context, recipients []domain.Recipient, resourceID string, mode Mode) ([]domain.Recipient, error)
}

type resolver struct {
	profile            client.ProfileClient
	authz              client.AuthorizationClient
	defaultCountryCode string
	logger             *elog.Component
}

// NewResolver 创建联系点解析器
// defaultCountryCode 形如 +47，用于手机号归一化
func NewResolver(profile client.ProfileClient, authz client.AuthorizationClient, defaultCountryCode string) Resolver {
	return &resolver{
		profile:            profile,
		authz:              authz,
		defaultCountryCode: defaultCountryCode,
		logger:             elog.DefaultLogger,
	}
}

func (r *resolver) Resolve(ctx context.Context, recipients []domain.Recipient, resourceID string, mode Mode) ([]domain.Recipient, error) {
	var nins, orgNos []string
	for i := range recipients {
		if nin := recipients[i].NationalIdentityNumber; nin != "" {
			nins = append(nins, nin)
			continue
		}
		if orgNo := recipients[i].OrganizationNumber; orgNo != "" {
			orgNos = append(orgNos, orgNo)
		}
		// 两者皆无的接收者不参与解析
	}

	// 个人和组织的目录查询没有先后依赖，并发执行
	var users []client.UserContactPoints
	var orgs []client.OrganizationContactPoints
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		users, err = r.profile.GetUserContactPoints(egCtx, nins)
		return err
	})
	eg.Go(func() error {
		var err error
		orgs, err = r.profile.GetOrganizationContactPoints(egCtx, orgNos, resourceID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if resourceID != "" {
		var err error
		orgs, err = r.authorizeOrgUserContactPoints(ctx, orgs, resourceID)
		if err != nil {
			return nil, err
		}
	}

	userMap := make(map[string]client.UserContactPoints, len(users))
	for i := range users {
		users[i].MobileNumber = r.ensureCountryCode(users[i].MobileNumber)
		userMap[users[i].NationalIdentityNumber] = users[i]
	}
	orgMap := make(map[string]client.OrganizationContactPoints, len(orgs))
	for i := range orgs {
		for j := range orgs[i].MobileNumberList {
			orgs[i].MobileNumberList[j] = r.ensureCountryCode(orgs[i].MobileNumberList[j])
		}
		for j := range orgs[i].UserContactPoints {
			orgs[i].UserContactPoints[j].MobileNumber = r.ensureCountryCode(orgs[i].UserContactPoints[j].MobileNumber)
		}
		orgMap[orgs[i].OrganizationNumber] = orgs[i]
	}

	out := make([]domain.Recipient, 0, len(recipients))
	for i := range recipients {
		rec := recipients[i]
		switch {
		case rec.NationalIdentityNumber != "":
			u, ok := userMap[rec.NationalIdentityNumber]
			if !ok {
				// 目录里没有，整个丢弃
				continue
			}
			rec.IsReserved = u.IsReserved
			attachFromPoint(&rec, u.Email, u.MobileNumber, mode)
			out = append(out, rec)
		case rec.OrganizationNumber != "":
			o, ok := orgMap[rec.OrganizationNumber]
			if !ok {
				continue
			}
			// 组织官方地址算一个来源，组织内每个个人联系点各算一个来源
			attachFromLists(&rec, o.EmailList, o.MobileNumberList, mode)
			for j := range o.UserContactPoints {
				attachFromPoint(&rec, o.UserContactPoints[j].Email, o.UserContactPoints[j].MobileNumber, mode)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// authorizeOrgUserContactPoints 组织内个人联系点要过授权这一关
// 没拿到授权的联系点不会进入解析结果
func (r *resolver) authorizeOrgUserContactPoints(ctx context.Context, orgs []client.OrganizationContactPoints, resourceID string) ([]client.OrganizationContactPoints, error) {
	var all []client.UserContactPoints
	for i := range orgs {
		all = append(all, orgs[i].UserContactPoints...)
	}
	if len(all) == 0 {
		return orgs, nil
	}
	authorized, err := r.authz.AuthorizeUserContactPoints(ctx, all, resourceID)
	if err != nil {
		return nil, err
	}
	granted := make(map[string]struct{}, len(authorized))
	for i := range authorized {
		granted[authorized[i].NationalIdentityNumber] = struct{}{}
	}
	for i := range orgs {
		kept := orgs[i].UserContactPoints[:0]
		for j := range orgs[i].UserContactPoints {
			if _, ok := granted[orgs[i].UserContactPoints[j].NationalIdentityNumber]; ok {
				kept = append(kept, orgs[i].UserContactPoints[j])
			}
		}
		orgs[i].UserContactPoints = kept
	}
	return orgs, nil
}

// ensureCountryCode 手机号归一化
// 只处理一种无歧义的形态：8 位数字且以 4 或 9 开头视为本地号码，补默认国家码；
// 其它形态原样放行，这里不做合法性校验
func (r *resolver) ensureCountryCode(number string) string {
	if len(number) != 8 {
		return number
	}
	for _, c := range number {
		if c < '0' || c > '9' {
			return number
		}
	}
	if number[0] == '4' || number[0] == '9' {
		return r.defaultCountryCode + number
	}
	return number
}

// attachFromPoint 按模式把单个来源的地址挂到接收者身上
// 偏好模式下每个来源只取一个地址：优先媒介存在就取它，否则取回退媒介
func attachFromPoint(rec *domain.Recipient, email, mobile string, mode Mode) {
	switch mode {
	case ModeEmailOnly:
		rec.AppendAddressPoint(domain.NewEmailAddressPoint(email))
	case ModeSmsOnly:
		rec.AppendAddressPoint(domain.NewSmsAddressPoint(mobile))
	case ModeBoth:
		rec.AppendAddressPoint(domain.NewEmailAddressPoint(email))
		rec.AppendAddressPoint(domain.NewSmsAddressPoint(mobile))
	case ModeEmailPreferred:
		if email != "" {
			rec.AppendAddressPoint(domain.NewEmailAddressPoint(email))
			return
		}
		rec.AppendAddressPoint(domain.NewSmsAddressPoint(mobile))
	case ModeSmsPreferred:
		if mobile != "" {
			rec.AppendAddressPoint(domain.NewSmsAddressPoint(mobile))
			return
		}
		rec.AppendAddressPoint(domain.NewEmailAddressPoint(email))
	}
}

// attachFromLists 组织官方地址列表作为一个来源，按模式整体挂载
func attachFromLists(rec *domain.Recipient, emails, mobiles []string, mode Mode) {
	appendEmails := func() {
		for _, e := range emails {
			rec.AppendAddressPoint(domain.NewEmailAddressPoint(e))
		}
	}
	appendMobiles := func() {
		for _, m := range mobiles {
			rec.AppendAddressPoint(domain.NewSmsAddressPoint(m))
		}
	}
	switch mode {
	case ModeEmailOnly:
		appendEmails()
	case ModeSmsOnly:
		appendMobiles()
	case ModeBoth:
		appendEmails()
		appendMobiles()
	case ModeEmailPreferred:
		if len(emails) > 0 {
			appendEmails()
			return
		}
		appendMobiles()
	case ModeSmsPreferred:
		if len(mobiles) > 0 {
			appendMobiles()
			return
		}
		appendEmails()
	}
}
