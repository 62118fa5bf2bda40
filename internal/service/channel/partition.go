package channel

import (
	"strings"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"github.com/gofrs/uuid"
)

// unitKey 送达单元的等价键：地址加上身份标识
// 重试时键相同的单元视为已登记，不再重复生成
func unitKey(address, nin, orgNo string) string {
	return strings.Join([]string{address, nin, orgNo}, "|")
}

func parseUnitID(raw string) (uuid.UUID, error) {
	return uuid.FromString(raw)
}

// MergeResolved 把解析结果合并回原始接收者列表
// 解析成功的接收者用带地址的版本替换，目录里查不到的保留原样，
// 留给生成阶段落成 FAILED_RECIPIENT_NOT_IDENTIFIED
func MergeResolved(original, resolved []domain.Recipient) []domain.Recipient {
	resolvedMap := make(map[string]domain.Recipient, len(resolved))
	for i := range resolved {
		if key := resolved[i].PartitionKey(); key != "" {
			resolvedMap[key] = resolved[i]
		}
	}
	out := make([]domain.Recipient, 0, len(original))
	for i := range original {
		if r, ok := resolvedMap[original[i].PartitionKey()]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, original[i])
	}
	return out
}

// WithoutAddresses 挑出还没有任何地址点的接收者，它们需要走目录解析
func WithoutAddresses(recipients []domain.Recipient) []domain.Recipient {
	var out []domain.Recipient
	for i := range recipients {
		if len(recipients[i].AddressPoints) == 0 {
			out = append(out, recipients[i])
		}
	}
	return out
}

// SplitByAddressType 为 EMAIL_AND_SMS 渠道把接收者拆成两个视图
// 每个视图只保留对应媒介的地址点，同一接收者在单个视图内只出现一次
func SplitByAddressType(recipients []domain.Recipient, newKey func() string) (emailView, smsView []domain.Recipient) {
	seenEmail := make(map[string]struct{}, len(recipients))
	seenSms := make(map[string]struct{}, len(recipients))
	for i := range recipients {
		key := recipients[i].PartitionKey()
		if key == "" {
			// 没有身份标识的接收者各自独立，用合成键防止误合并
			key = newKey()
		}
		if _, ok := seenEmail[key]; !ok {
			seenEmail[key] = struct{}{}
			emailView = append(emailView, projectAddresses(recipients[i], domain.AddressTypeEmail))
		}
		if _, ok := seenSms[key]; !ok {
			seenSms[key] = struct{}{}
			smsView = append(smsView, projectAddresses(recipients[i], domain.AddressTypeSms))
		}
	}
	return emailView, smsView
}

// SplitByPreference 为偏好渠道把接收者拆成偏好列表和回退列表
// 持有偏好媒介地址的进偏好列表；只有回退媒介地址的进回退列表；
// 两种地址都没有的进偏好列表，由偏好渠道落失败结果
func SplitByPreference(recipients []domain.Recipient, preferred domain.AddressType) (preferredList, fallbackList []domain.Recipient) {
	fallback := domain.AddressTypeEmail
	if preferred == domain.AddressTypeEmail {
		fallback = domain.AddressTypeSms
	}
	for i := range recipients {
		switch {
		case recipients[i].HasAddressOfType(preferred):
			preferredList = append(preferredList, projectAddresses(recipients[i], preferred))
		case recipients[i].HasAddressOfType(fallback):
			fallbackList = append(fallbackList, projectAddresses(recipients[i], fallback))
		default:
			preferredList = append(preferredList, recipients[i])
		}
	}
	return preferredList, fallbackList
}

// projectAddresses 复制接收者并只保留指定媒介的地址点
func projectAddresses(r domain.Recipient, t domain.AddressType) domain.Recipient {
	var points []domain.AddressPoint
	for _, p := range r.AddressPoints {
		if p.Type == t {
			points = append(points, p)
		}
	}
	r.AddressPoints = points
	return r
}
