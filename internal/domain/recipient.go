package domain

import (
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// AddressType 地址点类型
type AddressType string

const (
	AddressTypeEmail AddressType = "EMAIL"
	AddressTypeSms   AddressType = "SMS"
)

// AddressPoint 地址点，EMAIL 与 SMS 两个变体构成的 tagged union
type AddressPoint struct {
	Type    AddressType `json:"type"`
	Address string      `json:"address"`
}

func NewEmailAddressPoint(address string) AddressPoint {
	return AddressPoint{Type: AddressTypeEmail, Address: address}
}

func NewSmsAddressPoint(mobileNumber string) AddressPoint {
	return AddressPoint{Type: AddressTypeSms, Address: mobileNumber}
}

// Recipient 通知接收者，个人或者组织
type Recipient struct {
	AddressPoints          []AddressPoint `json:"addressPoints,omitempty"`
	IsReserved             *bool          `json:"isReserved,omitempty"`
	NationalIdentityNumber string         `json:"nationalIdentityNumber,omitempty"`
	OrganizationNumber     string         `json:"organizationNumber,omitempty"`
	ExternalIdentity       string         `json:"externalIdentity,omitempty"`
}

// Reserved 接收者是否预留（不接收通知）
func (r *Recipient) Reserved() bool {
	return r.IsReserved != nil && *r.IsReserved
}

// AddressesOfType 返回指定类型的全部地址
func (r *Recipient) AddressesOfType(t AddressType) []string {
	var addrs []string
	for _, p := range r.AddressPoints {
		if p.Type == t {
			addrs = append(addrs, p.Address)
		}
	}
	return addrs
}

// HasAddressOfType 是否持有指定类型的地址点
func (r *Recipient) HasAddressOfType(t AddressType) bool {
	for _, p := range r.AddressPoints {
		if p.Type == t {
			return true
		}
	}
	return false
}

// AppendAddressPoint 补充地址点
// 解析阶段只追加不替换，重复地址直接忽略
func (r *Recipient) AppendAddressPoint(p AddressPoint) {
	if p.Address == "" {
		return
	}
	for _, existing := range r.AddressPoints {
		if existing.Type == p.Type && existing.Address == p.Address {
			return
		}
	}
	r.AddressPoints = append(r.AddressPoints, p)
}

// PartitionKey 去重用的分组键：身份证号优先，其次组织号
// 两者皆无返回空串，调用方需自行生成合成键
func (r *Recipient) PartitionKey() string {
	if r.NationalIdentityNumber != "" {
		return r.NationalIdentityNumber
	}
	return r.OrganizationNumber
}

func (r *Recipient) Validate() error {
	// 身份证号、组织号、外部身份至多设置一个
	cnt := 0
	if r.NationalIdentityNumber != "" {
		cnt++
	}
	if r.OrganizationNumber != "" {
		cnt++
	}
	if r.ExternalIdentity != "" {
		cnt++
	}
	if cnt > 1 {
		return fmt.Errorf("%w: 接收者身份标识只能设置一个", errs.ErrInvalidParameter)
	}
	return nil
}

// EmailRecipient 邮件接收者投影，只作为创建送达单元的输入，不单独持久化
type EmailRecipient struct {
	ToAddress              string
	CustomizedSubject      string
	CustomizedBody         string
	Customized             bool
	IsReserved             bool
	NationalIdentityNumber string
	OrganizationNumber     string
}

// SmsRecipient 短信接收者投影，只作为创建送达单元的输入，不单独持久化
type SmsRecipient struct {
	MobileNumber           string
	CustomizedBody         string
	Customized             bool
	IsReserved             bool
	NationalIdentityNumber string
	OrganizationNumber     string
}
