package ioc

import (
	"github.com/sony/sonyflake"
)

// InitSeqGenerator 状态流水的单调序号生成器
func InitSeqGenerator() func() (uint64, error) {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{})
	if sf == nil {
		panic("初始化 sonyflake 失败")
	}
	return sf.NextID
}
