package channel

import "net/url"

// 网关按 URL 编码后的长度计费
const (
	singleSegmentLimit = 160
	multiSegmentSize   = 134
	maxSegmentCount    = 16
)

// SegmentCount 计算短信正文占用的计费分段数
// 编码后不超过 160 字符算 1 段，超过后每段 134 字符，封顶 16 段
func SegmentCount(body string) int {
	encoded := url.QueryEscape(body)
	if len(encoded) <= singleSegmentLimit {
		return 1
	}
	count := (len(encoded) + multiSegmentSize - 1) / multiSegmentSize
	if count > maxSegmentCount {
		return maxSegmentCount
	}
	return count
}
