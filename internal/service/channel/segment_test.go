package channel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentCount(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
		want int
	}{
		{
			name: "空正文算一段",
			body: "",
			want: 1,
		},
		{
			name: "编码后正好 160 算一段",
			body: strings.Repeat("a", 160),
			want: 1,
		},
		{
			name: "超出一个字符就进入多段计费",
			body: strings.Repeat("a", 161),
			want: 2,
		},
		{
			name: "多段按 134 向上取整",
			body: strings.Repeat("a", 269), // ceil(269/134) = 3
			want: 3,
		},
		{
			name: "按编码后长度计算而不是字符数",
			// æ 编码成 %C3%A6，每个字符占 6 位
			body: strings.Repeat("æ", 27), // 27*6 = 162 > 160
			want: 2,
		},
		{
			name: "超长正文封顶 16 段",
			body: strings.Repeat("a", 3000),
			want: 16,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SegmentCount(tc.body))
		})
	}
}
