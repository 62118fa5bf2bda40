package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now.UTC()
}

func newOsloScheduler(t *testing.T, now time.Time) *SendWindowScheduler {
	t.Helper()
	s, err := NewSendWindowScheduler(Config{
		TimeZone:  "Europe/Oslo",
		StartHour: 9,
		EndHour:   17,
	}, fixedClock{now: now})
	require.NoError(t, err)
	return s
}

func TestNewSendWindowScheduler_InvalidConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		cfg  Config
	}{
		{
			name: "未知时区",
			cfg:  Config{TimeZone: "Mars/Olympus", StartHour: 9, EndHour: 17},
		},
		{
			name: "起点晚于终点",
			cfg:  Config{TimeZone: "Europe/Oslo", StartHour: 17, EndHour: 9},
		},
		{
			name: "终点越界",
			cfg:  Config{TimeZone: "Europe/Oslo", StartHour: 9, EndHour: 25},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSendWindowScheduler(tc.cfg, fixedClock{now: time.Now()})
			assert.Error(t, err)
		})
	}
}

func TestIsWithinSendWindow(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		// UTC 时刻，夏令时期间奥斯陆是 UTC+2，冬令时是 UTC+1
		now  time.Time
		want bool
	}{
		{
			name: "夏令时中午在窗口内",
			now:  time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), // 奥斯陆 12:00
			want: true,
		},
		{
			name: "夏令时清晨在窗口外",
			now:  time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC), // 奥斯陆 08:00
			want: false,
		},
		{
			name: "窗口起点是开区间",
			now:  time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC), // 奥斯陆 09:00 整
			want: false,
		},
		{
			name: "起点过后一秒就算进入窗口",
			now:  time.Date(2025, 6, 10, 7, 0, 1, 0, time.UTC), // 奥斯陆 09:00:01
			want: true,
		},
		{
			name: "窗口终点是开区间",
			now:  time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC), // 奥斯陆 17:00 整
			want: false,
		},
		{
			name: "冬令时按当地时间判断",
			now:  time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC), // 奥斯陆 09:30
			want: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newOsloScheduler(t, tc.now)
			assert.Equal(t, tc.want, s.IsWithinSendWindow())
		})
	}
}

func TestGetExpiry(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		reference time.Time
		want      time.Time
	}{
		{
			name:      "窗口内直接加存活时间",
			reference: time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC), // 奥斯陆 12:00
			want:      time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "清晨顺延到当天窗口起点",
			reference: time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC), // 奥斯陆 08:00
			// 当天 09:00 奥斯陆 = 07:00 UTC，再加 48 小时
			want: time.Date(2025, 6, 12, 7, 0, 0, 0, time.UTC),
		},
		{
			name:      "正好在窗口起点要顺延到次日",
			reference: time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC), // 奥斯陆 09:00 整
			want:      time.Date(2025, 6, 13, 7, 0, 0, 0, time.UTC),
		},
		{
			name:      "晚间顺延到次日窗口起点",
			reference: time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC), // 奥斯陆 20:00
			want:      time.Date(2025, 6, 13, 7, 0, 0, 0, time.UTC),
		},
		{
			name:      "冬令时窗口起点换算用 UTC+1",
			reference: time.Date(2025, 1, 10, 5, 0, 0, 0, time.UTC), // 奥斯陆 06:00
			// 当天 09:00 奥斯陆 = 08:00 UTC
			want: time.Date(2025, 1, 12, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newOsloScheduler(t, tc.reference)
			got := s.GetExpiry(tc.reference)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestGetExpiry_PanicsOnNonUTC(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)
	s := newOsloScheduler(t, time.Now())
	assert.Panics(t, func() {
		s.GetExpiry(time.Date(2025, 6, 10, 12, 0, 0, 0, loc))
	})
}
