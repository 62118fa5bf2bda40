package schedule

import (
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
)

// 短信默认存活 48 小时
const smsTTL = 48 * time.Hour

type Config struct {
	// TimeZone 固定的民用时区，例如 Europe/Oslo
	TimeZone string `json:"timeZone" yaml:"timeZone"`
	// StartHour 窗口起点（不含）
	StartHour int `json:"startHour" yaml:"startHour"`
	// EndHour 窗口终点（不含）
	EndHour int `json:"endHour" yaml:"endHour"`
}

// SendWindowScheduler 短信发送时间窗口调度器
// 所有判断都在配置的民用时区内进行
type SendWindowScheduler struct {
	loc   *time.Location
	start int
	end   int
	clock timeutil.Clock
}

// NewSendWindowScheduler 创建发送窗口调度器
func NewSendWindowScheduler(cfg Config, clock timeutil.Clock) (*SendWindowScheduler, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("加载时区 %q 失败: %w", cfg.TimeZone, err)
	}
	if cfg.StartHour < 0 || cfg.EndHour > 24 || cfg.StartHour >= cfg.EndHour {
		return nil, fmt.Errorf("非法的发送窗口 [%d, %d]", cfg.StartHour, cfg.EndHour)
	}
	return &SendWindowScheduler{
		loc:   loc,
		start: cfg.StartHour,
		end:   cfg.EndHour,
		clock: clock,
	}, nil
}

// IsWithinSendWindow 当前时刻是否落在发送窗口内
func (s *SendWindowScheduler) IsWithinSendWindow() bool {
	return s.isWithin(s.clock.Now())
}

// GetExpiry 计算短信送达单元的过期时间
// 输入必须是 UTC 时间，其它时区属于用法错误，直接 panic
func (s *SendWindowScheduler) GetExpiry(referenceUTC time.Time) time.Time {
	if referenceUTC.Location() != time.UTC {
		panic(fmt.Sprintf("GetExpiry 只接受 UTC 时间，实际是 %s", referenceUTC.Location()))
	}
	if s.isWithin(referenceUTC) {
		return referenceUTC.Add(smsTTL)
	}
	// 窗口之外：取下一个窗口起点，转回 UTC 再加存活时间
	local := referenceUTC.In(s.loc)
	day := local
	if s.secondsOfDay(local) >= s.start*3600 {
		day = local.AddDate(0, 0, 1)
	}
	nextStart := time.Date(day.Year(), day.Month(), day.Day(), s.start, 0, 0, 0, s.loc)
	return nextStart.UTC().Add(smsTTL)
}

// isWithin 窗口两端都是开区间：start < 当地时刻 < end
func (s *SendWindowScheduler) isWithin(t time.Time) bool {
	sec := s.secondsOfDay(t.In(s.loc))
	return sec > s.start*3600 && sec < s.end*3600
}

func (s *SendWindowScheduler) secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
