package timeutil

import (
	"time"

	"github.com/gofrs/uuid"
)

// Clock 统一的时钟抽象，方便测试注入固定时间
type Clock interface {
	// Now 返回 UTC 时间
	Now() time.Time
}

// IDGenerator 送达单元 ID 生成器
type IDGenerator interface {
	NewID() uuid.UUID
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type uuidGenerator struct{}

func NewUUIDGenerator() IDGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}
