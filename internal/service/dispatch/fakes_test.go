package dispatch

import (
	"context"
	"sync"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/service/condition"
	"github.com/gofrs/uuid"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now.UTC()
}

type stubEvaluator struct {
	outcome condition.Outcome
}

func (s stubEvaluator) Evaluate(_ context.Context, _ domain.NotificationOrder, _ bool) condition.Outcome {
	return s.outcome
}

type statusChange struct {
	id     uuid.UUID
	status domain.OrderStatus
}

type fakeOrderRepo struct {
	mu          sync.Mutex
	pastDue     []domain.NotificationOrder
	allTerminal bool
	feedErr     error

	statusChanges []statusChange
	feeds         []statusChange
	reRegistered  []uuid.UUID
}

func (f *fakeOrderRepo) Create(_ context.Context, order domain.NotificationOrder) (domain.NotificationOrder, error) {
	return order, nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, _ uuid.UUID) (domain.NotificationOrder, error) {
	return domain.NotificationOrder{}, nil
}

func (f *fakeOrderRepo) FindPastDueAndMarkProcessing(_ context.Context, _ time.Time, limit int) ([]domain.NotificationOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := limit
	if n > len(f.pastDue) {
		n = len(f.pastDue)
	}
	batch := f.pastDue[:n]
	f.pastDue = f.pastDue[n:]
	for i := range batch {
		batch[i].Status = domain.OrderStatusProcessing
		batch[i].ProcessingAttempts++
	}
	return batch, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChanges = append(f.statusChanges, statusChange{id: id, status: status})
	return nil
}

func (f *fakeOrderRepo) MarkRegistered(ctx context.Context, ids []uuid.UUID) error {
	// 真实仓储在上下文取消后会立刻失败，这里保持同样的行为
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reRegistered = append(f.reRegistered, ids...)
	return nil
}

func (f *fakeOrderRepo) AllUnitsTerminal(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.allTerminal, nil
}

func (f *fakeOrderRepo) InsertStatusFeed(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	if f.feedErr != nil {
		return f.feedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds = append(f.feeds, statusChange{id: id, status: status})
	return nil
}

type channelCalls struct {
	mu      sync.Mutex
	process int
	retry   int
	err     error
}

func (c *channelCalls) record(isRetry bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isRetry {
		c.retry++
	} else {
		c.process++
	}
	return c.err
}

type fakeEmailService struct {
	calls channelCalls
}

func (f *fakeEmailService) ProcessOrder(_ context.Context, _ domain.NotificationOrder) error {
	return f.calls.record(false)
}

func (f *fakeEmailService) ProcessOrderRetry(_ context.Context, _ domain.NotificationOrder) error {
	return f.calls.record(true)
}

func (f *fakeEmailService) ProcessOrderWithoutAddressLookup(_ context.Context, _ domain.NotificationOrder, _ []domain.Recipient) error {
	return f.calls.record(false)
}

func (f *fakeEmailService) ProcessOrderRetryWithoutAddressLookup(_ context.Context, _ domain.NotificationOrder, _ []domain.Recipient) error {
	return f.calls.record(true)
}

func (f *fakeEmailService) SendNotifications(_ context.Context) error {
	return nil
}

func (f *fakeEmailService) UpdateSendStatus(_ context.Context, _ domain.SendStatusUpdate) error {
	return nil
}

func (f *fakeEmailService) TerminateExpiredNotifications(_ context.Context) (int64, error) {
	return 0, nil
}

type fakeSmsService struct {
	calls channelCalls
}

func (f *fakeSmsService) ProcessOrder(_ context.Context, _ domain.NotificationOrder) error {
	return f.calls.record(false)
}

func (f *fakeSmsService) ProcessOrderRetry(_ context.Context, _ domain.NotificationOrder) error {
	return f.calls.record(true)
}

func (f *fakeSmsService) ProcessOrderWithoutAddressLookup(_ context.Context, _ domain.NotificationOrder, _ []domain.Recipient) error {
	return f.calls.record(false)
}

func (f *fakeSmsService) ProcessOrderRetryWithoutAddressLookup(_ context.Context, _ domain.NotificationOrder, _ []domain.Recipient) error {
	return f.calls.record(true)
}

func (f *fakeSmsService) SendNotifications(_ context.Context, _ domain.SendingTimePolicy) error {
	return nil
}

func (f *fakeSmsService) UpdateSendStatus(_ context.Context, _ domain.SendStatusUpdate) error {
	return nil
}

func (f *fakeSmsService) TerminateExpiredNotifications(_ context.Context) (int64, error) {
	return 0, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	email   int
	anytime int
	daytime int
}

func (f *fakeNotifier) NotifyEmail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.email++
}

func (f *fakeNotifier) NotifySms(policy domain.SendingTimePolicy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if policy == domain.PolicyDaytime {
		f.daytime++
		return
	}
	f.anytime++
}
