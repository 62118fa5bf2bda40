package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	notificationevt "gitee.com/flycash/notification-dispatch/internal/event/notification"
	"gitee.com/flycash/notification-dispatch/internal/service/contact"
	"gitee.com/flycash/notification-dispatch/internal/service/keyword"
	"github.com/gofrs/uuid"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now.UTC()
}

type fakeEmailRepo struct {
	mu       sync.Mutex
	created  []domain.EmailNotification
	existing []domain.EmailNotification
	// pending 是 FindNewAndMarkSending 要按批吐出的单元
	pending  []domain.EmailNotification
	reverted []uuid.UUID
}

func (f *fakeEmailRepo) BatchCreate(_ context.Context, notifications []domain.EmailNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, notifications...)
	return nil
}

func (f *fakeEmailRepo) GetByOrderID(_ context.Context, _ uuid.UUID) ([]domain.EmailNotification, error) {
	return f.existing, nil
}

func (f *fakeEmailRepo) FindNewAndMarkSending(_ context.Context, limit int) ([]domain.EmailNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := limit
	if n > len(f.pending) {
		n = len(f.pending)
	}
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	return batch, nil
}

func (f *fakeEmailRepo) MarkNew(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverted = append(f.reverted, id)
	return nil
}

func (f *fakeEmailRepo) UpdateResult(_ context.Context, _ uuid.UUID, _ domain.NotificationResult) error {
	return nil
}

func (f *fakeEmailRepo) TerminateExpired(_ context.Context, _ time.Time, _ int) (int64, error) {
	return 0, nil
}

type fakeSmsRepo struct {
	mu       sync.Mutex
	created  []domain.SmsNotification
	existing []domain.SmsNotification
	pending  []domain.SmsNotification
	// calls 记录 FindNewAndMarkSending 被调用的次数
	calls    int
	reverted []uuid.UUID
}

func (f *fakeSmsRepo) BatchCreate(_ context.Context, notifications []domain.SmsNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, notifications...)
	return nil
}

func (f *fakeSmsRepo) GetByOrderID(_ context.Context, _ uuid.UUID) ([]domain.SmsNotification, error) {
	return f.existing, nil
}

func (f *fakeSmsRepo) FindNewAndMarkSending(_ context.Context, policy domain.SendingTimePolicy, limit int) ([]domain.SmsNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var batch []domain.SmsNotification
	rest := f.pending[:0]
	for i := range f.pending {
		if len(batch) < limit && f.pending[i].SendingTimePolicy == policy {
			batch = append(batch, f.pending[i])
			continue
		}
		rest = append(rest, f.pending[i])
	}
	f.pending = rest
	return batch, nil
}

func (f *fakeSmsRepo) MarkNew(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverted = append(f.reverted, id)
	return nil
}

func (f *fakeSmsRepo) UpdateResult(_ context.Context, _ uuid.UUID, _ domain.NotificationResult) error {
	return nil
}

func (f *fakeSmsRepo) TerminateExpired(_ context.Context, _ time.Time, _ int) (int64, error) {
	return 0, nil
}

type fakeResolver struct {
	mu       sync.Mutex
	resolved []domain.Recipient
	err      error
	gotMode  contact.Mode
	gotInput []domain.Recipient
}

func (f *fakeResolver) Resolve(_ context.Context, recipients []domain.Recipient, _ string, mode contact.Mode) ([]domain.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotMode = mode
	f.gotInput = recipients
	return f.resolved, f.err
}

// passthroughEngine 不做任何替换，原样返回模板内容
type passthroughEngine struct{}

func (passthroughEngine) Render(_ context.Context, subject, body string, recipients []domain.Recipient) ([]keyword.RenderedContent, error) {
	out := make([]keyword.RenderedContent, 0, len(recipients))
	for i := range recipients {
		out = append(out, keyword.RenderedContent{
			Recipient: recipients[i],
			Subject:   subject,
			Body:      body,
		})
	}
	return out, nil
}

type fakeEmailProducer struct {
	mu sync.Mutex
	// failIDs 里的单元投递失败
	failIDs  map[string]struct{}
	produced []notificationevt.EmailNotificationEvent
}

func (f *fakeEmailProducer) Produce(ctx context.Context, evt notificationevt.EmailNotificationEvent) error {
	_, err := f.ProduceBatch(ctx, []notificationevt.EmailNotificationEvent{evt})
	return err
}

func (f *fakeEmailProducer) ProduceBatch(_ context.Context, evts []notificationevt.EmailNotificationEvent) ([]notificationevt.EmailNotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var failed []notificationevt.EmailNotificationEvent
	for i := range evts {
		if _, ok := f.failIDs[evts[i].NotificationID]; ok {
			failed = append(failed, evts[i])
			continue
		}
		f.produced = append(f.produced, evts[i])
	}
	if len(failed) > 0 {
		return failed, errors.New("模拟投递失败")
	}
	return nil, nil
}

type fakeSmsProducer struct {
	mu       sync.Mutex
	failIDs  map[string]struct{}
	produced []notificationevt.SmsNotificationEvent
}

func (f *fakeSmsProducer) Produce(ctx context.Context, evt notificationevt.SmsNotificationEvent) error {
	_, err := f.ProduceBatch(ctx, []notificationevt.SmsNotificationEvent{evt})
	return err
}

func (f *fakeSmsProducer) ProduceBatch(_ context.Context, evts []notificationevt.SmsNotificationEvent) ([]notificationevt.SmsNotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var failed []notificationevt.SmsNotificationEvent
	for i := range evts {
		if _, ok := f.failIDs[evts[i].NotificationID]; ok {
			failed = append(failed, evts[i])
			continue
		}
		f.produced = append(f.produced, evts[i])
	}
	if len(failed) > 0 {
		return failed, errors.New("模拟投递失败")
	}
	return nil, nil
}
