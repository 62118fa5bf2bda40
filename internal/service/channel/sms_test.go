package channel

import (
	"strings"
	"testing"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
	"gitee.com/flycash/notification-dispatch/internal/service/schedule"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSmsOrder(recipients ...domain.Recipient) domain.NotificationOrder {
	return domain.NotificationOrder{
		ID:                uuid.Must(uuid.NewV4()),
		Creator:           "skd",
		RequestedSendTime: testNow,
		Channel:           domain.ChannelSms,
		Templates: domain.Templates{
			Sms: &domain.SmsTemplate{Sender: "Etaten", Body: "您的账单已生成"},
		},
		Recipients:         recipients,
		SendingTimePolicy:  domain.PolicyDaytime,
		Status:             domain.OrderStatusProcessing,
		ProcessingAttempts: 1,
	}
}

func newSmsServiceForTest(t *testing.T, repo *fakeSmsRepo, producer *fakeSmsProducer, now time.Time, batchSize int) SmsService {
	t.Helper()
	scheduler, err := schedule.NewSendWindowScheduler(schedule.Config{
		TimeZone:  "Europe/Oslo",
		StartHour: 9,
		EndHour:   17,
	}, fixedClock{now: now})
	require.NoError(t, err)
	return NewSmsService(repo, &fakeResolver{}, passthroughEngine{}, producer,
		scheduler, fixedClock{now: now}, timeutil.NewUUIDGenerator(), batchSize)
}

func TestSmsService_ProcessOrder_Generate(t *testing.T) {
	t.Parallel()

	repo := &fakeSmsRepo{}
	// testNow 是奥斯陆夏令时 12:00，在发送窗口内
	svc := newSmsServiceForTest(t, repo, &fakeSmsProducer{}, testNow, 0)

	order := newSmsOrder(domain.Recipient{
		NationalIdentityNumber: "11111111111",
		AddressPoints:          []domain.AddressPoint{domain.NewSmsAddressPoint("+4799999999")},
	})
	require.NoError(t, svc.ProcessOrder(t.Context(), order))

	require.Len(t, repo.created, 1)
	unit := repo.created[0]
	assert.Equal(t, domain.ResultNew, unit.Result)
	assert.Equal(t, "+4799999999", unit.MobileNumber)
	assert.Equal(t, "Etaten", unit.Sender)
	assert.Equal(t, 1, unit.SegmentCount)
	assert.Equal(t, domain.PolicyDaytime, unit.SendingTimePolicy)
	// 参考时间在窗口内，过期时间就是参考时间加存活时间
	assert.True(t, testNow.Add(48*time.Hour).Equal(unit.Expiry))
}

func TestSmsService_ProcessOrder_ExpiryDeferredOutsideWindow(t *testing.T) {
	t.Parallel()

	repo := &fakeSmsRepo{}
	svc := newSmsServiceForTest(t, repo, &fakeSmsProducer{}, testNow, 0)

	order := newSmsOrder(domain.Recipient{
		NationalIdentityNumber: "11111111111",
		AddressPoints:          []domain.AddressPoint{domain.NewSmsAddressPoint("+4799999999")},
	})
	// 奥斯陆 06:00，窗口外
	order.RequestedSendTime = time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ProcessOrder(t.Context(), order))

	require.Len(t, repo.created, 1)
	// 顺延到当天 09:00 奥斯陆（07:00 UTC）再加 48 小时
	want := time.Date(2025, 6, 12, 7, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(repo.created[0].Expiry))
}

func TestSmsService_ProcessOrder_LongBodySegments(t *testing.T) {
	t.Parallel()

	repo := &fakeSmsRepo{}
	svc := newSmsServiceForTest(t, repo, &fakeSmsProducer{}, testNow, 0)

	order := newSmsOrder(domain.Recipient{
		NationalIdentityNumber: "11111111111",
		AddressPoints:          []domain.AddressPoint{domain.NewSmsAddressPoint("+4799999999")},
	})
	order.Templates.Sms.Body = strings.Repeat("a", 300)
	require.NoError(t, svc.ProcessOrder(t.Context(), order))

	require.Len(t, repo.created, 1)
	assert.Equal(t, 3, repo.created[0].SegmentCount)
}

func TestSmsService_ProcessOrderRetry_Idempotent(t *testing.T) {
	t.Parallel()

	order := newSmsOrder(domain.Recipient{
		NationalIdentityNumber: "11111111111",
		AddressPoints:          []domain.AddressPoint{domain.NewSmsAddressPoint("+4799999999")},
	})
	order.ProcessingAttempts = 2

	repo := &fakeSmsRepo{
		existing: []domain.SmsNotification{{
			ID:                     uuid.Must(uuid.NewV4()),
			OrderID:                order.ID,
			MobileNumber:           "+4799999999",
			NationalIdentityNumber: "11111111111",
			Result:                 domain.ResultSending,
		}},
	}
	svc := newSmsServiceForTest(t, repo, &fakeSmsProducer{}, testNow, 0)

	require.NoError(t, svc.ProcessOrderRetry(t.Context(), order))
	assert.Empty(t, repo.created)
}

func TestSmsService_SendNotifications_DaytimeDeferredOutsideWindow(t *testing.T) {
	t.Parallel()

	repo := &fakeSmsRepo{
		pending: []domain.SmsNotification{{
			ID:                uuid.Must(uuid.NewV4()),
			SendingTimePolicy: domain.PolicyDaytime,
			Result:            domain.ResultNew,
		}},
	}
	// 奥斯陆 06:00，窗口外
	now := time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC)
	producer := &fakeSmsProducer{}
	svc := newSmsServiceForTest(t, repo, producer, now, 0)

	require.NoError(t, svc.SendNotifications(t.Context(), domain.PolicyDaytime))

	// 窗口外不捞批也不投递
	assert.Zero(t, repo.calls)
	assert.Empty(t, producer.produced)
}

func TestSmsService_SendNotifications_DrainsUntilShortBatch(t *testing.T) {
	t.Parallel()

	var pending []domain.SmsNotification
	for range 5 {
		pending = append(pending, domain.SmsNotification{
			ID:                uuid.Must(uuid.NewV4()),
			OrderID:           uuid.Must(uuid.NewV4()),
			MobileNumber:      "+4799999999",
			SendingTimePolicy: domain.PolicyAnytime,
			Result:            domain.ResultNew,
		})
	}
	repo := &fakeSmsRepo{pending: pending}
	producer := &fakeSmsProducer{}
	svc := newSmsServiceForTest(t, repo, producer, testNow, 2)

	require.NoError(t, svc.SendNotifications(t.Context(), domain.PolicyAnytime))

	// 2 + 2 + 1，最后一批不满就停
	assert.Equal(t, 3, repo.calls)
	assert.Len(t, producer.produced, 5)
}

func TestSmsService_SendNotifications_RevertsFailed(t *testing.T) {
	t.Parallel()

	failID := uuid.Must(uuid.NewV4())
	repo := &fakeSmsRepo{
		pending: []domain.SmsNotification{{
			ID:                failID,
			OrderID:           uuid.Must(uuid.NewV4()),
			MobileNumber:      "+4799999999",
			SendingTimePolicy: domain.PolicyAnytime,
			Result:            domain.ResultNew,
		}},
	}
	producer := &fakeSmsProducer{failIDs: map[string]struct{}{failID.String(): {}}}
	svc := newSmsServiceForTest(t, repo, producer, testNow, 0)

	require.NoError(t, svc.SendNotifications(t.Context(), domain.PolicyAnytime))

	require.Len(t, repo.reverted, 1)
	assert.Equal(t, failID, repo.reverted[0])
}
