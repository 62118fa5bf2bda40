package channel

import (
	"testing"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
	"gitee.com/flycash/notification-dispatch/internal/service/contact"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

func newEmailOrder(recipients ...domain.Recipient) domain.NotificationOrder {
	return domain.NotificationOrder{
		ID:                uuid.Must(uuid.NewV4()),
		Creator:           "skd",
		RequestedSendTime: testNow,
		Channel:           domain.ChannelEmail,
		Templates: domain.Templates{
			Email: &domain.EmailTemplate{
				FromAddress: "noreply@example.com",
				Subject:     "账单提醒",
				Body:        "您的账单已生成",
				ContentType: domain.ContentTypePlain,
			},
		},
		Recipients:         recipients,
		SendingTimePolicy:  domain.PolicyAnytime,
		Status:             domain.OrderStatusProcessing,
		ProcessingAttempts: 1,
	}
}

func newEmailServiceForTest(repo *fakeEmailRepo, resolver *fakeResolver, producer *fakeEmailProducer) EmailService {
	return NewEmailService(repo, resolver, passthroughEngine{}, producer,
		fixedClock{now: testNow}, timeutil.NewUUIDGenerator(), 0)
}

func TestEmailService_ProcessOrder_UnitPerAddress(t *testing.T) {
	t.Parallel()

	repo := &fakeEmailRepo{}
	svc := newEmailServiceForTest(repo, &fakeResolver{}, &fakeEmailProducer{})

	order := newEmailOrder(domain.Recipient{
		NationalIdentityNumber: "11111111111",
		AddressPoints: []domain.AddressPoint{
			domain.NewEmailAddressPoint("a@example.com"),
			domain.NewEmailAddressPoint("b@example.com"),
		},
	})
	require.NoError(t, svc.ProcessOrder(t.Context(), order))

	require.Len(t, repo.created, 2)
	for _, unit := range repo.created {
		assert.Equal(t, order.ID, unit.OrderID)
		assert.Equal(t, domain.ResultNew, unit.Result)
		assert.Equal(t, "账单提醒", unit.Subject)
		assert.True(t, testNow.Add(emailTTL).Equal(unit.Expiry))
	}
	assert.Equal(t, "a@example.com", repo.created[0].ToAddress)
	assert.Equal(t, "b@example.com", repo.created[1].ToAddress)
}

func TestEmailService_ProcessOrder_ReservedRecipient(t *testing.T) {
	t.Parallel()

	reserved := true
	recipient := domain.Recipient{
		NationalIdentityNumber: "11111111111",
		IsReserved:             &reserved,
		AddressPoints:          []domain.AddressPoint{domain.NewEmailAddressPoint("a@example.com")},
	}

	t.Run("预留接收者不落地址", func(t *testing.T) {
		t.Parallel()
		repo := &fakeEmailRepo{}
		svc := newEmailServiceForTest(repo, &fakeResolver{}, &fakeEmailProducer{})

		require.NoError(t, svc.ProcessOrder(t.Context(), newEmailOrder(recipient)))

		require.Len(t, repo.created, 1)
		assert.Equal(t, domain.ResultFailedRecipientReserved, repo.created[0].Result)
		assert.Empty(t, repo.created[0].ToAddress)
	})

	t.Run("忽略预留标记时正常生成", func(t *testing.T) {
		t.Parallel()
		repo := &fakeEmailRepo{}
		svc := newEmailServiceForTest(repo, &fakeResolver{}, &fakeEmailProducer{})

		order := newEmailOrder(recipient)
		order.IgnoreReservation = true
		require.NoError(t, svc.ProcessOrder(t.Context(), order))

		require.Len(t, repo.created, 1)
		assert.Equal(t, domain.ResultNew, repo.created[0].Result)
		assert.Equal(t, "a@example.com", repo.created[0].ToAddress)
	})
}

func TestEmailService_ProcessOrder_RecipientNotIdentified(t *testing.T) {
	t.Parallel()

	repo := &fakeEmailRepo{}
	// 目录里查不到，解析结果为空
	svc := newEmailServiceForTest(repo, &fakeResolver{}, &fakeEmailProducer{})

	order := newEmailOrder(domain.Recipient{NationalIdentityNumber: "11111111111"})
	require.NoError(t, svc.ProcessOrder(t.Context(), order))

	require.Len(t, repo.created, 1)
	assert.Equal(t, domain.ResultFailedRecipientNotIdentified, repo.created[0].Result)
	assert.Empty(t, repo.created[0].ToAddress)
	// 无地址单元立即过期，让清理任务尽快完结订单
	assert.True(t, testNow.Equal(repo.created[0].Expiry))
}

func TestEmailService_ProcessOrder_ResolvesMissingAddresses(t *testing.T) {
	t.Parallel()

	repo := &fakeEmailRepo{}
	resolver := &fakeResolver{
		resolved: []domain.Recipient{{
			NationalIdentityNumber: "11111111111",
			AddressPoints:          []domain.AddressPoint{domain.NewEmailAddressPoint("found@example.com")},
		}},
	}
	svc := newEmailServiceForTest(repo, resolver, &fakeEmailProducer{})

	order := newEmailOrder(domain.Recipient{NationalIdentityNumber: "11111111111"})
	require.NoError(t, svc.ProcessOrder(t.Context(), order))

	assert.Equal(t, contact.ModeEmailOnly, resolver.gotMode)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "found@example.com", repo.created[0].ToAddress)
	assert.Equal(t, domain.ResultNew, repo.created[0].Result)
}

func TestEmailService_ProcessOrderRetry_Idempotent(t *testing.T) {
	t.Parallel()

	order := newEmailOrder(domain.Recipient{
		NationalIdentityNumber: "11111111111",
		AddressPoints: []domain.AddressPoint{
			domain.NewEmailAddressPoint("a@example.com"),
			domain.NewEmailAddressPoint("b@example.com"),
		},
	})
	order.ProcessingAttempts = 2

	repo := &fakeEmailRepo{
		// a@example.com 上一轮已经登记过
		existing: []domain.EmailNotification{{
			ID:                     uuid.Must(uuid.NewV4()),
			OrderID:                order.ID,
			ToAddress:              "a@example.com",
			NationalIdentityNumber: "11111111111",
			Result:                 domain.ResultSending,
		}},
	}
	svc := newEmailServiceForTest(repo, &fakeResolver{}, &fakeEmailProducer{})

	require.NoError(t, svc.ProcessOrderRetry(t.Context(), order))

	require.Len(t, repo.created, 1)
	assert.Equal(t, "b@example.com", repo.created[0].ToAddress)
}

func TestEmailService_SendNotifications(t *testing.T) {
	t.Parallel()

	okID := uuid.Must(uuid.NewV4())
	failID := uuid.Must(uuid.NewV4())
	repo := &fakeEmailRepo{
		pending: []domain.EmailNotification{
			{ID: okID, OrderID: uuid.Must(uuid.NewV4()), ToAddress: "a@example.com", Result: domain.ResultNew},
			{ID: failID, OrderID: uuid.Must(uuid.NewV4()), ToAddress: "b@example.com", Result: domain.ResultNew},
		},
	}
	producer := &fakeEmailProducer{failIDs: map[string]struct{}{failID.String(): {}}}
	svc := newEmailServiceForTest(repo, &fakeResolver{}, producer)

	// 部分投递失败不向上冒泡
	require.NoError(t, svc.SendNotifications(t.Context()))

	require.Len(t, producer.produced, 1)
	assert.Equal(t, okID.String(), producer.produced[0].NotificationID)
	// 失败的退回 NEW 等待重投
	require.Len(t, repo.reverted, 1)
	assert.Equal(t, failID, repo.reverted[0])
}
