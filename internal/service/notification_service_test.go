package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kinship/internal/models"
)

type published struct {
	Channel string
	Payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{Channel: channel, Payload: payload})
	return p.fail
}

func TestNotifyWithoutRecipientsIsNoop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.notifications.Notify(f.ctx, models.NotificationEvent{Type: models.NotificationMemberJoined, Title: "t"}, nil))
	assert.Equal(t, 0, f.count("notifications"))
}

func TestNotifyPersistsAndDelivers(t *testing.T) {
	f := newFixture(t)
	a := f.user("a@example.com", models.RoleMember)
	b := f.user("b@example.com", models.RoleMember)
	mailer := &fakeMailer{enabled: true}
	publisher := &fakePublisher{}
	svc := NewNotificationService(f.uow, f.inbox, f.users, mailer, publisher, f.logger)

	event := models.NotificationEvent{
		Type:         models.NotificationMemberApproved,
		Title:        "Welcome to the Family!",
		Message:      "approved",
		FamilyCode:   "FAM1",
		ReferenceID:  a,
		RecipientIDs: []int64{a, b, a},
	}
	require.NoError(t, svc.Notify(f.ctx, event, &b))

	assert.Equal(t, 1, f.count("notifications"))
	assert.Equal(t, 2, f.count("notification_recipients"))

	sent := mailer.messages()
	require.Len(t, sent, 2)
	to := []string{sent[0].To, sent[1].To}
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, to)
	assert.Equal(t, "Welcome to the Family!", sent[0].Subject)

	require.Len(t, publisher.msgs, 3)
	assert.Equal(t, UserChannel(a), publisher.msgs[0].Channel)
	assert.Equal(t, UserChannel(b), publisher.msgs[1].Channel)
	assert.Equal(t, "notifications:user:42", UserChannel(42))

	var msg realtimeMessage
	require.NoError(t, json.Unmarshal(publisher.msgs[0].Payload, &msg))
	assert.Equal(t, models.NotificationMemberApproved, msg.Type)
	assert.Equal(t, "FAM1", msg.FamilyCode)
	assert.NotZero(t, msg.ID)
}

func TestNotifyDeliveryFailuresAreLogged(t *testing.T) {
	f := newFixture(t)
	a := f.user("a@example.com", models.RoleMember)
	core, logs := observer.New(zapcore.WarnLevel)
	mailer := &fakeMailer{enabled: true, fail: errBoom}
	publisher := &fakePublisher{fail: errBoom}
	svc := NewNotificationService(f.uow, f.inbox, f.users, mailer, publisher, zap.New(core))

	err := svc.Notify(f.ctx, models.NotificationEvent{Type: models.NotificationJoinRejected, Title: "t", Message: "m", RecipientIDs: []int64{a}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, f.count("notifications"))
	assert.Equal(t, 1, logs.FilterMessage("notification email failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("realtime publish failed").Len())
}

func TestNotifySkipsDisabledMailer(t *testing.T) {
	f := newFixture(t)
	a := f.user("a@example.com", models.RoleMember)
	mailer := &fakeMailer{enabled: false}
	svc := NewNotificationService(f.uow, f.inbox, f.users, mailer, nil, f.logger)

	require.NoError(t, svc.Notify(f.ctx, models.NotificationEvent{Type: models.NotificationJoinRejected, Title: "t", RecipientIDs: []int64{a}}, nil))
	assert.Empty(t, mailer.messages())
}

func TestNotificationInbox(t *testing.T) {
	f := newFixture(t)
	a := f.user("a@example.com", models.RoleMember)
	b := f.user("b@example.com", models.RoleMember)

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, f.notifications.Notify(f.ctx, models.NotificationEvent{
			Type: models.NotificationJoinRequest, Title: title, Message: title, RecipientIDs: []int64{a},
		}, nil))
	}

	items, total, err := f.notifications.ListForUser(f.ctx, a, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "third", items[0].Title)

	unread, err := f.notifications.UnreadCount(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	require.NoError(t, f.notifications.MarkRead(f.ctx, a, items[0].ID))
	require.NoError(t, f.notifications.MarkRead(f.ctx, a, items[0].ID))
	unread, err = f.notifications.UnreadCount(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	err = f.notifications.MarkRead(f.ctx, b, items[0].ID)
	require.ErrorIs(t, err, ErrNotificationNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, total, err = f.notifications.ListForUser(f.ctx, b, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
