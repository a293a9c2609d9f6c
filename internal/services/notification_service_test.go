package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/internal/domain/notification"
	"vibelink/internal/domain/user"
	"vibelink/internal/events"
	vibelink_errors "vibelink/pkg/errors"
)

type notificationFixture struct {
	svc         *NotificationService
	notifRepo   *memNotifRepo
	userRepo    *memUserRepo
	broadcaster *recorderBroadcaster
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	f := &notificationFixture{
		notifRepo:   newMemNotifRepo(),
		userRepo:    newMemUserRepo(),
		broadcaster: newRecorderBroadcaster(),
	}
	f.svc = NewNotificationService(f.notifRepo, f.userRepo, nil)
	f.svc.SetBroadcaster(f.broadcaster)
	f.svc.Start()
	t.Cleanup(f.svc.Stop)
	return f
}

func (f *notificationFixture) seedUser(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	u := &user.User{ID: id, Username: "u-" + id.String()[:8], Email: id.String() + "@example.com"}
	require.NoError(t, f.userRepo.Create(context.Background(), u))
	return id
}

func TestNotifySelfIsNoOp(t *testing.T) {
	f := newNotificationFixture(t)
	userID := f.seedUser(t)

	require.NoError(t, f.svc.Notify(userID, userID, notification.KindMessage, "hi me", uuid.Nil, ""))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.notifRepo.stored(userID))
}

func TestNotifyDeliversAndPushesWhenOnline(t *testing.T) {
	f := newNotificationFixture(t)
	recipient := f.seedUser(t)
	sender := f.seedUser(t)
	f.broadcaster.online[recipient] = true

	msgID := uuid.New()
	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindMessage, "new message", msgID, "message"))

	require.Eventually(t, func() bool {
		return len(f.notifRepo.stored(recipient)) == 1
	}, time.Second, 5*time.Millisecond)

	stored := f.notifRepo.stored(recipient)[0]
	assert.Equal(t, sender, stored.SenderID)
	assert.Equal(t, notification.KindMessage, stored.Kind)
	require.True(t, stored.EntityID.Valid)
	assert.Equal(t, msgID, stored.EntityID.UUID)

	frames := f.broadcaster.byEvent(events.EventNewNotification)
	require.Len(t, frames, 1)
	assert.Equal(t, recipient, frames[0].target)
}

func TestNotifyOfflineRecipientStoredWithoutPush(t *testing.T) {
	f := newNotificationFixture(t)
	recipient := f.seedUser(t)
	sender := f.seedUser(t)

	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindMessage, "while you were out", uuid.Nil, ""))

	require.Eventually(t, func() bool {
		return len(f.notifRepo.stored(recipient)) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, f.broadcaster.byEvent(events.EventNewNotification))
}

func TestNotifyRespectsPreferences(t *testing.T) {
	f := newNotificationFixture(t)
	recipient := f.seedUser(t)
	sender := f.seedUser(t)

	settings, err := f.userRepo.GetSettings(context.Background(), recipient)
	require.NoError(t, err)
	settings.NotifyMessages = false
	settings.NotifyCalls = false
	require.NoError(t, f.userRepo.UpdateSettings(context.Background(), settings))

	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindMessage, "muted", uuid.Nil, ""))
	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindCall, "muted too", uuid.Nil, ""))
	// Kinds outside the muted preferences still land.
	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindFollow, "followed you", uuid.Nil, ""))

	require.Eventually(t, func() bool {
		return len(f.notifRepo.stored(recipient)) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, notification.KindFollow, f.notifRepo.stored(recipient)[0].Kind)
}

func TestNotifyBlockedPairSuppressed(t *testing.T) {
	f := newNotificationFixture(t)
	recipient := f.seedUser(t)
	sender := f.seedUser(t)
	require.NoError(t, f.userRepo.Block(context.Background(), recipient, sender))

	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindMessage, "blocked", uuid.Nil, ""))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.notifRepo.stored(recipient))
}

func TestNotifyFullQueueDropsWithoutBlocking(t *testing.T) {
	// No worker running, so the queue only fills.
	f := &notificationFixture{
		notifRepo:   newMemNotifRepo(),
		userRepo:    newMemUserRepo(),
		broadcaster: newRecorderBroadcaster(),
	}
	f.svc = NewNotificationService(f.notifRepo, f.userRepo, nil)

	recipient, sender := uuid.New(), uuid.New()
	for i := 0; i < cap(f.svc.queue); i++ {
		require.NoError(t, f.svc.Notify(recipient, sender, notification.KindMessage, "fill", uuid.Nil, ""))
	}

	err := f.svc.Notify(recipient, sender, notification.KindMessage, "overflow", uuid.Nil, "")
	assert.ErrorIs(t, err, vibelink_errors.ErrQueueFull)
}

func TestMarkAllRead(t *testing.T) {
	f := newNotificationFixture(t)
	recipient := f.seedUser(t)
	sender := f.seedUser(t)

	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindMessage, "one", uuid.Nil, ""))
	require.NoError(t, f.svc.Notify(recipient, sender, notification.KindMessage, "two", uuid.Nil, ""))
	require.Eventually(t, func() bool {
		return len(f.notifRepo.stored(recipient)) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.svc.MarkAllRead(context.Background(), recipient))

	for _, n := range f.notifRepo.stored(recipient) {
		assert.True(t, n.IsRead)
	}
	assert.Len(t, f.broadcaster.byEvent(events.EventNotificationAllRead), 1)
}
