package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"vibelink/internal/domain/notification"
	"vibelink/internal/events"
	"vibelink/internal/repository"
	vibelink_errors "vibelink/pkg/errors"
	"vibelink/pkg/logger"

	"github.com/google/uuid"
)

// NotificationService bridges domain events to durable notification
// records and live pushes. Creation is decoupled from hot paths via a
// buffered queue so a slow write never blocks message delivery or call
// relay.
type NotificationService struct {
	notifRepo   repository.NotificationRepository
	userRepo    repository.UserRepository
	broadcaster Broadcaster
	logger      *logger.Logger

	queue    chan notifyRequest
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

type notifyRequest struct {
	RecipientID uuid.UUID
	SenderID    uuid.UUID
	Kind        string
	Message     string
	EntityID    uuid.UUID
	EntityType  string
}

func NewNotificationService(notifRepo repository.NotificationRepository, userRepo repository.UserRepository, l *logger.Logger) *NotificationService {
	return &NotificationService{
		notifRepo:   notifRepo,
		userRepo:    userRepo,
		broadcaster: noopBroadcaster{},
		logger:      l,
		queue:       make(chan notifyRequest, 1024),
		stopChan:    make(chan struct{}),
	}
}

// SetBroadcaster attaches the live push fan-out. Called once at wiring
// time, before any traffic.
func (s *NotificationService) SetBroadcaster(b Broadcaster) {
	if b != nil {
		s.broadcaster = b
	}
}

// Start launches the background worker draining the queue.
func (s *NotificationService) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *NotificationService) Stop() {
	s.once.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *NotificationService) run() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.deliver(ctx, req); err != nil {
				if s.logger != nil {
					s.logger.Errorf("notification delivery failed for %s: %v", req.RecipientID, err)
				}
			}
			cancel()
		case <-s.stopChan:
			return
		}
	}
}

// Notify enqueues a notification. Fire-and-forget: a full queue drops
// the notification rather than applying backpressure to the caller.
func (s *NotificationService) Notify(recipientID, senderID uuid.UUID, kind, message string, entityID uuid.UUID, entityType string) error {
	if recipientID == senderID {
		return nil
	}

	req := notifyRequest{
		RecipientID: recipientID,
		SenderID:    senderID,
		Kind:        kind,
		Message:     message,
		EntityID:    entityID,
		EntityType:  entityType,
	}

	select {
	case s.queue <- req:
		return nil
	default:
		if s.logger != nil {
			s.logger.Errorf("notification queue full, dropping %s for %s", kind, recipientID)
		}
		return vibelink_errors.ErrQueueFull
	}
}

func (s *NotificationService) deliver(ctx context.Context, req notifyRequest) error {
	settings, err := s.userRepo.GetSettings(ctx, req.RecipientID)
	if err != nil {
		return err
	}
	switch req.Kind {
	case notification.KindMessage:
		if !settings.NotifyMessages {
			return nil
		}
	case notification.KindCall:
		if !settings.NotifyCalls {
			return nil
		}
	}

	blocked, err := s.userRepo.IsBlockedEither(ctx, req.RecipientID, req.SenderID)
	if err != nil {
		return err
	}
	if blocked {
		return nil
	}

	n := &notification.Notification{
		ID:          uuid.New(),
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Kind:        req.Kind,
		Message:     req.Message,
		CreatedAt:   time.Now(),
	}
	if req.EntityID != uuid.Nil {
		n.EntityID = uuid.NullUUID{UUID: req.EntityID, Valid: true}
		n.EntityType = sql.NullString{String: req.EntityType, Valid: true}
	}

	if err := s.notifRepo.Create(ctx, n); err != nil {
		return err
	}

	// Live push is independent of the durable record having readers.
	if s.broadcaster.IsOnline(req.RecipientID) {
		s.broadcaster.ToUser(req.RecipientID, events.EventNewNotification, n)
	}
	return nil
}

func (s *NotificationService) GetForRecipient(ctx context.Context, recipientID uuid.UUID, page, limit int) ([]notification.Notification, int64, error) {
	return s.notifRepo.GetForRecipient(ctx, recipientID, page, limit)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	if err := s.notifRepo.MarkAllRead(ctx, recipientID); err != nil {
		return err
	}
	s.broadcaster.ToUser(recipientID, events.EventNotificationAllRead, nil)
	return nil
}
