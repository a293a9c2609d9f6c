package services

import (
	"context"
	"time"

	"vibelink/internal/domain/user"
	"vibelink/internal/redis"
	"vibelink/internal/repository"
	vibelink_errors "vibelink/pkg/errors"

	"github.com/google/uuid"
)

type UserService struct {
	userRepo      repository.UserRepository
	presenceStore *redis.PresenceStore
}

func NewUserService(userRepo repository.UserRepository, presenceStore *redis.PresenceStore) *UserService {
	return &UserService{userRepo: userRepo, presenceStore: presenceStore}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// SetOnline persists the online transition and refreshes the external
// presence mirror. While online, last_seen is cleared.
func (s *UserService) SetOnline(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.UpdateOnlineStatus(ctx, userID, true, nil); err != nil {
		return err
	}
	if s.presenceStore != nil {
		return s.presenceStore.SetOnline(ctx, userID.String())
	}
	return nil
}

// SetOffline persists the offline transition with the given last-seen.
func (s *UserService) SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	if err := s.userRepo.UpdateOnlineStatus(ctx, userID, false, &lastSeen); err != nil {
		return err
	}
	if s.presenceStore != nil {
		return s.presenceStore.SetOffline(ctx, userID.String(), lastSeen)
	}
	return nil
}

// RefreshPresence extends the external mirror's TTL on heartbeat.
func (s *UserService) RefreshPresence(ctx context.Context, userID uuid.UUID) error {
	if s.presenceStore == nil {
		return nil
	}
	return s.presenceStore.Heartbeat(ctx, userID.String())
}

// VisibleStatusPeers returns the co-participants who are allowed to
// see this user's presence changes: blocked pairs are already excluded
// by the repository, peers who hide their own status don't receive
// others' status either (symmetric visibility).
func (s *UserService) VisibleStatusPeers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	own, err := s.userRepo.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !own.ShowOnlineStatus {
		return nil, nil
	}

	peers, err := s.userRepo.GetConversationPeers(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(peers))
	for _, p := range peers {
		if p.ShowOnlineStatus {
			ids = append(ids, p.UserID)
		}
	}
	return ids, nil
}

// PresenceInfo is the visible status of one user.
type PresenceInfo struct {
	UserID   uuid.UUID
	IsOnline bool
	LastSeen *time.Time
}

// Presence resolves a user's status as seen by the requester. Blocked
// pairs and hidden-status users read as offline with no last-seen.
func (s *UserService) Presence(ctx context.Context, requesterID, targetID uuid.UUID) (PresenceInfo, error) {
	info := PresenceInfo{UserID: targetID}

	if requesterID != targetID {
		blocked, err := s.userRepo.IsBlockedEither(ctx, requesterID, targetID)
		if err != nil {
			return info, err
		}
		if blocked {
			return info, nil
		}

		settings, err := s.userRepo.GetSettings(ctx, targetID)
		if err != nil {
			return info, err
		}
		if !settings.ShowOnlineStatus {
			return info, nil
		}
	}

	u, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return info, err
	}
	info.IsOnline = u.IsOnline
	if u.LastSeen.Valid {
		t := u.LastSeen.Time
		info.LastSeen = &t
	}
	return info, nil
}

func (s *UserService) GetSettings(ctx context.Context, userID uuid.UUID) (user.Settings, error) {
	return s.userRepo.GetSettings(ctx, userID)
}

func (s *UserService) UpdateSettings(ctx context.Context, settings user.Settings) error {
	if settings.UserID == uuid.Nil {
		return vibelink_errors.ErrInvalidInput
	}
	return s.userRepo.UpdateSettings(ctx, settings)
}

func (s *UserService) Block(ctx context.Context, userID, blockedUserID uuid.UUID) error {
	if userID == blockedUserID {
		return vibelink_errors.ErrInvalidInput
	}
	return s.userRepo.Block(ctx, userID, blockedUserID)
}

func (s *UserService) Unblock(ctx context.Context, userID, blockedUserID uuid.UUID) error {
	return s.userRepo.Unblock(ctx, userID, blockedUserID)
}

func (s *UserService) IsBlockedEither(ctx context.Context, userID1, userID2 uuid.UUID) (bool, error) {
	return s.userRepo.IsBlockedEither(ctx, userID1, userID2)
}
