package repository

import (
	"context"
	"errors"
	"time"

	"vibelink/internal/domain/user"
	vibelink_errors "vibelink/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return vibelink_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, vibelink_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, vibelink_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, vibelink_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool, lastSeen *time.Time) error {
	updates := map[string]any{
		"is_online": isOnline,
		"last_seen": lastSeen,
	}
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vibelink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) GetSettings(ctx context.Context, userID uuid.UUID) (user.Settings, error) {
	var s user.Settings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Defaults apply until the user saves settings.
			return user.Settings{
				UserID:           userID,
				ShowOnlineStatus: true,
				NotifyMessages:   true,
				NotifyCalls:      true,
			}, nil
		}
		return user.Settings{}, err
	}
	return s, nil
}

func (r *PostgresUserRepository) UpdateSettings(ctx context.Context, s user.Settings) error {
	s.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&s).Error
}

func (r *PostgresUserRepository) Block(ctx context.Context, userID, blockedUserID uuid.UUID) error {
	b := user.Block{UserID: userID, BlockedUserID: blockedUserID, CreatedAt: time.Now()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&b).Error
	return err
}

func (r *PostgresUserRepository) Unblock(ctx context.Context, userID, blockedUserID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND blocked_user_id = ?", userID, blockedUserID).
		Delete(&user.Block{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vibelink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) IsBlockedEither(ctx context.Context, userID1, userID2 uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&user.Block{}).
		Where("(user_id = ? AND blocked_user_id = ?) OR (user_id = ? AND blocked_user_id = ?)",
			userID1, userID2, userID2, userID1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresUserRepository) GetConversationPeers(ctx context.Context, userID uuid.UUID) ([]user.Peer, error) {
	var peers []user.Peer
	err := r.db.WithContext(ctx).
		Table("conversation_participants AS cp").
		Select("DISTINCT cp.user_id, COALESCE(us.show_online_status, true) AS show_online_status").
		Joins("LEFT JOIN user_settings us ON us.user_id = cp.user_id").
		Where("cp.user_id <> ?", userID).
		Where("cp.conversation_id IN (?)",
			r.db.Table("conversation_participants").Select("conversation_id").Where("user_id = ?", userID)).
		Where("NOT EXISTS (SELECT 1 FROM user_blocks b WHERE (b.user_id = cp.user_id AND b.blocked_user_id = ?) OR (b.user_id = ? AND b.blocked_user_id = cp.user_id))",
			userID, userID).
		Scan(&peers).Error
	if err != nil {
		return nil, err
	}
	return peers, nil
}

func (r *PostgresUserRepository) CreateSession(ctx context.Context, s *user.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *PostgresUserRepository) GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.Session, error) {
	var s user.Session
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.Session{}, vibelink_errors.ErrNotFound
		}
		return user.Session{}, err
	}
	return s, nil
}

func (r *PostgresUserRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&user.Session{}).
		Where("id = ?", sessionID).
		Update("is_revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vibelink_errors.ErrNotFound
	}
	return nil
}
