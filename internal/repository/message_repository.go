package repository

import (
	"context"
	"errors"
	"time"

	"vibelink/internal/domain/message"
	vibelink_errors "vibelink/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return vibelink_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, vibelink_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Update(ctx context.Context, m message.Message) error {
	res := r.db.WithContext(ctx).Save(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vibelink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx.Where("message_id = ?", id).Delete(&message.Reaction{})
		tx.Where("message_id = ?", id).Delete(&message.ReadReceipt{})
		res := tx.Delete(&message.Message{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return vibelink_errors.ErrNotFound
		}
		return nil
	})
}

func (r *PostgresMessageRepository) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) ([]uuid.UUID, error) {
	var marked []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Messages in the conversation not sent by the user and not
		// already read by them. The anti-join keeps this idempotent.
		var ids []uuid.UUID
		err := tx.
			Table("messages m").
			Select("m.id").
			Where("m.conversation_id = ? AND m.sender_id <> ?", conversationID, userID).
			Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.user_id = ?)", userID).
			Scan(&ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		receipts := make([]message.ReadReceipt, 0, len(ids))
		for _, id := range ids {
			receipts = append(receipts, message.ReadReceipt{
				MessageID: id,
				UserID:    userID,
				ReadAt:    readAt,
			})
		}
		if err := tx.Create(&receipts).Error; err != nil {
			return err
		}
		marked = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

func (r *PostgresMessageRepository) GetReadReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error) {
	var receipts []message.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *PostgresMessageRepository) SetReaction(ctx context.Context, reaction *message.Reaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// One reaction slot per user per message: clear before insert.
		if err := tx.
			Where("message_id = ? AND user_id = ?", reaction.MessageID, reaction.UserID).
			Delete(&message.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Create(reaction).Error
	})
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&message.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vibelink_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	var reactions []message.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}
