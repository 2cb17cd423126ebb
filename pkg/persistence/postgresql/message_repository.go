package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/reservly/flowengine/pkg/models"
)

// MessageRepository handles the append-only message log. Rows are inserted
// and read, never updated or deleted.
type MessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sql.DB, logger *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, content, message_type, is_from_bot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		message.ID, message.ConversationID, message.Content,
		string(message.MessageType), message.IsFromBot, message.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append message %s: %w", message.ID, err)
	}

	return nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, content, message_type, is_from_bot, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	messages := make([]*models.Message, 0)

	for rows.Next() {
		var (
			message     models.Message
			messageType string
		)

		err = rows.Scan(
			&message.ID, &message.ConversationID, &message.Content,
			&messageType, &message.IsFromBot, &message.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		message.MessageType = models.MessageType(messageType)
		messages = append(messages, &message)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func (r *MessageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var count int64

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = $1", conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}
