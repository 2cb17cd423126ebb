package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
)

// ConversationRepository handles conversation-related database operations.
type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sql.DB, logger *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, logger: logger}
}

const conversationColumns = `
	id
  , tenant_id
  , phone_number
  , customer_name
  , current_state
  , selected_service
  , selected_date
  , selected_time
  , context_data
  , created_at
  , updated_at
`

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = $1", id)

	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewConversationError("GetByID", id, persistence.ErrConversationNotFound)
		}

		return nil, err
	}

	return conversation, nil
}

func (r *ConversationRepository) GetBySender(ctx context.Context, tenantID, phoneNumber string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE tenant_id = $1 AND phone_number = $2",
		tenantID, phoneNumber)

	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ConversationError{
				Op:          "GetBySender",
				PhoneNumber: phoneNumber,
				Err:         persistence.ErrConversationNotFound,
			}
		}

		return nil, err
	}

	return conversation, nil
}

func (r *ConversationRepository) Save(ctx context.Context, conversation *models.Conversation) error {
	contextData, err := json.Marshal(conversation.ContextData)
	if err != nil {
		return fmt.Errorf("failed to marshal context data: %w", err)
	}

	query := `
		INSERT INTO conversations (
			id, tenant_id, phone_number, customer_name, current_state,
			selected_service, selected_date, selected_time, context_data,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, phone_number) DO UPDATE SET
			customer_name    = EXCLUDED.customer_name,
			current_state    = EXCLUDED.current_state,
			selected_service = EXCLUDED.selected_service,
			selected_date    = EXCLUDED.selected_date,
			selected_time    = EXCLUDED.selected_time,
			context_data     = EXCLUDED.context_data,
			updated_at       = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		conversation.ID, conversation.TenantID, conversation.PhoneNumber,
		conversation.CustomerName, string(conversation.CurrentState),
		conversation.SelectedService, conversation.SelectedDate,
		conversation.SelectedTime, contextData,
		conversation.CreatedAt, conversation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conversation.ID, err)
	}

	return nil
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conversation models.Conversation
		state        string
		customerName sql.NullString
		service      sql.NullString
		date         sql.NullString
		timeSlot     sql.NullString
		contextData  []byte
	)

	err := row.Scan(
		&conversation.ID, &conversation.TenantID, &conversation.PhoneNumber,
		&customerName, &state, &service, &date, &timeSlot, &contextData,
		&conversation.CreatedAt, &conversation.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	conversation.CurrentState = models.ConversationState(state)
	conversation.CustomerName = customerName.String
	conversation.SelectedService = service.String
	conversation.SelectedDate = date.String
	conversation.SelectedTime = timeSlot.String

	if len(contextData) > 0 {
		err = json.Unmarshal(contextData, &conversation.ContextData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal context data: %w", err)
		}
	}

	return &conversation, nil
}
