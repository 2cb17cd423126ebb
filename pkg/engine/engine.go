package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reservly/flowengine/pkg/models"
	"github.com/reservly/flowengine/pkg/persistence"
	"github.com/reservly/flowengine/pkg/template"
)

// retryReply is the worst-case answer an end user ever sees. Internal
// faults are logged, never surfaced.
const retryReply = "Sorry, something went wrong on our side. Please try again."

// Engine is the conversation execution state machine. Given an inbound
// message it loads the conversation, resolves the tenant's active flow
// (preferring a tenant-authored flow over the static script), validates
// the input against the current state's grammar, renders the reply, and
// persists the advanced state.
type Engine struct {
	persistence persistence.Persistence
	cache       *FlowCache
	logger      *slog.Logger
	services    []Service
	payeeID     string
	locks       *keyedMutex
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithServices overrides the bookable offering list.
func WithServices(services []Service) Option {
	return func(e *Engine) { e.services = services }
}

// WithPayee sets the payee identifier used to build payment links.
func WithPayee(payeeID string) Option {
	return func(e *Engine) { e.payeeID = payeeID }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine bound to the given store and flow cache.
func NewEngine(p persistence.Persistence, cache *FlowCache, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		persistence: p,
		cache:       cache,
		logger:      logger,
		services:    DefaultServices,
		payeeID:     "default",
		locks:       newKeyedMutex(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Cache exposes the flow cache so mutation paths can invalidate it.
func (e *Engine) Cache() *FlowCache {
	return e.cache
}

// HandleMessage runs the full read-validate-render-persist pipeline for
// one inbound message and returns the reply to hand to the messaging
// gateway. Handling is serialized per (tenant, phone number).
func (e *Engine) HandleMessage(ctx context.Context, tenantID, from, text string) (string, error) {
	unlock := e.locks.Lock(tenantID + ":" + from)
	defer unlock()

	conversation, err := e.loadOrCreateConversation(ctx, tenantID, from)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to load conversation", "tenant_id", tenantID, "error", err)

		return retryReply, nil
	}

	e.appendMessage(ctx, conversation.ID, text, false)

	// The active flow reference is checked fresh on every message, so a
	// sync takes effect without a restart.
	activeFlow, err := e.cache.ActiveFlow(ctx, tenantID)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to resolve active flow, using static script",
			"tenant_id", tenantID, "error", err)

		activeFlow = nil
	}

	if !models.IsKnownState(conversation.CurrentState) {
		e.logger.WarnContext(ctx, "unknown conversation state, resetting to greeting",
			"conversation_id", conversation.ID, "state", conversation.CurrentState)

		conversation.CurrentState = models.StateGreeting
	}

	reply, advanced := e.step(conversation, activeFlow, text)

	if advanced {
		conversation.UpdatedAt = e.now().UTC()

		err = e.persistence.ConversationRepository().Save(ctx, conversation)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to persist conversation state",
				"conversation_id", conversation.ID, "error", err)

			e.appendMessage(ctx, conversation.ID, retryReply, true)

			return retryReply, nil
		}
	}

	e.appendMessage(ctx, conversation.ID, reply, true)

	return reply, nil
}

// step validates the input against the current state's grammar, mutates
// the conversation's selections, and computes the reply and next state.
// Invalid input produces a corrective reply and does not advance.
func (e *Engine) step(conversation *models.Conversation, activeFlow *models.Flow, input string) (reply string, advanced bool) {
	state := conversation.CurrentState
	spec := stateTable[state]
	today := e.now()

	switch state {
	case models.StateGreeting:
		// Any first message is welcome.

	case models.StateAwaitingService:
		service, ok := parseServiceInput(input, e.services)
		if !ok {
			return fmt.Sprintf("Please reply with a number from 1 to %d to choose an option:\n%s",
				len(e.services), serviceList(e.services)), false
		}

		conversation.SelectedService = service.Name
		conversation.ContextData = setContext(conversation.ContextData, "service_id", service.ID)
		conversation.ContextData = setContext(conversation.ContextData, "service_price", service.Price)

	case models.StateAwaitingDate:
		day, ok := parseDateInput(input, today)
		if !ok {
			return fmt.Sprintf("Please reply with a number from 1 to 7 to pick a day:\n%s",
				dateList(today)), false
		}

		conversation.SelectedDate = day.Format(dateKeyFormat)

	case models.StateAwaitingTime:
		slot, ok := parseTimeInput(input)
		if !ok {
			return fmt.Sprintf("That time is not available. Please reply with a number from 1 to 5:\n%s",
				timeSlotList()), false
		}

		conversation.SelectedTime = slot

	case models.StateAwaitingPayment:
		if !isPaymentConfirmation(input) {
			return "Once you have completed the payment, reply 'paid' to confirm your booking.", false
		}

	case models.StateCompleted:
		// Re-entrant: replay the confirmation summary without advancing
		// anywhere new.
	}

	conversation.CurrentState = spec.next

	return e.render(activeFlow, spec.nodeName, conversation, today), true
}

// render resolves the node bound to the state by name, preferring the
// tenant's flow, and substitutes live values into its text.
func (e *Engine) render(activeFlow *models.Flow, nodeName string, conversation *models.Conversation, today time.Time) string {
	price, _ := contextFloat(conversation.ContextData, "service_price")

	vars := map[string]any{
		"services":      serviceList(e.services),
		"date_list":     dateList(today),
		"time_slots":    timeSlotList(),
		"service_name":  conversation.SelectedService,
		"service_price": fmt.Sprintf("$%.2f", price),
		"date":          humanDate(conversation.SelectedDate),
		"time":          conversation.SelectedTime,
		"payment_link":  paymentLink(e.payeeID, price),
		"customer_name": conversation.CustomerName,
	}

	return template.Substitute(nodeText(activeFlow, nodeName), vars)
}

// loadOrCreateConversation resolves the sender's unique conversation,
// creating it in the greeting state on first contact.
func (e *Engine) loadOrCreateConversation(ctx context.Context, tenantID, from string) (*models.Conversation, error) {
	conversation, err := e.persistence.ConversationRepository().GetBySender(ctx, tenantID, from)
	if err == nil {
		return conversation, nil
	}

	if !persistence.IsConversationNotFound(err) {
		return nil, err
	}

	now := e.now().UTC()
	conversation = &models.Conversation{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		PhoneNumber:  from,
		CurrentState: models.StateGreeting,
		ContextData:  make(map[string]any),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = e.persistence.ConversationRepository().Save(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conversation, nil
}

// appendMessage writes to the immutable message log. Log failures never
// affect the reply.
func (e *Engine) appendMessage(ctx context.Context, conversationID, content string, fromBot bool) {
	err := e.persistence.MessageRepository().Append(ctx, &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Content:        content,
		MessageType:    models.MessageTypeText,
		IsFromBot:      fromBot,
		Timestamp:      e.now().UTC(),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to append message to log",
			"conversation_id", conversationID, "error", err)
	}
}

// History returns the full message log for a sender's conversation.
func (e *Engine) History(ctx context.Context, tenantID, from string) ([]*models.Message, error) {
	conversation, err := e.persistence.ConversationRepository().GetBySender(ctx, tenantID, from)
	if err != nil {
		return nil, err
	}

	return e.persistence.MessageRepository().ListByConversation(ctx, conversation.ID)
}

func setContext(data map[string]any, key string, value any) map[string]any {
	if data == nil {
		data = make(map[string]any)
	}

	data[key] = value

	return data
}

func contextFloat(data map[string]any, key string) (float64, bool) {
	if data == nil {
		return 0, false
	}

	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
