// Package engine drives live conversations through a flow graph, one
// inbound message at a time.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reservly/flowengine/pkg/models"
)

// Service is a bookable offering presented during the awaiting_service step.
type Service struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// DefaultServices is the offering list used when the tenant has not
// configured its own.
var DefaultServices = []Service{
	{ID: "standard", Name: "Standard booking", Price: 25},
	{ID: "premium", Name: "Premium booking", Price: 45},
	{ID: "group", Name: "Group booking", Price: 80},
}

// TimeSlots is the fixed slot list offered during the awaiting_time step.
// Inputs 1-5 index into it.
var TimeSlots = []string{"10:00", "12:00", "14:00", "16:00", "18:00"}

const (
	maxDateOffset = 7
	dateKeyFormat = "2006-01-02"
)

// stateSpec binds a conversation state to the flow node rendered for it
// and the state the conversation moves to afterwards. Node resolution is a
// fixed naming convention shared with the built-in templates.
type stateSpec struct {
	nodeName string
	next     models.ConversationState
}

// stateTable is the deterministic state -> node -> successor mapping. Each
// node maps to exactly one successor state.
var stateTable = map[models.ConversationState]stateSpec{
	models.StateGreeting:        {nodeName: "welcome", next: models.StateAwaitingService},
	models.StateAwaitingService: {nodeName: "service-confirmed", next: models.StateAwaitingDate},
	models.StateAwaitingDate:    {nodeName: "date-confirmed", next: models.StateAwaitingTime},
	models.StateAwaitingTime:    {nodeName: "time-confirmed", next: models.StateAwaitingPayment},
	models.StateAwaitingPayment: {nodeName: "booking-complete", next: models.StateCompleted},
	models.StateCompleted:       {nodeName: "booking-complete", next: models.StateCompleted},
}

// parseServiceInput accepts a 1-based index into the service list or a
// case-insensitive service name.
func parseServiceInput(input string, services []Service) (*Service, bool) {
	trimmed := strings.TrimSpace(input)

	if index, err := strconv.Atoi(trimmed); err == nil {
		if index >= 1 && index <= len(services) {
			return &services[index-1], true
		}

		return nil, false
	}

	for i := range services {
		if strings.EqualFold(services[i].Name, trimmed) {
			return &services[i], true
		}
	}

	return nil, false
}

// parseDateInput accepts integers 1-7 as an offset in days from today.
func parseDateInput(input string, today time.Time) (time.Time, bool) {
	offset, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || offset < 1 || offset > maxDateOffset {
		return time.Time{}, false
	}

	return today.AddDate(0, 0, offset), true
}

// parseTimeInput accepts integers 1-5 as an index into the slot list.
func parseTimeInput(input string) (string, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || index < 1 || index > len(TimeSlots) {
		return "", false
	}

	return TimeSlots[index-1], true
}

// isPaymentConfirmation accepts any text containing a payment keyword.
func isPaymentConfirmation(input string) bool {
	lowered := strings.ToLower(input)

	return strings.Contains(lowered, "paid") ||
		strings.Contains(lowered, "payment") ||
		strings.Contains(lowered, "done")
}

// serviceList renders the numbered offering picklist.
func serviceList(services []Service) string {
	var b strings.Builder

	for i, service := range services {
		fmt.Fprintf(&b, "%d) %s - $%.2f", i+1, service.Name, service.Price)

		if i < len(services)-1 {
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// dateList renders the 7-day picklist starting tomorrow.
func dateList(today time.Time) string {
	var b strings.Builder

	for offset := 1; offset <= maxDateOffset; offset++ {
		day := today.AddDate(0, 0, offset)
		fmt.Fprintf(&b, "%d) %s", offset, day.Format("Monday, Jan 2"))

		if offset < maxDateOffset {
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// timeSlotList renders the numbered slot picklist.
func timeSlotList() string {
	var b strings.Builder

	for i, slot := range TimeSlots {
		fmt.Fprintf(&b, "%d) %s", i+1, slot)

		if i < len(TimeSlots)-1 {
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// humanDate renders a stored date key for confirmations.
func humanDate(dateKey string) string {
	parsed, err := time.Parse(dateKeyFormat, dateKey)
	if err != nil {
		return dateKey
	}

	return parsed.Format("Monday, January 2, 2006")
}

// paymentLink builds the payment URL from the amount and payee identifier.
func paymentLink(payeeID string, amount float64) string {
	return fmt.Sprintf("https://pay.reservly.io/%s?amount=%.2f", payeeID, amount)
}
