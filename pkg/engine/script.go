package engine

import "github.com/reservly/flowengine/pkg/models"

// staticScript is the built-in fallback flow. It reproduces the five-state
// booking conversation with hardcoded copy so the system works before any
// tenant has authored a flow. Node names follow the same convention the
// state table resolves against.
var staticScript = map[string]string{
	"welcome": "Welcome! I can help you make a booking.\n" +
		"Here is what we offer:\n{{services}}\n" +
		"Reply with the number of the option you want.",
	"service-confirmed": "Great choice! {{service_name}} ({{service_price}}).\n" +
		"Which day works for you?\n{{date_list}}\n" +
		"Reply with a number from 1 to 7.",
	"date-confirmed": "Booked for {{date}}. Now pick a time:\n{{time_slots}}\n" +
		"Reply with a number from 1 to 5.",
	"time-confirmed": "Almost done! {{service_name}} on {{date}} at {{time}}.\n" +
		"Please complete the payment here: {{payment_link}}\n" +
		"Reply 'paid' once you are done.",
	"booking-complete": "Your booking is confirmed!\n" +
		"{{service_name}} on {{date}} at {{time}}. See you soon!",
}

// scriptText returns the static copy for a node name. The empty string
// means the name is outside the scripted conversation.
func scriptText(nodeName string) string {
	return staticScript[nodeName]
}

// nodeText extracts the message text from a flow node, or falls back to the
// static script when the tenant's flow has no node under that name.
func nodeText(f *models.Flow, nodeName string) string {
	if f != nil {
		for _, node := range f.Nodes {
			if node.Name != nodeName {
				continue
			}

			config, err := models.DecodeConfig(node)
			if err != nil {
				break
			}

			if messageConfig, ok := config.(models.MessageConfig); ok && messageConfig.MessageText != "" {
				return messageConfig.MessageText
			}

			break
		}
	}

	return scriptText(nodeName)
}
