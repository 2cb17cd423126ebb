package template

import "github.com/reservly/flowengine/pkg/models"

// Built-in skeletons use the node name as the node id. Names are the
// template's stable human-readable key, so this keeps the skeletons valid
// against the graph validator while connection endpoints stay readable.
//
// Design-time tokens like {{restaurantName}} are substituted at
// instantiation; runtime tokens like {{service_name}} survive untouched and
// are filled in by the execution engine on every message.

func bookingNode(name string, nodeType models.NodeType, text string, next string, x, y int) *models.FlowNode {
	node := &models.FlowNode{
		ID:       name,
		Type:     nodeType,
		Name:     name,
		Position: models.Position{X: x, Y: y},
	}

	if text != "" {
		node.Configuration = map[string]any{"message_text": text}
	}

	if next != "" {
		node.Connections = []*models.Connection{{
			ID:           name + "->" + next,
			SourceNodeID: name,
			TargetNodeID: next,
		}}
	}

	return node
}

func builtinTemplates() []*models.Flow {
	return []*models.Flow{restaurantBookingTemplate(), salonBookingTemplate()}
}

func restaurantBookingTemplate() *models.Flow {
	return &models.Flow{
		ID:          "restaurant-booking",
		Name:        "Restaurant table booking",
		Description: "Guided table booking for {{restaurantName}}",
		FlowType:    models.FlowTypeBooking,
		IsTemplate:  true,
		StartNodeID: "start",
		Variables: []*models.Variable{
			{Name: "restaurantName", Type: "string", Description: "Display name of the restaurant", IsRequired: true},
			{Name: "payeeId", Type: "string", Description: "Payment payee identifier", IsRequired: true},
		},
		Nodes: []*models.FlowNode{
			bookingNode("start", models.NodeTypeStart, "", "welcome", 0, 0),
			bookingNode("welcome", models.NodeTypeMessage,
				"Welcome to {{restaurantName}}! I can help you book a table.\n"+
					"Here is what we offer:\n{{services}}\n"+
					"Reply with the number of the option you want.",
				"service-confirmed", 0, 120),
			bookingNode("service-confirmed", models.NodeTypeMessage,
				"Great choice! {{service_name}} ({{service_price}}).\n"+
					"Which day works for you?\n{{date_list}}\n"+
					"Reply with a number from 1 to 7.",
				"date-confirmed", 0, 240),
			bookingNode("date-confirmed", models.NodeTypeMessage,
				"Booked for {{date}}. Now pick a time:\n{{time_slots}}\n"+
					"Reply with a number from 1 to 5.",
				"time-confirmed", 0, 360),
			bookingNode("time-confirmed", models.NodeTypeMessage,
				"Almost done! {{service_name}} on {{date}} at {{time}}.\n"+
					"Please complete the payment here: {{payment_link}}\n"+
					"Reply 'paid' once you are done.",
				"booking-complete", 0, 480),
			bookingNode("booking-complete", models.NodeTypeMessage,
				"Your booking at {{restaurantName}} is confirmed!\n"+
					"{{service_name}} on {{date}} at {{time}}. See you soon!",
				"end", 0, 600),
			bookingNode("end", models.NodeTypeEnd, "", "", 0, 720),
		},
	}
}

func salonBookingTemplate() *models.Flow {
	return &models.Flow{
		ID:          "salon-booking",
		Name:        "Salon appointment booking",
		Description: "Appointment booking for {{salonName}}",
		FlowType:    models.FlowTypeBooking,
		IsTemplate:  true,
		StartNodeID: "start",
		Variables: []*models.Variable{
			{Name: "salonName", Type: "string", Description: "Display name of the salon", IsRequired: true},
			{Name: "payeeId", Type: "string", Description: "Payment payee identifier", IsRequired: true},
		},
		Nodes: []*models.FlowNode{
			bookingNode("start", models.NodeTypeStart, "", "welcome", 0, 0),
			bookingNode("welcome", models.NodeTypeMessage,
				"Hi! This is {{salonName}}. Here are our treatments:\n{{services}}\n"+
					"Reply with the number of the treatment you want.",
				"service-confirmed", 0, 120),
			bookingNode("service-confirmed", models.NodeTypeMessage,
				"{{service_name}} it is ({{service_price}}).\n"+
					"Pick a day:\n{{date_list}}\nReply with a number from 1 to 7.",
				"date-confirmed", 0, 240),
			bookingNode("date-confirmed", models.NodeTypeMessage,
				"{{date}} works. Pick a time:\n{{time_slots}}\nReply with a number from 1 to 5.",
				"time-confirmed", 0, 360),
			bookingNode("time-confirmed", models.NodeTypeMessage,
				"To confirm {{service_name}} on {{date}} at {{time}}, pay here: {{payment_link}}\n"+
					"Reply 'paid' once you are done.",
				"booking-complete", 0, 480),
			bookingNode("booking-complete", models.NodeTypeMessage,
				"All set! {{service_name}} on {{date}} at {{time}} at {{salonName}}.",
				"end", 0, 600),
			bookingNode("end", models.NodeTypeEnd, "", "", 0, 720),
		},
	}
}
