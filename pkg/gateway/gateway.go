package gateway

import (
	"context"
	"log/slog"
)

// Gateway delivers outbound replies to the customer's messaging channel.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// SendMessage delivers text to the given recipient. The boolean
	// reports whether delivery was accepted by the channel.
	SendMessage(ctx context.Context, to, text string) (bool, error)
}

// LogGateway is a delivery backend that only records outbound messages.
// It is the default when no real channel is configured, and doubles as
// the sink for local development.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a log-only gateway.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// SendMessage logs the outbound message and reports success.
func (g *LogGateway) SendMessage(ctx context.Context, to, text string) (bool, error) {
	g.logger.InfoContext(ctx, "outbound message", "to", to, "length", len(text))

	return true, nil
}
