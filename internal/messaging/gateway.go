package messaging

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/dentalcrm/internal/templates"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// Outbound is one message handed to a carrier gateway.
type Outbound struct {
	From        string
	To          string
	Content     string
	MessageType templates.MessageType
	ImageRefs   []string
}

// Gateway delivers messages to a carrier and returns the carrier's message id.
type Gateway interface {
	Send(ctx context.Context, msg Outbound) (string, error)
}

// dryRunKeep bounds how many recent messages a DryRunGateway remembers.
const dryRunKeep = 100

// DryRunGateway logs messages instead of delivering them. Used when no carrier is configured.
type DryRunGateway struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []Outbound
}

func NewDryRunGateway(logger *logging.Logger) *DryRunGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &DryRunGateway{logger: logger}
}

func (g *DryRunGateway) Send(ctx context.Context, msg Outbound) (string, error) {
	g.mu.Lock()
	if len(g.sent) == dryRunKeep {
		copy(g.sent, g.sent[1:])
		g.sent = g.sent[:dryRunKeep-1]
	}
	g.sent = append(g.sent, msg)
	g.mu.Unlock()

	id := "dry-" + uuid.New().String()
	g.logger.Info("dry-run message", "to", msg.To, "type", msg.MessageType, "bytes", templates.ByteLength(msg.Content), "provider_id", id)
	return id, nil
}

// Sent returns the most recent messages, oldest first.
func (g *DryRunGateway) Sent() []Outbound {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Outbound(nil), g.sent...)
}
