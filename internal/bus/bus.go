package bus

import (
	"fmt"

	"github.com/opensource-finance/tally/internal/domain"
)

// New returns the bus selected by cfg.Type: "channel" (local) or "nats" (pro).
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
